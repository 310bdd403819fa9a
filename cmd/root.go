package cmd

import (
	"fmt"
	"os"

	"Sonora/config"
	"Sonora/logger"
	"Sonora/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sonora",
	Short: "Sonora is a music catalog and streaming service.",
	// 不带子命令时直接启动服务
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(loadConfig())
	},
	SilenceUsage: true,
}

// loadConfig 加载配置并初始化日志
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})
	return cfg
}

// Execute executes the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}
