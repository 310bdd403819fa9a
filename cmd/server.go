package cmd

import (
	"Sonora/server"

	"github.com/spf13/cobra"
)

var serverAddr string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动Sonora服务器",
	Long:  `启动Sonora音乐服务的HTTP服务器，提供曲库API、音频流和实时通知`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if serverAddr != "" {
			cfg.ServerAddr = serverAddr
		}
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&serverAddr, "addr", "a", "", "监听地址，覆盖 SERVER_ADDR")
}
