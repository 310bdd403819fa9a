package cmd

import (
	"fmt"

	"Sonora/db"
	"Sonora/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表结构",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB(gdb)

		if err := db.AutoMigrateModels(gdb); err != nil {
			return err
		}
		logger.Info("数据库迁移完成", logger.String("database", cfg.DBName))
		fmt.Println("数据库迁移完成")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
