package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"Sonora/core/audio"
	"Sonora/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioBackup bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO镜像存储桶管理",
	Long:  `查看MinIO镜像存储桶中的文件和统计信息，或把本地上传目录完整备份到存储桶。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx := context.Background()
		mirror, err := storage.NewMinioMirror(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		fmt.Println("MinIO连接成功！")

		if minioBackup {
			store := storage.NewLocalStore(cfg)
			fmt.Printf("\n备份本地目录 %s ...\n", store.Root())
			start := time.Now()
			n, err := mirror.Backup(ctx, store, contentTypeForKey)
			if err != nil {
				return fmt.Errorf("备份失败（已上传 %d 个文件）: %w", n, err)
			}
			fmt.Printf("备份完成，共上传 %d 个文件，耗时 %s\n", n, time.Since(start).Round(time.Millisecond))
			return nil
		}

		objects, stats, err := mirror.ListObjects(ctx, minioPrefix)
		if err != nil {
			return fmt.Errorf("列出文件失败: %w", err)
		}

		if !minioStats {
			fmt.Printf("\n存储桶中的文件 (前缀: %q):\n", minioPrefix)
			for _, obj := range objects {
				fmt.Printf("  %-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size),
					obj.LastModified.Format("2006-01-02 15:04:05"))
			}
		}

		fmt.Println("\n存储桶统计信息:")
		fmt.Printf("  文件数量: %d\n", stats.TotalObjects)
		fmt.Printf("  总大小:   %s\n", storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf("  最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// contentTypeForKey 按扩展名推断对象的 Content-Type
func contentTypeForKey(key string) string {
	if audio.IsImageExt(filepath.Ext(key)) {
		return audio.ImageMediaType(key)
	}
	return audio.MediaType(key)
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioBackup, "backup", "b", false, "把本地上传目录备份到存储桶")

	minioCmd.Example = `  # 列出所有文件
  sonora minio

  # 按前缀过滤文件
  sonora minio -p "songs/"

  # 只显示统计信息
  sonora minio -s

  # 备份本地上传目录
  sonora minio -b`
}
