package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Sonora/config"
	"Sonora/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Mirror 镜像存储，本地磁盘仍然是唯一的数据源
type Mirror interface {
	Upload(ctx context.Context, key, localPath, contentType string) error
	Remove(ctx context.Context, key string) error
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// MinioMirror 把上传的媒体文件复制到 MinIO 存储桶
type MinioMirror struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioMirror 创建 MinIO 客户端并确保存储桶存在
func NewMinioMirror(ctx context.Context, cfg *config.Config) (*MinioMirror, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	m := &MinioMirror{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Info("MinIO mirror ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return m, nil
}

func (m *MinioMirror) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("Created MinIO bucket", logger.String("bucket", m.bucket))
	return nil
}

// Upload 上传本地文件，对象名与存储 key 相同
func (m *MinioMirror) Upload(ctx context.Context, key, localPath, contentType string) error {
	_, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("mirror upload %s: %w", key, err)
	}
	return nil
}

// Remove 删除镜像对象
func (m *MinioMirror) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("mirror remove %s: %w", key, err)
	}
	return nil
}

// ListObjects 列出存储桶中的对象并统计
func (m *MinioMirror) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		})
	}
	return objects, stats, nil
}

// Backup 把本地上传目录完整同步到存储桶，返回上传的文件数
func (m *MinioMirror) Backup(ctx context.Context, store *LocalStore, contentType func(key string) string) (int, error) {
	count := 0
	err := store.Walk(func(key, path string, size int64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Upload(ctx, key, path, contentType(key)); err != nil {
			return err
		}
		count++
		logger.Debug("Backed up file", logger.String("key", key), logger.Int64("size", size))
		return nil
	})
	return count, err
}

// AsyncMirror 在后台执行镜像操作，失败只记日志
type AsyncMirror struct {
	mirror  Mirror
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncMirror wraps m. A nil m makes every call a no-op.
func NewAsyncMirror(m Mirror, timeout time.Duration) *AsyncMirror {
	return &AsyncMirror{mirror: m, timeout: timeout}
}

// Upload schedules a background upload.
func (a *AsyncMirror) Upload(key, localPath, contentType string) {
	if a == nil || a.mirror == nil || key == "" {
		return
	}
	a.run(key, func(ctx context.Context) error {
		return a.mirror.Upload(ctx, key, localPath, contentType)
	})
}

// Remove schedules a background delete.
func (a *AsyncMirror) Remove(key string) {
	if a == nil || a.mirror == nil || key == "" {
		return
	}
	a.run(key, func(ctx context.Context) error {
		return a.mirror.Remove(ctx, key)
	})
}

func (a *AsyncMirror) run(key string, op func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := op(ctx); err != nil {
			logger.Warn("Mirror operation failed", logger.String("key", key), logger.ErrorField(err))
		}
	}()
}

// Wait blocks until scheduled operations finish.
func (a *AsyncMirror) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
