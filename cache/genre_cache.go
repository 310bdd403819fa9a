package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Sonora/model"

	"github.com/go-redis/redis/v8"
)

const (
	popularGenresPrefix = "genres:popular:"
	popularGenresTTL    = 5 * time.Minute
)

// GenreCache 缓存热门流派，每个 limit 一个 key
type GenreCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGenreCache creates the cache. client may be nil when Redis is disabled.
func NewGenreCache(client *redis.Client) *GenreCache {
	return &GenreCache{client: client, ttl: popularGenresTTL}
}

// GetPopularKey 热门流派缓存键
func GetPopularKey(limit int) string {
	return fmt.Sprintf("%s%d", popularGenresPrefix, limit)
}

func (c *GenreCache) enabled() bool {
	return c != nil && c.client != nil
}

// GetPopular 返回缓存的结果，未命中时 ok 为 false
func (c *GenreCache) GetPopular(ctx context.Context, limit int) ([]model.GenreWithCount, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, GetPopularKey(limit)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read popular genres: %w", err)
	}

	var genres []model.GenreWithCount
	if err := json.Unmarshal(data, &genres); err != nil {
		return nil, false, fmt.Errorf("failed to decode popular genres: %w", err)
	}
	return genres, true, nil
}

// SetPopular 写入缓存
func (c *GenreCache) SetPopular(ctx context.Context, limit int, genres []model.GenreWithCount) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("failed to encode popular genres: %w", err)
	}
	if err := c.client.Set(ctx, GetPopularKey(limit), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache popular genres: %w", err)
	}
	return nil
}

// Invalidate 流派或歌曲变化后清除所有热门流派缓存
func (c *GenreCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	iter := c.client.Scan(ctx, 0, popularGenresPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan popular genre keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
