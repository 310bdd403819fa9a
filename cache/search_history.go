package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	historyLimit = 20
	historyTTL   = 30 * 24 * time.Hour
)

// SearchHistory 用户最近的搜索词，保存在 Redis list 中，最新的在最前面。
// client 为 nil 时所有操作都是空操作
type SearchHistory struct {
	client *redis.Client
}

// NewSearchHistory creates a history store. client may be nil when Redis is disabled.
func NewSearchHistory(client *redis.Client) *SearchHistory {
	return &SearchHistory{client: client}
}

// GetHistoryKey 根据用户ID生成搜索历史的Redis键
func GetHistoryKey(userID int64) string {
	return fmt.Sprintf("search_history:%d", userID)
}

func (s *SearchHistory) enabled() bool {
	return s != nil && s.client != nil
}

// Record 记录一次搜索，重复的词会被移到最前面
func (s *SearchHistory) Record(ctx context.Context, userID int64, query string) error {
	query = strings.TrimSpace(query)
	if !s.enabled() || query == "" {
		return nil
	}

	key := GetHistoryKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, key, 0, query)
		pipe.LPush(ctx, key, query)
		pipe.LTrim(ctx, key, 0, historyLimit-1)
		pipe.Expire(ctx, key, historyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record search history: %w", err)
	}
	return nil
}

// List 返回最近的搜索词
func (s *SearchHistory) List(ctx context.Context, userID int64) ([]string, error) {
	if !s.enabled() {
		return []string{}, nil
	}
	items, err := s.client.LRange(ctx, GetHistoryKey(userID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load search history: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// Clear 清空搜索历史
func (s *SearchHistory) Clear(ctx context.Context, userID int64) error {
	if !s.enabled() {
		return nil
	}
	if err := s.client.Del(ctx, GetHistoryKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	return nil
}
