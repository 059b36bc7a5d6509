package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"waste-reduction-api/internal/infrastructure/config"
	"waste-reduction-api/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Service Redis 快取服務。鍵加上世代編號作為命名空間，
// Flush 只需遞增世代，不必掃描刪除舊鍵（交給 TTL 自然過期）
type Service struct {
	client     *redis.Client
	config     *config.CacheConfig
	generation atomic.Int64
}

// NewService 建立 Redis 快取服務並測試連線
func NewService(cfg *config.CacheConfig) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("Redis 快取服務已初始化",
		zap.String("addr", cfg.RedisAddr),
		zap.Duration("存活時間", cfg.TTL),
	)
	return &Service{client: client, config: cfg}, nil
}

func (s *Service) namespacedKey(key string) string {
	return fmt.Sprintf("g%d:%s", s.generation.Load(), key)
}

// Get 獲取快取
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	nsKey := s.namespacedKey(key)
	data, err := s.client.Get(ctx, nsKey).Result()
	if err != nil {
		if err == redis.Nil {
			common.LogCacheMiss("redis", key)
			return "", common.ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get cache: %w", err)
	}
	common.LogCacheHit("redis", key)
	return data, nil
}

// Set 設置快取
func (s *Service) Set(ctx context.Context, key, value string) error {
	nsKey := s.namespacedKey(key)
	if err := s.client.Set(ctx, nsKey, value, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Flush 切換到新世代，使舊快照的所有快取立即失效
func (s *Service) Flush(ctx context.Context) error {
	gen := s.generation.Add(1)
	common.LogInfo("Redis 快取已切換世代", zap.Int64("generation", gen))
	return nil
}

// GetStats 獲取快取統計信息
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"backend":    "redis",
		"addr":       s.config.RedisAddr,
		"generation": s.generation.Load(),
	}
}

// Close 關閉 Redis 連線
func (s *Service) Close() error {
	return s.client.Close()
}
