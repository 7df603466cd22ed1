package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Service interface {
	SaveLoadStats(ctx context.Context, stats *models.LoadStats) error
	GetLoadStats(ctx context.Context) (*models.LoadStats, error)
	InvalidateLoadStats(ctx context.Context) error
}

type cacheService struct {
	client *redis.Client
	cfg    *config.CacheConfig
}

// NewCacheService returns a Redis backed cache. With a nil client or caching
// disabled every read misses and every write is dropped.
func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client: client,
		cfg:    &cfg.Cache,
	}
}

func (c *cacheService) enabled() bool {
	return c.client != nil && c.cfg.Enabled
}

func (c *cacheService) SaveLoadStats(ctx context.Context, stats *models.LoadStats) error {
	if !c.enabled() {
		return nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal load stats for cache")
		return fmt.Errorf("%w: %v", models.ErrRedisSet, err)
	}

	expiration := time.Duration(c.cfg.LoadStatsExpirationMinutes) * time.Minute
	err = c.client.Set(ctx, c.cfg.LoadStatsKey, data, expiration).Err()
	if err != nil {
		logrus.WithError(err).Error("Failed to cache load stats")
		return fmt.Errorf("%w: %v", models.ErrRedisSet, err)
	}
	return nil
}

func (c *cacheService) GetLoadStats(ctx context.Context) (*models.LoadStats, error) {
	if !c.enabled() {
		return nil, nil
	}

	data, err := c.client.Get(ctx, c.cfg.LoadStatsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.Debug("Load stats not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).Error("Failed to get load stats from cache")
		return nil, fmt.Errorf("%w: %v", models.ErrRedisGet, err)
	}

	var stats models.LoadStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal load stats from cache")
		return nil, fmt.Errorf("%w: %v", models.ErrRedisGet, err)
	}

	logrus.Debug("Load stats retrieved from cache successfully")
	return &stats, nil
}

func (c *cacheService) InvalidateLoadStats(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	if err := c.client.Del(ctx, c.cfg.LoadStatsKey).Err(); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate load stats")
		return fmt.Errorf("%w: %v", models.ErrRedisSet, err)
	}
	return nil
}
