package ratelimit

import (
	"context"
	"time"

	"loadhub-core-svc/src/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Limiter names
const (
	NameAuth         = "auth"
	NameLoadAccept   = "load_accept"
	NameDriverStatus = "driver_status"
)

// Set holds the limiters guarding the API.
type Set struct {
	Auth         Limiter
	LoadAccept   Limiter
	DriverStatus Limiter
	memory       []*MemoryLimiter
	sweepEvery   time.Duration
}

// NewSet builds the three limiters on the configured backend. The redis
// backend falls back to memory when no client is available.
func NewSet(cfg *config.RateLimitConfig, client *redis.Client) *Set {
	backend := cfg.Backend
	if backend == BackendRedis && client == nil {
		logrus.Warn("Redis rate limit backend requested without a redis client, using memory")
		backend = BackendMemory
	}

	s := &Set{sweepEvery: time.Duration(cfg.SweepIntervalSeconds) * time.Second}
	build := func(name string, w config.WindowRule) Limiter {
		rule := Rule{
			Name:    name,
			Window:  time.Duration(w.WindowSeconds) * time.Second,
			Max:     w.Max,
			Message: w.Message,
		}
		if rule.Window <= 0 {
			rule.Window = time.Minute
		}
		if backend == BackendRedis {
			return NewRedisLimiter(client, cfg.KeyPrefix, rule)
		}
		m := NewMemoryLimiter(rule)
		s.memory = append(s.memory, m)
		return m
	}

	s.Auth = build(NameAuth, cfg.Auth)
	s.LoadAccept = build(NameLoadAccept, cfg.LoadAccept)
	s.DriverStatus = build(NameDriverStatus, cfg.DriverStatus)

	logrus.WithField("backend", backend).Info("Rate limiters configured")
	return s
}

// StartSweepers launches the cleanup loop of every in-process limiter.
func (s *Set) StartSweepers(ctx context.Context) {
	for _, m := range s.memory {
		go m.StartSweeper(ctx, s.sweepEvery)
	}
}
