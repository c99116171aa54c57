// Package cache holds serialized API responses. Redis is used when configured,
// otherwise a per-process expirable LRU.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourorg/places-api/internal/redisx"
)

const LocationsKey = "restaurants:locations"

func RestaurantKey(placeID string) string { return "restaurant:pid:" + placeID }

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_cache_hits_total",
		Help: "Response cache hits.",
	}, []string{"backend"})
	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "places_cache_misses_total",
		Help: "Response cache misses.",
	}, []string{"backend"})
)

// Cache errors are never fatal to a request; implementations log and carry on.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Delete(ctx context.Context, keys ...string)
}

type Local struct {
	lru *expirable.LRU[string, []byte]
}

func NewLocal(size int, ttl time.Duration) *Local {
	if size <= 0 {
		size = 1024
	}
	return &Local{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *Local) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		hitsTotal.WithLabelValues("local").Inc()
	} else {
		missesTotal.WithLabelValues("local").Inc()
	}
	return v, ok
}

func (c *Local) Set(_ context.Context, key string, val []byte) { c.lru.Add(key, val) }

func (c *Local) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

type Redis struct {
	client *redisx.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client *redisx.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redisx.ErrNil) {
			c.logger.Warn("cache get failed", slog.String("key", key), slog.Any("error", err))
		}
		missesTotal.WithLabelValues("redis").Inc()
		return nil, false
	}
	hitsTotal.WithLabelValues("redis").Inc()
	return v, true
}

func (c *Redis) Set(ctx context.Context, key string, val []byte) {
	if err := c.client.Set(ctx, key, val, c.ttl); err != nil {
		c.logger.Warn("cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *Redis) Delete(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...); err != nil {
		c.logger.Warn("cache delete failed", slog.Any("keys", keys), slog.Any("error", err))
	}
}
