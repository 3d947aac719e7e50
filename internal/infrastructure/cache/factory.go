package cache

import (
	"fmt"

	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the Redis-backed stores, falling back to in-memory ones
// when Redis is not configured or not reachable
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	client                *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis is an error.
// Default is true (allow fallback).
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Connect opens the Redis client once. A nil client with a nil error means
// in-memory stores are in use.
func (f *Factory) Connect() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	if f.redisConfig.Host == "" {
		f.logger.Info("Redis not configured, using in-memory caches")
		return nil, nil
	}
	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory caches. "+
			"Idempotency keys and rate snapshots will not be shared between instances.",
			zap.Error(err),
		)
		return nil, nil
	}
	f.client = client
	f.logger.Info("Connected to Redis", zap.String("addr", f.redisConfig.Addr()))
	return client, nil
}

// IdempotencyStore returns the Redis store, or an in-memory one without Redis
func (f *Factory) IdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.Connect()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return NewInMemoryIdempotencyStore(), nil
	}
	return NewRedisIdempotencyStore(client), nil
}

// RateCache returns the Redis rate cache, or an in-memory one without Redis
func (f *Factory) RateCache() (RateCache, error) {
	client, err := f.Connect()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return NewInMemoryRateCache(), nil
	}
	return NewRedisRateCache(client), nil
}

// Close closes the Redis client if one was opened
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
