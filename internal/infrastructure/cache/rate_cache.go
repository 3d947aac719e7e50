package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RateCache stores the current rate snapshot. Load returns nil, nil on a miss.
type RateCache interface {
	Load(ctx context.Context) (*finance.RateTable, error)
	Store(ctx context.Context, t *finance.RateTable, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// rateSnapshot is the cached form of a RateTable
type rateSnapshot struct {
	Base        valueobject.Currency   `json:"base"`
	DefaultRate decimal.Decimal        `json:"default_rate"`
	LoadedAt    time.Time              `json:"loaded_at"`
	Rates       []finance.ExchangeRate `json:"rates"`
}

// EncodeRateTable serializes a snapshot for the cache
func EncodeRateTable(t *finance.RateTable) ([]byte, error) {
	return json.Marshal(rateSnapshot{
		Base:        t.Base(),
		DefaultRate: t.DefaultRate(),
		LoadedAt:    t.LoadedAt(),
		Rates:       t.Rates(),
	})
}

// DecodeRateTable restores a snapshot written by EncodeRateTable
func DecodeRateTable(data []byte) (*finance.RateTable, error) {
	var s rateSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode rate snapshot: %w", err)
	}
	if !s.Base.IsWellFormed() {
		return nil, fmt.Errorf("decode rate snapshot: invalid base %q", s.Base)
	}
	return finance.RestoreRateTable(s.Base, s.DefaultRate, s.Rates, s.LoadedAt), nil
}

// RedisRateCache keeps the current rate snapshot in one Redis key
type RedisRateCache struct {
	client *redis.Client
	key    string
}

// NewRedisRateCache creates a rate cache over an existing client
func NewRedisRateCache(client *redis.Client) *RedisRateCache {
	return &RedisRateCache{client: client, key: KeyPrefix + "exchange_rates"}
}

// Load returns the cached snapshot, or nil on a miss
func (c *RedisRateCache) Load(ctx context.Context) (*finance.RateTable, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rate cache: %w", err)
	}
	return DecodeRateTable(data)
}

// Store caches t for ttl
func (c *RedisRateCache) Store(ctx context.Context, t *finance.RateTable, ttl time.Duration) error {
	data, err := EncodeRateTable(t)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write rate cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot
func (c *RedisRateCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// InMemoryRateCache keeps the snapshot in process memory
type InMemoryRateCache struct {
	mu        sync.RWMutex
	table     *finance.RateTable
	expiresAt time.Time
	now       func() time.Time
}

// NewInMemoryRateCache creates an empty in-memory rate cache
func NewInMemoryRateCache() *InMemoryRateCache {
	return &InMemoryRateCache{now: time.Now}
}

// Load returns the cached snapshot, or nil when empty or expired
func (c *InMemoryRateCache) Load(context.Context) (*finance.RateTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil || !c.now().Before(c.expiresAt) {
		return nil, nil
	}
	return c.table, nil
}

// Store caches t for ttl
func (c *InMemoryRateCache) Store(_ context.Context, t *finance.RateTable, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = t
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// Invalidate drops the cached snapshot
func (c *InMemoryRateCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = nil
	return nil
}

var (
	_ RateCache = (*RedisRateCache)(nil)
	_ RateCache = (*InMemoryRateCache)(nil)
)
