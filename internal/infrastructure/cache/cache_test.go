package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/erp/receivables/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "key-1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		processed, err := store.IsProcessed(ctx, "key-1")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("expired claim can be taken again", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "key-2", 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)

		time.Sleep(20 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "key-2")
		require.NoError(t, err)
		assert.False(t, processed)

		ok, err = store.MarkProcessed(ctx, "key-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release frees the key", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "key-3", time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, "key-3"))

		ok, err := store.MarkProcessed(ctx, "key-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short", time.Millisecond)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	time.Sleep(5 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func sampleTable() *finance.RateTable {
	return finance.RestoreRateTable(valueobject.CNY, decimal.RequireFromString("4.5"), []finance.ExchangeRate{
		{Currency: valueobject.TWD, Name: "新台币", FixedRate: decimal.RequireFromString("4.5"), FloatingRate: decimal.RequireFromString("4.43")},
		{Currency: valueobject.USD, FixedRate: decimal.RequireFromString("0.14"), FloatingRate: decimal.RequireFromString("0.138")},
	}, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
}

func TestRateTableEncoding(t *testing.T) {
	data, err := EncodeRateTable(sampleTable())
	require.NoError(t, err)

	got, err := DecodeRateTable(data)
	require.NoError(t, err)
	assert.Equal(t, valueobject.CNY, got.Base())
	assert.Equal(t, "4.5", got.DefaultRate().String())
	assert.True(t, got.LoadedAt().Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))

	rate, exact := got.Rate(valueobject.USD, finance.RateModeFloating)
	assert.True(t, exact)
	assert.Equal(t, "0.138", rate.String())
}

func TestDecodeRateTable_Invalid(t *testing.T) {
	_, err := DecodeRateTable([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeRateTable([]byte(`{"base":"cny"}`))
	assert.Error(t, err)
}

func TestInMemoryRateCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	c := NewInMemoryRateCache()
	c.now = func() time.Time { return now }

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Store(ctx, sampleTable(), time.Minute))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(2 * time.Minute)
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "expired snapshot is a miss")

	require.NoError(t, c.Store(ctx, sampleTable(), time.Hour))
	require.NoError(t, c.Invalidate(ctx))
	got, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFactory_WithoutRedisHost(t *testing.T) {
	f := NewFactory(config.RedisConfig{})

	store, err := f.IdempotencyStore()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryIdempotencyStore{}, store)

	rc, err := f.RateCache()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryRateCache{}, rc)
	assert.NoError(t, f.Close())
}

func TestFactory_UnreachableRedis(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	rc, err := NewFactory(cfg).RateCache()
	require.NoError(t, err)
	assert.IsType(t, &InMemoryRateCache{}, rc)

	_, err = NewFactory(cfg, WithInMemoryFallback(false)).RateCache()
	assert.Error(t, err)
}
