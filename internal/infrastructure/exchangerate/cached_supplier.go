package exchangerate

import (
	"context"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/infrastructure/cache"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache outcomes reported to metrics
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// CachedRateSupplier serves snapshots from a cache and refills it from the
// source on a miss. Concurrent misses share one source load. Cache failures
// degrade to reading the source directly.
type CachedRateSupplier struct {
	source  finance.RateSupplier
	cache   cache.RateCache
	ttl     time.Duration
	group   singleflight.Group
	metrics *telemetry.FinanceMetrics
}

// NewCachedRateSupplier wraps source with cache
func NewCachedRateSupplier(source finance.RateSupplier, c cache.RateCache, ttl time.Duration) *CachedRateSupplier {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRateSupplier{source: source, cache: c, ttl: ttl}
}

// SetMetrics sets the metrics sink
func (s *CachedRateSupplier) SetMetrics(m *telemetry.FinanceMetrics) {
	s.metrics = m
}

// Current returns the cached snapshot or loads a new one
func (s *CachedRateSupplier) Current(ctx context.Context) (*finance.RateTable, error) {
	table, err := s.cache.Load(ctx)
	if err != nil {
		s.metrics.IncRateCache(OutcomeError)
		logger.L(ctx).Warn("Rate cache read failed, loading from source", zap.Error(err))
	}
	if table != nil {
		s.metrics.IncRateCache(OutcomeHit)
		return table, nil
	}
	if err == nil {
		s.metrics.IncRateCache(OutcomeMiss)
	}

	v, err, _ := s.group.Do("current", func() (interface{}, error) {
		fresh, err := s.source.Current(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Store(ctx, fresh, s.ttl); err != nil {
			logger.L(ctx).Warn("Rate cache write failed", zap.Error(err))
		}
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*finance.RateTable), nil
}

// Refresh drops the cached snapshot so the next call reloads it
func (s *CachedRateSupplier) Refresh(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

var _ finance.RateSupplier = (*CachedRateSupplier)(nil)
