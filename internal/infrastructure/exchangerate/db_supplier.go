package exchangerate

import (
	"context"
	"fmt"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RateStore is the currencies table
type RateStore interface {
	List(ctx context.Context) ([]finance.ExchangeRate, error)
	Upsert(ctx context.Context, rates []finance.ExchangeRate) error
}

// DBSupplier builds snapshots from the currencies table
type DBSupplier struct {
	store       RateStore
	base        valueobject.Currency
	defaultRate decimal.Decimal
}

// NewDBSupplier creates a supplier over the currencies table
func NewDBSupplier(store RateStore, base valueobject.Currency, defaultRate decimal.Decimal) *DBSupplier {
	return &DBSupplier{store: store, base: base, defaultRate: defaultRate}
}

// Current reads every row into a fresh snapshot
func (s *DBSupplier) Current(ctx context.Context) (*finance.RateTable, error) {
	rates, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exchange rates: %w", err)
	}
	return finance.NewRateTable(s.base, s.defaultRate, rates), nil
}

// SeedFromFile upserts the rates of a YAML file into the currencies table
func SeedFromFile(ctx context.Context, store RateStore, data []byte, base valueobject.Currency) (int, error) {
	rates, err := ParseRateFile(data, base)
	if err != nil {
		return 0, err
	}
	if err := store.Upsert(ctx, rates); err != nil {
		return 0, fmt.Errorf("seed exchange rates: %w", err)
	}
	return len(rates), nil
}

var _ finance.RateSupplier = (*DBSupplier)(nil)
