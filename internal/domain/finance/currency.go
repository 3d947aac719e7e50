package finance

import (
	"sort"
	"time"

	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RateMode selects which rate column and which target currency a conversion uses
type RateMode string

const (
	// RateModeOriginal presents amounts in the record currency using fixed rates
	RateModeOriginal RateMode = "original"
	// RateModeFixed presents amounts in the base currency using fixed rates
	RateModeFixed RateMode = "fixed"
	// RateModeFloating presents amounts in the base currency using floating rates
	RateModeFloating RateMode = "floating"
)

// IsValid checks if the mode is known
func (m RateMode) IsValid() bool {
	switch m {
	case RateModeOriginal, RateModeFixed, RateModeFloating:
		return true
	}
	return false
}

// String returns the string representation of RateMode
func (m RateMode) String() string {
	return string(m)
}

// ParseRateMode maps user input to a mode, defaulting to original
func ParseRateMode(s string) RateMode {
	m := RateMode(s)
	if m.IsValid() {
		return m
	}
	return RateModeOriginal
}

// ExchangeRate is the price of one unit of the base currency expressed in Currency.
// The base currency itself always has rate 1.
type ExchangeRate struct {
	Currency     valueobject.Currency `json:"currency"`
	Name         string               `json:"name,omitempty"`
	FixedRate    decimal.Decimal      `json:"fixed_rate"`
	FloatingRate decimal.Decimal      `json:"floating_rate"`
}

// RateTable is an immutable snapshot of exchange rates against a single base currency
type RateTable struct {
	base        valueobject.Currency
	defaultRate decimal.Decimal
	rates       map[valueobject.Currency]ExchangeRate
	loadedAt    time.Time
}

// NewRateTable builds a snapshot. Later entries for the same currency win.
func NewRateTable(base valueobject.Currency, defaultRate decimal.Decimal, rates []ExchangeRate) *RateTable {
	m := make(map[valueobject.Currency]ExchangeRate, len(rates))
	for _, r := range rates {
		m[r.Currency] = r
	}
	return &RateTable{
		base:        base,
		defaultRate: defaultRate,
		rates:       m,
		loadedAt:    time.Now(),
	}
}

// RestoreRateTable rebuilds a snapshot loaded at loadedAt, e.g. from a cache
func RestoreRateTable(base valueobject.Currency, defaultRate decimal.Decimal, rates []ExchangeRate, loadedAt time.Time) *RateTable {
	t := NewRateTable(base, defaultRate, rates)
	t.loadedAt = loadedAt
	return t
}

// Base returns the base currency
func (t *RateTable) Base() valueobject.Currency {
	return t.base
}

// DefaultRate returns the rate used for currencies missing from the table
func (t *RateTable) DefaultRate() decimal.Decimal {
	return t.defaultRate
}

// LoadedAt returns when the snapshot was built
func (t *RateTable) LoadedAt() time.Time {
	return t.loadedAt
}

// Rates returns the table entries sorted by currency code
func (t *RateTable) Rates() []ExchangeRate {
	out := make([]ExchangeRate, 0, len(t.rates))
	for _, r := range t.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// Rate returns the rate for code under mode. The second result is false when the
// table had no usable rate and the default rate was substituted.
func (t *RateTable) Rate(code valueobject.Currency, mode RateMode) (decimal.Decimal, bool) {
	if code == t.base {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.rates[code]
	if !ok {
		return t.defaultRate, false
	}
	v := r.FixedRate
	if mode == RateModeFloating {
		v = r.FloatingRate
	}
	if !v.IsPositive() {
		return t.defaultRate, false
	}
	return v, true
}

// Converter converts amounts between currencies through the base currency
type Converter struct {
	table  *RateTable
	record valueobject.Currency
}

// NewConverter creates a converter over a rate snapshot. record is the
// presentation currency of RateModeOriginal.
func NewConverter(table *RateTable, record valueobject.Currency) *Converter {
	return &Converter{table: table, record: record}
}

// Table returns the underlying snapshot
func (c *Converter) Table() *RateTable {
	return c.table
}

// TargetCurrency returns the presentation currency for mode
func (c *Converter) TargetCurrency(mode RateMode) valueobject.Currency {
	if mode == RateModeOriginal || !mode.IsValid() {
		return c.record
	}
	return c.table.Base()
}

// Convert returns amount expressed in to. Identical currencies return amount
// unchanged. exact is false when a default rate stood in for a missing one.
func (c *Converter) Convert(amount decimal.Decimal, from, to valueobject.Currency, mode RateMode) (result decimal.Decimal, exact bool) {
	if from == to {
		return amount, true
	}
	fromRate, okFrom := c.table.Rate(from, mode)
	toRate, okTo := c.table.Rate(to, mode)
	return amount.Div(fromRate).Mul(toRate), okFrom && okTo
}

// ConvertForDisplay converts into the presentation currency of mode
func (c *Converter) ConvertForDisplay(amount decimal.Decimal, from valueobject.Currency, mode RateMode) (decimal.Decimal, bool) {
	return c.Convert(amount, from, c.TargetCurrency(mode), mode)
}
