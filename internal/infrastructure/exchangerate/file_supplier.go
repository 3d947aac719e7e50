package exchangerate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// RateFile is the YAML layout of a rates file:
//
//	base: CNY
//	rates:
//	  - code: TWD
//	    name: 新台币
//	    fixed: "4.5"
//	    floating: "4.43"
type RateFile struct {
	Base  string      `yaml:"base"`
	Rates []RateEntry `yaml:"rates"`
}

// RateEntry is one currency of a rates file. Rates are strings to keep decimals exact.
type RateEntry struct {
	Code     string `yaml:"code"`
	Name     string `yaml:"name"`
	Fixed    string `yaml:"fixed"`
	Floating string `yaml:"floating"`
}

// ParseRateFile decodes and validates a rates file against the configured base
func ParseRateFile(data []byte, base valueobject.Currency) ([]finance.ExchangeRate, error) {
	var f RateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rates file: %w", err)
	}
	if f.Base != "" && !strings.EqualFold(f.Base, base.String()) {
		return nil, fmt.Errorf("rates file base %s does not match configured base %s", f.Base, base)
	}
	out := make([]finance.ExchangeRate, 0, len(f.Rates))
	for i, e := range f.Rates {
		code, err := valueobject.ParseCurrency(e.Code)
		if err != nil || e.Code == "" {
			return nil, fmt.Errorf("rates[%d]: invalid currency code %q", i, e.Code)
		}
		fixed, err := parseRate(e.Fixed)
		if err != nil {
			return nil, fmt.Errorf("rates[%d] %s: fixed: %w", i, code, err)
		}
		floating := fixed
		if e.Floating != "" {
			if floating, err = parseRate(e.Floating); err != nil {
				return nil, fmt.Errorf("rates[%d] %s: floating: %w", i, code, err)
			}
		}
		out = append(out, finance.ExchangeRate{Currency: code, Name: e.Name, FixedRate: fixed, FloatingRate: floating})
	}
	return out, nil
}

func parseRate(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate %q", s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("rate must be positive, got %s", d)
	}
	return d, nil
}

// FileSupplier reads rates from a YAML file on every call. Wrap it in a
// CachedRateSupplier to avoid rereading.
type FileSupplier struct {
	path        string
	base        valueobject.Currency
	defaultRate decimal.Decimal
}

// NewFileSupplier creates a supplier over path
func NewFileSupplier(path string, base valueobject.Currency, defaultRate decimal.Decimal) *FileSupplier {
	return &FileSupplier{path: path, base: base, defaultRate: defaultRate}
}

// Current loads the file into a fresh snapshot
func (s *FileSupplier) Current(_ context.Context) (*finance.RateTable, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read rates file: %w", err)
	}
	rates, err := ParseRateFile(data, s.base)
	if err != nil {
		return nil, err
	}
	return finance.NewRateTable(s.base, s.defaultRate, rates), nil
}

var _ finance.RateSupplier = (*FileSupplier)(nil)
