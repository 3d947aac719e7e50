package finance

import (
	"github.com/shopspring/decimal"
)

// DiscountType describes how a contract discount reduces the gross amount
type DiscountType string

const (
	DiscountTypeNone   DiscountType = "none"
	DiscountTypeAmount DiscountType = "amount"
	DiscountTypeRate   DiscountType = "rate"
)

// IsValid checks if the discount type is known
func (t DiscountType) IsValid() bool {
	switch t {
	case DiscountTypeNone, DiscountTypeAmount, DiscountTypeRate:
		return true
	}
	return false
}

// Discount is a contract pricing adjustment. It only changes the net amount
// when Participates is set.
type Discount struct {
	Type         DiscountType    `json:"type"`
	Value        decimal.Decimal `json:"value"`
	Participates bool            `json:"participates"`
}

var hundred = decimal.NewFromInt(100)

// Normalize validates the discount and rewrites percentage rates as fractions.
// A rate in (1, 100] is read as a percentage; the result must lie in (0, 1].
func (d Discount) Normalize() (Discount, error) {
	if d.Type == "" {
		d.Type = DiscountTypeNone
	}
	if !d.Type.IsValid() {
		return d, NewInvalidInput("unknown discount type %q", d.Type)
	}
	switch d.Type {
	case DiscountTypeNone:
		d.Value = decimal.Zero
	case DiscountTypeAmount:
		if d.Value.IsNegative() {
			return d, NewInvalidInput("discount amount cannot be negative")
		}
	case DiscountTypeRate:
		if d.Value.GreaterThan(decimal.NewFromInt(1)) && d.Value.LessThanOrEqual(hundred) {
			d.Value = d.Value.Div(hundred)
		}
		if !d.Value.IsPositive() || d.Value.GreaterThan(decimal.NewFromInt(1)) {
			return d, NewInvalidInput("discount rate must be within (0, 1] or (1, 100] as a percentage")
		}
	}
	return d, nil
}

// NetAmount applies the discount to gross, rounded to 2 places
func (d Discount) NetAmount(gross decimal.Decimal) decimal.Decimal {
	net := gross
	if d.Participates {
		switch d.Type {
		case DiscountTypeAmount:
			net = decimal.Max(decimal.Zero, gross.Sub(d.Value))
		case DiscountTypeRate:
			net = gross.Mul(d.Value)
		}
	}
	return net.Round(2)
}
