package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), TWD)
		require.NoError(t, err)
		assert.Equal(t, TWD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{"", DefaultCurrency, false},
		{"cny", CNY, false},
		{" usd ", USD, false},
		{"EURO", "", true},
		{"1AB", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCurrency(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_AddSubtract(t *testing.T) {
	a := MustMoney(decimal.NewFromInt(100), CNY)
	b := MustMoney(decimal.NewFromInt(40), CNY)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.NewFromInt(140)))

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.NewFromInt(60)))

	_, err = a.Add(MustMoney(decimal.NewFromInt(1), USD))
	assert.Error(t, err)
}

func TestMoney_JSON(t *testing.T) {
	m := MustMoney(decimal.RequireFromString("12.34"), HKD)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.34","currency":"HKD"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equals(m))

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"1"}`), &back))
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "3.50 TWD", MustMoney(decimal.RequireFromString("3.5"), TWD).String())
}
