package finance

import (
	"strings"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// parseDate parses an optional YYYY-MM-DD value; empty yields the zero time
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, finance.NewInvalidInput("%s must be a date in YYYY-MM-DD format", field)
	}
	return t, nil
}

// parseCurrency parses an optional currency code, falling back to def
func parseCurrency(s string, def valueobject.Currency) (valueobject.Currency, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	c, err := valueobject.ParseCurrency(s)
	if err != nil {
		return "", finance.NewInvalidInput("invalid currency %q", s)
	}
	return c, nil
}

// parseUUIDs parses a list of ids, accepting comma separated values in each element
func parseUUIDs(field string, values []string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, finance.NewInvalidInput("%s contains an invalid id %q", field, part)
			}
			out = append(out, id)
		}
	}
	return out, nil
}
