package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestDashboard(queries *MockDashboardQueryRepository) *DashboardService {
	return NewDashboardService(queries, testRates(), testClock(), valueobject.TWD)
}

func TestDashboardService_BuildFilter(t *testing.T) {
	svc := newTestDashboard(new(MockDashboardQueryRepository))
	sales1, sales2 := uuid.New(), uuid.New()

	f, err := svc.BuildFilter(DashboardRequest{
		View:         "installment",
		SalesUserIDs: []string{sales1.String() + "," + sales2.String()},
		Period:       "last_month",
		CurrencyMode: "bogus",
		PageSize:     500,
	})
	require.NoError(t, err)

	assert.Equal(t, finance.ViewInstallment, f.View)
	assert.Equal(t, []uuid.UUID{sales1, sales2}, f.SalesUserIDs)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), f.Range.From)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), f.Range.To)
	assert.Equal(t, finance.RateModeOriginal, f.CurrencyMode)
	assert.Equal(t, finance.MaxPageSize, f.PageSize)
	assert.Equal(t, testToday, f.Today)
}

func TestDashboardService_BuildFilter_Invalid(t *testing.T) {
	svc := newTestDashboard(new(MockDashboardQueryRepository))
	for name, req := range map[string]DashboardRequest{
		"bad user id":  {SalesUserIDs: []string{"nope"}},
		"bad date":     {StartDate: "2024-13-01"},
		"bad group by": {GroupBy: "colour"},
		"bad focus":    {FocusUserID: "x"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.BuildFilter(req)
			require.Error(t, err)
			assert.ErrorIs(t, err, finance.NewInvalidInput("x"))
		})
	}
}

func TestDashboardService_ContractView_FixedMode(t *testing.T) {
	queries := new(MockDashboardQueryRepository)
	row := finance.ContractRow{
		ContractID:   uuid.New(),
		ContractNo:   "HT-1",
		Currency:     valueobject.USD,
		AmountDue:    dec("140"),
		AmountPaid:   dec("14"),
		AmountUnpaid: dec("126"),
		Status:       finance.ContractStatusActive,
		ManualStatus: "法务跟进",
		SignDate:     time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}
	queries.On("ContractRows", mock.Anything, mock.Anything).Return([]finance.ContractRow{row}, int64(21), nil).Once()
	queries.On("Totals", mock.Anything, mock.Anything).Return(finance.CurrencyBuckets{
		valueobject.USD: {Due: dec("140"), Paid: dec("14"), Unpaid: dec("126"), Count: 1},
		valueobject.TWD: {Due: dec("450"), Paid: dec("0"), Unpaid: dec("450"), Count: 1},
	}, nil).Once()

	resp, err := newTestDashboard(queries).Query(context.Background(), DashboardRequest{CurrencyMode: "fixed"})
	require.NoError(t, err)

	assert.Equal(t, "contract", resp.View)
	assert.Equal(t, "CNY", resp.DisplayCurrency)
	require.Len(t, resp.ContractRows, 1)
	got := resp.ContractRows[0]
	assert.Equal(t, "USD", got.Original.Currency)
	assert.Equal(t, "CNY", got.Display.Currency)
	assert.Equal(t, "1000", got.Display.Due.String())
	assert.Equal(t, "法务跟进", got.Status)
	// 140 USD = 1000 CNY, 450 TWD = 100 CNY
	assert.Equal(t, "1100", resp.Totals.Due.String())
	assert.Equal(t, int64(2), resp.Totals.Count)
	assert.Empty(t, resp.Degraded)
	assert.Equal(t, int64(21), resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	queries.AssertNotCalled(t, "GroupTotals", mock.Anything, mock.Anything)
}

func TestDashboardService_InstallmentView_SortsAndDegrades(t *testing.T) {
	queries := new(MockDashboardQueryRepository)
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	paid := finance.InstallmentRow{InstallmentID: uuid.New(), DueDate: due, Currency: valueobject.TWD, AmountDue: dec("100"), AmountPaid: dec("100")}
	open := finance.InstallmentRow{InstallmentID: uuid.New(), DueDate: due, Currency: valueobject.TWD, AmountDue: dec("100"), AmountPaid: dec("0")}
	queries.On("InstallmentRows", mock.Anything, mock.Anything).Return([]finance.InstallmentRow{paid, open}, int64(2), nil).Once()
	queries.On("Totals", mock.Anything, mock.Anything).Return(finance.CurrencyBuckets{
		"EUR": {Due: dec("45"), Paid: dec("0"), Unpaid: dec("45"), Count: 1},
	}, nil).Once()
	queries.On("GroupTotals", mock.Anything, mock.Anything).Return([]finance.GroupBucket{
		{Key: "2024-06", Currency: valueobject.TWD, Amounts: finance.Amounts{Due: dec("200"), Paid: dec("100"), Unpaid: dec("100"), Count: 2}},
	}, nil).Once()

	resp, err := newTestDashboard(queries).Query(context.Background(), DashboardRequest{View: "installment", GroupBy: "created_month"})
	require.NoError(t, err)

	require.Len(t, resp.InstallmentRows, 2)
	assert.Equal(t, open.InstallmentID, resp.InstallmentRows[0].InstallmentID)
	assert.Equal(t, "overdue", resp.InstallmentRows[0].Status)
	assert.Equal(t, 14, resp.InstallmentRows[0].OverdueDays)
	assert.Equal(t, "received", resp.InstallmentRows[1].Status)
	assert.Equal(t, []valueobject.Currency{"EUR"}, resp.Degraded)
	require.Len(t, resp.GroupTotals, 1)
	assert.Equal(t, "2024-06", resp.GroupTotals[0].Key)
	assert.Equal(t, "TWD", resp.GroupTotals[0].Totals.Currency.String())
}

func TestDashboardService_StaffSummary_Pages(t *testing.T) {
	queries := new(MockDashboardQueryRepository)
	buckets := make([]finance.StaffBucket, 0, 12)
	for i := 0; i < 12; i++ {
		id := uuid.New()
		buckets = append(buckets, finance.StaffBucket{
			UserID:        &id,
			Currency:      valueobject.TWD,
			ContractCount: 1,
			Amounts:       finance.Amounts{Due: decimal.NewFromInt(int64(100 * (i + 1))), Paid: decimal.Zero, Unpaid: decimal.NewFromInt(int64(100 * (i + 1)))},
		})
	}
	queries.On("StaffSummary", mock.Anything, mock.Anything).Return(buckets, nil).Once()
	queries.On("Totals", mock.Anything, mock.Anything).Return(finance.CurrencyBuckets{}, nil).Once()

	resp, err := newTestDashboard(queries).Query(context.Background(), DashboardRequest{View: "staff_summary", Page: 2, PageSize: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(12), resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.StaffRows, 2)
	assert.Equal(t, "200", resp.StaffRows[0].Totals.Due.String())
	assert.Equal(t, "100", resp.StaffRows[1].Totals.Due.String())
}

func TestDashboardService_QueryError(t *testing.T) {
	queries := new(MockDashboardQueryRepository)
	queries.On("ContractRows", mock.Anything, mock.Anything).Return([]finance.ContractRow(nil), int64(0), errors.New("db gone")).Once()
	queries.On("Totals", mock.Anything, mock.Anything).Return(finance.CurrencyBuckets{}, nil).Maybe()

	_, err := newTestDashboard(queries).Query(context.Background(), DashboardRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

func TestDashboardService_QueryAll(t *testing.T) {
	queries := new(MockDashboardQueryRepository)
	page := func(n int) []finance.ContractRow {
		rows := make([]finance.ContractRow, n)
		for i := range rows {
			rows[i] = finance.ContractRow{ContractID: uuid.New(), Currency: valueobject.TWD}
		}
		return rows
	}
	queries.On("ContractRows", mock.Anything, mock.MatchedBy(func(f finance.DashboardFilter) bool { return f.Page == 1 })).
		Return(page(finance.MaxPageSize), int64(150), nil).Once()
	queries.On("ContractRows", mock.Anything, mock.MatchedBy(func(f finance.DashboardFilter) bool { return f.Page == 2 })).
		Return(page(50), int64(150), nil).Once()
	queries.On("Totals", mock.Anything, mock.Anything).Return(finance.CurrencyBuckets{}, nil).Twice()

	resp, err := newTestDashboard(queries).QueryAll(context.Background(), DashboardRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.ContractRows, 150)
	queries.AssertExpectations(t)
}

func TestDashboardService_ExchangeRates(t *testing.T) {
	resp, err := newTestDashboard(new(MockDashboardQueryRepository)).ExchangeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CNY", resp.Base)
	assert.Equal(t, "4.5", resp.DefaultRate.String())
	require.Len(t, resp.Rates, 2)
	assert.Equal(t, valueobject.TWD, resp.Rates[0].Currency)
}
