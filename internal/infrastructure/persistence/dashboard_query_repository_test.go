package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/erp/receivables/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dashboardToday = date(2024, 6, 15)

type dashboardFixture struct {
	db       *gorm.DB
	repo     *GormDashboardQueryRepository
	acme     *finance.Contract // TWD 1000 (paid by bank transfer on 2024-05-03) + 2000
	beta     *finance.Contract // USD 500, unpaid
	salesA   uuid.UUID
	salesB   uuid.UUID
	ownerA   uuid.UUID
	customer uuid.UUID
}

func createCustomer(t *testing.T, db *gorm.DB, code, name, group string, owner uuid.UUID) uuid.UUID {
	t.Helper()
	m := &models.CustomerModel{
		Code:          code,
		Name:          name,
		Mobile:        "0912" + code,
		CustomerGroup: group,
		ActivityTag:   "spring-fair",
		OwnerUserID:   &owner,
	}
	m.FromDomainBaseEntity(shared.NewBaseEntity())
	require.NoError(t, db.Create(m).Error)
	return m.ID
}

// pay posts a receipt to installment idx of c and stores every changed row
func pay(t *testing.T, db *gorm.DB, c *finance.Contract, idx int, amount string, method finance.PaymentMethod, received time.Time) {
	t.Helper()
	ctx := context.Background()
	inst := c.Installments[idx]
	amt := decimal.RequireFromString(amount)
	r, err := c.ApplyReceipt(inst.ID, finance.ReceiptInput{
		Amount: amt, Currency: inst.Currency, ReceivedDate: received, Method: method,
	}, amt)
	require.NoError(t, err)
	require.NoError(t, NewGormReceiptRepository(db).Create(ctx, r))
	require.NoError(t, NewGormInstallmentRepository(db).SaveWithLock(ctx, inst))
	require.NoError(t, NewGormContractRepository(db).SaveWithLock(ctx, c))
}

func setupDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	db := setupFinanceTestDB(t)
	f := &dashboardFixture{db: db, repo: NewGormDashboardQueryRepository(db)}
	f.salesA, f.salesB, f.ownerA = uuid.New(), uuid.New(), uuid.New()

	f.customer = createCustomer(t, db, "C001", "Acme Trading", "VIP", f.ownerA)
	other := createCustomer(t, db, "C002", "Beta Foods", "Retail", uuid.New())

	f.acme = createContract(t, db, "HT-A", f.customer, &f.salesA, valueobject.TWD, "1000", "2000")
	f.beta = createContract(t, db, "HT-B", other, &f.salesB, valueobject.USD, "500")
	pay(t, db, f.acme, 0, "1000", finance.PaymentMethodBankTransfer, date(2024, 5, 3))
	return f
}

func (f *dashboardFixture) filter(t *testing.T, in finance.DashboardFilter) finance.DashboardFilter {
	t.Helper()
	out, err := in.Normalize(dashboardToday)
	require.NoError(t, err)
	return out
}

func TestGormDashboardQueryRepository_ContractRows(t *testing.T) {
	f := setupDashboardFixture(t)
	ctx := context.Background()

	rows, total, err := f.repo.ContractRows(ctx, f.filter(t, finance.DashboardFilter{}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 2)
	assert.Equal(t, "HT-B", rows[0].ContractNo, "newest contract first")

	acme := rows[1]
	assert.Equal(t, "Acme Trading", acme.CustomerName)
	assert.Equal(t, "C001", acme.CustomerCode)
	require.NotNil(t, acme.OwnerUserID)
	assert.Equal(t, f.ownerA, *acme.OwnerUserID)
	assert.True(t, acme.AmountDue.Equal(decimal.NewFromInt(3000)))
	assert.True(t, acme.AmountPaid.Equal(decimal.NewFromInt(1000)))
	assert.True(t, acme.AmountUnpaid.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, int64(2), acme.InstallmentCount)
}

func TestGormDashboardQueryRepository_ContractFilters(t *testing.T) {
	f := setupDashboardFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter finance.DashboardFilter
		want   []string
	}{
		{"keyword matches customer name", finance.DashboardFilter{Keyword: "acme"}, []string{"HT-A"}},
		{"keyword matches contract number", finance.DashboardFilter{Keyword: "HT-B"}, []string{"HT-B"}},
		{"customer group", finance.DashboardFilter{CustomerGroup: "VI"}, []string{"HT-A"}},
		{"sales scope", finance.DashboardFilter{SalesUserIDs: []uuid.UUID{f.salesB}}, []string{"HT-B"}},
		{"owner scope", finance.DashboardFilter{OwnerUserIDs: []uuid.UUID{f.ownerA}}, []string{"HT-A"}},
		{"focus owner", finance.DashboardFilter{FocusRole: finance.FocusOwner, FocusUserID: &f.ownerA}, []string{"HT-A"}},
		{"unsettled", finance.DashboardFilter{Status: finance.ContractFilterUnsettled}, []string{"HT-B", "HT-A"}},
		{"settled", finance.DashboardFilter{Status: finance.ContractFilterSettled}, nil},
		{"unknown status", finance.DashboardFilter{Status: "archived"}, nil},
		{"receipt date in May", finance.DashboardFilter{
			DateType: finance.DateTypeReceiptDate,
			Period:   finance.PeriodCustom,
			Range:    finance.TimeRange{From: date(2024, 5, 1), To: date(2024, 5, 31)},
		}, []string{"HT-A"}},
		{"sign date after April", finance.DashboardFilter{
			Range: finance.TimeRange{From: date(2024, 5, 1)},
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := f.repo.ContractRows(ctx, f.filter(t, tt.filter))
			require.NoError(t, err)
			got := make([]string, 0, len(rows))
			for _, r := range rows {
				got = append(got, r.ContractNo)
			}
			assert.Equal(t, int64(len(tt.want)), total)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestGormDashboardQueryRepository_SettledOverride(t *testing.T) {
	f := setupDashboardFixture(t)
	ctx := context.Background()

	pay(t, f.db, f.beta, 0, "500", finance.PaymentMethodCash, date(2024, 6, 1))

	rows, _, err := f.repo.ContractRows(ctx, f.filter(t, finance.DashboardFilter{Status: finance.ContractFilterSettled}))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "HT-B", rows[0].ContractNo)

	// a manual override takes precedence over the stored status
	_, err = f.acme.SetManualStatus(string(finance.ContractStatusSettled), "written off", nil)
	require.NoError(t, err)
	require.NoError(t, NewGormContractRepository(f.db).SaveWithLock(ctx, f.acme))

	rows, _, err = f.repo.ContractRows(ctx, f.filter(t, finance.DashboardFilter{Status: finance.ContractFilterSettled}))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGormDashboardQueryRepository_InstallmentRows(t *testing.T) {
	f := setupDashboardFixture(t)
	ctx := context.Background()

	rows, total, err := f.repo.InstallmentRows(ctx, f.filter(t, finance.DashboardFilter{View: finance.ViewInstallment}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].DueDate.Equal(date(2024, 5, 1)))
	assert.True(t, rows[2].DueDate.Equal(date(2024, 6, 1)))

	statusCount := map[finance.InstallmentStatus]int{
		finance.InstallmentStatusReceived:          1,
		finance.InstallmentStatusOverdue:           2,
		finance.InstallmentStatusPending:           0,
		finance.InstallmentStatusPartiallyReceived: 0,
		finance.InstallmentStatusDunning:           0,
	}
	for status, want := range statusCount {
		t.Run(string(status), func(t *testing.T) {
			rows, total, err := f.repo.InstallmentRows(ctx, f.filter(t, finance.DashboardFilter{
				View:   finance.ViewInstallment,
				Status: string(status),
			}))
			require.NoError(t, err)
			assert.Equal(t, int64(want), total)
			for _, r := range rows {
				assert.Equal(t, status, r.Status(dashboardToday))
			}
		})
	}
}

func TestGormDashboardQueryRepository_FiltersMatchWildcardsLiterally(t *testing.T) {
	db := setupFinanceTestDB(t)
	repo := NewGormDashboardQueryRepository(db)
	ctx := context.Background()

	percent := createCustomer(t, db, "C201", "Delta 100% Trading", "A_1", uuid.New())
	plain := createCustomer(t, db, "C202", "Delta Trading", "AB1", uuid.New())
	createContract(t, db, "HT-PCT", percent, nil, valueobject.TWD, "100")
	createContract(t, db, "HT-PLAIN", plain, nil, valueobject.TWD, "100")

	tests := []struct {
		name   string
		filter finance.DashboardFilter
		want   []string
	}{
		{"percent in keyword", finance.DashboardFilter{Keyword: "%"}, []string{"HT-PCT"}},
		{"underscore in group", finance.DashboardFilter{CustomerGroup: "A_1"}, []string{"HT-PCT"}},
		{"keyword ignores case", finance.DashboardFilter{Keyword: "delta"}, []string{"HT-PLAIN", "HT-PCT"}},
		{"group ignores case", finance.DashboardFilter{CustomerGroup: "ab"}, []string{"HT-PLAIN"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := tt.filter.Normalize(dashboardToday)
			require.NoError(t, err)
			rows, _, err := repo.ContractRows(ctx, filter)
			require.NoError(t, err)
			got := make([]string, 0, len(rows))
			for _, r := range rows {
				got = append(got, r.ContractNo)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGormDashboardQueryRepository_InstallmentRowsOverdueFirstAcrossPages(t *testing.T) {
	db := setupFinanceTestDB(t)
	repo := NewGormDashboardQueryRepository(db)
	ctx := context.Background()
	customer := createCustomer(t, db, "C100", "Gamma Ltd", "VIP", uuid.New())

	// The unpaid installment has the lowest id; every installment is due 2024-05-01
	unpaid := createContract(t, db, "HT-UNPAID", customer, nil, valueobject.TWD, "100")
	for i := 0; i < 10; i++ {
		c := createContract(t, db, fmt.Sprintf("HT-PAID-%02d", i), customer, nil, valueobject.TWD, "100")
		pay(t, db, c, 0, "100", finance.PaymentMethodCash, date(2024, 4, 28))
	}

	filter, err := finance.DashboardFilter{View: finance.ViewInstallment, Page: 1, PageSize: 10}.Normalize(dashboardToday)
	require.NoError(t, err)
	rows, total, err := repo.InstallmentRows(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	require.Len(t, rows, 10)
	assert.Equal(t, unpaid.Installments[0].ID, rows[0].InstallmentID)
	assert.Equal(t, 45, rows[0].OverdueDays(dashboardToday))
	for _, r := range rows[1:] {
		assert.Zero(t, r.OverdueDays(dashboardToday), r.ContractNo)
	}

	filter.Page = 2
	rows, _, err = repo.InstallmentRows(ctx, filter)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "HT-PAID-00", rows[0].ContractNo, "oldest paid row last")
}

func TestGormDashboardQueryRepository_Totals(t *testing.T) {
	f := setupDashboardFixture(t)
	ctx := context.Background()

	buckets, err := f.repo.Totals(ctx, f.filter(t, finance.DashboardFilter{}))
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	twd := buckets[valueobject.TWD]
	assert.True(t, twd.Due.Equal(decimal.NewFromInt(3000)))
	assert.True(t, twd.Paid.Equal(decimal.NewFromInt(1000)))
	assert.True(t, twd.Unpaid.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, int64(2), twd.Count)

	usd := buckets[valueobject.USD]
	assert.True(t, usd.Due.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, int64(1), usd.Count)

	empty, err := f.repo.Totals(ctx, f.filter(t, finance.DashboardFilter{Status: "archived"}))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormDashboardQueryRepository_GroupTotals(t *testing.T) {
	f := setupDashboardFixture(t)
	ctx := context.Background()

	none, err := f.repo.GroupTotals(ctx, f.filter(t, finance.DashboardFilter{}))
	require.NoError(t, err)
	assert.Empty(t, none)

	byMethod, err := f.repo.GroupTotals(ctx, f.filter(t, finance.DashboardFilter{GroupBy: finance.GroupByPaymentMethod}))
	require.NoError(t, err)
	require.Len(t, byMethod, 1)
	assert.Equal(t, string(finance.PaymentMethodBankTransfer), byMethod[0].Key)
	assert.Equal(t, valueobject.TWD, byMethod[0].Currency)
	assert.True(t, byMethod[0].Amounts.Paid.Equal(decimal.NewFromInt(1000)))

	byMonth, err := f.repo.GroupTotals(ctx, f.filter(t, finance.DashboardFilter{GroupBy: finance.GroupByReceiptMonth}))
	require.NoError(t, err)
	require.Len(t, byMonth, 1)
	assert.Equal(t, "2024-05", byMonth[0].Key)

	bySettlement, err := f.repo.GroupTotals(ctx, f.filter(t, finance.DashboardFilter{GroupBy: finance.GroupBySettlement}))
	require.NoError(t, err)
	require.Len(t, bySettlement, 2, "one unsettled bucket per currency")
	for _, b := range bySettlement {
		assert.Equal(t, finance.ContractFilterUnsettled, b.Key)
	}

	bySigner, err := f.repo.GroupTotals(ctx, f.filter(t, finance.DashboardFilter{GroupBy: finance.GroupBySigner}))
	require.NoError(t, err)
	keys := map[string]bool{}
	for _, b := range bySigner {
		keys[b.Key] = true
	}
	assert.True(t, keys[f.salesA.String()])
	assert.True(t, keys[f.salesB.String()])
}

func TestGormDashboardQueryRepository_StaffSummary(t *testing.T) {
	f := setupDashboardFixture(t)
	ctx := context.Background()

	buckets, err := f.repo.StaffSummary(ctx, f.filter(t, finance.DashboardFilter{View: finance.ViewStaffSummary}))
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	for _, b := range buckets {
		require.NotNil(t, b.UserID)
		assert.Equal(t, int64(1), b.ContractCount)
		switch *b.UserID {
		case f.salesA:
			assert.Equal(t, valueobject.TWD, b.Currency)
			assert.True(t, b.Amounts.Due.Equal(decimal.NewFromInt(3000)))
		case f.salesB:
			assert.Equal(t, valueobject.USD, b.Currency)
		default:
			t.Fatalf("unexpected user %s", *b.UserID)
		}
	}

	byOwner, err := f.repo.StaffSummary(ctx, f.filter(t, finance.DashboardFilter{
		View:      finance.ViewStaffSummary,
		FocusRole: finance.FocusOwner,
	}))
	require.NoError(t, err)
	owners := map[uuid.UUID]bool{}
	for _, b := range byOwner {
		require.NotNil(t, b.UserID)
		owners[*b.UserID] = true
	}
	assert.True(t, owners[f.ownerA])
}
