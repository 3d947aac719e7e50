package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{events: make([]shared.DomainEvent, 0)}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// MockContractRepository is a mock implementation of finance.ContractRepository
type MockContractRepository struct {
	mock.Mock
}

func (m *MockContractRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Contract), args.Error(1)
}

func (m *MockContractRepository) LockByID(ctx context.Context, id uuid.UUID) (*finance.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Contract), args.Error(1)
}

func (m *MockContractRepository) ExistsByContractNo(ctx context.Context, contractNo string) (bool, error) {
	args := m.Called(ctx, contractNo)
	return args.Bool(0), args.Error(1)
}

func (m *MockContractRepository) Create(ctx context.Context, c *finance.Contract) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockContractRepository) SaveWithLock(ctx context.Context, c *finance.Contract) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// MockInstallmentRepository is a mock implementation of finance.InstallmentRepository
type MockInstallmentRepository struct {
	mock.Mock
}

func (m *MockInstallmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Installment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) LockByID(ctx context.Context, id uuid.UUID) (*finance.Installment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) FindByContract(ctx context.Context, contractID uuid.UUID) ([]*finance.Installment, error) {
	args := m.Called(ctx, contractID)
	return args.Get(0).([]*finance.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) Create(ctx context.Context, i *finance.Installment) error {
	args := m.Called(ctx, i)
	return args.Error(0)
}

func (m *MockInstallmentRepository) SaveWithLock(ctx context.Context, i *finance.Installment) error {
	args := m.Called(ctx, i)
	return args.Error(0)
}

// MockReceiptRepository is a mock implementation of finance.ReceiptRepository
type MockReceiptRepository struct {
	mock.Mock
}

func (m *MockReceiptRepository) Create(ctx context.Context, r *finance.Receipt) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReceiptRepository) FindByInstallment(ctx context.Context, installmentID uuid.UUID) ([]*finance.Receipt, error) {
	args := m.Called(ctx, installmentID)
	return args.Get(0).([]*finance.Receipt), args.Error(1)
}

func (m *MockReceiptRepository) SumAppliedByInstallment(ctx context.Context, installmentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, installmentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockReceiptRepository) DeleteByContract(ctx context.Context, contractID uuid.UUID) (int64, error) {
	args := m.Called(ctx, contractID)
	return args.Get(0).(int64), args.Error(1)
}

// MockStatusLogRepository is a mock implementation of finance.StatusLogRepository
type MockStatusLogRepository struct {
	mock.Mock
}

func (m *MockStatusLogRepository) Create(ctx context.Context, log *finance.StatusChangeLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

// MockDashboardQueryRepository is a mock implementation of finance.DashboardQueryRepository
type MockDashboardQueryRepository struct {
	mock.Mock
}

func (m *MockDashboardQueryRepository) ContractRows(ctx context.Context, f finance.DashboardFilter) ([]finance.ContractRow, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]finance.ContractRow), args.Get(1).(int64), args.Error(2)
}

func (m *MockDashboardQueryRepository) InstallmentRows(ctx context.Context, f finance.DashboardFilter) ([]finance.InstallmentRow, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]finance.InstallmentRow), args.Get(1).(int64), args.Error(2)
}

func (m *MockDashboardQueryRepository) Totals(ctx context.Context, f finance.DashboardFilter) (finance.CurrencyBuckets, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(finance.CurrencyBuckets), args.Error(1)
}

func (m *MockDashboardQueryRepository) GroupTotals(ctx context.Context, f finance.DashboardFilter) ([]finance.GroupBucket, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]finance.GroupBucket), args.Error(1)
}

func (m *MockDashboardQueryRepository) StaffSummary(ctx context.Context, f finance.DashboardFilter) ([]finance.StaffBucket, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]finance.StaffBucket), args.Error(1)
}

// staticRates serves a fixed snapshot
type staticRates struct {
	table *finance.RateTable
	err   error
}

func (s staticRates) Current(context.Context) (*finance.RateTable, error) {
	return s.table, s.err
}

// testRates: 1 CNY = 4.5 TWD = 0.14 USD; anything else falls back to 4.5
func testRates() staticRates {
	return staticRates{table: finance.NewRateTable(valueobject.CNY, decimal.RequireFromString("4.5"), []finance.ExchangeRate{
		{Currency: valueobject.TWD, FixedRate: decimal.RequireFromString("4.5"), FloatingRate: decimal.RequireFromString("4.4")},
		{Currency: valueobject.USD, FixedRate: decimal.RequireFromString("0.14"), FloatingRate: decimal.RequireFromString("0.15")},
	})}
}

var testToday = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func testClock() shared.Clock {
	return shared.FixedClock{T: testToday.Add(10 * time.Hour)}
}

// repoMocks bundles the transactional repositories of one test
type repoMocks struct {
	contracts    *MockContractRepository
	installments *MockInstallmentRepository
	receipts     *MockReceiptRepository
	statusLogs   *MockStatusLogRepository
}

func newRepoMocks() *repoMocks {
	return &repoMocks{
		contracts:    new(MockContractRepository),
		installments: new(MockInstallmentRepository),
		receipts:     new(MockReceiptRepository),
		statusLogs:   new(MockStatusLogRepository),
	}
}

func (r *repoMocks) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(r.contracts, r.installments, r.receipts, r.statusLogs)
}

func (r *repoMocks) assertExpectations(t *testing.T) {
	r.contracts.AssertExpectations(t)
	r.installments.AssertExpectations(t)
	r.receipts.AssertExpectations(t)
	r.statusLogs.AssertExpectations(t)
}

// newTestContract builds a TWD contract with one installment per amount, due
// monthly from 2024-05-01, with creation events cleared
func newTestContract(t *testing.T, amounts ...string) *finance.Contract {
	t.Helper()
	gross := decimal.Zero
	plans := make([]finance.InstallmentPlan, 0, len(amounts))
	for i, a := range amounts {
		amt := decimal.RequireFromString(a)
		gross = gross.Add(amt)
		plans = append(plans, finance.InstallmentPlan{
			DueDate: time.Date(2024, time.Month(5+i), 1, 0, 0, 0, 0, time.UTC),
			Amount:  amt,
		})
	}
	c, err := finance.NewContract(finance.NewContractInput{
		ContractNo:  "HT-2024-001",
		CustomerID:  uuid.New(),
		GrossAmount: gross,
		Currency:    valueobject.TWD,
		SignDate:    time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
		Plans:       plans,
	})
	require.NoError(t, err)
	c.ClearDomainEvents()
	return c
}

// cloneContract rebuilds c as a fresh load from storage would return it
func cloneContract(c *finance.Contract) *finance.Contract {
	out := *c
	out.Installments = make([]*finance.Installment, len(c.Installments))
	for i, inst := range c.Installments {
		cp := *inst
		out.Installments[i] = &cp
	}
	out.ClearDomainEvents()
	return &out
}
