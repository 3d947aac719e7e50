package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractRepository persists the Contract aggregate.
// Loaded contracts carry their live installments.
type ContractRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Contract, error)
	ExistsByContractNo(ctx context.Context, contractNo string) (bool, error)
	// Create inserts the contract and its installments
	Create(ctx context.Context, c *Contract) error
	// LockByID holds a row lock on the contract until the transaction ends and
	// loads it with its live installments. Writers lock the contract before any
	// of its installments.
	LockByID(ctx context.Context, id uuid.UUID) (*Contract, error)
	// SaveWithLock updates the contract row if its stored version is one behind c's
	SaveWithLock(ctx context.Context, c *Contract) error
}

// InstallmentRepository persists installments
type InstallmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Installment, error)
	// LockByID reads the installment and holds a row lock until the transaction ends
	LockByID(ctx context.Context, id uuid.UUID) (*Installment, error)
	FindByContract(ctx context.Context, contractID uuid.UUID) ([]*Installment, error)
	Create(ctx context.Context, i *Installment) error
	SaveWithLock(ctx context.Context, i *Installment) error
}

// ReceiptRepository persists receipts. Receipts are never updated.
type ReceiptRepository interface {
	Create(ctx context.Context, r *Receipt) error
	FindByInstallment(ctx context.Context, installmentID uuid.UUID) ([]*Receipt, error)
	SumAppliedByInstallment(ctx context.Context, installmentID uuid.UUID) (decimal.Decimal, error)
	DeleteByContract(ctx context.Context, contractID uuid.UUID) (int64, error)
}

// StatusLogRepository appends status change logs
type StatusLogRepository interface {
	Create(ctx context.Context, log *StatusChangeLog) error
}

// RateSupplier returns the current exchange rate snapshot
type RateSupplier interface {
	Current(ctx context.Context) (*RateTable, error)
}

// DashboardQueryRepository runs the read-only dashboard queries.
// All money is returned per currency, never converted.
type DashboardQueryRepository interface {
	ContractRows(ctx context.Context, f DashboardFilter) ([]ContractRow, int64, error)
	InstallmentRows(ctx context.Context, f DashboardFilter) ([]InstallmentRow, int64, error)
	Totals(ctx context.Context, f DashboardFilter) (CurrencyBuckets, error)
	GroupTotals(ctx context.Context, f DashboardFilter) ([]GroupBucket, error)
	StaffSummary(ctx context.Context, f DashboardFilter) ([]StaffBucket, error)
}

// TimeRange is a closed date interval; zero ends are open
type TimeRange struct {
	From time.Time
	To   time.Time
}
