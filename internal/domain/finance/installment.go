package finance

import (
	"time"

	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lifecycle tracks whether a record is live or soft-deleted
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// Installment is one scheduled payment of a contract.
// AmountPaid only grows, and only through ApplyReceipt.
type Installment struct {
	shared.BaseAggregateRoot
	ContractID    uuid.UUID            `json:"contract_id"`
	InstallmentNo int                  `json:"installment_no"`
	DueDate       time.Time            `json:"due_date"`
	Currency      valueobject.Currency `json:"currency"`
	AmountDue     decimal.Decimal      `json:"amount_due"`
	AmountPaid    decimal.Decimal      `json:"amount_paid"`
	ManualStatus  string               `json:"manual_status,omitempty"`
	Note          string               `json:"note,omitempty"`
	Lifecycle     Lifecycle            `json:"lifecycle"`
	DeletedAt     *time.Time           `json:"deleted_at,omitempty"`
}

// NewInstallment creates an active installment with nothing paid
func NewInstallment(contractID uuid.UUID, no int, dueDate time.Time, currency valueobject.Currency, amountDue decimal.Decimal) (*Installment, error) {
	if no <= 0 {
		return nil, NewInvalidInput("installment number must be positive")
	}
	if !amountDue.IsPositive() {
		return nil, NewInvalidInput("installment amount must be greater than zero")
	}
	if dueDate.IsZero() {
		return nil, NewInvalidInput("installment due date is required")
	}
	if !currency.IsWellFormed() {
		return nil, NewInvalidInput("invalid currency %q", currency)
	}
	return &Installment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ContractID:        contractID,
		InstallmentNo:     no,
		DueDate:           DateOf(dueDate),
		Currency:          currency,
		AmountDue:         amountDue,
		AmountPaid:        decimal.Zero,
		Lifecycle:         LifecycleActive,
	}, nil
}

// AmountUnpaid returns max(0, due - paid)
func (i *Installment) AmountUnpaid() decimal.Decimal {
	return decimal.Max(decimal.Zero, i.AmountDue.Sub(i.AmountPaid))
}

// IsSettled reports whether nothing meaningful is left to collect
func (i *Installment) IsSettled() bool {
	return i.AmountDue.IsPositive() && i.AmountDue.Sub(i.AmountPaid).LessThanOrEqual(Epsilon)
}

// IsDeleted reports whether the installment was soft-deleted
func (i *Installment) IsDeleted() bool {
	return i.Lifecycle == LifecycleDeleted
}

// Status resolves the display status as of today
func (i *Installment) Status(today time.Time) InstallmentStatus {
	return ResolveInstallmentStatus(i.AmountDue, i.AmountPaid, i.ManualStatus, i.DueDate, today)
}

// OverdueDays returns the days past due, 0 once settled or not yet due
func (i *Installment) OverdueDays(today time.Time) int {
	if i.IsSettled() {
		return 0
	}
	return OverdueDays(i.DueDate, today)
}

// ApplyReceipt records applied (already in the installment currency) against
// the unpaid balance. Overpayment beyond Epsilon is rejected, never clamped.
func (i *Installment) ApplyReceipt(applied decimal.Decimal) error {
	if i.IsDeleted() {
		return ErrInstallmentNotFound
	}
	if i.IsSettled() {
		return ErrAlreadySettled
	}
	if !applied.IsPositive() {
		return ErrNonPositiveAmount
	}
	if applied.Sub(i.AmountUnpaid()).GreaterThan(Epsilon) {
		return ErrInvalidAmount
	}
	i.AmountPaid = i.AmountPaid.Add(applied)
	i.IncrementVersion()
	i.Touch()
	return nil
}

// SetManualStatus stores an override. Only pending and dunning may be set by hand;
// an empty status clears the override.
func (i *Installment) SetManualStatus(status InstallmentStatus) error {
	if i.IsDeleted() {
		return ErrInstallmentNotFound
	}
	if status != "" && !status.IsManual() {
		return ErrInvalidStatus
	}
	i.ManualStatus = string(status)
	i.IncrementVersion()
	i.Touch()
	return nil
}

// Edit changes the schedule. The amount due may not drop below what was already paid.
func (i *Installment) Edit(dueDate time.Time, amountDue decimal.Decimal, note string) error {
	if i.IsDeleted() {
		return ErrInstallmentNotFound
	}
	if !amountDue.IsPositive() {
		return NewInvalidInput("installment amount must be greater than zero")
	}
	if amountDue.LessThan(i.AmountPaid) {
		return shared.NewDomainError(CodeInvalidAmount, "amount due cannot be less than amount already paid")
	}
	if !dueDate.IsZero() {
		i.DueDate = DateOf(dueDate)
	}
	i.AmountDue = amountDue
	i.Note = note
	i.IncrementVersion()
	i.Touch()
	return nil
}

// SoftDelete marks the installment deleted. Installments with receipts stay.
func (i *Installment) SoftDelete(at time.Time) error {
	if i.IsDeleted() {
		return ErrInstallmentNotFound
	}
	if i.AmountPaid.GreaterThan(Epsilon) {
		return shared.NewDomainError("INVALID_STATE", "installment with receipts cannot be deleted")
	}
	i.markDeleted(at)
	return nil
}

func (i *Installment) markDeleted(at time.Time) {
	i.Lifecycle = LifecycleDeleted
	i.DeletedAt = &at
	i.IncrementVersion()
	i.Touch()
}
