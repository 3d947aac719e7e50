package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contract is the aggregate root of the receivables model. It owns its
// installments; receipts reference both but are stored separately.
type Contract struct {
	shared.BaseAggregateRoot
	ContractNo   string               `json:"contract_no"`
	Title        string               `json:"title"`
	CustomerID   uuid.UUID            `json:"customer_id"`
	SalesUserID  *uuid.UUID           `json:"sales_user_id,omitempty"`
	GrossAmount  decimal.Decimal      `json:"gross_amount"`
	Discount     Discount             `json:"discount"`
	NetAmount    decimal.Decimal      `json:"net_amount"`
	Currency     valueobject.Currency `json:"currency"`
	SignDate     time.Time            `json:"sign_date"`
	Status       ContractStatus       `json:"status"`
	ManualStatus string               `json:"manual_status,omitempty"`
	Lifecycle    Lifecycle            `json:"lifecycle"`
	DeletedAt    *time.Time           `json:"deleted_at,omitempty"`
	// Installments as loaded, ordered by number. Deleted ones are skipped by every calculation.
	Installments []*Installment `json:"installments"`
}

// InstallmentPlan describes one installment to create
type InstallmentPlan struct {
	DueDate  time.Time
	Amount   decimal.Decimal
	Currency valueobject.Currency // empty means the contract currency
	Note     string
}

// NewContractInput carries everything needed to open a contract
type NewContractInput struct {
	ContractNo   string
	Title        string
	CustomerID   uuid.UUID
	CustomerName string
	SalesUserID  *uuid.UUID
	GrossAmount  decimal.Decimal
	Discount     Discount
	Currency     valueobject.Currency
	SignDate     time.Time
	Plans        []InstallmentPlan
}

// Rollup is the derived money position of a contract. Totals are in the
// contract currency; installments in other currencies are bucketed in Foreign.
type Rollup struct {
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalUnpaid      decimal.Decimal `json:"total_unpaid"`
	InstallmentCount int             `json:"installment_count"`
	Foreign          CurrencyBuckets `json:"foreign,omitempty"`
}

// NewContract validates the input and creates an active contract with its installments.
// A plan that does not add up to the net amount is allowed; see BalanceWarning.
func NewContract(in NewContractInput) (*Contract, error) {
	no := strings.TrimSpace(in.ContractNo)
	if no == "" {
		return nil, NewInvalidInput("contract number is required")
	}
	if in.CustomerID == uuid.Nil {
		return nil, NewInvalidInput("customer is required")
	}
	if in.GrossAmount.IsNegative() {
		return nil, NewInvalidInput("gross amount cannot be negative")
	}
	if !in.Currency.IsWellFormed() {
		return nil, NewInvalidInput("invalid currency %q", in.Currency)
	}
	discount, err := in.Discount.Normalize()
	if err != nil {
		return nil, err
	}
	signDate := in.SignDate
	if signDate.IsZero() {
		signDate = time.Now()
	}

	c := &Contract{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ContractNo:        no,
		Title:             strings.TrimSpace(in.Title),
		CustomerID:        in.CustomerID,
		SalesUserID:       in.SalesUserID,
		GrossAmount:       in.GrossAmount,
		Discount:          discount,
		NetAmount:         discount.NetAmount(in.GrossAmount),
		Currency:          in.Currency,
		SignDate:          DateOf(signDate),
		Status:            ContractStatusActive,
		Lifecycle:         LifecycleActive,
	}
	if c.Title == "" {
		c.Title = defaultTitle(in.CustomerName, no, c.SignDate)
	}
	for _, p := range in.Plans {
		if _, err := c.addInstallment(p); err != nil {
			return nil, err
		}
	}
	c.AddDomainEvent(NewContractCreatedEvent(c))
	return c, nil
}

func defaultTitle(customerName, contractNo string, signDate time.Time) string {
	if customerName == "" {
		return fmt.Sprintf("合同 %s", contractNo)
	}
	return fmt.Sprintf("%s %s 合同", customerName, signDate.Format("2006-01-02"))
}

// IsVoid reports whether the contract reached its terminal void state
func (c *Contract) IsVoid() bool {
	return c.Status == ContractStatusVoid
}

// IsDeleted reports whether the contract was deleted
func (c *Contract) IsDeleted() bool {
	return c.Lifecycle == LifecycleDeleted
}

// ResolvedStatus returns the status shown to users
func (c *Contract) ResolvedStatus() ContractStatus {
	return ResolveContractStatus(c.Status, c.ManualStatus)
}

// Rollup sums the non-deleted installments
func (c *Contract) Rollup() Rollup {
	r := Rollup{TotalDue: decimal.Zero, TotalPaid: decimal.Zero, TotalUnpaid: decimal.Zero}
	for _, i := range c.Installments {
		if i.IsDeleted() {
			continue
		}
		r.InstallmentCount++
		if i.Currency != c.Currency {
			if r.Foreign == nil {
				r.Foreign = CurrencyBuckets{}
			}
			r.Foreign.Add(i.Currency, Amounts{Due: i.AmountDue, Paid: i.AmountPaid, Unpaid: i.AmountUnpaid(), Count: 1})
			continue
		}
		r.TotalDue = r.TotalDue.Add(i.AmountDue)
		r.TotalPaid = r.TotalPaid.Add(i.AmountPaid)
		r.TotalUnpaid = r.TotalUnpaid.Add(i.AmountUnpaid())
	}
	return r
}

// ValidateBalance reports whether the installment plan adds up to the net
// amount. A plan with installments in another currency cannot be compared
// without rates and is not flagged.
func (c *Contract) ValidateBalance() bool {
	r := c.Rollup()
	if len(r.Foreign) > 0 {
		return true
	}
	return r.TotalDue.Sub(c.NetAmount).Abs().LessThanOrEqual(Epsilon)
}

// BalanceWarning returns a BALANCE_MISMATCH error describing the gap, or nil when balanced
func (c *Contract) BalanceWarning() *shared.DomainError {
	if c.ValidateBalance() {
		return nil
	}
	return NewBalanceMismatch(c.Rollup().TotalDue, c.NetAmount)
}

// Installment returns a live installment of this contract
func (c *Contract) Installment(id uuid.UUID) (*Installment, error) {
	for _, i := range c.Installments {
		if i.ID == id && !i.IsDeleted() {
			return i, nil
		}
	}
	return nil, ErrInstallmentNotFound
}

func (c *Contract) ensureWritable() error {
	if c.IsDeleted() {
		return ErrContractNotFound
	}
	if c.IsVoid() {
		return ErrContractVoid
	}
	return nil
}

// ApplyReceipt posts a receipt to one installment. applied is the receipt amount
// already converted into the installment currency.
func (c *Contract) ApplyReceipt(installmentID uuid.UUID, in ReceiptInput, applied decimal.Decimal) (*Receipt, error) {
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	inst, err := c.Installment(installmentID)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := inst.ApplyReceipt(applied); err != nil {
		return nil, err
	}
	receipt := newReceipt(inst, c.CustomerID, in, applied)
	c.AddDomainEvent(NewReceiptAppliedEvent(receipt))
	if inst.IsSettled() {
		c.AddDomainEvent(NewInstallmentSettledEvent(inst))
	}
	c.RefreshStatus()
	c.IncrementVersion()
	c.Touch()
	return receipt, nil
}

// RefreshStatus recomputes the automatic status: settled once every live
// installment is paid, active otherwise. Void contracts are left alone.
// Returns true when the stored status changed.
func (c *Contract) RefreshStatus() bool {
	if c.IsVoid() || c.IsDeleted() {
		return false
	}
	r := c.Rollup()
	next := ContractStatusActive
	if r.InstallmentCount > 0 && c.allSettled() {
		next = ContractStatusSettled
	}
	if next == c.Status {
		return false
	}
	c.Status = next
	if next == ContractStatusSettled {
		c.AddDomainEvent(NewContractSettledEvent(c))
	}
	return true
}

func (c *Contract) allSettled() bool {
	for _, i := range c.Installments {
		if !i.IsDeleted() && !i.IsSettled() {
			return false
		}
	}
	return true
}

// SetManualStatus overrides the displayed contract status. Any value is
// accepted; an empty one clears the override.
func (c *Contract) SetManualStatus(status, reason string, actorID *uuid.UUID) (*StatusChangeLog, error) {
	if c.IsDeleted() {
		return nil, ErrContractNotFound
	}
	old := c.ResolvedStatus()
	c.ManualStatus = strings.TrimSpace(status)
	c.IncrementVersion()
	c.Touch()
	log := NewStatusChangeLog(EntityTypeContract, c.ID, old.String(), c.ResolvedStatus().String(), reason, actorID)
	c.AddDomainEvent(NewStatusOverriddenEvent(c.ID, log))
	return log, nil
}

// SetInstallmentStatus overrides the manual status of one installment
func (c *Contract) SetInstallmentStatus(installmentID uuid.UUID, status InstallmentStatus, reason string, actorID *uuid.UUID, today time.Time) (*StatusChangeLog, error) {
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	inst, err := c.Installment(installmentID)
	if err != nil {
		return nil, err
	}
	old := inst.Status(today)
	if err := inst.SetManualStatus(status); err != nil {
		return nil, err
	}
	log := NewStatusChangeLog(EntityTypeInstallment, inst.ID, old.String(), inst.Status(today).String(), reason, actorID)
	c.AddDomainEvent(NewStatusOverriddenEvent(c.ID, log))
	return log, nil
}

// Reprice changes gross amount and discount and recomputes the net amount.
// Installments are not touched; a resulting mismatch is reported by BalanceWarning.
func (c *Contract) Reprice(gross decimal.Decimal, discount Discount) error {
	if err := c.ensureWritable(); err != nil {
		return err
	}
	if gross.IsNegative() {
		return NewInvalidInput("gross amount cannot be negative")
	}
	d, err := discount.Normalize()
	if err != nil {
		return err
	}
	c.GrossAmount = gross
	c.Discount = d
	c.NetAmount = d.NetAmount(gross)
	c.IncrementVersion()
	c.Touch()
	return nil
}

// AddInstallment appends an installment numbered after the current last one
func (c *Contract) AddInstallment(plan InstallmentPlan) (*Installment, error) {
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	inst, err := c.addInstallment(plan)
	if err != nil {
		return nil, err
	}
	c.RefreshStatus()
	c.IncrementVersion()
	c.Touch()
	return inst, nil
}

func (c *Contract) addInstallment(plan InstallmentPlan) (*Installment, error) {
	currency := plan.Currency
	if currency == "" {
		currency = c.Currency
	}
	next := 1
	for _, i := range c.Installments {
		if i.InstallmentNo >= next {
			next = i.InstallmentNo + 1
		}
	}
	inst, err := NewInstallment(c.ID, next, plan.DueDate, currency, plan.Amount)
	if err != nil {
		return nil, err
	}
	inst.Note = plan.Note
	c.Installments = append(c.Installments, inst)
	return inst, nil
}

// EditInstallment changes due date and amount of one installment
func (c *Contract) EditInstallment(installmentID uuid.UUID, dueDate time.Time, amountDue decimal.Decimal, note string) (*Installment, error) {
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	inst, err := c.Installment(installmentID)
	if err != nil {
		return nil, err
	}
	if err := inst.Edit(dueDate, amountDue, note); err != nil {
		return nil, err
	}
	c.RefreshStatus()
	c.IncrementVersion()
	c.Touch()
	return inst, nil
}

// RemoveInstallment soft-deletes one installment
func (c *Contract) RemoveInstallment(installmentID uuid.UUID, at time.Time) (*Installment, error) {
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	inst, err := c.Installment(installmentID)
	if err != nil {
		return nil, err
	}
	if err := inst.SoftDelete(at); err != nil {
		return nil, err
	}
	c.RefreshStatus()
	c.IncrementVersion()
	c.Touch()
	return inst, nil
}

// Void moves the contract into its terminal state
func (c *Contract) Void(reason string, actorID *uuid.UUID) (*StatusChangeLog, error) {
	if err := c.ensureWritable(); err != nil {
		return nil, err
	}
	old := c.ResolvedStatus()
	c.Status = ContractStatusVoid
	c.ManualStatus = ""
	c.IncrementVersion()
	c.Touch()
	c.AddDomainEvent(NewContractVoidedEvent(c, reason))
	return NewStatusChangeLog(EntityTypeContract, c.ID, old.String(), ContractStatusVoid.String(), reason, actorID), nil
}

// MarkDeleted soft-deletes the contract and every live installment
func (c *Contract) MarkDeleted(at time.Time) error {
	if c.IsDeleted() {
		return ErrContractNotFound
	}
	for _, i := range c.Installments {
		if !i.IsDeleted() {
			i.markDeleted(at)
		}
	}
	c.Lifecycle = LifecycleDeleted
	c.DeletedAt = &at
	c.IncrementVersion()
	c.Touch()
	c.AddDomainEvent(NewContractDeletedEvent(c))
	return nil
}
