package finance

import (
	"time"

	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names used on events
const (
	AggregateTypeContract    = "Contract"
	AggregateTypeInstallment = "Installment"
)

// Event type names
const (
	EventTypeContractCreated    = "ContractCreated"
	EventTypeReceiptApplied     = "ReceiptApplied"
	EventTypeInstallmentSettled = "InstallmentSettled"
	EventTypeContractSettled    = "ContractSettled"
	EventTypeContractVoided     = "ContractVoided"
	EventTypeContractDeleted    = "ContractDeleted"
	EventTypeStatusOverridden   = "StatusOverridden"
)

// ContractCreatedEvent is raised when a contract and its plan are created
type ContractCreatedEvent struct {
	shared.BaseDomainEvent
	ContractNo       string               `json:"contract_no"`
	CustomerID       uuid.UUID            `json:"customer_id"`
	NetAmount        decimal.Decimal      `json:"net_amount"`
	Currency         valueobject.Currency `json:"currency"`
	InstallmentCount int                  `json:"installment_count"`
}

// NewContractCreatedEvent creates a ContractCreatedEvent
func NewContractCreatedEvent(c *Contract) *ContractCreatedEvent {
	return &ContractCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeContractCreated, AggregateTypeContract, c.ID),
		ContractNo:       c.ContractNo,
		CustomerID:       c.CustomerID,
		NetAmount:        c.NetAmount,
		Currency:         c.Currency,
		InstallmentCount: len(c.Installments),
	}
}

// ReceiptAppliedEvent is raised after a receipt is posted to an installment
type ReceiptAppliedEvent struct {
	shared.BaseDomainEvent
	ReceiptID     uuid.UUID            `json:"receipt_id"`
	InstallmentID uuid.UUID            `json:"installment_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      valueobject.Currency `json:"currency"`
	AppliedAmount decimal.Decimal      `json:"applied_amount"`
	Method        PaymentMethod        `json:"method"`
}

// NewReceiptAppliedEvent creates a ReceiptAppliedEvent
func NewReceiptAppliedEvent(r *Receipt) *ReceiptAppliedEvent {
	return &ReceiptAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceiptApplied, AggregateTypeContract, r.ContractID),
		ReceiptID:       r.ID,
		InstallmentID:   r.InstallmentID,
		Amount:          r.Amount,
		Currency:        r.Currency,
		AppliedAmount:   r.AppliedAmount,
		Method:          r.Method,
	}
}

// InstallmentSettledEvent is raised when an installment becomes fully paid
type InstallmentSettledEvent struct {
	shared.BaseDomainEvent
	InstallmentID uuid.UUID `json:"installment_id"`
	InstallmentNo int       `json:"installment_no"`
	DueDate       time.Time `json:"due_date"`
}

// NewInstallmentSettledEvent creates an InstallmentSettledEvent
func NewInstallmentSettledEvent(i *Installment) *InstallmentSettledEvent {
	return &InstallmentSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInstallmentSettled, AggregateTypeContract, i.ContractID),
		InstallmentID:   i.ID,
		InstallmentNo:   i.InstallmentNo,
		DueDate:         i.DueDate,
	}
}

// ContractSettledEvent is raised when the last unpaid installment of a contract is paid
type ContractSettledEvent struct {
	shared.BaseDomainEvent
	ContractNo string          `json:"contract_no"`
	TotalPaid  decimal.Decimal `json:"total_paid"`
}

// NewContractSettledEvent creates a ContractSettledEvent
func NewContractSettledEvent(c *Contract) *ContractSettledEvent {
	return &ContractSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractSettled, AggregateTypeContract, c.ID),
		ContractNo:      c.ContractNo,
		TotalPaid:       c.Rollup().TotalPaid,
	}
}

// ContractVoidedEvent is raised when a contract is voided
type ContractVoidedEvent struct {
	shared.BaseDomainEvent
	ContractNo string `json:"contract_no"`
	Reason     string `json:"reason"`
}

// NewContractVoidedEvent creates a ContractVoidedEvent
func NewContractVoidedEvent(c *Contract, reason string) *ContractVoidedEvent {
	return &ContractVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractVoided, AggregateTypeContract, c.ID),
		ContractNo:      c.ContractNo,
		Reason:          reason,
	}
}

// ContractDeletedEvent is raised when a contract and its installments are deleted
type ContractDeletedEvent struct {
	shared.BaseDomainEvent
	ContractNo string `json:"contract_no"`
}

// NewContractDeletedEvent creates a ContractDeletedEvent
func NewContractDeletedEvent(c *Contract) *ContractDeletedEvent {
	return &ContractDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractDeleted, AggregateTypeContract, c.ID),
		ContractNo:      c.ContractNo,
	}
}

// StatusOverriddenEvent is raised for every manual status change
type StatusOverriddenEvent struct {
	shared.BaseDomainEvent
	EntityType EntityType `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
	OldStatus  string     `json:"old_status"`
	NewStatus  string     `json:"new_status"`
}

// NewStatusOverriddenEvent creates a StatusOverriddenEvent from its log entry
func NewStatusOverriddenEvent(contractID uuid.UUID, log *StatusChangeLog) *StatusOverriddenEvent {
	return &StatusOverriddenEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusOverridden, AggregateTypeContract, contractID),
		EntityType:      log.EntityType,
		EntityID:        log.EntityID,
		OldStatus:       log.OldStatus,
		NewStatus:       log.NewStatus,
	}
}
