package models

import (
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractModel is the persistence model for the Contract aggregate root.
type ContractModel struct {
	AggregateModel
	ContractNo           string                 `gorm:"type:varchar(50);not null;uniqueIndex"`
	Title                string                 `gorm:"type:varchar(300);not null"`
	CustomerID           uuid.UUID              `gorm:"type:uuid;not null;index"`
	SalesUserID          *uuid.UUID             `gorm:"type:uuid;index"`
	GrossAmount          decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	DiscountType         finance.DiscountType   `gorm:"type:varchar(20);not null;default:'none'"`
	DiscountValue        decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountParticipates bool                   `gorm:"not null;default:false"`
	NetAmount            decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Currency             valueobject.Currency   `gorm:"type:varchar(3);not null"`
	SignDate             time.Time              `gorm:"type:date;not null;index"`
	Status               finance.ContractStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	ManualStatus         string                 `gorm:"type:varchar(50);not null;default:''"`
	Lifecycle            finance.Lifecycle      `gorm:"type:varchar(20);not null;default:'active';index"`
	DeletedAt            *time.Time
	Installments         []InstallmentModel `gorm:"foreignKey:ContractID;references:ID"`
}

// TableName returns the table name for GORM
func (ContractModel) TableName() string {
	return "contracts"
}

// ToDomain converts the persistence model to a domain Contract, including loaded installments.
func (m *ContractModel) ToDomain() *finance.Contract {
	c := &finance.Contract{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ContractNo:        m.ContractNo,
		Title:             m.Title,
		CustomerID:        m.CustomerID,
		SalesUserID:       m.SalesUserID,
		GrossAmount:       m.GrossAmount,
		Discount: finance.Discount{
			Type:         m.DiscountType,
			Value:        m.DiscountValue,
			Participates: m.DiscountParticipates,
		},
		NetAmount:    m.NetAmount,
		Currency:     m.Currency,
		SignDate:     m.SignDate,
		Status:       m.Status,
		ManualStatus: m.ManualStatus,
		Lifecycle:    m.Lifecycle,
		DeletedAt:    m.DeletedAt,
		Installments: make([]*finance.Installment, 0, len(m.Installments)),
	}
	for i := range m.Installments {
		c.Installments = append(c.Installments, m.Installments[i].ToDomain())
	}
	return c
}

// FromDomain populates the persistence model from a domain Contract.
// Installments are not copied; they are written through their own repository.
func (m *ContractModel) FromDomain(c *finance.Contract) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.ContractNo = c.ContractNo
	m.Title = c.Title
	m.CustomerID = c.CustomerID
	m.SalesUserID = c.SalesUserID
	m.GrossAmount = c.GrossAmount
	m.DiscountType = c.Discount.Type
	m.DiscountValue = c.Discount.Value
	m.DiscountParticipates = c.Discount.Participates
	m.NetAmount = c.NetAmount
	m.Currency = c.Currency
	m.SignDate = c.SignDate
	m.Status = c.Status
	m.ManualStatus = c.ManualStatus
	m.Lifecycle = c.Lifecycle
	m.DeletedAt = c.DeletedAt
}

// ContractModelFromDomain creates a new persistence model from a domain Contract.
func ContractModelFromDomain(c *finance.Contract) *ContractModel {
	m := &ContractModel{}
	m.FromDomain(c)
	return m
}

// InstallmentModel is the persistence model for installments.
type InstallmentModel struct {
	AggregateModel
	ContractID    uuid.UUID            `gorm:"type:uuid;not null;index"`
	InstallmentNo int                  `gorm:"not null"`
	DueDate       time.Time            `gorm:"type:date;not null;index"`
	Currency      valueobject.Currency `gorm:"type:varchar(3);not null"`
	AmountDue     decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	AmountPaid    decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	ManualStatus  string               `gorm:"type:varchar(20);not null;default:''"`
	Note          string               `gorm:"type:text"`
	Lifecycle     finance.Lifecycle    `gorm:"type:varchar(20);not null;default:'active';index"`
	DeletedAt     *time.Time
}

// TableName returns the table name for GORM
func (InstallmentModel) TableName() string {
	return "installments"
}

// ToDomain converts the persistence model to a domain Installment.
func (m *InstallmentModel) ToDomain() *finance.Installment {
	return &finance.Installment{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ContractID:        m.ContractID,
		InstallmentNo:     m.InstallmentNo,
		DueDate:           m.DueDate,
		Currency:          m.Currency,
		AmountDue:         m.AmountDue,
		AmountPaid:        m.AmountPaid,
		ManualStatus:      m.ManualStatus,
		Note:              m.Note,
		Lifecycle:         m.Lifecycle,
		DeletedAt:         m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Installment.
func (m *InstallmentModel) FromDomain(i *finance.Installment) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.ContractID = i.ContractID
	m.InstallmentNo = i.InstallmentNo
	m.DueDate = i.DueDate
	m.Currency = i.Currency
	m.AmountDue = i.AmountDue
	m.AmountPaid = i.AmountPaid
	m.ManualStatus = i.ManualStatus
	m.Note = i.Note
	m.Lifecycle = i.Lifecycle
	m.DeletedAt = i.DeletedAt
}

// InstallmentModelFromDomain creates a new persistence model from a domain Installment.
func InstallmentModelFromDomain(i *finance.Installment) *InstallmentModel {
	m := &InstallmentModel{}
	m.FromDomain(i)
	return m
}

// ReceiptModel is the persistence model for receipts. Rows are insert-only.
type ReceiptModel struct {
	BaseModel
	InstallmentID uuid.UUID             `gorm:"type:uuid;not null;index"`
	ContractID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	CustomerID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Currency      valueobject.Currency  `gorm:"type:varchar(3);not null"`
	AppliedAmount decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	ReceivedDate  time.Time             `gorm:"type:date;not null;index"`
	Method        finance.PaymentMethod `gorm:"type:varchar(20);not null"`
	CollectorID   *uuid.UUID            `gorm:"type:uuid"`
	Note          string                `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return "receipts"
}

// ToDomain converts the persistence model to a domain Receipt.
func (m *ReceiptModel) ToDomain() *finance.Receipt {
	return &finance.Receipt{
		BaseEntity:    m.BaseModel.ToDomain(),
		InstallmentID: m.InstallmentID,
		ContractID:    m.ContractID,
		CustomerID:    m.CustomerID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		AppliedAmount: m.AppliedAmount,
		ReceivedDate:  m.ReceivedDate,
		Method:        m.Method,
		CollectorID:   m.CollectorID,
		Note:          m.Note,
	}
}

// ReceiptModelFromDomain creates a new persistence model from a domain Receipt.
func ReceiptModelFromDomain(r *finance.Receipt) *ReceiptModel {
	m := &ReceiptModel{
		InstallmentID: r.InstallmentID,
		ContractID:    r.ContractID,
		CustomerID:    r.CustomerID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		AppliedAmount: r.AppliedAmount,
		ReceivedDate:  r.ReceivedDate,
		Method:        r.Method,
		CollectorID:   r.CollectorID,
		Note:          r.Note,
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}

// StatusChangeLogModel is the persistence model for manual status changes.
type StatusChangeLogModel struct {
	ID         uuid.UUID          `gorm:"type:uuid;primary_key"`
	EntityType finance.EntityType `gorm:"type:varchar(20);not null;index:idx_status_log_entity,priority:1"`
	EntityID   uuid.UUID          `gorm:"type:uuid;not null;index:idx_status_log_entity,priority:2"`
	OldStatus  string             `gorm:"type:varchar(50);not null;default:''"`
	NewStatus  string             `gorm:"type:varchar(50);not null;default:''"`
	Reason     string             `gorm:"type:varchar(500)"`
	ActorID    *uuid.UUID         `gorm:"type:uuid"`
	CreatedAt  time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StatusChangeLogModel) TableName() string {
	return "status_change_logs"
}

// StatusChangeLogModelFromDomain creates a new persistence model from a domain StatusChangeLog.
func StatusChangeLogModelFromDomain(l *finance.StatusChangeLog) *StatusChangeLogModel {
	return &StatusChangeLogModel{
		ID:         l.ID,
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		OldStatus:  l.OldStatus,
		NewStatus:  l.NewStatus,
		Reason:     l.Reason,
		ActorID:    l.ActorID,
		CreatedAt:  l.CreatedAt,
	}
}

// ExchangeRateModel is one row of the currencies table. Rates are the price of
// one unit of the base currency.
type ExchangeRateModel struct {
	Code         valueobject.Currency `gorm:"type:varchar(3);primary_key"`
	Name         string               `gorm:"type:varchar(50)"`
	FixedRate    decimal.Decimal      `gorm:"type:decimal(18,6);not null;default:0"`
	FloatingRate decimal.Decimal      `gorm:"type:decimal(18,6);not null;default:0"`
	UpdatedAt    time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExchangeRateModel) TableName() string {
	return "currencies"
}

// ToDomain converts the row to a domain ExchangeRate
func (m *ExchangeRateModel) ToDomain() finance.ExchangeRate {
	return finance.ExchangeRate{
		Currency:     m.Code,
		Name:         m.Name,
		FixedRate:    m.FixedRate,
		FloatingRate: m.FloatingRate,
	}
}

// AllModels lists the models owned by this service, in dependency order
func AllModels() []any {
	return []any{
		&CustomerModel{},
		&ExchangeRateModel{},
		&ContractModel{},
		&InstallmentModel{},
		&ReceiptModel{},
		&StatusChangeLogModel{},
	}
}
