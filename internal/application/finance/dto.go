package finance

import (
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// ApplyReceiptRequest posts a receipt against one installment
type ApplyReceiptRequest struct {
	Amount       decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Currency     string          `json:"currency" binding:"omitempty,currency_code"` // defaults to the installment currency
	ReceivedDate string          `json:"received_date" binding:"omitempty,datetime=2006-01-02"`
	Method       string          `json:"method" binding:"required,oneof=cash bank_transfer wechat alipay check prepay other"`
	CollectorID  *uuid.UUID      `json:"collector_id"`
	Note         string          `json:"note" binding:"max=500"`
}

// SettleInstallmentRequest pays off the current unpaid balance in the installment currency
type SettleInstallmentRequest struct {
	ReceivedDate string     `json:"received_date" binding:"omitempty,datetime=2006-01-02"`
	Method       string     `json:"method" binding:"required,oneof=cash bank_transfer wechat alipay check prepay other"`
	CollectorID  *uuid.UUID `json:"collector_id"`
	Note         string     `json:"note" binding:"max=500"`
}

// UpdateInstallmentStatusRequest sets or clears an installment override
type UpdateInstallmentStatusRequest struct {
	Status string `json:"status" binding:"max=30"`
	Reason string `json:"reason" binding:"max=500"`
}

// UpdateContractStatusRequest sets or clears a contract override
type UpdateContractStatusRequest struct {
	Status string `json:"status" binding:"max=50"`
	Reason string `json:"reason" binding:"max=500"`
}

// InstallmentPlanRequest is one row of a new payment plan
type InstallmentPlanRequest struct {
	DueDate  string          `json:"due_date" binding:"required,datetime=2006-01-02"`
	Amount   decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	Currency string          `json:"currency" binding:"omitempty,currency_code"`
	Note     string          `json:"note" binding:"max=500"`
}

// CreateContractRequest opens a contract together with its payment plan
type CreateContractRequest struct {
	ContractNo           string                   `json:"contract_no" binding:"required,max=50"`
	Title                string                   `json:"title" binding:"max=300"`
	CustomerID           uuid.UUID                `json:"customer_id" binding:"required"`
	CustomerName         string                   `json:"customer_name" binding:"max=200"`
	SalesUserID          *uuid.UUID               `json:"sales_user_id"`
	GrossAmount          decimal.Decimal          `json:"gross_amount" binding:"required"`
	DiscountType         string                   `json:"discount_type" binding:"omitempty,oneof=none amount rate"`
	DiscountValue        decimal.Decimal          `json:"discount_value"`
	DiscountParticipates bool                     `json:"discount_participates"`
	Currency             string                   `json:"currency" binding:"omitempty,currency_code"`
	SignDate             string                   `json:"sign_date" binding:"omitempty,datetime=2006-01-02"`
	Installments         []InstallmentPlanRequest `json:"installments" binding:"dive"`
}

// RepriceContractRequest edits gross amount and discount
type RepriceContractRequest struct {
	GrossAmount          decimal.Decimal `json:"gross_amount" binding:"required"`
	DiscountType         string          `json:"discount_type" binding:"omitempty,oneof=none amount rate"`
	DiscountValue        decimal.Decimal `json:"discount_value"`
	DiscountParticipates bool            `json:"discount_participates"`
}

// VoidContractRequest voids a contract
type VoidContractRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// EditInstallmentRequest changes due date and amount of one installment
type EditInstallmentRequest struct {
	DueDate   string          `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	AmountDue decimal.Decimal `json:"amount_due" binding:"required,decimal_gt0"`
	Note      string          `json:"note" binding:"max=500"`
}

// DashboardRequest carries the dashboard query string
type DashboardRequest struct {
	View          string   `form:"view" binding:"omitempty,oneof=contract installment staff_summary"`
	Keyword       string   `form:"keyword" binding:"max=100"`
	CustomerGroup string   `form:"customer_group" binding:"max=200"`
	ActivityTag   string   `form:"activity_tag" binding:"max=100"`
	SalesUserIDs  []string `form:"sales_user_ids"`
	OwnerUserIDs  []string `form:"owner_user_ids"`
	Status        string   `form:"status" binding:"max=30"`
	DateType      string   `form:"date_type" binding:"omitempty,oneof=sign_date receipt_date"`
	Period        string   `form:"period" binding:"omitempty,oneof=this_month last_month custom"`
	StartDate     string   `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate       string   `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	FocusRole     string   `form:"focus_role" binding:"omitempty,oneof=sales owner"`
	FocusUserID   string   `form:"focus_user_id" binding:"omitempty,uuid"`
	GroupBy       string   `form:"group_by"`
	CurrencyMode  string   `form:"currency_mode" binding:"omitempty,oneof=original fixed floating"`
	Page          int      `form:"page"`
	PageSize      int      `form:"page_size"`
}

// WarningResponse is a non-fatal domain condition returned with a successful write
type WarningResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toWarning(e *shared.DomainError) *WarningResponse {
	if e == nil {
		return nil
	}
	return &WarningResponse{Code: e.Code, Message: e.Message}
}

// InstallmentResponse is an installment with its derived fields resolved for today
type InstallmentResponse struct {
	ID            uuid.UUID       `json:"id"`
	ContractID    uuid.UUID       `json:"contract_id"`
	InstallmentNo int             `json:"installment_no"`
	DueDate       string          `json:"due_date"`
	Currency      string          `json:"currency"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountUnpaid  decimal.Decimal `json:"amount_unpaid"`
	Status        string          `json:"status"`
	StatusLabel   string          `json:"status_label"`
	ManualStatus  string          `json:"manual_status,omitempty"`
	OverdueDays   int             `json:"overdue_days"`
	Note          string          `json:"note,omitempty"`
	Version       int             `json:"version"`
}

// ToInstallmentResponse resolves status and overdue days as of today
func ToInstallmentResponse(i *finance.Installment, today time.Time) InstallmentResponse {
	status := i.Status(today)
	return InstallmentResponse{
		ID:            i.ID,
		ContractID:    i.ContractID,
		InstallmentNo: i.InstallmentNo,
		DueDate:       i.DueDate.Format(DateLayout),
		Currency:      i.Currency.String(),
		AmountDue:     i.AmountDue,
		AmountPaid:    i.AmountPaid,
		AmountUnpaid:  i.AmountUnpaid(),
		Status:        string(status),
		StatusLabel:   status.Label(),
		ManualStatus:  i.ManualStatus,
		OverdueDays:   i.OverdueDays(today),
		Note:          i.Note,
		Version:       i.Version,
	}
}

// ReceiptResponse is a posted receipt
type ReceiptResponse struct {
	ID            uuid.UUID       `json:"id"`
	InstallmentID uuid.UUID       `json:"installment_id"`
	ContractID    uuid.UUID       `json:"contract_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
	ReceivedDate  string          `json:"received_date"`
	Method        string          `json:"method"`
	MethodLabel   string          `json:"method_label"`
	CollectorID   *uuid.UUID      `json:"collector_id,omitempty"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToReceiptResponse converts a domain receipt
func ToReceiptResponse(r *finance.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:            r.ID,
		InstallmentID: r.InstallmentID,
		ContractID:    r.ContractID,
		CustomerID:    r.CustomerID,
		Amount:        r.Amount,
		Currency:      r.Currency.String(),
		AppliedAmount: r.AppliedAmount,
		ReceivedDate:  r.ReceivedDate.Format(DateLayout),
		Method:        string(r.Method),
		MethodLabel:   r.Method.Label(),
		CollectorID:   r.CollectorID,
		Note:          r.Note,
		CreatedAt:     r.CreatedAt,
	}
}

// ToReceiptResponses converts a list of receipts
func ToReceiptResponses(receipts []*finance.Receipt) []ReceiptResponse {
	out := make([]ReceiptResponse, len(receipts))
	for i, r := range receipts {
		out[i] = ToReceiptResponse(r)
	}
	return out
}

// LedgerResult is the outcome of a receipt application
type LedgerResult struct {
	Receipt         ReceiptResponse     `json:"receipt"`
	Installment     InstallmentResponse `json:"installment"`
	ContractID      uuid.UUID           `json:"contract_id"`
	ContractStatus  string              `json:"contract_status"`
	ContractSettled bool                `json:"contract_settled"`
	Warning         *WarningResponse    `json:"warning,omitempty"`
}

// RollupResponse is the money position of a contract
type RollupResponse struct {
	ContractID uuid.UUID        `json:"contract_id"`
	Currency   string           `json:"currency"`
	NetAmount  decimal.Decimal  `json:"net_amount"`
	Rollup     finance.Rollup   `json:"rollup"`
	Balanced   bool             `json:"balanced"`
	Warning    *WarningResponse `json:"warning,omitempty"`
}

// ToRollupResponse computes rollup and balance of c
func ToRollupResponse(c *finance.Contract) RollupResponse {
	return RollupResponse{
		ContractID: c.ID,
		Currency:   c.Currency.String(),
		NetAmount:  c.NetAmount,
		Rollup:     c.Rollup(),
		Balanced:   c.ValidateBalance(),
		Warning:    toWarning(c.BalanceWarning()),
	}
}

// ContractResponse is a contract with its live installments
type ContractResponse struct {
	ID                   uuid.UUID             `json:"id"`
	ContractNo           string                `json:"contract_no"`
	Title                string                `json:"title"`
	CustomerID           uuid.UUID             `json:"customer_id"`
	SalesUserID          *uuid.UUID            `json:"sales_user_id,omitempty"`
	GrossAmount          decimal.Decimal       `json:"gross_amount"`
	DiscountType         string                `json:"discount_type"`
	DiscountValue        decimal.Decimal       `json:"discount_value"`
	DiscountParticipates bool                  `json:"discount_participates"`
	NetAmount            decimal.Decimal       `json:"net_amount"`
	Currency             string                `json:"currency"`
	SignDate             string                `json:"sign_date"`
	Status               string                `json:"status"`
	ManualStatus         string                `json:"manual_status,omitempty"`
	ResolvedStatus       string                `json:"resolved_status"`
	StatusLabel          string                `json:"status_label"`
	Rollup               finance.Rollup        `json:"rollup"`
	Installments         []InstallmentResponse `json:"installments"`
	Warning              *WarningResponse      `json:"warning,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	Version              int                   `json:"version"`
}

// ToContractResponse converts a contract and resolves installment statuses as of today
func ToContractResponse(c *finance.Contract, today time.Time) ContractResponse {
	installments := make([]InstallmentResponse, 0, len(c.Installments))
	for _, i := range c.Installments {
		if i.IsDeleted() {
			continue
		}
		installments = append(installments, ToInstallmentResponse(i, today))
	}
	resolved := c.ResolvedStatus()
	return ContractResponse{
		ID:                   c.ID,
		ContractNo:           c.ContractNo,
		Title:                c.Title,
		CustomerID:           c.CustomerID,
		SalesUserID:          c.SalesUserID,
		GrossAmount:          c.GrossAmount,
		DiscountType:         string(c.Discount.Type),
		DiscountValue:        c.Discount.Value,
		DiscountParticipates: c.Discount.Participates,
		NetAmount:            c.NetAmount,
		Currency:             c.Currency.String(),
		SignDate:             c.SignDate.Format(DateLayout),
		Status:               string(c.Status),
		ManualStatus:         c.ManualStatus,
		ResolvedStatus:       resolved.String(),
		StatusLabel:          resolved.Label(),
		Rollup:               c.Rollup(),
		Installments:         installments,
		Warning:              toWarning(c.BalanceWarning()),
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		Version:              c.Version,
	}
}

// StatusChangeResponse reports an override change
type StatusChangeResponse struct {
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	Reason     string    `json:"reason,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

func toStatusChangeResponse(l *finance.StatusChangeLog) StatusChangeResponse {
	return StatusChangeResponse{
		EntityType: string(l.EntityType),
		EntityID:   l.EntityID,
		OldStatus:  l.OldStatus,
		NewStatus:  l.NewStatus,
		Reason:     l.Reason,
		ChangedAt:  l.CreatedAt,
	}
}

// MoneyView is an amount triple in one currency
type MoneyView struct {
	Currency string          `json:"currency"`
	Due      decimal.Decimal `json:"due"`
	Paid     decimal.Decimal `json:"paid"`
	Unpaid   decimal.Decimal `json:"unpaid"`
}

// ContractRowResponse is one row of the contract view
type ContractRowResponse struct {
	ContractID       uuid.UUID       `json:"contract_id"`
	ContractNo       string          `json:"contract_no"`
	Title            string          `json:"title"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerCode     string          `json:"customer_code"`
	SalesUserID      *uuid.UUID      `json:"sales_user_id,omitempty"`
	OwnerUserID      *uuid.UUID      `json:"owner_user_id,omitempty"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Original         MoneyView       `json:"original"`
	Display          MoneyView       `json:"display"`
	InstallmentCount int64           `json:"installment_count"`
	Status           string          `json:"status"`
	StatusLabel      string          `json:"status_label"`
	SignDate         string          `json:"sign_date"`
}

// InstallmentRowResponse is one row of the installment view
type InstallmentRowResponse struct {
	InstallmentID uuid.UUID  `json:"installment_id"`
	ContractID    uuid.UUID  `json:"contract_id"`
	ContractNo    string     `json:"contract_no"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	CustomerName  string     `json:"customer_name"`
	SalesUserID   *uuid.UUID `json:"sales_user_id,omitempty"`
	OwnerUserID   *uuid.UUID `json:"owner_user_id,omitempty"`
	InstallmentNo int        `json:"installment_no"`
	DueDate       string     `json:"due_date"`
	Original      MoneyView  `json:"original"`
	Display       MoneyView  `json:"display"`
	Status        string     `json:"status"`
	StatusLabel   string     `json:"status_label"`
	OverdueDays   int        `json:"overdue_days"`
}

// DashboardResponse is the dashboard result
type DashboardResponse struct {
	View             string                     `json:"view"`
	CurrencyMode     string                     `json:"currency_mode"`
	DisplayCurrency  string                     `json:"display_currency"`
	ContractRows     []ContractRowResponse      `json:"contract_rows,omitempty"`
	InstallmentRows  []InstallmentRowResponse   `json:"installment_rows,omitempty"`
	StaffRows        []finance.StaffSummaryRow  `json:"staff_rows,omitempty"`
	Totals           finance.ConvertedAmounts   `json:"totals"`
	TotalsByCurrency finance.CurrencyBuckets    `json:"totals_by_currency"`
	GroupBy          string                     `json:"group_by,omitempty"`
	GroupTotals      []finance.GroupTotal       `json:"group_totals,omitempty"`
	Total            int64                      `json:"total"`
	Page             int                        `json:"page"`
	PageSize         int                        `json:"page_size"`
	TotalPages       int                        `json:"total_pages"`
	Degraded         []valueobject.Currency     `json:"degraded_currencies,omitempty"`
	RatesLoadedAt    time.Time                  `json:"rates_loaded_at"`
}

// ExchangeRatesResponse lists the active rate snapshot
type ExchangeRatesResponse struct {
	Base        string                 `json:"base"`
	DefaultRate decimal.Decimal        `json:"default_rate"`
	LoadedAt    time.Time              `json:"loaded_at"`
	Rates       []finance.ExchangeRate `json:"rates"`
}
