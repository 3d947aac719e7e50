package finance

import (
	"time"

	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a receipt was collected
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodWechat       PaymentMethod = "wechat"
	PaymentMethodAlipay       PaymentMethod = "alipay"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodPrepay       PaymentMethod = "prepay"
	PaymentMethodOther        PaymentMethod = "other"
)

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentMethodCash:         "现金",
	PaymentMethodBankTransfer: "银行转账",
	PaymentMethodWechat:       "微信",
	PaymentMethodAlipay:       "支付宝",
	PaymentMethodCheck:        "支票",
	PaymentMethodPrepay:       "预付款",
	PaymentMethodOther:        "其他",
}

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	_, ok := paymentMethodLabels[m]
	return ok
}

// Label returns the display label
func (m PaymentMethod) Label() string {
	if l, ok := paymentMethodLabels[m]; ok {
		return l
	}
	return string(m)
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Receipt is an immutable record of money collected against one installment.
// Amount is in the receipt currency; AppliedAmount is what it paid off in the
// installment currency.
type Receipt struct {
	shared.BaseEntity
	InstallmentID uuid.UUID            `json:"installment_id"`
	ContractID    uuid.UUID            `json:"contract_id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      valueobject.Currency `json:"currency"`
	AppliedAmount decimal.Decimal      `json:"applied_amount"`
	ReceivedDate  time.Time            `json:"received_date"`
	Method        PaymentMethod        `json:"method"`
	CollectorID   *uuid.UUID           `json:"collector_id,omitempty"`
	Note          string               `json:"note,omitempty"`
}

// ReceiptInput carries the caller-supplied part of a receipt
type ReceiptInput struct {
	Amount       decimal.Decimal
	Currency     valueobject.Currency
	ReceivedDate time.Time
	Method       PaymentMethod
	CollectorID  *uuid.UUID
	Note         string
}

// Validate checks the input independent of any installment
func (in ReceiptInput) Validate() error {
	if !in.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !in.Currency.IsWellFormed() {
		return NewInvalidInput("invalid currency %q", in.Currency)
	}
	if !in.Method.IsValid() {
		return NewInvalidInput("unknown payment method %q", in.Method)
	}
	return nil
}

func newReceipt(inst *Installment, customerID uuid.UUID, in ReceiptInput, applied decimal.Decimal) *Receipt {
	received := in.ReceivedDate
	if received.IsZero() {
		received = time.Now()
	}
	return &Receipt{
		BaseEntity:    shared.NewBaseEntity(),
		InstallmentID: inst.ID,
		ContractID:    inst.ContractID,
		CustomerID:    customerID,
		Amount:        in.Amount,
		Currency:      in.Currency,
		AppliedAmount: applied,
		ReceivedDate:  DateOf(received),
		Method:        in.Method,
		CollectorID:   in.CollectorID,
		Note:          in.Note,
	}
}

// Reconciliation compares an installment's stored paid amount with its receipts
type Reconciliation struct {
	InstallmentID uuid.UUID       `json:"installment_id"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	ReceiptsTotal decimal.Decimal `json:"receipts_total"`
	ReceiptCount  int             `json:"receipt_count"`
	Balanced      bool            `json:"balanced"`
}

// ReconcileInstallment sums applied amounts of receipts and checks them against amount_paid
func ReconcileInstallment(inst *Installment, receipts []*Receipt) Reconciliation {
	total := decimal.Zero
	for _, r := range receipts {
		total = total.Add(r.AppliedAmount)
	}
	return Reconciliation{
		InstallmentID: inst.ID,
		AmountPaid:    inst.AmountPaid,
		ReceiptsTotal: total,
		ReceiptCount:  len(receipts),
		Balanced:      total.Sub(inst.AmountPaid).Abs().LessThanOrEqual(Epsilon),
	}
}
