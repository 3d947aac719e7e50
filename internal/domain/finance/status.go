package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance for treating an amount as fully paid or balanced
var Epsilon = decimal.New(1, -5)

// InstallmentStatus is the derived display status of an installment
type InstallmentStatus string

const (
	InstallmentStatusPending           InstallmentStatus = "pending"
	InstallmentStatusDunning           InstallmentStatus = "dunning"
	InstallmentStatusOverdue           InstallmentStatus = "overdue"
	InstallmentStatusPartiallyReceived InstallmentStatus = "partially_received"
	InstallmentStatusReceived          InstallmentStatus = "received"
)

var installmentStatusLabels = map[InstallmentStatus]string{
	InstallmentStatusPending:           "待收",
	InstallmentStatusDunning:           "催款",
	InstallmentStatusOverdue:           "逾期",
	InstallmentStatusPartiallyReceived: "部分已收",
	InstallmentStatusReceived:          "已收",
}

// AllInstallmentStatuses lists every status in display order
func AllInstallmentStatuses() []InstallmentStatus {
	return []InstallmentStatus{
		InstallmentStatusPending,
		InstallmentStatusDunning,
		InstallmentStatusOverdue,
		InstallmentStatusPartiallyReceived,
		InstallmentStatusReceived,
	}
}

// IsValid checks if the status is one of the five known states
func (s InstallmentStatus) IsValid() bool {
	_, ok := installmentStatusLabels[s]
	return ok
}

// IsManual reports whether staff may set this status by hand.
// The other states follow from payments and dates.
func (s InstallmentStatus) IsManual() bool {
	return s == InstallmentStatusPending || s == InstallmentStatusDunning
}

// Label returns the display label
func (s InstallmentStatus) Label() string {
	return installmentStatusLabels[s]
}

// String returns the string representation of InstallmentStatus
func (s InstallmentStatus) String() string {
	return string(s)
}

// ResolveInstallmentStatus derives the status from payment facts, the manual
// override and the due date. The first matching rule wins:
// received, partially received, dunning override, overdue, pending.
// Unrecognized overrides are treated as absent.
func ResolveInstallmentStatus(amountDue, amountPaid decimal.Decimal, manual string, dueDate, today time.Time) InstallmentStatus {
	if amountDue.IsPositive() && amountDue.Sub(amountPaid).LessThanOrEqual(Epsilon) {
		return InstallmentStatusReceived
	}
	if amountPaid.GreaterThan(Epsilon) {
		return InstallmentStatusPartiallyReceived
	}
	if InstallmentStatus(manual) == InstallmentStatusDunning {
		return InstallmentStatusDunning
	}
	if !dueDate.IsZero() && DateOf(dueDate).Before(DateOf(today)) {
		return InstallmentStatusOverdue
	}
	return InstallmentStatusPending
}

// ContractStatus is the stored lifecycle status of a contract
type ContractStatus string

const (
	ContractStatusActive  ContractStatus = "active"
	ContractStatusSettled ContractStatus = "settled"
	ContractStatusVoid    ContractStatus = "void"
)

var contractStatusLabels = map[ContractStatus]string{
	ContractStatusActive:  "执行中",
	ContractStatusSettled: "已结清",
	ContractStatusVoid:    "作废",
}

// IsValid checks if the status is a stored contract status
func (s ContractStatus) IsValid() bool {
	_, ok := contractStatusLabels[s]
	return ok
}

// Label returns the display label; free-form manual statuses label as themselves
func (s ContractStatus) Label() string {
	if l, ok := contractStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// String returns the string representation of ContractStatus
func (s ContractStatus) String() string {
	return string(s)
}

// ResolveContractStatus returns the manual override when one is set, otherwise the stored status
func ResolveContractStatus(stored ContractStatus, manual string) ContractStatus {
	if manual != "" {
		return ContractStatus(manual)
	}
	return stored
}

// DateOf drops the clock part of t, keeping its calendar date in t's location.
// The result is expressed in UTC so dates from different zones compare by calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OverdueDays returns how many whole days dueDate lies before today, or 0
func OverdueDays(dueDate, today time.Time) int {
	if dueDate.IsZero() {
		return 0
	}
	days := int(DateOf(today).Sub(DateOf(dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
