package finance

import (
	"fmt"

	"github.com/erp/receivables/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes carried by finance domain errors. They are stable and reach API clients.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeAlreadySettled         = "ALREADY_SETTLED"
	CodeBalanceMismatch        = "BALANCE_MISMATCH"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeUnknownCurrency        = "UNKNOWN_CURRENCY"
	CodeInvalidStatus          = "INVALID_STATUS"
	CodeContractVoid           = "CONTRACT_VOID"
	CodeInvalidInput           = "INVALID_INPUT"
)

var (
	ErrInstallmentNotFound    = shared.NewDomainError(CodeNotFound, "installment not found")
	ErrContractNotFound       = shared.NewDomainError(CodeNotFound, "contract not found")
	ErrInvalidAmount          = shared.NewDomainError(CodeInvalidAmount, "amount exceeds unpaid balance")
	ErrNonPositiveAmount      = shared.NewDomainError(CodeInvalidAmount, "amount must be greater than zero")
	ErrAlreadySettled         = shared.NewDomainError(CodeAlreadySettled, "installment already settled")
	ErrBalanceMismatch        = shared.NewDomainError(CodeBalanceMismatch, "installment total does not match contract net amount")
	ErrConcurrentModification = shared.ErrConcurrencyConflict
	ErrUnknownCurrency        = shared.NewDomainError(CodeUnknownCurrency, "no exchange rate for currency, default rate applied")
	ErrInvalidStatus          = shared.NewDomainError(CodeInvalidStatus, "status cannot be set manually")
	ErrContractVoid           = shared.NewDomainError(CodeContractVoid, "contract is void")
)

// NewBalanceMismatch builds the warning returned alongside a successful write
// when the installment plan no longer adds up to the contract net amount.
func NewBalanceMismatch(totalDue, net decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError(CodeBalanceMismatch,
		fmt.Sprintf("installment total %s does not match contract net amount %s", totalDue.StringFixed(2), net.StringFixed(2)))
}

// NewInvalidInput wraps a validation failure in a domain error
func NewInvalidInput(format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidInput, fmt.Sprintf(format, args...))
}
