package finance

import (
	"context"

	"github.com/erp/receivables/internal/domain/finance"
)

// TransactionScope provides transactional access to finance repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all finance repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Contracts is the aggregate root repository. Installments is used for the row lock
// taken before a receipt is applied and for persisting individual installment changes.
// Receipts and StatusLogs are append-only.
type TransactionalRepositories interface {
	Contracts() finance.ContractRepository
	Installments() finance.InstallmentRepository
	Receipts() finance.ReceiptRepository
	StatusLogs() finance.StatusLogRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	contracts    finance.ContractRepository
	installments finance.InstallmentRepository
	receipts     finance.ReceiptRepository
	statusLogs   finance.StatusLogRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	contracts finance.ContractRepository,
	installments finance.InstallmentRepository,
	receipts finance.ReceiptRepository,
	statusLogs finance.StatusLogRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		contracts:    contracts,
		installments: installments,
		receipts:     receipts,
		statusLogs:   statusLogs,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Contracts returns the contract repository.
func (s *NoOpTransactionScope) Contracts() finance.ContractRepository {
	return s.contracts
}

// Installments returns the installment repository.
func (s *NoOpTransactionScope) Installments() finance.InstallmentRepository {
	return s.installments
}

// Receipts returns the receipt repository.
func (s *NoOpTransactionScope) Receipts() finance.ReceiptRepository {
	return s.receipts
}

// StatusLogs returns the status log repository.
func (s *NoOpTransactionScope) StatusLogs() finance.StatusLogRepository {
	return s.statusLogs
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
