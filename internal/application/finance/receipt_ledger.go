package finance

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// appliedScale is the storage scale of money columns. Converted amounts are
// rounded to it so the stored paid amount and its receipts always agree.
const appliedScale = 4

// LedgerOptions tunes the optimistic retry loop
type LedgerOptions struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// ReceiptLedger applies receipts to installments. Each application runs in one
// transaction holding the installment row lock; a version conflict on the
// installment or contract row is retried with a jittered backoff.
type ReceiptLedger struct {
	txScope   TransactionScope
	rates     finance.RateSupplier
	clock     shared.Clock
	record    valueobject.Currency
	opts      LedgerOptions
	publisher shared.EventPublisher
	metrics   *telemetry.FinanceMetrics
}

// NewReceiptLedger creates a ReceiptLedger
func NewReceiptLedger(
	txScope TransactionScope,
	rates finance.RateSupplier,
	clock shared.Clock,
	record valueobject.Currency,
	opts LedgerOptions,
) *ReceiptLedger {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &ReceiptLedger{
		txScope: txScope,
		rates:   rates,
		clock:   clock,
		record:  record,
		opts:    opts,
	}
}

// SetEventPublisher sets the publisher receiving ledger events after commit
func (l *ReceiptLedger) SetEventPublisher(publisher shared.EventPublisher) {
	l.publisher = publisher
}

// SetMetrics sets the metrics sink
func (l *ReceiptLedger) SetMetrics(m *telemetry.FinanceMetrics) {
	l.metrics = m
}

// receiptBuilder produces the receipt input once the locked installment is known
type receiptBuilder func(inst *finance.Installment) (finance.ReceiptInput, error)

// ApplyReceipt records a receipt of any positive amount up to the unpaid balance
func (l *ReceiptLedger) ApplyReceipt(ctx context.Context, installmentID uuid.UUID, req ApplyReceiptRequest, actorID *uuid.UUID) (*LedgerResult, error) {
	received, err := parseDate("received_date", req.ReceivedDate)
	if err != nil {
		return nil, err
	}
	if req.Currency != "" {
		if _, err := parseCurrency(req.Currency, ""); err != nil {
			return nil, err
		}
	}
	collector := req.CollectorID
	if collector == nil {
		collector = actorID
	}
	build := func(inst *finance.Installment) (finance.ReceiptInput, error) {
		currency, err := parseCurrency(req.Currency, inst.Currency)
		if err != nil {
			return finance.ReceiptInput{}, err
		}
		return finance.ReceiptInput{
			Amount:       req.Amount,
			Currency:     currency,
			ReceivedDate: l.receivedDate(received),
			Method:       finance.PaymentMethod(req.Method),
			CollectorID:  collector,
			Note:         req.Note,
		}, nil
	}
	return l.post(ctx, "apply_receipt", installmentID, req.Method, build)
}

// SettleInstallment records a receipt for exactly the unpaid balance, read
// inside the same locked transaction
func (l *ReceiptLedger) SettleInstallment(ctx context.Context, installmentID uuid.UUID, req SettleInstallmentRequest, actorID *uuid.UUID) (*LedgerResult, error) {
	received, err := parseDate("received_date", req.ReceivedDate)
	if err != nil {
		return nil, err
	}
	collector := req.CollectorID
	if collector == nil {
		collector = actorID
	}
	build := func(inst *finance.Installment) (finance.ReceiptInput, error) {
		if inst.IsSettled() {
			return finance.ReceiptInput{}, finance.ErrAlreadySettled
		}
		return finance.ReceiptInput{
			Amount:       inst.AmountUnpaid(),
			Currency:     inst.Currency,
			ReceivedDate: l.receivedDate(received),
			Method:       finance.PaymentMethod(req.Method),
			CollectorID:  collector,
			Note:         req.Note,
		}, nil
	}
	return l.post(ctx, "settle_installment", installmentID, req.Method, build)
}

func (l *ReceiptLedger) receivedDate(t time.Time) time.Time {
	if t.IsZero() {
		return finance.DateOf(l.clock.Now())
	}
	return t
}

func (l *ReceiptLedger) post(ctx context.Context, op string, installmentID uuid.UUID, method string, build receiptBuilder) (*LedgerResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt_ledger", op,
		attribute.String("installment.id", installmentID.String()),
		attribute.String("receipt.method", method),
	)
	defer span.End()
	start := time.Now()
	log := logger.L(ctx).With(zap.String("installment_id", installmentID.String()), zap.String("operation", op))

	table, err := l.rates.Current(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		l.metrics.ObserveLedger(telemetry.ResultError, method, time.Since(start))
		return nil, fmt.Errorf("load exchange rates: %w", err)
	}
	conv := finance.NewConverter(table, l.record)

	var (
		result *LedgerResult
		events []shared.DomainEvent
	)
	for attempt := 0; ; attempt++ {
		result, events, err = l.postOnce(ctx, installmentID, conv, build)
		if err == nil {
			break
		}
		if !errors.Is(err, finance.ErrConcurrentModification) || attempt >= l.opts.MaxRetries {
			break
		}
		l.metrics.IncLedgerRetry()
		log.Debug("Concurrent modification, retrying", zap.Int("attempt", attempt+1))
		if werr := l.wait(ctx, attempt); werr != nil {
			err = werr
			break
		}
	}

	if err != nil {
		telemetry.RecordError(span, err)
		l.metrics.ObserveLedger(ledgerOutcome(err), method, time.Since(start))
		if errors.Is(err, finance.ErrConcurrentModification) {
			log.Warn("Receipt rejected after retries", zap.Error(err))
		}
		return nil, err
	}

	l.metrics.ObserveLedger(telemetry.ResultApplied, method, time.Since(start))
	l.metrics.AddReceiptAmount(result.Receipt.Currency, result.Receipt.Amount)
	span.SetAttributes(
		attribute.String("receipt.id", result.Receipt.ID.String()),
		attribute.String("receipt.amount", result.Receipt.Amount.String()),
		attribute.Bool("contract.settled", result.ContractSettled),
	)
	log.Info("Receipt applied",
		zap.String("receipt_id", result.Receipt.ID.String()),
		zap.String("amount", result.Receipt.Amount.String()),
		zap.String("currency", result.Receipt.Currency),
		zap.String("installment_status", result.Installment.Status),
	)
	l.publish(ctx, events)
	return result, nil
}

func (l *ReceiptLedger) postOnce(ctx context.Context, installmentID uuid.UUID, conv *finance.Converter, build receiptBuilder) (*LedgerResult, []shared.DomainEvent, error) {
	var (
		result *LedgerResult
		events []shared.DomainEvent
	)
	err := l.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		contract, inst, err := lockInstallment(ctx, repos, installmentID)
		if err != nil {
			return err
		}
		in, err := build(inst)
		if err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}

		applied, exact := conv.Convert(in.Amount, in.Currency, inst.Currency, finance.RateModeFixed)
		var warning *WarningResponse
		if in.Currency != inst.Currency {
			applied = applied.Round(appliedScale)
		}
		if !exact {
			l.metrics.IncDegraded(in.Currency.String())
			warning = toWarning(finance.ErrUnknownCurrency)
			logger.L(ctx).Warn("Exchange rate missing, default rate applied",
				zap.String("from", in.Currency.String()),
				zap.String("to", inst.Currency.String()),
			)
		}

		receipt, err := contract.ApplyReceipt(inst.ID, in, applied)
		if err != nil {
			return err
		}
		if err := repos.Receipts().Create(ctx, receipt); err != nil {
			return err
		}
		if err := repos.Installments().SaveWithLock(ctx, inst); err != nil {
			return err
		}
		if err := repos.Contracts().SaveWithLock(ctx, contract); err != nil {
			return err
		}

		today := finance.DateOf(l.clock.Now())
		result = &LedgerResult{
			Receipt:         ToReceiptResponse(receipt),
			Installment:     ToInstallmentResponse(inst, today),
			ContractID:      contract.ID,
			ContractStatus:  contract.ResolvedStatus().String(),
			ContractSettled: contract.Status == finance.ContractStatusSettled,
			Warning:         warning,
		}
		events = contract.GetDomainEvents()
		contract.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// lockInstallment locks the owning contract and then the installment, the order
// every writer follows, and returns both as read under the locks. Receipts on
// sibling installments queue on the contract row instead of failing its
// version check.
func lockInstallment(ctx context.Context, repos TransactionalRepositories, installmentID uuid.UUID) (*finance.Contract, *finance.Installment, error) {
	ref, err := repos.Installments().FindByID(ctx, installmentID)
	if err != nil {
		return nil, nil, err
	}
	contract, err := repos.Contracts().LockByID(ctx, ref.ContractID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := repos.Installments().LockByID(ctx, installmentID); err != nil {
		return nil, nil, err
	}
	inst, err := contract.Installment(installmentID)
	if err != nil {
		return nil, nil, err
	}
	return contract, inst, nil
}

// wait sleeps attempt+1 backoff units plus up to one unit of jitter
func (l *ReceiptLedger) wait(ctx context.Context, attempt int) error {
	base := l.opts.RetryBackoff
	if base <= 0 {
		return ctx.Err()
	}
	d := time.Duration(attempt+1)*base + rand.N(base)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *ReceiptLedger) publish(ctx context.Context, events []shared.DomainEvent) {
	for _, e := range events {
		switch e.EventType() {
		case finance.EventTypeInstallmentSettled:
			l.metrics.IncSettled("installment")
		case finance.EventTypeContractSettled:
			l.metrics.IncSettled("contract")
		}
	}
	if l.publisher == nil || len(events) == 0 {
		return
	}
	if err := l.publisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("Failed to publish ledger events", zap.Error(err))
	}
}

func ledgerOutcome(err error) string {
	switch shared.CodeOf(err) {
	case finance.CodeConcurrentModification:
		return telemetry.ResultConflict
	case finance.CodeInvalidAmount, finance.CodeAlreadySettled, finance.CodeContractVoid,
		finance.CodeInvalidInput, finance.CodeNotFound:
		return telemetry.ResultRejected
	}
	return telemetry.ResultError
}
