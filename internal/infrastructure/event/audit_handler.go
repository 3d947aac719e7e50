package event

import (
	"context"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured log line per finance event.
// The actor is taken from the request context.
type AuditLogHandler struct {
	log *zap.Logger
}

// NewAuditLogHandler creates an audit handler writing to log
func NewAuditLogHandler(log *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{log: log.Named("audit")}
}

// EventTypes returns nil: the handler receives every event
func (h *AuditLogHandler) EventTypes() []string {
	return nil
}

// Handle logs the event with its type specific fields
func (h *AuditLogHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", ev.EventType()),
		zap.String("event_id", ev.EventID().String()),
		zap.String("contract_id", ev.AggregateID().String()),
		zap.Time("occurred_at", ev.OccurredAt()),
	}
	if actor, ok := logger.ActorFrom(ctx); ok {
		fields = append(fields, zap.String("actor_id", actor.UserID))
	}
	if rid := logger.RequestID(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}

	switch e := ev.(type) {
	case *finance.ContractCreatedEvent:
		fields = append(fields,
			zap.String("contract_no", e.ContractNo),
			zap.String("net_amount", e.NetAmount.String()),
			zap.String("currency", e.Currency.String()),
			zap.Int("installments", e.InstallmentCount))
	case *finance.ReceiptAppliedEvent:
		fields = append(fields,
			zap.String("receipt_id", e.ReceiptID.String()),
			zap.String("installment_id", e.InstallmentID.String()),
			zap.String("amount", e.Amount.String()),
			zap.String("currency", e.Currency.String()),
			zap.String("applied_amount", e.AppliedAmount.String()),
			zap.String("method", e.Method.String()))
	case *finance.InstallmentSettledEvent:
		fields = append(fields,
			zap.String("installment_id", e.InstallmentID.String()),
			zap.Int("installment_no", e.InstallmentNo))
	case *finance.ContractSettledEvent:
		fields = append(fields,
			zap.String("contract_no", e.ContractNo),
			zap.String("total_paid", e.TotalPaid.String()))
	case *finance.ContractVoidedEvent:
		fields = append(fields, zap.String("contract_no", e.ContractNo), zap.String("reason", e.Reason))
	case *finance.ContractDeletedEvent:
		fields = append(fields, zap.String("contract_no", e.ContractNo))
	case *finance.StatusOverriddenEvent:
		fields = append(fields,
			zap.String("entity_type", string(e.EntityType)),
			zap.String("entity_id", e.EntityID.String()),
			zap.String("old_status", e.OldStatus),
			zap.String("new_status", e.NewStatus))
	}

	h.log.Info("Finance event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
