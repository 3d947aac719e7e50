package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Test", uuid.New())}
}

type testHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func (h *testHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, ev)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.types }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	receipts := &testHandler{types: []string{finance.EventTypeReceiptApplied}}
	all := &testHandler{}
	bus.Subscribe(receipts)
	bus.Subscribe(all)

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent(finance.EventTypeReceiptApplied),
		newTestEvent(finance.EventTypeContractSettled),
	))

	assert.Equal(t, 1, receipts.count())
	assert.Equal(t, 2, all.count())

	bus.Unsubscribe(receipts)
	require.NoError(t, bus.Publish(context.Background(), newTestEvent(finance.EventTypeReceiptApplied)))
	assert.Equal(t, 1, receipts.count())
	assert.Equal(t, 3, all.count())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))

	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &testHandler{err: errors.New("downstream unavailable")}
	panicking := &testHandler{panics: true}
	healthy := &testHandler{}
	bus.Subscribe(failing, "X")
	bus.Subscribe(panicking, "X")
	bus.Subscribe(healthy, "X")

	err := bus.Publish(ctx, newTestEvent("X"))
	require.NoError(t, err)
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, logs.FilterMessage("Event handler failed").Len())
}

func TestAuditLogHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewAuditLogHandler(zap.New(core))
	assert.Nil(t, h.EventTypes())

	receipt := &finance.Receipt{
		BaseEntity:    shared.NewBaseEntity(),
		InstallmentID: uuid.New(),
		ContractID:    uuid.New(),
		Amount:        decimal.NewFromInt(100),
		Currency:      valueobject.USD,
		AppliedAmount: decimal.RequireFromString("3214.2857"),
		ReceivedDate:  time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		Method:        finance.PaymentMethodBankTransfer,
	}
	ctx := logger.WithActor(context.Background(), logger.Actor{UserID: "u-1", Role: "finance"})
	require.NoError(t, h.Handle(ctx, finance.NewReceiptAppliedEvent(receipt)))

	entries := logs.FilterMessage("Finance event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, finance.EventTypeReceiptApplied, fields["event_type"])
	assert.Equal(t, "u-1", fields["actor_id"])
	assert.Equal(t, "3214.2857", fields["applied_amount"])
	assert.Equal(t, "bank_transfer", fields["method"])
	assert.Equal(t, receipt.ContractID.String(), fields["contract_id"])
}
