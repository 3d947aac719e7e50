package finance

import (
	"context"
	"testing"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStatusService_UpdateInstallmentStatus_Dunning(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000", "1000")
	inst := c.Installments[0] // due 2024-05-01, overdue on the test clock
	actor := uuid.New()
	repos.installments.On("FindByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.installments.On("LockByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.installments.On("SaveWithLock", mock.Anything, inst).Return(nil).Once()
	repos.statusLogs.On("Create", mock.Anything, mock.AnythingOfType("*finance.StatusChangeLog")).Return(nil).Once()

	svc := NewStatusService(repos.scope(), testClock())
	publisher := NewMockEventPublisher()
	svc.SetEventPublisher(publisher)

	resp, err := svc.UpdateInstallmentStatus(context.Background(), inst.ID, UpdateInstallmentStatusRequest{
		Status: "dunning",
		Reason: "called twice, no answer",
	}, &actor)
	require.NoError(t, err)

	assert.Equal(t, "installment", resp.EntityType)
	assert.Equal(t, "overdue", resp.OldStatus)
	assert.Equal(t, "dunning", resp.NewStatus)
	assert.Equal(t, "dunning", inst.ManualStatus)
	assert.Len(t, publisher.GetEventsByType(finance.EventTypeStatusOverridden), 1)
	repos.assertExpectations(t)
}

func TestStatusService_UpdateInstallmentStatus_PaymentFactsWin(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000")
	inst := c.Installments[0]
	_, err := c.ApplyReceipt(inst.ID, finance.ReceiptInput{Amount: decimal.NewFromInt(1000), Currency: "TWD", Method: finance.PaymentMethodCash}, decimal.NewFromInt(1000))
	require.NoError(t, err)

	repos.installments.On("FindByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.installments.On("LockByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.installments.On("SaveWithLock", mock.Anything, inst).Return(nil).Once()
	repos.statusLogs.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := NewStatusService(repos.scope(), testClock()).UpdateInstallmentStatus(context.Background(), inst.ID, UpdateInstallmentStatusRequest{Status: "dunning"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "received", resp.NewStatus)
}

func TestStatusService_UpdateInstallmentStatus_Rejected(t *testing.T) {
	for _, status := range []string{"received", "partially_received", "overdue", "lost"} {
		t.Run(status, func(t *testing.T) {
			repos := newRepoMocks()
			c := newTestContract(t, "1000")
			inst := c.Installments[0]
			repos.installments.On("FindByID", mock.Anything, inst.ID).Return(inst, nil).Maybe()
			repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Maybe()
			repos.installments.On("LockByID", mock.Anything, inst.ID).Return(inst, nil).Maybe()

			_, err := NewStatusService(repos.scope(), testClock()).UpdateInstallmentStatus(context.Background(), inst.ID, UpdateInstallmentStatusRequest{Status: status}, nil)
			assert.ErrorIs(t, err, finance.ErrInvalidStatus)
			repos.statusLogs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestStatusService_UpdateContractStatus(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000")
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Twice()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(nil).Twice()
	repos.statusLogs.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()

	svc := NewStatusService(repos.scope(), testClock())
	resp, err := svc.UpdateContractStatus(context.Background(), c.ID, UpdateContractStatusRequest{Status: "法务跟进"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "active", resp.OldStatus)
	assert.Equal(t, "法务跟进", resp.NewStatus)

	resp, err = svc.UpdateContractStatus(context.Background(), c.ID, UpdateContractStatusRequest{Status: ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, "法务跟进", resp.OldStatus)
	assert.Equal(t, "active", resp.NewStatus)
	repos.assertExpectations(t)
}

func TestStatusService_UpdateContractStatus_Conflict(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000")
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(finance.ErrConcurrentModification).Once()

	_, err := NewStatusService(repos.scope(), testClock()).UpdateContractStatus(context.Background(), c.ID, UpdateContractStatusRequest{Status: "x"}, nil)
	assert.ErrorIs(t, err, finance.ErrConcurrentModification)
	repos.statusLogs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
