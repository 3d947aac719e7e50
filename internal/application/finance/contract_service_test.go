package finance

import (
	"context"
	"testing"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestContractService(repos *repoMocks) *ContractService {
	return NewContractService(repos.contracts, repos.installments, repos.receipts, repos.scope(), testClock())
}

func createRequest() CreateContractRequest {
	return CreateContractRequest{
		ContractNo:   "HT-2024-007",
		CustomerID:   uuid.New(),
		CustomerName: "大华贸易",
		GrossAmount:  decimal.NewFromInt(3000),
		SignDate:     "2024-06-01",
		Installments: []InstallmentPlanRequest{
			{DueDate: "2024-07-01", Amount: decimal.NewFromInt(1000)},
			{DueDate: "2024-08-01", Amount: decimal.NewFromInt(1000)},
			{DueDate: "2024-09-01", Amount: decimal.NewFromInt(1000)},
		},
	}
}

func TestContractService_Create(t *testing.T) {
	repos := newRepoMocks()
	repos.contracts.On("ExistsByContractNo", mock.Anything, "HT-2024-007").Return(false, nil).Once()
	repos.contracts.On("Create", mock.Anything, mock.AnythingOfType("*finance.Contract")).Return(nil).Once()

	svc := newTestContractService(repos)
	publisher := NewMockEventPublisher()
	svc.SetEventPublisher(publisher)

	resp, err := svc.Create(context.Background(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, "HT-2024-007", resp.ContractNo)
	assert.Equal(t, "大华贸易 2024-06-01 合同", resp.Title)
	assert.Equal(t, "TWD", resp.Currency)
	assert.Len(t, resp.Installments, 3)
	assert.Equal(t, 1, resp.Installments[0].InstallmentNo)
	assert.Equal(t, "2024-07-01", resp.Installments[0].DueDate)
	assert.Equal(t, string(finance.InstallmentStatusPending), resp.Installments[0].Status)
	assert.True(t, resp.Rollup.TotalDue.Equal(decimal.NewFromInt(3000)))
	assert.Nil(t, resp.Warning)
	assert.Len(t, publisher.GetEventsByType(finance.EventTypeContractCreated), 1)
	repos.assertExpectations(t)
}

func TestContractService_Create_UnbalancedWarns(t *testing.T) {
	repos := newRepoMocks()
	repos.contracts.On("ExistsByContractNo", mock.Anything, mock.Anything).Return(false, nil).Once()
	repos.contracts.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	req := createRequest()
	req.GrossAmount = decimal.NewFromInt(3500)
	resp, err := newTestContractService(repos).Create(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, resp.Warning)
	assert.Equal(t, finance.CodeBalanceMismatch, resp.Warning.Code)
}

func TestContractService_Create_DuplicateNumber(t *testing.T) {
	repos := newRepoMocks()
	repos.contracts.On("ExistsByContractNo", mock.Anything, "HT-2024-007").Return(true, nil).Once()

	_, err := newTestContractService(repos).Create(context.Background(), createRequest())
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	repos.contracts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestContractService_Create_InvalidDueDate(t *testing.T) {
	repos := newRepoMocks()
	req := createRequest()
	req.Installments[1].DueDate = "08/01/2024"

	_, err := newTestContractService(repos).Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, finance.CodeInvalidInput, shared.CodeOf(err))
	assert.Contains(t, err.Error(), "installments[1].due_date")
}

func TestContractService_Reprice(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000", "1000")
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(nil).Once()

	resp, err := newTestContractService(repos).Reprice(context.Background(), c.ID, RepriceContractRequest{
		GrossAmount:          decimal.NewFromInt(2500),
		DiscountType:         "amount",
		DiscountValue:        decimal.NewFromInt(500),
		DiscountParticipates: true,
	})
	require.NoError(t, err)

	assert.True(t, resp.NetAmount.Equal(decimal.NewFromInt(2000)))
	assert.Nil(t, resp.Warning)
	assert.Equal(t, 2, resp.Version)
	repos.assertExpectations(t)
}

func TestContractService_Void(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000")
	actor := uuid.New()
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(nil).Once()
	repos.statusLogs.On("Create", mock.Anything, mock.MatchedBy(func(l *finance.StatusChangeLog) bool {
		return l.EntityID == c.ID && l.OldStatus == "active" && l.NewStatus == "void" && *l.ActorID == actor
	})).Return(nil).Once()

	resp, err := newTestContractService(repos).Void(context.Background(), c.ID, VoidContractRequest{Reason: "customer withdrew"}, &actor)
	require.NoError(t, err)
	assert.Equal(t, "void", resp.Status)
	assert.Equal(t, "作废", resp.StatusLabel)
	repos.assertExpectations(t)
}

func TestContractService_Delete_Cascades(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000", "1000")
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.installments.On("SaveWithLock", mock.Anything, mock.MatchedBy(func(i *finance.Installment) bool {
		return i.IsDeleted()
	})).Return(nil).Twice()
	repos.receipts.On("DeleteByContract", mock.Anything, c.ID).Return(int64(3), nil).Once()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(nil).Once()

	err := newTestContractService(repos).Delete(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, c.IsDeleted())
	repos.assertExpectations(t)
}

func TestContractService_Delete_NotFound(t *testing.T) {
	repos := newRepoMocks()
	id := uuid.New()
	repos.contracts.On("LockByID", mock.Anything, id).Return(nil, finance.ErrContractNotFound).Once()

	err := newTestContractService(repos).Delete(context.Background(), id)
	assert.ErrorIs(t, err, finance.ErrContractNotFound)
	repos.receipts.AssertNotCalled(t, "DeleteByContract", mock.Anything, mock.Anything)
}

func TestContractService_EditInstallment(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000", "1000")
	inst := c.Installments[1]
	repos.installments.On("FindByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.installments.On("LockByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.installments.On("SaveWithLock", mock.Anything, inst).Return(nil).Once()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(nil).Once()

	resp, err := newTestContractService(repos).EditInstallment(context.Background(), inst.ID, EditInstallmentRequest{
		DueDate:   "2024-12-31",
		AmountDue: decimal.NewFromInt(1200),
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-12-31", resp.Installments[1].DueDate)
	require.NotNil(t, resp.Warning)
	assert.Equal(t, finance.CodeBalanceMismatch, resp.Warning.Code)
	repos.assertExpectations(t)
}

func TestContractService_DeleteInstallment(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000", "1000")
	inst := c.Installments[0]
	repos.installments.On("FindByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.installments.On("LockByID", mock.Anything, inst.ID).Return(inst, nil).Once()
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.installments.On("SaveWithLock", mock.Anything, inst).Return(nil).Once()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(nil).Once()

	resp, err := newTestContractService(repos).DeleteInstallment(context.Background(), inst.ID)
	require.NoError(t, err)

	assert.Len(t, resp.Installments, 1)
	assert.Equal(t, 1, resp.Rollup.InstallmentCount)
	assert.True(t, resp.Rollup.TotalDue.Equal(decimal.NewFromInt(1000)))
}

func TestContractService_AddInstallment(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000")
	repos.contracts.On("LockByID", mock.Anything, c.ID).Return(c, nil).Once()
	repos.installments.On("Create", mock.Anything, mock.MatchedBy(func(i *finance.Installment) bool {
		return i.InstallmentNo == 2 && i.ContractID == c.ID
	})).Return(nil).Once()
	repos.contracts.On("SaveWithLock", mock.Anything, c).Return(nil).Once()

	resp, err := newTestContractService(repos).AddInstallment(context.Background(), c.ID, InstallmentPlanRequest{
		DueDate: "2024-10-01",
		Amount:  decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Installments, 2)
	repos.assertExpectations(t)
}

func TestContractService_Rollup(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000", "2000")
	_, err := c.ApplyReceipt(c.Installments[0].ID, finance.ReceiptInput{
		Amount: decimal.NewFromInt(400), Currency: "TWD", Method: finance.PaymentMethodCash,
	}, decimal.NewFromInt(400))
	require.NoError(t, err)
	repos.contracts.On("FindByID", mock.Anything, c.ID).Return(c, nil).Once()

	resp, err := newTestContractService(repos).Rollup(context.Background(), c.ID)
	require.NoError(t, err)

	assert.True(t, resp.Rollup.TotalDue.Equal(decimal.NewFromInt(3000)))
	assert.True(t, resp.Rollup.TotalPaid.Equal(decimal.NewFromInt(400)))
	assert.True(t, resp.Rollup.TotalUnpaid.Equal(decimal.NewFromInt(2600)))
	assert.True(t, resp.Balanced)
}

func TestContractService_Reconcile(t *testing.T) {
	repos := newRepoMocks()
	c := newTestContract(t, "1000")
	inst := c.Installments[0]
	r1, err := c.ApplyReceipt(inst.ID, finance.ReceiptInput{Amount: decimal.NewFromInt(300), Currency: "TWD", Method: finance.PaymentMethodCash}, decimal.NewFromInt(300))
	require.NoError(t, err)
	r2, err := c.ApplyReceipt(inst.ID, finance.ReceiptInput{Amount: decimal.NewFromInt(200), Currency: "TWD", Method: finance.PaymentMethodCash}, decimal.NewFromInt(200))
	require.NoError(t, err)

	repos.installments.On("FindByID", mock.Anything, inst.ID).Return(inst, nil)
	repos.receipts.On("FindByInstallment", mock.Anything, inst.ID).Return([]*finance.Receipt{r1, r2}, nil).Once()
	repos.receipts.On("FindByInstallment", mock.Anything, inst.ID).Return([]*finance.Receipt{r1}, nil).Once()

	svc := newTestContractService(repos)
	rec, err := svc.Reconcile(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
	assert.Equal(t, 2, rec.ReceiptCount)

	rec, err = svc.Reconcile(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.False(t, rec.Balanced)
}

func TestContractService_ListReceipts_UnknownInstallment(t *testing.T) {
	repos := newRepoMocks()
	id := uuid.New()
	repos.installments.On("FindByID", mock.Anything, id).Return(nil, finance.ErrInstallmentNotFound).Once()

	_, err := newTestContractService(repos).ListReceipts(context.Background(), id)
	assert.ErrorIs(t, err, finance.ErrInstallmentNotFound)
}
