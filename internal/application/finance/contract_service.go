package finance

import (
	"context"
	"fmt"
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

// ContractService handles contract and installment maintenance
type ContractService struct {
	contracts      finance.ContractRepository
	installments   finance.InstallmentRepository
	receipts       finance.ReceiptRepository
	txScope        TransactionScope
	clock          shared.Clock
	defaultCurr    valueobject.Currency
	eventPublisher shared.EventPublisher
}

// NewContractService creates a new ContractService
func NewContractService(
	contracts finance.ContractRepository,
	installments finance.InstallmentRepository,
	receipts finance.ReceiptRepository,
	txScope TransactionScope,
	clock shared.Clock,
) *ContractService {
	return &ContractService{
		contracts:    contracts,
		installments: installments,
		receipts:     receipts,
		txScope:      txScope,
		clock:        clock,
		defaultCurr:  valueobject.DefaultCurrency,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ContractService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetDefaultCurrency sets the currency used when a request omits one
func (s *ContractService) SetDefaultCurrency(c valueobject.Currency) {
	if c != "" {
		s.defaultCurr = c
	}
}

func (s *ContractService) today() time.Time {
	return finance.DateOf(s.clock.Now())
}

func (s *ContractService) publishDomainEvents(ctx context.Context, c *finance.Contract) {
	if s.eventPublisher == nil {
		return
	}
	events := c.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("Failed to publish contract events", zap.Error(err))
	}
	c.ClearDomainEvents()
}

// Create opens a contract with its payment plan. An unbalanced plan is
// accepted and reported as a warning on the response.
func (s *ContractService) Create(ctx context.Context, req CreateContractRequest) (*ContractResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "contract", "create",
		attribute.String("contract.no", req.ContractNo))
	defer span.End()

	currency, err := parseCurrency(req.Currency, s.defaultCurr)
	if err != nil {
		return nil, err
	}
	signDate, err := parseDate("sign_date", req.SignDate)
	if err != nil {
		return nil, err
	}
	if signDate.IsZero() {
		signDate = s.today()
	}
	plans := make([]finance.InstallmentPlan, 0, len(req.Installments))
	for i, p := range req.Installments {
		due, err := parseDate(fmt.Sprintf("installments[%d].due_date", i), p.DueDate)
		if err != nil {
			return nil, err
		}
		planCurrency, err := parseCurrency(p.Currency, currency)
		if err != nil {
			return nil, err
		}
		plans = append(plans, finance.InstallmentPlan{DueDate: due, Amount: p.Amount, Currency: planCurrency, Note: p.Note})
	}

	contract, err := finance.NewContract(finance.NewContractInput{
		ContractNo:   req.ContractNo,
		Title:        req.Title,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		SalesUserID:  req.SalesUserID,
		GrossAmount:  req.GrossAmount,
		Discount: finance.Discount{
			Type:         finance.DiscountType(req.DiscountType),
			Value:        req.DiscountValue,
			Participates: req.DiscountParticipates,
		},
		Currency: currency,
		SignDate: signDate,
		Plans:    plans,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Contracts().ExistsByContractNo(ctx, contract.ContractNo)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("contract number %s already exists", contract.ContractNo))
		}
		return repos.Contracts().Create(ctx, contract)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.L(ctx).Info("Contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("contract_no", contract.ContractNo),
		zap.Int("installments", len(contract.Installments)),
	)
	s.publishDomainEvents(ctx, contract)
	resp := ToContractResponse(contract, s.today())
	return &resp, nil
}

// GetByID returns a contract with its live installments
func (s *ContractService) GetByID(ctx context.Context, id uuid.UUID) (*ContractResponse, error) {
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToContractResponse(contract, s.today())
	return &resp, nil
}

// Rollup returns the money position of a contract
func (s *ContractService) Rollup(ctx context.Context, id uuid.UUID) (*RollupResponse, error) {
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToRollupResponse(contract)
	return &resp, nil
}

// mutate loads a contract in a transaction, applies fn and saves the contract row
func (s *ContractService) mutate(ctx context.Context, id uuid.UUID, fn func(repos TransactionalRepositories, c *finance.Contract) error) (*finance.Contract, error) {
	var contract *finance.Contract
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		c, err := repos.Contracts().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(repos, c); err != nil {
			return err
		}
		if err := repos.Contracts().SaveWithLock(ctx, c); err != nil {
			return err
		}
		contract = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishDomainEvents(ctx, contract)
	return contract, nil
}

// Reprice changes gross amount and discount; installments are untouched
func (s *ContractService) Reprice(ctx context.Context, id uuid.UUID, req RepriceContractRequest) (*ContractResponse, error) {
	contract, err := s.mutate(ctx, id, func(_ TransactionalRepositories, c *finance.Contract) error {
		return c.Reprice(req.GrossAmount, finance.Discount{
			Type:         finance.DiscountType(req.DiscountType),
			Value:        req.DiscountValue,
			Participates: req.DiscountParticipates,
		})
	})
	if err != nil {
		return nil, err
	}
	resp := ToContractResponse(contract, s.today())
	return &resp, nil
}

// Void moves a contract into its terminal state and logs the change
func (s *ContractService) Void(ctx context.Context, id uuid.UUID, req VoidContractRequest, actorID *uuid.UUID) (*ContractResponse, error) {
	contract, err := s.mutate(ctx, id, func(repos TransactionalRepositories, c *finance.Contract) error {
		log, err := c.Void(req.Reason, actorID)
		if err != nil {
			return err
		}
		return repos.StatusLogs().Create(ctx, log)
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Contract voided", zap.String("contract_id", id.String()), zap.String("reason", req.Reason))
	resp := ToContractResponse(contract, s.today())
	return &resp, nil
}

// Delete soft-deletes a contract with its installments and removes its receipts
func (s *ContractService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "contract", "delete",
		attribute.String("contract.id", id.String()))
	defer span.End()

	var removed int64
	_, err := s.mutate(ctx, id, func(repos TransactionalRepositories, c *finance.Contract) error {
		live := make([]*finance.Installment, 0, len(c.Installments))
		for _, i := range c.Installments {
			if !i.IsDeleted() {
				live = append(live, i)
			}
		}
		if err := c.MarkDeleted(s.clock.Now()); err != nil {
			return err
		}
		for _, i := range live {
			if err := repos.Installments().SaveWithLock(ctx, i); err != nil {
				return err
			}
		}
		n, err := repos.Receipts().DeleteByContract(ctx, c.ID)
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	logger.L(ctx).Info("Contract deleted", zap.String("contract_id", id.String()), zap.Int64("receipts_removed", removed))
	return nil
}

// AddInstallment appends an installment to a contract
func (s *ContractService) AddInstallment(ctx context.Context, contractID uuid.UUID, req InstallmentPlanRequest) (*ContractResponse, error) {
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}
	contract, err := s.mutate(ctx, contractID, func(repos TransactionalRepositories, c *finance.Contract) error {
		currency, err := parseCurrency(req.Currency, c.Currency)
		if err != nil {
			return err
		}
		inst, err := c.AddInstallment(finance.InstallmentPlan{DueDate: due, Amount: req.Amount, Currency: currency, Note: req.Note})
		if err != nil {
			return err
		}
		return repos.Installments().Create(ctx, inst)
	})
	if err != nil {
		return nil, err
	}
	resp := ToContractResponse(contract, s.today())
	return &resp, nil
}

// EditInstallment changes due date, amount and note of one installment
func (s *ContractService) EditInstallment(ctx context.Context, installmentID uuid.UUID, req EditInstallmentRequest) (*ContractResponse, error) {
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}
	inst, err := s.installments.FindByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	contract, err := s.mutate(ctx, inst.ContractID, func(repos TransactionalRepositories, c *finance.Contract) error {
		if _, err := repos.Installments().LockByID(ctx, installmentID); err != nil {
			return err
		}
		edited, err := c.EditInstallment(installmentID, due, req.AmountDue, req.Note)
		if err != nil {
			return err
		}
		return repos.Installments().SaveWithLock(ctx, edited)
	})
	if err != nil {
		return nil, err
	}
	resp := ToContractResponse(contract, s.today())
	return &resp, nil
}

// DeleteInstallment soft-deletes one installment
func (s *ContractService) DeleteInstallment(ctx context.Context, installmentID uuid.UUID) (*ContractResponse, error) {
	inst, err := s.installments.FindByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	contract, err := s.mutate(ctx, inst.ContractID, func(repos TransactionalRepositories, c *finance.Contract) error {
		if _, err := repos.Installments().LockByID(ctx, installmentID); err != nil {
			return err
		}
		removed, err := c.RemoveInstallment(installmentID, s.clock.Now())
		if err != nil {
			return err
		}
		return repos.Installments().SaveWithLock(ctx, removed)
	})
	if err != nil {
		return nil, err
	}
	resp := ToContractResponse(contract, s.today())
	return &resp, nil
}

// GetInstallment returns one installment
func (s *ContractService) GetInstallment(ctx context.Context, installmentID uuid.UUID) (*InstallmentResponse, error) {
	inst, err := s.installments.FindByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	resp := ToInstallmentResponse(inst, s.today())
	return &resp, nil
}

// ListReceipts returns the receipts of one installment, oldest first
func (s *ContractService) ListReceipts(ctx context.Context, installmentID uuid.UUID) ([]ReceiptResponse, error) {
	if _, err := s.installments.FindByID(ctx, installmentID); err != nil {
		return nil, err
	}
	receipts, err := s.receipts.FindByInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	return ToReceiptResponses(receipts), nil
}

// Reconcile checks an installment's paid amount against its receipts
func (s *ContractService) Reconcile(ctx context.Context, installmentID uuid.UUID) (*finance.Reconciliation, error) {
	inst, err := s.installments.FindByID(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	receipts, err := s.receipts.FindByInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	rec := finance.ReconcileInstallment(inst, receipts)
	if !rec.Balanced {
		logger.L(ctx).Warn("Installment out of balance with its receipts",
			zap.String("installment_id", installmentID.String()),
			zap.String("amount_paid", rec.AmountPaid.String()),
			zap.String("receipts_total", rec.ReceiptsTotal.String()),
		)
	}
	return &rec, nil
}

// Statement loads what a printed contract statement needs
func (s *ContractService) Statement(ctx context.Context, id uuid.UUID) (*ContractResponse, map[uuid.UUID][]ReceiptResponse, error) {
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	byInstallment := make(map[uuid.UUID][]ReceiptResponse)
	for _, inst := range contract.Installments {
		if inst.IsDeleted() {
			continue
		}
		receipts, err := s.receipts.FindByInstallment(ctx, inst.ID)
		if err != nil {
			return nil, nil, err
		}
		byInstallment[inst.ID] = ToReceiptResponses(receipts)
	}
	resp := ToContractResponse(contract, s.today())
	return &resp, byInstallment, nil
}
