package finance

import (
	"context"
	"strings"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusService applies manual status overrides. Every override is written
// together with its StatusChangeLog in one transaction.
type StatusService struct {
	txScope        TransactionScope
	clock          shared.Clock
	eventPublisher shared.EventPublisher
}

// NewStatusService creates a new StatusService
func NewStatusService(txScope TransactionScope, clock shared.Clock) *StatusService {
	return &StatusService{txScope: txScope, clock: clock}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StatusService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// UpdateInstallmentStatus sets the manual status of an installment to pending
// or dunning, or clears it with an empty status. Payment facts still win when
// the status is resolved.
func (s *StatusService) UpdateInstallmentStatus(ctx context.Context, installmentID uuid.UUID, req UpdateInstallmentStatusRequest, actorID *uuid.UUID) (*StatusChangeResponse, error) {
	status := finance.InstallmentStatus(strings.TrimSpace(req.Status))
	if status != "" && !status.IsValid() {
		return nil, finance.ErrInvalidStatus
	}
	today := finance.DateOf(s.clock.Now())

	var (
		log    *finance.StatusChangeLog
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		contract, inst, err := lockInstallment(ctx, repos, installmentID)
		if err != nil {
			return err
		}
		log, err = contract.SetInstallmentStatus(installmentID, status, req.Reason, actorID, today)
		if err != nil {
			return err
		}
		if err := repos.Installments().SaveWithLock(ctx, inst); err != nil {
			return err
		}
		if err := repos.StatusLogs().Create(ctx, log); err != nil {
			return err
		}
		events = contract.GetDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("Installment status overridden",
		zap.String("installment_id", installmentID.String()),
		zap.String("old_status", log.OldStatus),
		zap.String("new_status", log.NewStatus),
	)
	s.publish(ctx, events)
	resp := toStatusChangeResponse(log)
	return &resp, nil
}

// UpdateContractStatus sets a free-form contract status override, or clears it
// with an empty status
func (s *StatusService) UpdateContractStatus(ctx context.Context, contractID uuid.UUID, req UpdateContractStatusRequest, actorID *uuid.UUID) (*StatusChangeResponse, error) {
	var (
		log    *finance.StatusChangeLog
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		contract, err := repos.Contracts().LockByID(ctx, contractID)
		if err != nil {
			return err
		}
		log, err = contract.SetManualStatus(req.Status, req.Reason, actorID)
		if err != nil {
			return err
		}
		if err := repos.Contracts().SaveWithLock(ctx, contract); err != nil {
			return err
		}
		if err := repos.StatusLogs().Create(ctx, log); err != nil {
			return err
		}
		events = contract.GetDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("Contract status overridden",
		zap.String("contract_id", contractID.String()),
		zap.String("old_status", log.OldStatus),
		zap.String("new_status", log.NewStatus),
	)
	s.publish(ctx, events)
	resp := toStatusChangeResponse(log)
	return &resp, nil
}

func (s *StatusService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("Failed to publish status events", zap.Error(err))
	}
}
