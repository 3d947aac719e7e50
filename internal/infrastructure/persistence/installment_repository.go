package persistence

import (
	"context"
	"errors"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInstallmentRepository implements finance.InstallmentRepository using GORM
type GormInstallmentRepository struct {
	db *gorm.DB
}

// NewGormInstallmentRepository creates a new GormInstallmentRepository
func NewGormInstallmentRepository(db *gorm.DB) *GormInstallmentRepository {
	return &GormInstallmentRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormInstallmentRepository) WithTx(tx *gorm.DB) *GormInstallmentRepository {
	return &GormInstallmentRepository{db: tx}
}

// FindByID finds a live installment by its ID
func (r *GormInstallmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Installment, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// LockByID finds a live installment and locks its row for the rest of the transaction
func (r *GormInstallmentRepository) LockByID(ctx context.Context, id uuid.UUID) (*finance.Installment, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormInstallmentRepository) find(db *gorm.DB, id uuid.UUID) (*finance.Installment, error) {
	var model models.InstallmentModel
	err := db.Where("id = ? AND lifecycle = ?", id, finance.LifecycleActive).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrInstallmentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByContract lists the live installments of a contract ordered by number
func (r *GormInstallmentRepository) FindByContract(ctx context.Context, contractID uuid.UUID) ([]*finance.Installment, error) {
	var rows []models.InstallmentModel
	if err := r.db.WithContext(ctx).
		Where("contract_id = ? AND lifecycle = ?", contractID, finance.LifecycleActive).
		Order("installment_no ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*finance.Installment, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a new installment
func (r *GormInstallmentRepository) Create(ctx context.Context, i *finance.Installment) error {
	return r.db.WithContext(ctx).Create(models.InstallmentModelFromDomain(i)).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormInstallmentRepository) SaveWithLock(ctx context.Context, i *finance.Installment) error {
	result := r.db.WithContext(ctx).
		Model(&models.InstallmentModel{}).
		Where("id = ? AND version = ?", i.ID, i.Version-1).
		Updates(map[string]interface{}{
			"due_date":      i.DueDate,
			"amount_due":    i.AmountDue,
			"amount_paid":   i.AmountPaid,
			"manual_status": i.ManualStatus,
			"note":          i.Note,
			"lifecycle":     i.Lifecycle,
			"deleted_at":    i.DeletedAt,
			"version":       i.Version,
			"updated_at":    i.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return finance.ErrConcurrentModification
	}
	return nil
}

var _ finance.InstallmentRepository = (*GormInstallmentRepository)(nil)
