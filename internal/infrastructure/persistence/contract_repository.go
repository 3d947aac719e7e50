package persistence

import (
	"context"
	"errors"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormContractRepository implements finance.ContractRepository using GORM
type GormContractRepository struct {
	db *gorm.DB
}

// NewGormContractRepository creates a new GormContractRepository
func NewGormContractRepository(db *gorm.DB) *GormContractRepository {
	return &GormContractRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormContractRepository) WithTx(tx *gorm.DB) *GormContractRepository {
	return &GormContractRepository{db: tx}
}

// FindByID loads a live contract with its live installments ordered by number
func (r *GormContractRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Contract, error) {
	var model models.ContractModel
	err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Where("lifecycle = ?", finance.LifecycleActive).Order("installment_no ASC")
		}).
		Where("id = ? AND lifecycle = ?", id, finance.LifecycleActive).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrContractNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// LockByID takes the contract row lock, then loads the contract as FindByID does
func (r *GormContractRepository) LockByID(ctx context.Context, id uuid.UUID) (*finance.Contract, error) {
	var row models.ContractModel
	err := forUpdate(r.db.WithContext(ctx)).
		Select("id").
		Where("id = ? AND lifecycle = ?", id, finance.LifecycleActive).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, finance.ErrContractNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// ExistsByContractNo checks contract number uniqueness, deleted contracts included
func (r *GormContractRepository) ExistsByContractNo(ctx context.Context, contractNo string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ContractModel{}).
		Where("contract_no = ?", contractNo).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts the contract row followed by its installments
func (r *GormContractRepository) Create(ctx context.Context, c *finance.Contract) error {
	model := models.ContractModelFromDomain(c)
	if err := r.db.WithContext(ctx).Omit("Installments").Create(model).Error; err != nil {
		return err
	}
	if len(c.Installments) == 0 {
		return nil
	}
	rows := make([]*models.InstallmentModel, 0, len(c.Installments))
	for _, i := range c.Installments {
		rows = append(rows, models.InstallmentModelFromDomain(i))
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormContractRepository) SaveWithLock(ctx context.Context, c *finance.Contract) error {
	result := r.db.WithContext(ctx).
		Model(&models.ContractModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version-1).
		Updates(map[string]interface{}{
			"title":                 c.Title,
			"gross_amount":          c.GrossAmount,
			"discount_type":         c.Discount.Type,
			"discount_value":        c.Discount.Value,
			"discount_participates": c.Discount.Participates,
			"net_amount":            c.NetAmount,
			"status":                c.Status,
			"manual_status":         c.ManualStatus,
			"lifecycle":             c.Lifecycle,
			"deleted_at":            c.DeletedAt,
			"version":               c.Version,
			"updated_at":            c.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return finance.ErrConcurrentModification
	}
	return nil
}

var _ finance.ContractRepository = (*GormContractRepository)(nil)
