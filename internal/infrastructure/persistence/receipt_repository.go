package persistence

import (
	"context"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReceiptRepository implements finance.ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormReceiptRepository) WithTx(tx *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: tx}
}

// Create appends a receipt
func (r *GormReceiptRepository) Create(ctx context.Context, receipt *finance.Receipt) error {
	return r.db.WithContext(ctx).Create(models.ReceiptModelFromDomain(receipt)).Error
}

// FindByInstallment lists receipts of an installment, oldest first
func (r *GormReceiptRepository) FindByInstallment(ctx context.Context, installmentID uuid.UUID) ([]*finance.Receipt, error) {
	var rows []models.ReceiptModel
	if err := r.db.WithContext(ctx).
		Where("installment_id = ?", installmentID).
		Order("received_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*finance.Receipt, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// SumAppliedByInstallment returns the total applied amount of an installment's receipts
func (r *GormReceiptRepository) SumAppliedByInstallment(ctx context.Context, installmentID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.ReceiptModel{}).
		Select("SUM(applied_amount)").
		Where("installment_id = ?", installmentID).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// DeleteByContract removes all receipts of a contract; used by the cascading delete
func (r *GormReceiptRepository) DeleteByContract(ctx context.Context, contractID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("contract_id = ?", contractID).Delete(&models.ReceiptModel{})
	return result.RowsAffected, result.Error
}

var _ finance.ReceiptRepository = (*GormReceiptRepository)(nil)
