package persistence

import (
	"context"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormExchangeRateRepository reads and seeds the currencies table
type GormExchangeRateRepository struct {
	db *gorm.DB
}

// NewGormExchangeRateRepository creates a new GormExchangeRateRepository
func NewGormExchangeRateRepository(db *gorm.DB) *GormExchangeRateRepository {
	return &GormExchangeRateRepository{db: db}
}

// List returns every configured rate ordered by code
func (r *GormExchangeRateRepository) List(ctx context.Context) ([]finance.ExchangeRate, error) {
	var rows []models.ExchangeRateModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]finance.ExchangeRate, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Upsert inserts or replaces rates by currency code
func (r *GormExchangeRateRepository) Upsert(ctx context.Context, rates []finance.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]models.ExchangeRateModel, len(rates))
	for i, rate := range rates {
		rows[i] = models.ExchangeRateModel{
			Code:         rate.Currency,
			Name:         rate.Name,
			FixedRate:    rate.FixedRate,
			FloatingRate: rate.FloatingRate,
			UpdatedAt:    now,
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "fixed_rate", "floating_rate", "updated_at"}),
	}).Create(&rows).Error
}
