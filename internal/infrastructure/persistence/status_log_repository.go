package persistence

import (
	"context"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStatusLogRepository implements finance.StatusLogRepository using GORM
type GormStatusLogRepository struct {
	db *gorm.DB
}

// NewGormStatusLogRepository creates a new GormStatusLogRepository
func NewGormStatusLogRepository(db *gorm.DB) *GormStatusLogRepository {
	return &GormStatusLogRepository{db: db}
}

// Create appends a status change log
func (r *GormStatusLogRepository) Create(ctx context.Context, log *finance.StatusChangeLog) error {
	return r.db.WithContext(ctx).Create(models.StatusChangeLogModelFromDomain(log)).Error
}

var _ finance.StatusLogRepository = (*GormStatusLogRepository)(nil)
