package persistence

import (
	"context"

	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormQueryLogRepository implements load.QueryLogRepository using GORM
type GormQueryLogRepository struct {
	db *gorm.DB
}

// NewGormQueryLogRepository creates a new GormQueryLogRepository
func NewGormQueryLogRepository(db *gorm.DB) *GormQueryLogRepository {
	return &GormQueryLogRepository{db: db}
}

// Create stores an accepted query
func (r *GormQueryLogRepository) Create(ctx context.Context, log *load.QueryLog) error {
	return r.db.WithContext(ctx).Create(models.QueryLogModelFromDomain(log)).Error
}
