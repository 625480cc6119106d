package persistence

import (
	"context"

	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const defaultOrphanListLimit = 100

// GormOrphanRepository implements load.OrphanRepository using GORM
type GormOrphanRepository struct {
	db *gorm.DB
}

// NewGormOrphanRepository creates a new GormOrphanRepository
func NewGormOrphanRepository(db *gorm.DB) *GormOrphanRepository {
	return &GormOrphanRepository{db: db}
}

// Create stores an orphan callback
func (r *GormOrphanRepository) Create(ctx context.Context, orphan *load.OrphanRecord) error {
	return r.db.WithContext(ctx).Create(models.OrphanCallbackModelFromDomain(orphan)).Error
}

// List returns the most recent orphans first
func (r *GormOrphanRepository) List(ctx context.Context, limit int) ([]load.OrphanRecord, error) {
	if limit <= 0 {
		limit = defaultOrphanListLimit
	}
	var rows []models.OrphanCallbackModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]load.OrphanRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
