package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCatalogRepository implements load.CatalogRepository using GORM
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// ListByTelco returns items with their offers; TelcoNone lists every item
func (r *GormCatalogRepository) ListByTelco(ctx context.Context, telco load.Telco) ([]load.CatalogItem, error) {
	query := r.db.WithContext(ctx).Preload("Offers").Order("code ASC")
	if telco != load.TelcoNone {
		query = query.Where("telco = ?", int(telco))
	}

	var rows []models.CatalogItemModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]load.CatalogItem, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, nil
}

// Save validates and upserts an item, replacing its offers
func (r *GormCatalogRepository) Save(ctx context.Context, item *load.CatalogItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	model := models.CatalogItemModelFromDomain(item)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"code", "description", "type", "telco", "denom_min", "denom_max", "keywords", "updated_at"}),
			}).
			Create(model).Error; err != nil {
			return err
		}
		if err := tx.Where("catalog_item_id = ?", item.ID).Delete(&models.CatalogOfferModel{}).Error; err != nil {
			return err
		}
		if len(model.Offers) == 0 {
			return nil
		}
		return tx.Create(&model.Offers).Error
	})
}
