package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/domain/shared"
	"github.com/loadengine/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerRepository implements load.LedgerRepository using GORM.
// Entries live in load_transactions and their history in
// load_callback_records; history rows are only ever inserted.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Create inserts a new entry together with any records it already carries
func (r *GormLedgerRepository) Create(ctx context.Context, entry *load.LedgerEntry) error {
	model := models.LoadTransactionModelFromDomain(entry)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return r.appendRecords(tx, entry)
	})
	if err != nil {
		return err
	}
	entry.MarkPersisted()
	return nil
}

// Save writes the entry's current state guarded by its version and appends
// pending history records
func (r *GormLedgerRepository) Save(ctx context.Context, entry *load.LedgerEntry) error {
	model := models.LoadTransactionModelFromDomain(entry)
	model.Version = entry.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.LoadTransactionModel{}).
			Where("id = ? AND version = ?", entry.ID, entry.Version).
			Select("*").
			Omit("id", "created_at").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		return r.appendRecords(tx, entry)
	})
	if err != nil {
		return err
	}
	entry.IncrementVersion()
	entry.MarkPersisted()
	return nil
}

func (r *GormLedgerRepository) appendRecords(tx *gorm.DB, entry *load.LedgerEntry) error {
	pending := entry.PendingRecords()
	if len(pending) == 0 {
		return nil
	}
	rows := make([]*models.CallbackRecordModel, 0, len(pending))
	for _, rec := range pending {
		rows = append(rows, models.CallbackRecordModelFromDomain(entry.ID, rec))
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// FindByID finds an entry and its history by ledger id
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*load.LedgerEntry, error) {
	var model models.LoadTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, load.ErrLedgerEntryNotFound
		}
		return nil, err
	}
	return r.withHistory(ctx, &model)
}

// FindByProviderTxn finds the entry a provider transaction id was issued for
func (r *GormLedgerRepository) FindByProviderTxn(ctx context.Context, provider, providerTxnID string) (*load.LedgerEntry, error) {
	if providerTxnID == "" {
		return nil, load.ErrLedgerEntryNotFound
	}
	var model models.LoadTransactionModel
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_txn_id = ?", provider, providerTxnID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, load.ErrLedgerEntryNotFound
		}
		return nil, err
	}
	return r.withHistory(ctx, &model)
}

func (r *GormLedgerRepository) withHistory(ctx context.Context, model *models.LoadTransactionModel) (*load.LedgerEntry, error) {
	var rows []models.CallbackRecordModel
	if err := r.db.WithContext(ctx).
		Where("ledger_id = ?", model.ID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]load.CallbackRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	entry := model.ToDomain()
	entry.RestoreHistory(records)
	return entry, nil
}
