package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/domain/shared"
	"github.com/loadengine/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLoadTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// one connection so every query sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.LoadTransactionModel{},
		&models.CallbackRecordModel{},
		&models.OrphanCallbackModel{},
		&models.CatalogItemModel{},
		&models.CatalogOfferModel{},
		&models.QueryLogModel{},
	)
	require.NoError(t, err)
	return db
}

func testCatalogItem() load.CatalogItem {
	return load.CatalogItem{
		Code:     "promo1",
		Type:     load.SkuTypeBundle,
		Telco:    load.TelcoGlobe,
		Keywords: []string{"promo1", "p1"},
		Offers: []load.Offer{
			{ProviderName: load.ProviderDTOne, ProductCode: "9001", WholesaleDiscount: decimal.RequireFromString("6.5")},
			{ProviderName: load.ProviderGlobeLabs, ProductCode: "LOAD50", WholesaleDiscount: decimal.NewFromInt(4)},
		},
	}
}

func newTestEntry(t *testing.T) *load.LedgerEntry {
	t.Helper()
	entry, err := load.NewLedgerEntry(load.LoadRequest{
		SKU:     "promo1",
		Mobile:  "09171234567",
		Telco:   load.TelcoGlobe,
		Source:  load.SourceTelegram,
		SendAck: true,
	}, testCatalogItem(), load.ProviderDTOne, "user-1")
	require.NoError(t, err)
	return entry
}

func TestGormLedgerRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(setupLoadTestDB(t))

	entry := newTestEntry(t)
	require.NoError(t, repo.Create(ctx, entry))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.State.Is(load.StatusCreated))
	assert.Equal(t, "9001", stored.ProductCode)
	assert.Equal(t, load.SourceTelegram, stored.Request.Source)
	assert.True(t, stored.Request.SendAck)
	assert.Empty(t, stored.History())

	require.NoError(t, stored.ApplyOutcome(load.Accepted("123456", []byte(`{"id":123456}`)).WithRequest([]byte(`{"product_id":9001}`))))
	stored.AssignReference("D3RJ0")
	require.NoError(t, repo.Save(ctx, stored))
	assert.Equal(t, 2, stored.Version)

	found, err := repo.FindByProviderTxn(ctx, load.ProviderDTOne, "123456")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, found.ID)
	assert.True(t, found.State.Is(load.StatusWait))
	assert.Equal(t, "D3RJ0", found.ReferenceCode)
	assert.JSONEq(t, `{"product_id":9001}`, string(found.RequestRaw))
	require.Len(t, found.History(), 1)
	assert.Equal(t, load.OriginDispatch, found.History()[0].Origin)

	tr := found.ApplyCallback(load.Known(load.StatusDelivered), []byte(`{"status":{"id":7000}}`), time.Now().UTC())
	assert.True(t, tr.Changed)
	require.NoError(t, repo.Save(ctx, found))

	final, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, final.State.Is(load.StatusDelivered))
	assert.Equal(t, 3, final.Version)
	history := final.History()
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Seq)
	assert.Equal(t, 2, history[1].Seq)
	assert.Equal(t, load.OriginCallback, history[1].Origin)
}

func TestGormLedgerRepository_ConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(setupLoadTestDB(t))

	entry := newTestEntry(t)
	require.NoError(t, entry.ApplyOutcome(load.Accepted("42", nil)))
	require.NoError(t, repo.Create(ctx, entry))

	first, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)

	first.ApplyCallback(load.Known(load.StatusDelivered), nil, time.Now().UTC())
	require.NoError(t, repo.Save(ctx, first))

	second.ApplyCallback(load.Known(load.StatusRejected), nil, time.Now().UTC())
	err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.State.Is(load.StatusDelivered))
	assert.Len(t, stored.History(), 2)
}

func TestGormLedgerRepository_UnknownStatusAndPayloads(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(setupLoadTestDB(t))

	entry := newTestEntry(t)
	require.NoError(t, entry.ApplyOutcome(load.Rejected("maintenance", []byte("<html>503</html>"))))
	require.NoError(t, repo.Create(ctx, entry))

	stored, err := repo.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "maintenance", stored.RejectReason)
	assert.JSONEq(t, `"<html>503</html>"`, string(stored.ResponseRaw))

	waiting := newTestEntry(t)
	require.NoError(t, waiting.ApplyOutcome(load.Accepted("77", nil)))
	waiting.ApplyCallback(load.Unknown("SUBMITTED"), []byte(`{}`), time.Now().UTC())
	require.NoError(t, repo.Create(ctx, waiting))

	found, err := repo.FindByProviderTxn(ctx, load.ProviderDTOne, "77")
	require.NoError(t, err)
	assert.False(t, found.State.IsKnown())
	assert.Equal(t, "SUBMITTED", found.State.Raw())
	assert.Equal(t, "SUBMITTED", found.History()[1].Status.Raw())
}

func TestGormLedgerRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewGormLedgerRepository(setupLoadTestDB(t))

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, load.ErrLedgerEntryNotFound)

	_, err = repo.FindByProviderTxn(ctx, load.ProviderDTOne, "missing")
	assert.ErrorIs(t, err, load.ErrLedgerEntryNotFound)

	_, err = repo.FindByProviderTxn(ctx, load.ProviderDTOne, "")
	assert.ErrorIs(t, err, load.ErrLedgerEntryNotFound)
}

func TestGormCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCatalogRepository(setupLoadTestDB(t))

	item := testCatalogItem()
	require.NoError(t, repo.Save(ctx, &item))
	assert.NotEqual(t, uuid.Nil, item.ID)

	smart := load.CatalogItem{
		Code:         "smart-any",
		Type:         load.SkuTypeRanged,
		Telco:        load.TelcoSmart,
		Denomination: load.Denomination{Min: 10, Max: 1000},
		Offers:       []load.Offer{{ProviderName: load.ProviderDTOne, ProductCode: "3001", WholesaleDiscount: decimal.NewFromInt(2)}},
	}
	require.NoError(t, repo.Save(ctx, &smart))

	globe, err := repo.ListByTelco(ctx, load.TelcoGlobe)
	require.NoError(t, err)
	require.Len(t, globe, 1)
	assert.Equal(t, []string{"promo1", "p1"}, globe[0].Keywords)
	require.Len(t, globe[0].Offers, 2)
	offer, ok := globe[0].OfferFor(load.ProviderDTOne)
	require.True(t, ok)
	assert.True(t, offer.WholesaleDiscount.Equal(decimal.RequireFromString("6.5")))

	all, err := repo.ListByTelco(ctx, load.TelcoNone)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// offers are replaced on save
	item.Offers = item.Offers[:1]
	item.Description = "Promo 1"
	require.NoError(t, repo.Save(ctx, &item))
	globe, err = repo.ListByTelco(ctx, load.TelcoGlobe)
	require.NoError(t, err)
	require.Len(t, globe, 1)
	assert.Equal(t, "Promo 1", globe[0].Description)
	assert.Len(t, globe[0].Offers, 1)

	bad := testCatalogItem()
	bad.Offers = append(bad.Offers, load.Offer{ProviderName: "dtone", ProductCode: "x"})
	assert.ErrorIs(t, repo.Save(ctx, &bad), load.ErrDuplicateOffer)
}

func TestGormOrphanAndQueryLogRepositories(t *testing.T) {
	ctx := context.Background()
	db := setupLoadTestDB(t)
	orphans := NewGormOrphanRepository(db)
	queries := NewGormQueryLogRepository(db)

	first := load.NewOrphanRecord(load.ProviderDTOne, "1", "no match", []byte(`{"id":1}`))
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, orphans.Create(ctx, first))
	require.NoError(t, orphans.Create(ctx, load.NewOrphanRecord(load.ProviderGlobeLabs, "", "unresolvable", []byte("garbage"))))

	list, err := orphans.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, load.ProviderGlobeLabs, list[0].Provider)
	assert.JSONEq(t, `{"id":1}`, string(list[1].RawPayload))

	limited, err := orphans.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	now := time.Now().UTC()
	require.NoError(t, queries.Create(ctx, &load.QueryLog{
		ID: uuid.New(), Query: "promo1 09171234567", UserID: "user-1", Source: load.SourceAPI,
		ExpiresAt: now.Add(30 * time.Minute), CreatedAt: now,
	}))
	var count int64
	require.NoError(t, db.Model(&models.QueryLogModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormLedgerRepository_SaveSQL(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	repo := NewGormLedgerRepository(gormDB)

	entry := newTestEntry(t)
	entry.MarkPersisted()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "load_transactions" SET .* WHERE .*id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.Save(context.Background(), entry)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, entry.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
