package integration

import (
	"context"
	"testing"
	"time"

	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/domain/shared"
	"github.com/loadengine/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAcceptedEntry(t *testing.T, txn string) *load.LedgerEntry {
	t.Helper()
	entry, err := load.NewLedgerEntry(
		load.LoadRequest{Mobile: "09171234567", SKU: "promo1", Telco: load.TelcoGlobe, Source: load.SourceSMS},
		load.CatalogItem{Code: "GOSURF50"},
		load.ProviderGlobeLabs,
		"user-1",
	)
	require.NoError(t, err)
	require.NoError(t, entry.ApplyOutcome(load.Accepted(txn, []byte(`{"outboundRewardRequest":{"transaction_id":`+txn+`}}`))))
	return entry
}

func TestLedgerRepository_Postgres(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormLedgerRepository(tdb.DB)
	ctx := context.Background()

	t.Run("round trips an entry with history and raw bodies", func(t *testing.T) {
		tdb.CleanTables()
		entry := newAcceptedEntry(t, "5001")
		require.NoError(t, repo.Create(ctx, entry))

		found, err := repo.FindByProviderTxn(ctx, load.ProviderGlobeLabs, "5001")
		require.NoError(t, err)
		assert.Equal(t, entry.ID, found.ID)
		assert.True(t, found.State.Is(load.StatusWait))
		assert.JSONEq(t, `{"outboundRewardRequest":{"transaction_id":5001}}`, string(found.ResponseRaw))
		require.Len(t, found.History(), 1)
	})

	t.Run("provider transaction ids are unique per provider", func(t *testing.T) {
		tdb.CleanTables()
		require.NoError(t, repo.Create(ctx, newAcceptedEntry(t, "5002")))
		assert.Error(t, repo.Create(ctx, newAcceptedEntry(t, "5002")))
	})

	t.Run("stale saves are rejected", func(t *testing.T) {
		tdb.CleanTables()
		entry := newAcceptedEntry(t, "5003")
		require.NoError(t, repo.Create(ctx, entry))

		first, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)

		first.ApplyCallback(load.Known(load.StatusDelivered), []byte(`{}`), time.Now())
		require.NoError(t, repo.Save(ctx, first))

		second.ApplyCallback(load.Known(load.StatusUndelivered), []byte(`{}`), time.Now())
		assert.ErrorIs(t, repo.Save(ctx, second), shared.ErrConcurrencyConflict)

		stored, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, stored.State.Is(load.StatusDelivered))
		assert.Len(t, stored.History(), 2)
	})

	t.Run("unknown statuses keep the provider value", func(t *testing.T) {
		tdb.CleanTables()
		entry := newAcceptedEntry(t, "5004")
		require.NoError(t, repo.Create(ctx, entry))

		entry.ApplyCallback(load.Unknown("PENDING_OPERATOR"), []byte(`"plain text body"`), time.Now())
		require.NoError(t, repo.Save(ctx, entry))

		stored, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.False(t, stored.State.IsKnown())
		assert.Equal(t, "PENDING_OPERATOR", stored.State.Raw())
	})
}

func TestOrphanRepository_Postgres(t *testing.T) {
	tdb := NewTestDB(t)
	repo := persistence.NewGormOrphanRepository(tdb.DB)
	ctx := context.Background()

	for _, txn := range []string{"1", "2", "3"} {
		require.NoError(t, repo.Create(ctx, load.NewOrphanRecord(load.ProviderDTOne, txn, "no ledger entry", []byte(`{"id":`+txn+`}`))))
		time.Sleep(2 * time.Millisecond)
	}

	orphans, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	assert.Equal(t, "3", orphans[0].ProviderTxnID)
	assert.JSONEq(t, `{"id":3}`, string(orphans[0].RawPayload))
}
