package load

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LedgerRepository persists ledger entries and their callback history
type LedgerRepository interface {
	// Create stores a new entry. It must complete before the provider is called.
	Create(ctx context.Context, entry *LedgerEntry) error

	// Save stores state changes and appends pending callback records. It fails
	// with shared.ErrConcurrencyConflict when the stored version moved on.
	Save(ctx context.Context, entry *LedgerEntry) error

	// FindByID returns ErrLedgerEntryNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)

	// FindByProviderTxn returns ErrLedgerEntryNotFound when absent
	FindByProviderTxn(ctx context.Context, provider, providerTxnID string) (*LedgerEntry, error)
}

// OrphanRepository stores callbacks that never correlated
type OrphanRepository interface {
	Create(ctx context.Context, orphan *OrphanRecord) error
	List(ctx context.Context, limit int) ([]OrphanRecord, error)
}

// CatalogRepository reads the load catalog
type CatalogRepository interface {
	// ListByTelco returns the items sold for telco; TelcoNone returns every item.
	ListByTelco(ctx context.Context, telco Telco) ([]CatalogItem, error)
	Save(ctx context.Context, item *CatalogItem) error
}

// QueryLog records an accepted free-text load query
type QueryLog struct {
	ID        uuid.UUID
	Query     string
	UserID    string
	Source    BotSource
	ExpiresAt time.Time
	CreatedAt time.Time
}

// QueryLogRepository stores accepted queries
type QueryLogRepository interface {
	Create(ctx context.Context, log *QueryLog) error
}
