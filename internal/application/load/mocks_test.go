package load

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Provider adapter
// =============================================================================

type MockAdapter struct {
	mock.Mock
	name     string
	priority int
}

func newMockAdapter(name string, priority int) *MockAdapter {
	return &MockAdapter{name: name, priority: priority}
}

func (m *MockAdapter) Name() string  { return m.name }
func (m *MockAdapter) Priority() int { return m.priority }

func (m *MockAdapter) Dispatch(ctx context.Context, req load.LoadRequest, item load.CatalogItem) load.Outcome {
	args := m.Called(ctx, req, item)
	return args.Get(0).(load.Outcome)
}

// =============================================================================
// Repositories
// =============================================================================

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *load.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) Save(ctx context.Context, entry *load.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*load.LedgerEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*load.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) FindByProviderTxn(ctx context.Context, provider, providerTxnID string) (*load.LedgerEntry, error) {
	args := m.Called(ctx, provider, providerTxnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*load.LedgerEntry), args.Error(1)
}

type MockOrphanRepository struct {
	mock.Mock
}

func (m *MockOrphanRepository) Create(ctx context.Context, orphan *load.OrphanRecord) error {
	args := m.Called(ctx, orphan)
	return args.Error(0)
}

func (m *MockOrphanRepository) List(ctx context.Context, limit int) ([]load.OrphanRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]load.OrphanRecord), args.Error(1)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) ListByTelco(ctx context.Context, telco load.Telco) ([]load.CatalogItem, error) {
	args := m.Called(ctx, telco)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]load.CatalogItem), args.Error(1)
}

func (m *MockCatalogRepository) Save(ctx context.Context, item *load.CatalogItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

type MockQueryLogRepository struct {
	mock.Mock
}

func (m *MockQueryLogRepository) Create(ctx context.Context, log *load.QueryLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

// =============================================================================
// Collaborators
// =============================================================================

type MockNotifications struct {
	mock.Mock
}

func (m *MockNotifications) NotifyRequester(ctx context.Context, entry *load.LedgerEntry, status load.Status, pin string) error {
	args := m.Called(ctx, entry, status, pin)
	return args.Error(0)
}

func (m *MockNotifications) NotifyCustomer(ctx context.Context, entry *load.LedgerEntry, status load.Status, pin string) error {
	args := m.Called(ctx, entry, status, pin)
	return args.Error(0)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, mobile, text string) error {
	args := m.Called(ctx, mobile, text)
	return args.Error(0)
}

type MockBotMessenger struct {
	mock.Mock
}

func (m *MockBotMessenger) Deliver(ctx context.Context, source load.BotSource, recipient, text string) error {
	args := m.Called(ctx, source, recipient, text)
	return args.Error(0)
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetUser(ctx context.Context, userID string) (load.UserProfile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(load.UserProfile), args.Error(1)
}

type MockNumberValidator struct {
	mock.Mock
}

func (m *MockNumberValidator) Parse(number string) (load.NumberInfo, error) {
	args := m.Called(number)
	return args.Get(0).(load.NumberInfo), args.Error(1)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// =============================================================================
// In-memory ledger
// =============================================================================

// memoryLedger is a LedgerRepository that copies entries in and out, so
// tests observe the same optimistic version behavior as a database.
type memoryLedger struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*load.LedgerEntry
	records map[uuid.UUID][]load.CallbackRecord
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		entries: make(map[uuid.UUID]*load.LedgerEntry),
		records: make(map[uuid.UUID][]load.CallbackRecord),
	}
}

func (l *memoryLedger) Create(_ context.Context, entry *load.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store(entry)
	return nil
}

func (l *memoryLedger) Save(_ context.Context, entry *load.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.entries[entry.ID]
	if !ok {
		return load.ErrLedgerEntryNotFound
	}
	if current.Version != entry.Version {
		return shared.ErrConcurrencyConflict
	}
	entry.IncrementVersion()
	l.store(entry)
	return nil
}

func (l *memoryLedger) store(entry *load.LedgerEntry) {
	l.records[entry.ID] = append(l.records[entry.ID], entry.PendingRecords()...)
	entry.MarkPersisted()
	cp := *entry
	cp.RestoreHistory(l.records[entry.ID])
	l.entries[entry.ID] = &cp
}

func (l *memoryLedger) FindByID(_ context.Context, id uuid.UUID) (*load.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return nil, load.ErrLedgerEntryNotFound
	}
	cp := *e
	cp.RestoreHistory(l.records[id])
	return &cp, nil
}

func (l *memoryLedger) FindByProviderTxn(ctx context.Context, provider, providerTxnID string) (*load.LedgerEntry, error) {
	l.mu.Lock()
	var id uuid.UUID
	for _, e := range l.entries {
		if e.Provider == provider && e.ProviderTxnID == providerTxnID {
			id = e.ID
			break
		}
	}
	l.mu.Unlock()
	if id == uuid.Nil {
		return nil, load.ErrLedgerEntryNotFound
	}
	return l.FindByID(ctx, id)
}

type memoryOrphans struct {
	mu      sync.Mutex
	records []load.OrphanRecord
}

func (o *memoryOrphans) Create(_ context.Context, orphan *load.OrphanRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, *orphan)
	return nil
}

func (o *memoryOrphans) List(_ context.Context, limit int) ([]load.OrphanRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if limit <= 0 || limit > len(o.records) {
		limit = len(o.records)
	}
	out := make([]load.OrphanRecord, limit)
	copy(out, o.records[:limit])
	return out, nil
}
