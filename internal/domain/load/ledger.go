package load

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/shared"
)

// RecordOrigin tells which path appended a callback record
type RecordOrigin string

const (
	OriginDispatch RecordOrigin = "DISPATCH"
	OriginCallback RecordOrigin = "CALLBACK"
)

// CallbackRecord is one immutable entry in a ledger entry's history
type CallbackRecord struct {
	ID         uuid.UUID
	Seq        int
	ReceivedAt time.Time
	Origin     RecordOrigin
	Status     Status
	RawPayload []byte
}

// Transition describes the effect of applying a callback
type Transition struct {
	Previous Status
	Current  Status
	Changed  bool
	Record   CallbackRecord
}

// LedgerEntry is the durable record of one dispatch attempt.
//
// The entry behaves as an append-only event log: every mutation appends a
// CallbackRecord, and State is derived from the records applied so far.
// Terminal states are never left.
type LedgerEntry struct {
	shared.BaseAggregateRoot
	Request         LoadRequest
	CatalogItemID   uuid.UUID
	ProductCode     string
	OriginatingUser string
	Provider        string
	ProviderTxnID   string
	ReferenceCode   string
	RequestRaw      []byte
	ResponseRaw     []byte
	RejectReason    string
	State           Status

	history   []CallbackRecord
	persisted int
}

// NewLedgerEntry creates a CREATED entry for a request routed to provider
func NewLedgerEntry(req LoadRequest, item CatalogItem, provider, originatingUser string) (*LedgerEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if provider == "" {
		return nil, fmt.Errorf("%w: provider is required", ErrInvalidRequest)
	}
	offer, _ := item.OfferFor(provider)
	return &LedgerEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Request:           req,
		CatalogItemID:     item.ID,
		ProductCode:       offer.ProductCode,
		OriginatingUser:   originatingUser,
		Provider:          provider,
		State:             Known(StatusCreated),
	}, nil
}

// ApplyOutcome records the synchronous dispatch result. It is only valid on
// a CREATED entry.
func (e *LedgerEntry) ApplyOutcome(o Outcome) error {
	target := o.Status()
	if !e.State.Code().CanTransitionTo(target.Code()) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.State, target)
	}
	if o.IsAccepted() {
		e.ProviderTxnID = o.ProviderTxnID()
	} else {
		e.RejectReason = o.Reason()
	}
	if raw := o.RawRequest(); len(raw) > 0 {
		e.RequestRaw = raw
	}
	e.ResponseRaw = o.RawResponse()
	e.State = target
	e.append(OriginDispatch, target, o.RawResponse(), time.Now().UTC())
	e.Touch()
	return nil
}

// AssignReference stores the customer-facing reference code
func (e *LedgerEntry) AssignReference(code string) {
	e.ReferenceCode = code
	e.Touch()
}

// ApplyCallback appends a callback record and moves the entry to status when
// the transition is allowed. A terminal entry keeps its state, so a repeated
// callback only grows the history.
func (e *LedgerEntry) ApplyCallback(status Status, raw []byte, receivedAt time.Time) Transition {
	prev := e.State
	record := e.append(OriginCallback, status, raw, receivedAt)
	if prev.Code().CanTransitionTo(status.Code()) {
		e.State = status
	}
	e.Touch()
	return Transition{
		Previous: prev,
		Current:  e.State,
		Changed:  prev != e.State,
		Record:   record,
	}
}

// History returns a copy of the callback records in receipt order
func (e *LedgerEntry) History() []CallbackRecord {
	out := make([]CallbackRecord, len(e.history))
	copy(out, e.history)
	return out
}

// PendingRecords returns records appended since the entry was loaded or last saved
func (e *LedgerEntry) PendingRecords() []CallbackRecord {
	out := make([]CallbackRecord, len(e.history)-e.persisted)
	copy(out, e.history[e.persisted:])
	return out
}

// MarkPersisted is called by repositories once pending records are stored
func (e *LedgerEntry) MarkPersisted() {
	e.persisted = len(e.history)
}

// RestoreHistory loads stored records into an entry read from a repository
func (e *LedgerEntry) RestoreHistory(records []CallbackRecord) {
	e.history = make([]CallbackRecord, len(records))
	copy(e.history, records)
	e.persisted = len(e.history)
}

func (e *LedgerEntry) append(origin RecordOrigin, status Status, raw []byte, at time.Time) CallbackRecord {
	record := CallbackRecord{
		ID:         uuid.New(),
		Seq:        len(e.history) + 1,
		ReceivedAt: at,
		Origin:     origin,
		Status:     status,
		RawPayload: raw,
	}
	e.history = append(e.history, record)
	return record
}

// OrphanRecord keeps a callback that could not be correlated to any ledger
// entry. It is written once and never updated.
type OrphanRecord struct {
	ID            uuid.UUID
	Provider      string
	ProviderTxnID string
	Reason        string
	RawPayload    []byte
	CreatedAt     time.Time
}

// NewOrphanRecord creates an orphan record for a payload
func NewOrphanRecord(provider, providerTxnID, reason string, raw []byte) *OrphanRecord {
	return &OrphanRecord{
		ID:            uuid.New(),
		Provider:      provider,
		ProviderTxnID: providerTxnID,
		Reason:        reason,
		RawPayload:    raw,
		CreatedAt:     time.Now().UTC(),
	}
}
