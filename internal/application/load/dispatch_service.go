package load

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultDispatchDeadline bounds one adapter call
const DefaultDispatchDeadline = 30 * time.Second

// outcomeWriteTimeout bounds the ledger write that follows the provider call
const outcomeWriteTimeout = 10 * time.Second

// DispatchResult is what the caller of a dispatch learns synchronously
type DispatchResult struct {
	LedgerID      uuid.UUID
	Provider      string
	ProviderTxnID string
	Status        load.Status
	ReferenceCode string
	Error         string
}

// Accepted reports whether the provider took the request
func (r *DispatchResult) Accepted() bool {
	return r.Status.Is(load.StatusWait)
}

// DispatchServiceConfig holds configuration for the dispatch service
type DispatchServiceConfig struct {
	Catalog  *CatalogService
	Selector *Selector
	Ledger   load.LedgerRepository
	Metrics  Metrics
	Deadline time.Duration
	Logger   *zap.Logger
}

// DispatchService runs the synchronous half of a load: resolve, select,
// record, call the provider and finalize the ledger entry.
type DispatchService struct {
	catalog  *CatalogService
	selector *Selector
	ledger   load.LedgerRepository
	metrics  Metrics
	deadline time.Duration
	logger   *zap.Logger
}

// NewDispatchService creates a new DispatchService
func NewDispatchService(cfg DispatchServiceConfig) *DispatchService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = DefaultDispatchDeadline
	}
	return &DispatchService{
		catalog:  cfg.Catalog,
		selector: cfg.Selector,
		ledger:   cfg.Ledger,
		metrics:  metrics,
		deadline: deadline,
		logger:   logger,
	}
}

// Dispatch sends req to the best provider on behalf of user.
//
// Validation failures, unknown SKUs and a missing provider are returned as
// errors and leave no ledger entry. A provider rejection is a normal result
// with status REJECTED.
func (s *DispatchService) Dispatch(ctx context.Context, req load.LoadRequest, user string) (*DispatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", "load")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSKU, req.SKU,
		telemetry.SpanAttrSource, req.Source.String(),
	)

	if req.Source == "" {
		req.Source = load.SourceAPI
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	item, err := s.catalog.Resolve(ctx, req.Telco, req.SKU)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	adapter, ok := s.selector.Select(*item)
	if !ok {
		s.logger.Warn("No load provider available",
			zap.String("sku", req.SKU),
			zap.String("catalog_item", item.Code))
		s.metrics.NoProviderAvailable(req.SKU)
		return nil, load.ErrNoProviderAvailable
	}

	entry, err := load.NewLedgerEntry(req, *item, adapter.Name(), user)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Create(ctx, entry); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to record ledger entry: %w", err)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLedgerID, entry.ID.String(),
		telemetry.SpanAttrProvider, adapter.Name(),
	)

	s.logger.Info("Dispatching load",
		zap.String("ledger_id", entry.ID.String()),
		zap.String("provider", adapter.Name()),
		zap.String("sku", req.SKU),
		zap.String("target", req.Target()))

	// Once the entry exists the provider may move money, so the call and the
	// outcome write no longer follow the caller's cancellation.
	durable := context.WithoutCancel(ctx)

	start := time.Now()
	callCtx, cancel := context.WithTimeout(durable, s.deadline)
	outcome := adapter.Dispatch(callCtx, req, *item)
	cancel()
	elapsed := time.Since(start)

	if err := entry.ApplyOutcome(outcome); err != nil {
		return nil, err
	}

	result := &DispatchResult{
		LedgerID: entry.ID,
		Provider: adapter.Name(),
		Status:   entry.State,
	}

	if outcome.IsAccepted() {
		result.ProviderTxnID = outcome.ProviderTxnID()
		code, err := load.NewReferenceCode(adapter.Name(), outcome.ProviderTxnID())
		if err != nil {
			s.logger.Warn("Failed to build reference code",
				zap.String("ledger_id", entry.ID.String()),
				zap.String("provider_txn_id", outcome.ProviderTxnID()),
				zap.Error(err))
		} else {
			entry.AssignReference(code)
			result.ReferenceCode = code
		}
		s.metrics.DispatchCompleted(adapter.Name(), "accepted", elapsed)
	} else {
		result.Error = outcome.Reason()
		s.logger.Warn("Provider rejected load",
			zap.String("ledger_id", entry.ID.String()),
			zap.String("provider", adapter.Name()),
			zap.String("reason", outcome.Reason()))
		s.metrics.DispatchCompleted(adapter.Name(), "rejected", elapsed)
	}

	// A failed save does not change the outcome returned to the caller.
	saveCtx, cancelSave := context.WithTimeout(durable, outcomeWriteTimeout)
	defer cancelSave()
	if err := s.ledger.Save(saveCtx, entry); err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Failed to record dispatch outcome",
			zap.String("ledger_id", entry.ID.String()),
			zap.String("provider_txn_id", outcome.ProviderTxnID()),
			zap.Error(err))
	} else if outcome.IsAccepted() {
		telemetry.SetOK(span)
	}

	s.logger.Info("Load dispatched",
		zap.String("ledger_id", entry.ID.String()),
		zap.String("provider", adapter.Name()),
		zap.String("status", entry.State.String()),
		zap.String("reference_code", result.ReferenceCode),
		zap.Duration("elapsed", elapsed))
	telemetry.SetAttribute(span, telemetry.SpanAttrStatus, entry.State.String())

	return result, nil
}

// FindByReference returns the ledger entry behind a customer reference code
func (s *DispatchService) FindByReference(ctx context.Context, code string) (*load.LedgerEntry, error) {
	initial, txnID, err := load.ParseReferenceCode(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", load.ErrInvalidRequest, err)
	}
	adapter, ok := s.selector.ByInitial(initial)
	if !ok {
		return nil, load.ErrLedgerEntryNotFound
	}
	entry, err := s.ledger.FindByProviderTxn(ctx, adapter.Name(), txnID)
	if err != nil {
		if errors.Is(err, load.ErrLedgerEntryNotFound) {
			return nil, load.ErrLedgerEntryNotFound
		}
		return nil, fmt.Errorf("failed to find ledger entry: %w", err)
	}
	return entry, nil
}
