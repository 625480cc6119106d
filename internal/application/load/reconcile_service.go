package load

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Correlation retry defaults
const (
	DefaultRetryBaseDelay  = 3 * time.Second
	DefaultRetryJitter     = 0.2
	DefaultRetryAttempts   = 5
	DefaultRetryMaxElapsed = 2 * time.Minute
)

// Orphan kinds, used as the metrics label
const (
	OrphanUnresolvable = "unresolvable"
	OrphanUncorrelated = "uncorrelated"
	OrphanPanic        = "panic"
)

// ErrCallbackOrphaned is returned by Reconcile when the callback was stored
// as an orphan record instead of being applied.
var ErrCallbackOrphaned = errors.New("reconcile: callback orphaned")

// RetryPolicy shapes the correlation retry schedule
type RetryPolicy struct {
	BaseDelay  time.Duration
	Jitter     float64
	Attempts   int
	MaxElapsed time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryBaseDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = DefaultRetryJitter
	}
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryAttempts
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = DefaultRetryMaxElapsed
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.BaseDelay),
		backoff.WithRandomizationFactor(p.Jitter),
		backoff.WithMultiplier(2),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
	)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx)
}

// CallbackReconcilerConfig holds configuration for the reconciler
type CallbackReconcilerConfig struct {
	Ledger        load.LedgerRepository
	Orphans       load.OrphanRepository
	Notifications Notifications
	Retry         RetryPolicy
	Metrics       Metrics
	Logger        *zap.Logger
}

// CallbackReconciler applies provider callbacks to ledger entries.
//
// Accept acknowledges immediately and reconciles in a supervised goroutine.
// A callback that cannot be correlated after the retry budget, or whose
// handling panics, is kept as an orphan record.
type CallbackReconciler struct {
	ledger        load.LedgerRepository
	orphans       load.OrphanRepository
	notifications Notifications
	retry         RetryPolicy
	metrics       Metrics
	logger        *zap.Logger

	wg sync.WaitGroup
}

// NewCallbackReconciler creates a new CallbackReconciler
func NewCallbackReconciler(cfg CallbackReconcilerConfig) *CallbackReconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &CallbackReconciler{
		ledger:        cfg.Ledger,
		orphans:       cfg.Orphans,
		notifications: cfg.Notifications,
		retry:         cfg.Retry.withDefaults(),
		metrics:       metrics,
		logger:        logger,
	}
}

// Accept takes ownership of a callback payload and returns once the work is
// scheduled. Payloads that cannot be resolved are stored as orphans right
// away. Accept never reports failure to the webhook caller.
func (r *CallbackReconciler) Accept(ctx context.Context, payload load.CallbackPayload) {
	// Reconciliation outlives the inbound request.
	bg := context.WithoutCancel(ctx)

	cb, err := payload.Resolve()
	if err != nil {
		r.logger.Error("Unresolvable provider callback",
			zap.String("kind", string(payload.Kind())),
			zap.Error(err))
		r.captureOrphan(bg, load.ResolvedCallback{Provider: string(payload.Kind()), Raw: payload.RawPayload()}, OrphanUnresolvable, err.Error())
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("Panic while reconciling callback",
					zap.String("provider", cb.Provider),
					zap.String("provider_txn_id", cb.ProviderTxnID),
					zap.Any("panic", p))
				r.captureOrphan(bg, cb, OrphanPanic, fmt.Sprintf("panic: %v", p))
			}
		}()
		_ = r.Reconcile(bg, cb)
	}()
}

// AcceptMalformed stores a callback body that failed to decode as an
// unresolvable orphan so it can still be reconciled by hand.
func (r *CallbackReconciler) AcceptMalformed(ctx context.Context, kind load.CallbackKind, raw []byte, cause error) {
	reason := "malformed payload"
	if cause != nil {
		reason = "malformed payload: " + cause.Error()
	}
	r.captureOrphan(ctx, load.ResolvedCallback{Provider: string(kind), Raw: raw}, OrphanUnresolvable, reason)
}

// Wait blocks until every callback accepted so far has been handled
func (r *CallbackReconciler) Wait() {
	r.wg.Wait()
}

type applied struct {
	entry      *load.LedgerEntry
	transition load.Transition
}

// Reconcile correlates cb with its ledger entry, retrying on a missing entry,
// a storage error or a concurrent update, then applies it and notifies.
func (r *CallbackReconciler) Reconcile(ctx context.Context, cb load.ResolvedCallback) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "callback", "reconcile")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProvider, cb.Provider,
		telemetry.SpanAttrProviderTxnID, cb.ProviderTxnID,
		telemetry.SpanAttrStatus, cb.Status.String(),
	)

	r.logger.Info("Provider callback received",
		zap.String("provider", cb.Provider),
		zap.String("provider_txn_id", cb.ProviderTxnID),
		zap.String("status", cb.Status.String()),
		zap.String("raw_status", cb.RawStatus))
	r.metrics.CallbackReceived(cb.Provider, cb.Status.Code().Short())

	receivedAt := time.Now().UTC()
	attempt := 0
	op := func() (applied, error) {
		attempt++
		entry, err := r.ledger.FindByProviderTxn(ctx, cb.Provider, cb.ProviderTxnID)
		if err != nil {
			return applied{}, err
		}
		tr := entry.ApplyCallback(cb.Status, cb.Raw, receivedAt)
		if err := r.ledger.Save(ctx, entry); err != nil {
			return applied{}, err
		}
		return applied{entry: entry, transition: tr}, nil
	}
	notify := func(err error, next time.Duration) {
		r.metrics.CorrelationRetried(cb.Provider)
		telemetry.AddEvent(span, "correlation_retry",
			telemetry.SpanAttrAttempt, attempt,
			"next_delay", next.String(),
		)
		r.logger.Warn("Callback correlation failed, retrying",
			zap.String("provider", cb.Provider),
			zap.String("provider_txn_id", cb.ProviderTxnID),
			zap.Int("attempt", attempt),
			zap.Duration("next_delay", next),
			zap.Error(err))
	}

	result, err := backoff.RetryNotifyWithData(op, r.retry.backOff(ctx), notify)
	if err != nil {
		telemetry.RecordError(span, err)
		r.captureOrphan(ctx, cb, OrphanUncorrelated, fmt.Sprintf("correlation failed after %d attempts: %v", attempt, err))
		return fmt.Errorf("%w: %w", ErrCallbackOrphaned, err)
	}

	entry, tr := result.entry, result.transition
	r.logger.Info("Callback applied",
		zap.String("ledger_id", entry.ID.String()),
		zap.String("provider", cb.Provider),
		zap.String("provider_txn_id", cb.ProviderTxnID),
		zap.String("previous", tr.Previous.String()),
		zap.String("current", tr.Current.String()),
		zap.Bool("changed", tr.Changed),
		zap.Int("history_len", len(entry.History())))

	telemetry.SetOK(span)
	r.notify(ctx, entry, cb, tr)
	return nil
}

// notify is best effort: failures are logged and counted only. The callback
// is already applied here, so a panic is contained instead of orphaning it.
func (r *CallbackReconciler) notify(ctx context.Context, entry *load.LedgerEntry, cb load.ResolvedCallback, tr load.Transition) {
	if r.notifications == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.metrics.NotificationFailed("panic")
			r.logger.Error("Panic while sending callback notifications",
				zap.String("ledger_id", entry.ID.String()),
				zap.String("provider_txn_id", cb.ProviderTxnID),
				zap.Any("panic", p))
		}
	}()
	if err := r.notifications.NotifyRequester(ctx, entry, cb.Status, cb.Pin); err != nil {
		r.metrics.NotificationFailed("requester")
		r.logger.Warn("Failed to notify requester",
			zap.String("ledger_id", entry.ID.String()),
			zap.String("user_id", entry.OriginatingUser),
			zap.Error(err))
	}
	// A repeated callback must not text the customer twice.
	if !tr.Changed || !cb.Status.IsKnown() {
		return
	}
	if err := r.notifications.NotifyCustomer(ctx, entry, cb.Status, cb.Pin); err != nil {
		r.metrics.NotificationFailed("customer")
		r.logger.Warn("Failed to notify customer",
			zap.String("ledger_id", entry.ID.String()),
			zap.Error(err))
	}
}

func (r *CallbackReconciler) captureOrphan(ctx context.Context, cb load.ResolvedCallback, kind, reason string) {
	orphan := load.NewOrphanRecord(cb.Provider, cb.ProviderTxnID, reason, cb.Raw)
	r.metrics.OrphanCaptured(cb.Provider, kind)

	// The retry context may be spent; the orphan write gets its own budget.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.orphans.Create(writeCtx, orphan); err != nil {
		r.logger.Error("Failed to store orphan callback",
			zap.String("provider", cb.Provider),
			zap.String("provider_txn_id", cb.ProviderTxnID),
			zap.ByteString("payload", cb.Raw),
			zap.Error(err))
		return
	}
	r.logger.Error("Provider callback orphaned",
		zap.String("orphan_id", orphan.ID.String()),
		zap.String("provider", cb.Provider),
		zap.String("provider_txn_id", cb.ProviderTxnID),
		zap.String("reason", reason))
}
