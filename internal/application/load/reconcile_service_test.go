package load

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{BaseDelay: time.Millisecond, Jitter: 0.2, Attempts: 5, MaxElapsed: time.Second}

func waitingEntry(t *testing.T, ledger *memoryLedger, txnID string) *load.LedgerEntry {
	t.Helper()
	entry, err := load.NewLedgerEntry(load.LoadRequest{SKU: "promo1", Mobile: "09171234567", SendAck: true}, promoItem(), load.ProviderDTOne, "user-1")
	require.NoError(t, err)
	require.NoError(t, ledger.Create(context.Background(), entry))
	require.NoError(t, entry.ApplyOutcome(load.Accepted(txnID, nil)))
	require.NoError(t, ledger.Save(context.Background(), entry))
	return entry
}

func dtoneCallback(txnID string, status load.Status) load.ResolvedCallback {
	return load.ResolvedCallback{
		Provider:      load.ProviderDTOne,
		ProviderTxnID: txnID,
		Status:        status,
		Raw:           []byte(`{"id":` + txnID + `}`),
	}
}

func countCallbackRecords(entry *load.LedgerEntry) int {
	n := 0
	for _, r := range entry.History() {
		if r.Origin == load.OriginCallback {
			n++
		}
	}
	return n
}

func TestCallbackReconciler_AppliesCallback(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	orphans := &memoryOrphans{}
	notifications := new(MockNotifications)
	entry := waitingEntry(t, ledger, "123456")

	delivered := load.Known(load.StatusDelivered)
	notifications.On("NotifyRequester", mock.Anything, mock.Anything, delivered, "").Return(nil)
	notifications.On("NotifyCustomer", mock.Anything, mock.Anything, delivered, "").Return(nil)

	r := NewCallbackReconciler(CallbackReconcilerConfig{
		Ledger: ledger, Orphans: orphans, Notifications: notifications, Retry: fastRetry,
	})
	require.NoError(t, r.Reconcile(ctx, dtoneCallback("123456", delivered)))

	stored, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.State.Is(load.StatusDelivered))
	assert.Equal(t, 1, countCallbackRecords(stored))
	assert.Empty(t, orphans.records)
	notifications.AssertExpectations(t)
}

func TestCallbackReconciler_OrphanAfterRetries(t *testing.T) {
	ctx := context.Background()
	ledger := new(MockLedgerRepository)
	orphans := &memoryOrphans{}

	var calls []time.Time
	ledger.On("FindByProviderTxn", mock.Anything, load.ProviderDTOne, "999").
		Run(func(mock.Arguments) { calls = append(calls, time.Now()) }).
		Return(nil, load.ErrLedgerEntryNotFound)

	r := NewCallbackReconciler(CallbackReconcilerConfig{
		Ledger:  ledger,
		Orphans: orphans,
		Retry:   RetryPolicy{BaseDelay: 5 * time.Millisecond, Jitter: 0.2, Attempts: 5, MaxElapsed: 10 * time.Second},
	})

	err := r.Reconcile(ctx, dtoneCallback("999", load.Known(load.StatusDelivered)))
	assert.ErrorIs(t, err, ErrCallbackOrphaned)

	ledger.AssertNumberOfCalls(t, "FindByProviderTxn", 5)
	require.Len(t, orphans.records, 1)
	assert.Equal(t, "999", orphans.records[0].ProviderTxnID)
	assert.JSONEq(t, `{"id":999}`, string(orphans.records[0].RawPayload))

	// gaps grow: 5ms, 10ms, 20ms, 40ms give or take 20%
	require.Len(t, calls, 5)
	for i := 2; i < len(calls); i++ {
		assert.Greater(t, calls[i].Sub(calls[i-1]), calls[1].Sub(calls[0]))
	}
}

func TestCallbackReconciler_CorrelatesAfterDelayedLedgerWrite(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	orphans := &memoryOrphans{}
	entry := waitingEntry(t, ledger, "42")

	var attempts int32
	flaky := &flakyLedger{memoryLedger: ledger, failures: 2, attempts: &attempts}
	r := NewCallbackReconciler(CallbackReconcilerConfig{Ledger: flaky, Orphans: orphans, Retry: fastRetry})

	require.NoError(t, r.Reconcile(ctx, dtoneCallback("42", load.Known(load.StatusRejected))))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Empty(t, orphans.records)

	stored, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.State.Is(load.StatusRejected))
}

// flakyLedger reports the entry missing for the first failures lookups
type flakyLedger struct {
	*memoryLedger
	failures int32
	attempts *int32
}

func (f *flakyLedger) FindByProviderTxn(ctx context.Context, provider, txnID string) (*load.LedgerEntry, error) {
	if atomic.AddInt32(f.attempts, 1) <= f.failures {
		return nil, load.ErrLedgerEntryNotFound
	}
	return f.memoryLedger.FindByProviderTxn(ctx, provider, txnID)
}

func TestCallbackReconciler_DuplicateCallback(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	notifications := new(MockNotifications)
	entry := waitingEntry(t, ledger, "123456")

	delivered := load.Known(load.StatusDelivered)
	notifications.On("NotifyRequester", mock.Anything, mock.Anything, delivered, "").Return(nil)
	notifications.On("NotifyCustomer", mock.Anything, mock.Anything, delivered, "").Return(nil).Once()

	r := NewCallbackReconciler(CallbackReconcilerConfig{
		Ledger: ledger, Orphans: &memoryOrphans{}, Notifications: notifications, Retry: fastRetry,
	})
	cb := dtoneCallback("123456", delivered)
	require.NoError(t, r.Reconcile(ctx, cb))
	require.NoError(t, r.Reconcile(ctx, cb))

	stored, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, countCallbackRecords(stored))
	assert.True(t, stored.State.Is(load.StatusDelivered))

	notifications.AssertNumberOfCalls(t, "NotifyRequester", 2)
	notifications.AssertNumberOfCalls(t, "NotifyCustomer", 1)
}

func TestCallbackReconciler_UnknownStatusSkipsCustomer(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	notifications := new(MockNotifications)
	entry := waitingEntry(t, ledger, "7")

	notifications.On("NotifyRequester", mock.Anything, mock.Anything, mock.Anything, "").Return(nil)

	r := NewCallbackReconciler(CallbackReconcilerConfig{
		Ledger: ledger, Orphans: &memoryOrphans{}, Notifications: notifications, Retry: fastRetry,
	})
	require.NoError(t, r.Reconcile(ctx, dtoneCallback("7", load.Unknown("SUBMITTED"))))

	stored, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, stored.State.IsKnown())
	notifications.AssertNotCalled(t, "NotifyCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCallbackReconciler_NotificationFailureKeepsTransition(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	notifications := new(MockNotifications)
	entry := waitingEntry(t, ledger, "8")

	notifications.On("NotifyRequester", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bot offline"))
	notifications.On("NotifyCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sms gateway 503"))

	r := NewCallbackReconciler(CallbackReconcilerConfig{
		Ledger: ledger, Orphans: &memoryOrphans{}, Notifications: notifications, Retry: fastRetry,
	})
	require.NoError(t, r.Reconcile(ctx, dtoneCallback("8", load.Known(load.StatusDelivered))))

	stored, err := ledger.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.State.Is(load.StatusDelivered))
	assert.Equal(t, 1, countCallbackRecords(stored))
}

func TestCallbackReconciler_RetriesConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	ledger := new(MockLedgerRepository)
	orphans := &memoryOrphans{}

	fresh := func() *load.LedgerEntry {
		e, err := load.NewLedgerEntry(load.LoadRequest{SKU: "promo1", Mobile: "0917"}, promoItem(), load.ProviderDTOne, "")
		require.NoError(t, err)
		require.NoError(t, e.ApplyOutcome(load.Accepted("5", nil)))
		return e
	}
	ledger.On("FindByProviderTxn", mock.Anything, load.ProviderDTOne, "5").Return(fresh(), nil).Once()
	ledger.On("FindByProviderTxn", mock.Anything, load.ProviderDTOne, "5").Return(fresh(), nil).Once()
	ledger.On("Save", mock.Anything, mock.Anything).Return(shared.ErrConcurrencyConflict).Once()
	ledger.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	r := NewCallbackReconciler(CallbackReconcilerConfig{Ledger: ledger, Orphans: orphans, Retry: fastRetry})
	require.NoError(t, r.Reconcile(ctx, dtoneCallback("5", load.Known(load.StatusDelivered))))

	ledger.AssertNumberOfCalls(t, "Save", 2)
	assert.Empty(t, orphans.records)
}

func TestCallbackReconciler_Accept(t *testing.T) {
	t.Run("reconciles in the background", func(t *testing.T) {
		ledger := newMemoryLedger()
		entry := waitingEntry(t, ledger, "123456")
		r := NewCallbackReconciler(CallbackReconcilerConfig{Ledger: ledger, Orphans: &memoryOrphans{}, Retry: fastRetry})

		payload, err := load.ParseCallback(load.CallbackDTOne, []byte(`{"id":123456,"status":{"id":7000,"message":"COMPLETED"}}`))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		r.Accept(ctx, payload)
		cancel() // the inbound request ending must not abort reconciliation
		r.Wait()

		stored, err := ledger.FindByID(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.True(t, stored.State.Is(load.StatusDelivered))
	})

	t.Run("unresolvable payload becomes orphan", func(t *testing.T) {
		orphans := &memoryOrphans{}
		r := NewCallbackReconciler(CallbackReconcilerConfig{Ledger: newMemoryLedger(), Orphans: orphans, Retry: fastRetry})

		payload, err := load.ParseCallback(load.CallbackGlobeLabs, []byte(`{"outboundRewardRequest":{"status":"SUCCESS"}}`))
		require.NoError(t, err)
		r.Accept(context.Background(), payload)
		r.Wait()

		require.Len(t, orphans.records, 1)
		assert.Contains(t, string(orphans.records[0].RawPayload), "SUCCESS")
	})

	t.Run("malformed body becomes orphan", func(t *testing.T) {
		orphans := &memoryOrphans{}
		r := NewCallbackReconciler(CallbackReconcilerConfig{Ledger: newMemoryLedger(), Orphans: orphans, Retry: fastRetry})

		r.AcceptMalformed(context.Background(), load.CallbackDTOne, []byte(`{"id":`), errors.New("unexpected end of JSON input"))

		require.Len(t, orphans.records, 1)
		assert.Equal(t, string(load.CallbackDTOne), orphans.records[0].Provider)
		assert.Equal(t, `{"id":`, string(orphans.records[0].RawPayload))
		assert.Contains(t, orphans.records[0].Reason, "unexpected end of JSON input")
	})

	t.Run("panic becomes orphan", func(t *testing.T) {
		ledger := new(MockLedgerRepository)
		orphans := &memoryOrphans{}
		ledger.On("FindByProviderTxn", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("driver bug")
		})
		r := NewCallbackReconciler(CallbackReconcilerConfig{Ledger: ledger, Orphans: orphans, Retry: fastRetry})

		payload, err := load.ParseCallback(load.CallbackDTOne, []byte(`{"id":77,"status":{"id":7000}}`))
		require.NoError(t, err)
		r.Accept(context.Background(), payload)
		r.Wait()

		require.Len(t, orphans.records, 1)
		assert.Equal(t, "77", orphans.records[0].ProviderTxnID)
		assert.Contains(t, orphans.records[0].Reason, "driver bug")
	})

	t.Run("notification panic after apply is not orphaned", func(t *testing.T) {
		ledger := newMemoryLedger()
		entry := waitingEntry(t, ledger, "123456")
		orphans := &memoryOrphans{}
		notifications := new(MockNotifications)
		notifications.On("NotifyRequester", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("template bug")
		})
		r := NewCallbackReconciler(CallbackReconcilerConfig{
			Ledger: ledger, Orphans: orphans, Notifications: notifications, Retry: fastRetry,
		})

		payload, err := load.ParseCallback(load.CallbackDTOne, []byte(`{"id":123456,"status":{"id":7000,"message":"COMPLETED"}}`))
		require.NoError(t, err)
		r.Accept(context.Background(), payload)
		r.Wait()

		assert.Empty(t, orphans.records)
		stored, err := ledger.FindByID(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.True(t, stored.State.Is(load.StatusDelivered))
		assert.Equal(t, 1, countCallbackRecords(stored))
	})
}

func TestEndToEnd_DispatchThenCallback(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(0)
	f.dtone.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(load.Accepted("123456", []byte(`{"id":123456}`)))

	result, err := f.svc.Dispatch(ctx, load.LoadRequest{SKU: "promo1", Mobile: "09171234567"}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, load.ProviderDTOne, result.Provider)
	assert.True(t, result.Status.Is(load.StatusWait))
	assert.Equal(t, "D3RJ0", result.ReferenceCode)

	notifications := new(MockNotifications)
	notifications.On("NotifyRequester", mock.Anything, mock.MatchedBy(func(e *load.LedgerEntry) bool {
		return e.ReferenceCode == "D3RJ0"
	}), load.Known(load.StatusDelivered), "").Return(nil)
	notifications.On("NotifyCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r := NewCallbackReconciler(CallbackReconcilerConfig{
		Ledger: f.ledger, Orphans: &memoryOrphans{}, Notifications: notifications, Retry: fastRetry,
	})
	payload, err := load.ParseCallback(load.CallbackDTOne, []byte(`{"id":123456,"status":{"id":7000,"message":"COMPLETED"}}`))
	require.NoError(t, err)
	r.Accept(ctx, payload)
	r.Wait()

	stored, err := f.ledger.FindByID(ctx, result.LedgerID)
	require.NoError(t, err)
	assert.True(t, stored.State.Is(load.StatusDelivered))
	notifications.AssertExpectations(t)
}
