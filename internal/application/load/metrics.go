package load

import "time"

// Metrics receives counters and timings from the dispatch and callback paths
type Metrics interface {
	DispatchCompleted(provider, outcome string, elapsed time.Duration)
	NoProviderAvailable(sku string)
	CallbackReceived(provider, status string)
	CorrelationRetried(provider string)
	OrphanCaptured(provider, kind string)
	NotificationFailed(channel string)
}

type nopMetrics struct{}

func (nopMetrics) DispatchCompleted(string, string, time.Duration) {}
func (nopMetrics) NoProviderAvailable(string)                      {}
func (nopMetrics) CallbackReceived(string, string)                 {}
func (nopMetrics) CorrelationRetried(string)                       {}
func (nopMetrics) OrphanCaptured(string, string)                   {}
func (nopMetrics) NotificationFailed(string)                       {}
