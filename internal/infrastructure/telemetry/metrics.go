package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names, without the namespace.
const (
	MetricDispatchTotal          = "dispatch_total"
	MetricDispatchDuration       = "dispatch_duration_seconds"
	MetricNoProviderTotal        = "no_provider_total"
	MetricCallbacksTotal         = "callbacks_total"
	MetricCorrelationRetries     = "correlation_retries_total"
	MetricOrphansTotal           = "orphan_callbacks_total"
	MetricNotificationFailures   = "notification_failures_total"
	MetricHTTPRequestsTotal      = "http_requests_total"
	MetricHTTPRequestDurationSec = "http_request_duration_seconds"
)

// dispatch latency is dominated by the provider call, which may run to the
// configured deadline
var dispatchBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60}

// LoadMetrics records dispatch and callback activity in a dedicated
// Prometheus registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type LoadMetrics struct {
	registry *prometheus.Registry

	dispatchTotal        *prometheus.CounterVec
	dispatchDuration     *prometheus.HistogramVec
	noProviderTotal      *prometheus.CounterVec
	callbacksTotal       *prometheus.CounterVec
	correlationRetries   *prometheus.CounterVec
	orphansTotal         *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// NewLoadMetrics creates and registers the service metrics under namespace
func NewLoadMetrics(namespace string) *LoadMetrics {
	m := &LoadMetrics{registry: prometheus.NewRegistry()}

	m.dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricDispatchTotal,
		Help:      "Provider dispatch attempts by provider and outcome.",
	}, []string{"provider", "outcome"})
	m.dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricDispatchDuration,
		Help:      "Provider call latency.",
		Buckets:   dispatchBuckets,
	}, []string{"provider"})
	m.noProviderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricNoProviderTotal,
		Help:      "Requests refused because no registered provider offers the SKU.",
	}, []string{"sku"})
	m.callbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricCallbacksTotal,
		Help:      "Callbacks applied to the ledger by provider and status.",
	}, []string{"provider", "status"})
	m.correlationRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricCorrelationRetries,
		Help:      "Callback correlation attempts that had to be retried.",
	}, []string{"provider"})
	m.orphansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricOrphansTotal,
		Help:      "Callbacks stored as orphans.",
	}, []string{"provider", "kind"})
	m.notificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricNotificationFailures,
		Help:      "Failed requester or customer notifications.",
	}, []string{"channel"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricHTTPRequestsTotal,
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricHTTPRequestDurationSec,
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dispatchTotal,
		m.dispatchDuration,
		m.noProviderTotal,
		m.callbacksTotal,
		m.correlationRetries,
		m.orphansTotal,
		m.notificationFailures,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry the metrics are registered in
func (m *LoadMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *LoadMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DispatchCompleted records a finished provider call
func (m *LoadMetrics) DispatchCompleted(provider, outcome string, elapsed time.Duration) {
	m.dispatchTotal.WithLabelValues(provider, outcome).Inc()
	m.dispatchDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// NoProviderAvailable records a request that could not be routed
func (m *LoadMetrics) NoProviderAvailable(sku string) {
	m.noProviderTotal.WithLabelValues(sku).Inc()
}

// CallbackReceived records a callback applied to a ledger entry
func (m *LoadMetrics) CallbackReceived(provider, status string) {
	m.callbacksTotal.WithLabelValues(provider, status).Inc()
}

// CorrelationRetried records one retry of a callback lookup
func (m *LoadMetrics) CorrelationRetried(provider string) {
	m.correlationRetries.WithLabelValues(provider).Inc()
}

// OrphanCaptured records a stored orphan callback by kind
func (m *LoadMetrics) OrphanCaptured(provider, kind string) {
	m.orphansTotal.WithLabelValues(provider, kind).Inc()
}

// NotificationFailed records a failed notification on channel
func (m *LoadMetrics) NotificationFailed(channel string) {
	m.notificationFailures.WithLabelValues(channel).Inc()
}

// GinMiddleware records request counts and latency per matched route.
// Unmatched paths share the "unmatched" route label.
func (m *LoadMetrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
