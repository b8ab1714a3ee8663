package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// messagesProcessedTotal tracks processed messages by outcome ("ok", "partial_failure")
	messagesProcessedTotal *prometheus.CounterVec

	// messageDuration tracks end-to-end processing latency of one message
	messageDuration prometheus.Histogram

	// tokensClassifiedTotal tracks classifier verdicts
	tokensClassifiedTotal *prometheus.CounterVec

	// insertsTotal tracks store insert outcomes by ioc type
	insertsTotal *prometheus.CounterVec

	// storageErrorsTotal tracks store failures by operation
	storageErrorsTotal *prometheus.CounterVec

	// tldFetchErrorsTotal tracks registry download errors by type
	tldFetchErrorsTotal *prometheus.CounterVec

	// tldRegistrySize is the number of TLDs loaded at startup
	tldRegistrySize prometheus.Gauge
)

// InitMetrics registers all Prometheus metrics.
// This should be called once at application startup; repeated calls are no-ops.
func InitMetrics() {
	metricsOnce.Do(func() {
		messagesProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_messages_processed_total",
				Help: "Total number of chat messages run through the ingestion pipeline",
			},
			[]string{"outcome"},
		)

		messageDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "watchtower_message_duration_seconds",
				Help:    "Duration of processing a single message in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		)

		tokensClassifiedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_tokens_classified_total",
				Help: "Total number of tokens classified by verdict",
			},
			[]string{"verdict"},
		)

		insertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_ioc_inserts_total",
				Help: "Total number of IOC insert attempts by type and result",
			},
			[]string{"type", "result"},
		)

		storageErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_storage_errors_total",
				Help: "Total number of IOC store failures by operation",
			},
			[]string{"op"},
		)

		tldFetchErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchtower_tld_fetch_errors_total",
				Help: "Total number of TLD registry download errors by error type",
			},
			[]string{"error_type"},
		)

		tldRegistrySize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "watchtower_tld_registry_size",
				Help: "Number of TLDs in the loaded registry",
			},
		)
	})
}

// RecordMessage records a processed message
// outcome: "ok", "partial_failure"
func RecordMessage(outcome string, duration time.Duration) {
	if messagesProcessedTotal != nil {
		messagesProcessedTotal.WithLabelValues(outcome).Inc()
	}
	if messageDuration != nil {
		messageDuration.Observe(duration.Seconds())
	}
}

// RecordVerdict records one classifier verdict ("ip", "domain", "url", "unmatched")
func RecordVerdict(verdict string) {
	if tokensClassifiedTotal != nil {
		tokensClassifiedTotal.WithLabelValues(verdict).Inc()
	}
}

// RecordInsert records an insert outcome
// result: "inserted", "duplicate", "error"
func RecordInsert(iocType, result string) {
	if insertsTotal != nil {
		insertsTotal.WithLabelValues(iocType, result).Inc()
	}
}

// RecordStorageError records a failed store operation
func RecordStorageError(op string) {
	if storageErrorsTotal != nil {
		storageErrorsTotal.WithLabelValues(op).Inc()
	}
}

// RecordTLDFetchError records a registry download error by type
// errorType: "connection", "server_error", "rate_limit", "http_error", "parse", "circuit_open"
func RecordTLDFetchError(errorType string) {
	if tldFetchErrorsTotal != nil {
		tldFetchErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

// SetTLDRegistrySize records how many TLDs were loaded
func SetTLDRegistrySize(n int) {
	if tldRegistrySize != nil {
		tldRegistrySize.Set(float64(n))
	}
}

// Timer is a helper for timing message processing
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started
func (t *Timer) Elapsed() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.start)
}
