// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decode outcomes.
const (
	OutcomeSwap      = "swap"
	OutcomeNotSwap   = "not_swap"
	OutcomeMalformed = "malformed"
)

// Registration outcomes.
const (
	RegistrationSkipped   = "skipped"
	RegistrationSubmitted = "registered"
	RegistrationAlready   = "already_registered"
	RegistrationFailed    = "failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Runner metrics
	PollTicks       prometheus.Counter
	PollErrors      *prometheus.CounterVec
	Decoded         *prometheus.CounterVec
	ActiveRunners   prometheus.Gauge
	Watermark       *prometheus.GaugeVec
	QueueRejected   prometheus.Counter
	SessionsStopped *prometheus.CounterVec

	// Execution metrics
	Executions       *prometheus.CounterVec
	ExecutionLatency prometheus.Histogram
	Registrations    *prometheus.CounterVec

	// Chain metrics
	ChainRequestLatency *prometheus.HistogramVec
	ChainRequestErrors  *prometheus.CounterVec

	// Notification metrics
	Notifications *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "aptos_copytrade"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PollTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "poll_ticks_total",
			Help:      "Total number of poll ticks across all sessions",
		}),
		PollErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "poll_errors_total",
			Help:      "Total number of failed poll ticks by stage",
		}, []string{"stage"}),
		Decoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "transactions_decoded_total",
			Help:      "Total number of new master transactions by decode outcome",
		}, []string{"outcome"}),
		ActiveRunners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "active",
			Help:      "Number of live session runners",
		}),
		Watermark: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "watermark_version",
			Help:      "Last processed master transaction version per session",
		}, []string{"session_id"}),
		QueueRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "dispatch_rejected_total",
			Help:      "Total number of swaps rejected because the dispatch queue was full",
		}),
		SessionsStopped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "stopped_total",
			Help:      "Total number of stopped runners by reason",
		}, []string{"reason"}),

		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Total number of replica trades by status",
		}, []string{"status"}),
		ExecutionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "Replica trade duration from dispatch to confirmation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "registrations_total",
			Help:      "Total number of coin store registration attempts by outcome",
		}, []string{"outcome"}),

		ChainRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aptos",
			Name:      "request_latency_seconds",
			Help:      "Aptos node request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ChainRequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aptos",
			Name:      "request_errors_total",
			Help:      "Total number of failed Aptos node requests",
		}, []string{"endpoint"}),

		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Total number of delivered events by notifier, kind and status",
		}, []string{"notifier", "kind", "status"}),

		LastSuccessfulPoll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of the last successful poll of any session",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordPollTick counts a poll tick.
func RecordPollTick() {
	DefaultMetrics.PollTicks.Inc()
}

// RecordPollSuccess marks a successful chain read.
func RecordPollSuccess() {
	DefaultMetrics.LastSuccessfulPoll.SetToCurrentTime()
}

// RecordPollError counts a failed tick at the given stage (store, chain, decode).
func RecordPollError(stage string) {
	DefaultMetrics.PollErrors.WithLabelValues(stage).Inc()
}

// RecordDecoded counts a new master transaction by decode outcome.
func RecordDecoded(outcome string) {
	DefaultMetrics.Decoded.WithLabelValues(outcome).Inc()
}

// RecordRunnerStarted increments the live runners gauge.
func RecordRunnerStarted() {
	DefaultMetrics.ActiveRunners.Inc()
}

// RecordRunnerStopped decrements the live runners gauge and drops the session's watermark series.
func RecordRunnerStopped(sessionID, reason string) {
	DefaultMetrics.ActiveRunners.Dec()
	DefaultMetrics.SessionsStopped.WithLabelValues(reason).Inc()
	DefaultMetrics.Watermark.DeleteLabelValues(sessionID)
}

// UpdateWatermark sets the watermark gauge of a session.
func UpdateWatermark(sessionID string, version uint64) {
	DefaultMetrics.Watermark.WithLabelValues(sessionID).Set(float64(version))
}

// RecordQueueRejected counts a swap dropped because the dispatch queue was full.
func RecordQueueRejected() {
	DefaultMetrics.QueueRejected.Inc()
}

// RecordExecution records a replica trade outcome and duration.
func RecordExecution(status string, d time.Duration) {
	DefaultMetrics.Executions.WithLabelValues(status).Inc()
	DefaultMetrics.ExecutionLatency.Observe(d.Seconds())
}

// RecordRegistration records a coin store registration outcome.
func RecordRegistration(outcome string) {
	DefaultMetrics.Registrations.WithLabelValues(outcome).Inc()
}

// RecordChainRequest records an Aptos node request. Matches aptos.LatencyObserver.
func RecordChainRequest(endpoint string, d time.Duration, err error) {
	DefaultMetrics.ChainRequestLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.ChainRequestErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordNotification records a notifier delivery attempt.
func RecordNotification(notifier, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.Notifications.WithLabelValues(notifier, kind, status).Inc()
}
