// Package metrics holds the Prometheus collectors shared by the bot runtime and
// its domain services. Collectors are registered on a private registry so tests
// and multiple runtimes in one process never collide on the default one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "docshelf"

// Registry is the registry every collector below is attached to.
var Registry = prometheus.NewRegistry()

var (
	// UpdatesTotal counts inbound Telegram updates by kind.
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound Telegram updates by kind.",
		},
		[]string{"kind"},
	)

	// HandlerDuration observes handler latency by handler name and outcome.
	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler execution time in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"handler", "outcome"},
	)

	// RateLimited counts updates dropped by the per-user limiter.
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter.",
		},
	)

	// SendFailures counts outbound calls that failed after retries.
	SendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Outbound Telegram calls that failed after retries.",
		},
		[]string{"action", "kind"},
	)

	// SerialPending gauges updates waiting in per-user lanes.
	SerialPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "serial_pending",
			Help:      "Updates queued in per-user lanes and not yet handled.",
		},
	)

	// Settlements counts payment settlements by outcome.
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Payment settlements by outcome.",
		},
		[]string{"outcome"},
	)

	// CheckoutsTotal counts pre-checkout answers by outcome.
	CheckoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Pre-checkout answers by outcome.",
		},
		[]string{"outcome"},
	)

	// DocumentsIngested counts finished admin ingestion flows by outcome.
	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Admin document ingestion flows by outcome.",
		},
		[]string{"outcome"},
	)

	// HandlerPanics counts handler panics caught by the recover middleware.
	HandlerPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Handler panics recovered before reaching telebot.",
		},
	)

	// APIRetries counts Bot API requests retried after a transient network error.
	APIRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Bot API requests retried after transient network errors, by method.",
		},
		[]string{"method"},
	)

	// AccessDenied counts document fetches refused by the subscription gate.
	AccessDenied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Document fetches refused for lack of an active subscription.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		UpdatesTotal,
		HandlerDuration,
		RateLimited,
		SendFailures,
		SerialPending,
		Settlements,
		CheckoutsTotal,
		DocumentsIngested,
		AccessDenied,
		HandlerPanics,
		APIRetries,
	)
}
