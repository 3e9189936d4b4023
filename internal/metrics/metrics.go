// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsObserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardforge_events_observed_total",
		Help: "Total CardCreated events returned by the feed, including duplicates.",
	})

	EventsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardforge_events_deduplicated_total",
		Help: "Total events skipped by the dedup ledger.",
	})

	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardforge_events_processed_total",
		Help: "Total events that completed the full pipeline including write-back.",
	})

	EventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardforge_events_failed_total",
		Help: "Total events that terminally failed, labelled by pipeline stage.",
	}, []string{"stage"})

	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardforge_poll_errors_total",
		Help: "Total event feed polls that failed at the transport level.",
	})

	EventDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cardforge_event_duration_seconds",
		Help:    "End-to-end processing latency per event.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)
