package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsProcessed counts rows emitted by each clause's process() call,
	// labelled by clause type name.
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qpipe",
			Subsystem: "clause",
			Name:      "rows_processed_total",
			Help:      "Total rows emitted by a clause's process call.",
		},
		[]string{"clause"},
	)

	// StorageFetchDuration tracks latency of Collaborator.Fetch calls.
	StorageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qpipe",
			Subsystem: "storage",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of storage collaborator fetch calls.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	// StorageFetchRetries counts retry attempts made by the driver's
	// backoff loop, per backend.
	StorageFetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qpipe",
			Subsystem: "storage",
			Name:      "fetch_retries_total",
			Help:      "Total storage fetch retry attempts.",
		},
		[]string{"backend"},
	)

	// LiveEntitySlots gauges the component manager's current occupied-slot
	// count, the figure the backpressure policy is capping.
	LiveEntitySlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "qpipe",
			Subsystem: "entity",
			Name:      "live_slots",
			Help:      "Currently occupied component manager slots.",
		},
	)

	// BackpressureBlocks counts Push calls that had to wait on the
	// component manager's high-water mark.
	BackpressureBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qpipe",
			Subsystem: "entity",
			Name:      "backpressure_blocks_total",
			Help:      "Total Push calls that blocked on the backpressure gate.",
		},
	)
)
