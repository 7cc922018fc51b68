package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pricing engine.
type Metrics struct {
	// --- Ingestion ---
	IngestEventsTotal   *prometheus.CounterVec
	IngestRejectedTotal *prometheus.CounterVec

	// --- Valuation ---
	ValuationsTotal      *prometheus.CounterVec
	ValuationErrorsTotal *prometheus.CounterVec
	ValuationDuration    prometheus.Histogram
	PositionsTracked     prometheus.Gauge

	// --- Oracle encoding ---
	TicksEncodedTotal   prometheus.Counter
	PayloadBatchesTotal prometheus.Counter
	PayloadBatchSize    prometheus.Histogram

	// --- Market state ---
	ReferencePrice *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		IngestEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mark_ingest_events_total",
			Help: "Snapshot events successfully applied",
		}, []string{"event_type"}),

		IngestRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mark_ingest_rejected_total",
			Help: "Snapshot events rejected (dedup, stale, validation)",
		}, []string{"event_type", "reason"}),

		ValuationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mark_valuations_total",
			Help: "Positions valued",
		}, []string{"market"}),

		ValuationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mark_valuation_errors_total",
			Help: "Valuations aborted by an error",
		}, []string{"market", "reason"}),

		ValuationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mark_valuation_duration_seconds",
			Help:    "Time to value a single position",
			Buckets: latencyBuckets,
		}),

		PositionsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mark_positions_tracked",
			Help: "Positions currently tracked",
		}),

		TicksEncodedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mark_ticks_encoded_total",
			Help: "Prices encoded onto the tick grid",
		}),

		PayloadBatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mark_payload_batches_total",
			Help: "Oracle update payloads built",
		}),

		PayloadBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mark_payload_batch_size",
			Help:    "Assets per oracle update payload",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),

		ReferencePrice: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mark_reference_price",
			Help: "Latest raw reference price per market",
		}, []string{"market"}),
	}
}
