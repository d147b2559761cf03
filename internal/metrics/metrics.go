package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planthook_deliveries_total",
			Help: "Total number of delivery attempts by outcome.",
		},
		[]string{"status"}, // sent, failed, exhausted
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planthook_retries_total",
			Help: "Total number of delivery retries by failure reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, timeout, network, payload_too_large
	)

	ExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planthook_exhausted_total",
			Help: "Total number of ledger entries that ran out of retries.",
		},
	)

	PayloadRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planthook_payload_rejected_total",
			Help: "Total number of payloads rejected for exceeding the size cap.",
		},
	)

	InFlightDeliveries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "planthook_inflight_deliveries",
			Help: "Number of outbound HTTP calls currently in flight.",
		},
	)

	DeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planthook_delivery_latency_seconds",
			Help:    "Latency of outbound webhook calls.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planthook_sweep_ticks_total",
			Help: "Total number of sweep ticks by result.",
		},
		[]string{"result"}, // completed, skipped, error
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planthook_sweep_duration_seconds",
			Help:    "Duration of a full sweep tick.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planthook_sweep_processed_total",
			Help: "Total number of due ledger entries re-driven by the sweep loop.",
		},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		DeliveriesTotal,
		RetriesTotal,
		ExhaustedTotal,
		PayloadRejectedTotal,
		InFlightDeliveries,
		DeliveryLatency,
		SweepTicksTotal,
		SweepDuration,
		SweepProcessed,
	)
}

// RecordDelivery records the outcome of one delivery attempt.
func RecordDelivery(status string, latency time.Duration) {
	DeliveriesTotal.WithLabelValues(status).Inc()
	if latency > 0 {
		DeliveryLatency.Observe(latency.Seconds())
	}
}

// RecordRetry records a scheduled retry with its classified failure reason.
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// RecordExhausted records an entry reaching its terminal failure state.
func RecordExhausted() {
	ExhaustedTotal.Inc()
}

// RecordPayloadRejected records an oversized payload rejected before dispatch.
func RecordPayloadRejected() {
	PayloadRejectedTotal.Inc()
}

// RecordSweep records the result of one sweep tick.
func RecordSweep(result string, duration time.Duration, processed int) {
	SweepTicksTotal.WithLabelValues(result).Inc()
	if result == "completed" {
		SweepDuration.Observe(duration.Seconds())
		SweepProcessed.Add(float64(processed))
	}
}
