// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsDecodedTotal counts space packets decoded from any source
	PacketsDecodedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grbr_packets_decoded_total",
			Help: "Total number of space packets decoded",
		},
	)

	// CRCFailuresTotal counts packets whose CRC trailer did not match
	CRCFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grbr_crc_failures_total",
			Help: "Total number of packets that failed the CRC check",
		},
	)

	// ValidationFailuresTotal counts packets with at least one invalid header field
	ValidationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grbr_validation_failures_total",
			Help: "Total number of packets that failed header validation",
		},
	)

	// SequenceGapsTotal counts out of order sequence counters inside bundles
	SequenceGapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grbr_sequence_gaps_total",
			Help: "Total number of sequence counter gaps seen during reassembly",
		},
	)

	// OrphanSegmentsTotal counts bundles that started on a continuation or last packet
	OrphanSegmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grbr_orphan_segments_total",
			Help: "Total number of packets skipped because their bundle head was missing",
		},
	)

	// BundlesReassembledTotal counts complete bundles by segmentation
	BundlesReassembledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grbr_bundles_reassembled_total",
			Help: "Total number of bundles reassembled",
		},
		[]string{"segmentation"},
	)

	// BundleSizeBytes tracks reassembled payload sizes
	BundleSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grbr_bundle_size_bytes",
			Help:    "Size of reassembled bundle payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10), // 64B to ~16MB
		},
	)

	// BundlesDispatchedTotal counts references sent to workers by instrument
	BundlesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grbr_bundles_dispatched_total",
			Help: "Total number of bundle references dispatched to workers",
		},
		[]string{"instrument"},
	)

	// DispatchErrorsTotal counts bundles the dispatcher could not route
	DispatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grbr_dispatch_errors_total",
			Help: "Total number of dispatch errors",
		},
		[]string{"reason"},
	)

	// WorkersActive tracks live product workers
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grbr_workers_active",
			Help: "Number of live product workers",
		},
	)

	// ProductsFinishedTotal counts products by terminal state
	ProductsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grbr_products_finished_total",
			Help: "Total number of products that reached a terminal state",
		},
		[]string{"instrument", "state"},
	)

	// WorkerMessageErrorsTotal counts per-message failures inside workers
	WorkerMessageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grbr_worker_message_errors_total",
			Help: "Total number of worker messages that failed processing",
		},
		[]string{"stage"},
	)

	// WorkerMessageSeconds measures per-message processing latency
	WorkerMessageSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grbr_worker_message_seconds",
			Help:    "Latency of worker message processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 100µs to ~3s
		},
		[]string{"kind"},
	)

	// ReceivedOctetsTotal counts octets captured from the multicast broadcast
	ReceivedOctetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grbr_received_octets_total",
			Help: "Total number of octets received from the multicast broadcast",
		},
	)

	// EventsPublishedTotal counts lifecycle events by sink and outcome
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grbr_events_published_total",
			Help: "Total number of lifecycle events published",
		},
		[]string{"sink", "result"},
	)
)

// Product terminal states used as the "state" label.
const (
	StateSealed   = "sealed"
	StateTimedOut = "timed_out"
	StateFailed   = "failed"
)
