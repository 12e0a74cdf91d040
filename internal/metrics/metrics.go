// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "batch_settlement"

var (
	SalesRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "registered_total",
			Help:      "Sales registered by type",
		},
		[]string{"type"},
	)

	SalesDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "decided_total",
			Help:      "Sales approved or rejected",
		},
		[]string{"status"},
	)

	SettlementsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlements",
			Name:      "created_total",
			Help:      "Settlements created by branch and origin",
		},
		[]string{"branch", "origin"},
	)

	SettlementsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlements",
			Name:      "confirmed_total",
			Help:      "Settlements confirmed by type",
		},
		[]string{"type", "forced"},
	)

	UpwardAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlements",
			Name:      "upward_amount_total",
			Help:      "Money confirmed as transferred upward",
		},
		[]string{"business_model"},
	)

	ConcurrentRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "optimistic_retries_total",
			Help:      "Optimistic version conflicts retried",
		},
		[]string{"operation"},
	)

	StockLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "units",
			Help:      "Stock ledger counters",
		},
		[]string{"counter"},
	)

	StockDeficit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "deficit_units",
			Help:      "Pending sub-batch demand not covered by available stock",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "scan_duration_seconds",
			Help:      "Time spent on one trigger detection pass",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	EligibleSubBatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "eligible_sub_batches",
			Help:      "Sub-batches eligible for settlement at the last scan",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveStock publishes the ledger counters.
func ObserveStock(available, reserved, delivered, deficit int) {
	StockLevel.WithLabelValues("available").Set(float64(available))
	StockLevel.WithLabelValues("reserved").Set(float64(reserved))
	StockLevel.WithLabelValues("delivered").Set(float64(delivered))
	StockDeficit.Set(float64(deficit))
}

// ObserveScan records one trigger detection pass.
func ObserveScan(started time.Time, eligible int) {
	ScanDuration.Observe(time.Since(started).Seconds())
	EligibleSubBatches.Set(float64(eligible))
}
