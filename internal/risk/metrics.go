package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_scans_total",
			Help: "Scan runs by terminal status",
		},
		[]string{"status"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "risk_scan_duration_seconds",
			Help:    "End-to-end scan duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	assessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Assessments written by risk level",
		},
		[]string{"level"},
	)
)
