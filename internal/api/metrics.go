package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filegate_uploads_total",
			Help: "Upload verdicts by outcome and rejection reason.",
		},
		[]string{"verdict", "reason"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filegate_scan_duration_seconds",
			Help:    "Wall time of one full gate evaluation.",
			Buckets: prometheus.DefBuckets,
		},
	)

	quarantineTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filegate_quarantine_total",
			Help: "Files moved to quarantine.",
		},
	)

	vaultStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filegate_vault_stored_total",
			Help: "Files encrypted and stored in the vault.",
		},
	)

	vaultSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filegate_vault_swept_total",
			Help: "Expired ciphertexts removed by the retention sweep.",
		},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filegate_downloads_total",
			Help: "Retrieval attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// RecordSweep feeds the sweep counter from the engine's retention loop.
func RecordSweep(removed int) {
	vaultSweptTotal.Add(float64(removed))
}
