package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChunksTotal counts processed windows.
	// Labels: model, outcome (ok/inference_failed/stitch_bounds/degenerate)
	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amram_chunks_total",
			Help: "Total number of separation windows processed by outcome",
		},
		[]string{"model", "outcome"},
	)

	// ChunkDuration observes wall time of one model call, in seconds.
	ChunkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "amram_chunk_duration_seconds",
			Help:    "Model inference duration per window in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	// StallsTotal counts stall guard interventions.
	// Labels: action (forced_jump/min_advance/aborted)
	StallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amram_stalls_total",
			Help: "Number of stall recoveries by action",
		},
		[]string{"action"},
	)

	// SeparationsTotal counts whole separation runs by final status.
	SeparationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amram_separations_total",
			Help: "Total number of separation runs by status",
		},
		[]string{"status"},
	)

	// SeparationDuration observes wall time of a whole run, in seconds.
	SeparationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "amram_separation_duration_seconds",
			Help:    "End-to-end separation duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// SeparationBusy is 1 while a separation is running.
	SeparationBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "amram_separation_busy",
			Help: "Whether a separation is currently running (0=idle, 1=busy)",
		},
	)
)

// RecordChunk records one window outcome and its model time.
func RecordChunk(model, outcome string, d time.Duration) {
	ChunksTotal.WithLabelValues(model, outcome).Inc()
	if d > 0 {
		ChunkDuration.WithLabelValues(model).Observe(d.Seconds())
	}
}

// RecordStall records a stall recovery action.
func RecordStall(action string) {
	StallsTotal.WithLabelValues(action).Inc()
}

// RecordSeparation records the final status and duration of a run.
func RecordSeparation(status string, d time.Duration) {
	SeparationsTotal.WithLabelValues(status).Inc()
	SeparationDuration.Observe(d.Seconds())
}

// SetBusy flips the busy gauge.
func SetBusy(busy bool) {
	if busy {
		SeparationBusy.Set(1)
	} else {
		SeparationBusy.Set(0)
	}
}
