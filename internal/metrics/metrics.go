// SPDX-License-Identifier: EPL-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Direction label values.
const (
	Playback = "playback"
	Capture  = "capture"
)

// Gauges
var (
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "funcgen_active_sessions",
		Help: "Number of running transfer sessions",
	}, []string{"direction"})
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "funcgen_scpi_connections",
		Help: "Open instrument protocol connections",
	})
)

// Counters
var (
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funcgen_batches_total",
		Help: "Total periods transferred",
	}, []string{"direction"})
	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funcgen_frames_total",
		Help: "Total frames accepted by or read from the device",
	}, []string{"direction"})
	WouldBlockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funcgen_would_block_retries_total",
		Help: "Transfers retried because the device would block",
	}, []string{"direction"})
	RecoveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funcgen_recoveries_total",
		Help: "Device recoveries by cause and outcome",
	}, []string{"cause", "outcome"})
	ReadFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funcgen_read_faults_total",
		Help: "Capture periods lost to read faults",
	}, []string{"cause"})
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funcgen_sessions_total",
		Help: "Finished transfer sessions by outcome",
	}, []string{"direction", "outcome"})
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funcgen_scpi_commands_total",
		Help: "Instrument commands handled by header and outcome",
	}, []string{"header", "outcome"})
)

// Histograms
var (
	BatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "funcgen_batch_duration_ms",
		Help:    "Time to fill and flush one period in milliseconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"direction"})
)
