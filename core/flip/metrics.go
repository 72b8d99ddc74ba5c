package flip

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sentFlips    prometheus.Counter
	sendLatency  prometheus.Histogram
	blockedFlips *prometheus.CounterVec
	bedWaiting   prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, prometheus.Histogram, *prometheus.CounterVec, prometheus.Gauge) {
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flipnotify_sent_flips_total",
		Help: "Number of flips handed to client connections",
	})
	lat := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flipnotify_send_time_seconds",
		Help:    "Time from flip detection until it was sent to the client",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 12, 15, 20, 30},
	})
	blocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flipnotify_blocked_flips_total",
		Help: "Number of flips blocked by connection filters",
	}, []string{"kind"})
	beds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flipnotify_bed_waiting",
		Help: "Bed flips currently waiting for their release time",
	})
	return sent, lat, blocked, beds
}

func init() {
	sentFlips, sendLatency, blockedFlips, bedWaiting = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers pipeline metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(sentFlips, sendLatency, blockedFlips, bedWaiting)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	sentFlips, sendLatency, blockedFlips, bedWaiting = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
