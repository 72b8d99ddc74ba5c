package session

import "github.com/prometheus/client_golang/prometheus"

var (
	activeSessions prometheus.Gauge
	pings          *prometheus.CounterVec
)

func newCollectors() (prometheus.Gauge, *prometheus.CounterVec) {
	act := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flipnotify_sessions",
		Help: "Number of connected sessions",
	})
	p := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flipnotify_pings_total",
		Help: "Keepalive pings by outcome",
	}, []string{"kind"})
	return act, p
}

func init() {
	activeSessions, pings = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers session metrics on reg, or the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(activeSessions, pings)
}

// ResetMetrics reinitializes the collectors for tests.
func ResetMetrics(reg prometheus.Registerer) {
	activeSessions, pings = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
