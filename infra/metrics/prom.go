package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink turns bus events into Prometheus series that the pipeline does
// not track itself.
type PromSink struct {
	slow     *prometheus.CounterVec
	sessions *prometheus.CounterVec
	delivery prometheus.Histogram
	dropped  prometheus.CounterFunc
}

// NewPromSink registers the event metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer, nil)
}

// NewPromSinkWithRegistry registers metrics on reg. A nil registerer defaults
// to the global one. dropped, when set, exposes the number of events lost by
// slow bus subscribers.
func NewPromSinkWithRegistry(reg prometheus.Registerer, dropped func() uint64) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	slow := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flipnotify_slow_flips_total",
		Help: "Flips delivered after the slow threshold, by finder",
	}, []string{"finder"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flipnotify_session_changes_total",
		Help: "Hub membership changes",
	}, []string{"action"})
	delivery := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flipnotify_tracked_latency_seconds",
		Help:    "Latency of flips whose delivery was tracked",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	var err error
	if slow, err = register(reg, slow); err != nil {
		return nil, err
	}
	if sessions, err = register(reg, sessions); err != nil {
		return nil, err
	}
	if delivery, err = register(reg, delivery); err != nil {
		return nil, err
	}
	s := &PromSink{slow: slow, sessions: sessions, delivery: delivery}
	if dropped != nil {
		fn := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "flipnotify_bus_dropped_events_total",
			Help: "Events skipped because a bus subscriber was full",
		}, func() float64 { return float64(dropped()) })
		if s.dropped, err = register(reg, fn); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// register returns the collector already registered under the same name, if any.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSlowFlip counts a slow delivery.
func (s *PromSink) RecordSlowFlip(finder string) {
	if finder == "" {
		finder = "unknown"
	}
	s.slow.WithLabelValues(strings.ToLower(finder)).Inc()
}

// RecordSession counts a hub change.
func (s *PromSink) RecordSession(action string) {
	s.sessions.WithLabelValues(action).Inc()
}

// RecordDelivery observes the latency of a tracked flip in seconds.
func (s *PromSink) RecordDelivery(latencySeconds float64) {
	s.delivery.Observe(latencySeconds)
}
