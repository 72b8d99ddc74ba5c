package ingest

import "github.com/prometheus/client_golang/prometheus"

var batchesReceived *prometheus.CounterVec

func newCollectors() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flipnotify_ingest_batches_total",
		Help: "Upstream candidate batches by source and outcome",
	}, []string{"source", "result"})
}

func init() {
	batchesReceived = newCollectors()
	prometheus.MustRegister(batchesReceived)
}

// ResetMetrics swaps the collectors for fresh ones registered on reg. Tests
// use it to observe counters in isolation.
func ResetMetrics(reg prometheus.Registerer) {
	batchesReceived = newCollectors()
	reg.MustRegister(batchesReceived)
}

// Observe counts one received payload.
func Observe(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	batchesReceived.WithLabelValues(source, result).Inc()
}

// Handle decodes payload, counts it and delivers it to sink.
func Handle(source string, payload []byte, sink Sink) error {
	batch, err := DecodeBatch(payload)
	Observe(source, err)
	if err != nil {
		return err
	}
	sink.Deliver(batch)
	return nil
}
