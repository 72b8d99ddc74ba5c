package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flipnotify/core/events"
	"github.com/kilianp07/flipnotify/internal/eventbus"
)

func TestEventCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := eventbus.New()
	sink, err := NewPromSinkWithRegistry(reg, bus.Dropped)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink, nil)

	// the subscription is registered synchronously
	bus.Publish(events.SlowFlip{AccountID: "u1", EventID: 1, Finder: "SNIPER", Latency: 20 * time.Second})
	bus.Publish(events.FlipSent{AccountID: "u1", EventID: 2, Latency: 300 * time.Millisecond})
	bus.Publish(events.FlipBlocked{AccountID: "u1", EventID: 3, Reason: "sold"})
	bus.Publish(events.SessionEvent{SessionID: "s1", AccountID: "u1", Action: "added"})

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.sessions.WithLabelValues("added")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.slow.WithLabelValues("sniper")))
	assert.Equal(t, uint64(1), sampleCount(t, reg, "flipnotify_tracked_latency_seconds"))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.dropped))
}

func TestPromSinkReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg, nil)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg, nil)
	require.NoError(t, err)

	a.RecordSlowFlip("")
	b.RecordSlowFlip("")
	assert.Equal(t, 2.0, testutil.ToFloat64(b.slow.WithLabelValues("unknown")))
}

func TestEventCollectorStopsOnBusClose(t *testing.T) {
	bus := eventbus.New()
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry(), nil)
	require.NoError(t, err)
	StartEventCollector(context.Background(), bus, sink, nil)
	bus.Close()
	bus.Publish(events.SessionEvent{Action: "added"})
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.sessions.WithLabelValues("added")))
}

func sampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}
