package metrics

import (
	"context"

	"github.com/kilianp07/flipnotify/core/events"
	"github.com/kilianp07/flipnotify/core/logger"
	"github.com/kilianp07/flipnotify/internal/eventbus"
)

// EventSink receives the events picked up by the collector.
type EventSink interface {
	RecordSlowFlip(finder string)
	RecordSession(action string)
	RecordDelivery(latencySeconds float64)
}

// StartEventCollector subscribes to the event bus and records metrics for events.
// Blocks are only logged at debug level since the pipeline counts them.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink EventSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	log = logger.OrNop(log)
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.FlipSent:
					sink.RecordDelivery(e.Latency.Seconds())
				case events.SlowFlip:
					sink.RecordSlowFlip(e.Finder)
				case events.SessionEvent:
					sink.RecordSession(e.Action)
				case events.FlipBlocked:
					log.Debugw("flip blocked", map[string]any{
						"account_id": e.AccountID,
						"event_id":   e.EventID,
						"reason":     e.Reason,
					})
				}
			}
		}
	}()
}
