package flip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/flipnotify/core/events"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/properties"
	"github.com/kilianp07/flipnotify/core/tracking"
)

// dispatch sends f synchronously and hands bookkeeping to supervised tasks.
func (p *Processor) dispatch(ctx context.Context, f *model.FlipInstance, sendTime time.Time) {
	err := Retry(ctx, p.cfg.Retry, func() error { return p.transport.SendFlip(ctx, f) })
	if err != nil {
		if errors.Is(err, ErrConnectionClosed) || ctx.Err() != nil {
			p.log.Debugf("dropping flip %d: connection gone", f.ID())
			return
		}
		p.log.Errorf("sending flip %d: %v", f.ID(), err)
		p.monitor.CaptureException(err, map[string]string{"stage": "send", "auction": f.Auction().UUID})
		return
	}
	p.sentCount.Add(1)

	// tracking outlives the connection
	bg := context.WithoutCancel(ctx)
	account := p.host.Account()
	p.sup.Go(bg, "after-send", func(ctx context.Context) error {
		p.afterSend(ctx, f, account)
		return nil
	})
	d := tracking.Delivery{
		EventID:     f.ID(),
		AuctionUUID: f.Auction().UUID,
		AccountID:   account.UserID,
		Finder:      f.Finder().String(),
		SendTime:    sendTime,
		Latency:     sendTime.Sub(f.Auction().FindTime),
	}
	p.sup.Go(bg, "record-delivery", func(ctx context.Context) error {
		return p.tracker.RecordDelivery(ctx, d)
	})
}

func (p *Processor) afterSend(ctx context.Context, f *model.FlipInstance, account model.AccountInfo) {
	e := f.Event
	latency := p.clock.Now().Sub(e.Auction.FindTime)
	e.Props.Set("csend", latency.String())

	p.recent.Push(e)
	p.recent.TrimTo(p.cfg.RecentCap)
	p.latencies.Push(latency.Seconds())
	p.latencies.TrimTo(p.cfg.RecentCap)
	sentFlips.Inc()
	sendLatency.Observe(latency.Seconds())
	p.host.Heartbeat()

	p.bus.Publish(events.FlipSent{
		AccountID:   account.UserID,
		EventID:     e.ID,
		AuctionUUID: e.Auction.UUID,
		SendTime:    p.clock.Now(),
		Latency:     latency,
	})

	if p.isSlow(f, latency, account) {
		p.reportSlow(ctx, f, latency, account)
	}
}

func (p *Processor) isSlow(f *model.FlipInstance, latency time.Duration, account model.AccountInfo) bool {
	return latency > p.cfg.SlowThreshold &&
		account.Tier >= model.TierPremium &&
		f.Finder() != model.FinderFlipper &&
		!properties.IsBedTag(f.TopTag())
}

// reportSlow records a slowFlip span holding everything needed to explain
// the delay after the fact.
func (p *Processor) reportSlow(ctx context.Context, f *model.FlipInstance, latency time.Duration, account model.AccountInfo) {
	_, span := p.tracer.Start(ctx, "slowFlip", trace.WithAttributes(
		attribute.Bool("error", true),
		attribute.Int64("id", f.ID()),
		attribute.String("uuid", f.Auction().UUID),
		attribute.String("finder", f.Finder().String()),
		attribute.String("user", account.UserID),
		attribute.Float64("latency", latency.Seconds()),
	))
	defer span.End()
	span.SetStatus(codes.Error, "slow flip")

	span.AddEvent("context", trace.WithAttributes(attribute.String("auction", toJSON(f.Event.Auction))))
	span.AddEvent("props", trace.WithAttributes(attribute.String("props", toJSON(f.Event.Props))))
	if p.snapshots != nil {
		for _, s := range p.snapshots.Snapshots() {
			span.AddEvent("snapshot", trace.WithTimestamp(s.Time), trace.WithAttributes(attribute.String("state", s.State)))
		}
	}
	span.AddEvent("settings", trace.WithAttributes(attribute.String("settings", toJSON(p.host.Settings()))))
	sum := p.LatencySummary()
	span.AddEvent("latency", trace.WithAttributes(
		attribute.Int("count", sum.Count),
		attribute.Float64("mean", sum.Mean),
		attribute.Float64("p95", sum.P95),
		attribute.Float64("max", sum.Max),
	))

	p.log.Warnf("slow flip %d for %s: %s", f.ID(), account.UserID, latency)
	p.bus.Publish(events.SlowFlip{
		AccountID: account.UserID,
		EventID:   f.ID(),
		Finder:    f.Finder().String(),
		Latency:   latency,
	})
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
