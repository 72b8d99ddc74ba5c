package flip

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/properties"
)

const (
	bedTimerPrefix = "Bed in: "
	bedSound       = "note.bass"
)

// isBed reports whether f is still far enough inside the bed window to be
// held back.
func (p *Processor) isBed(f *model.FlipInstance, now time.Time) bool {
	start := f.Auction().Start
	if start.IsZero() {
		return false
	}
	return start.Add(properties.BedWindow).Sub(now) > p.cfg.BedThreshold
}

// schedule splits admitted flips into bed, instant and delayed groups.
// Instant flips go out before the fairness delay is awaited; delayed flips
// share one send time; bed flips wait on their own goroutine.
func (p *Processor) schedule(ctx context.Context, flips []*model.FlipInstance, s *model.FilterSettings) {
	if len(flips) == 0 {
		return
	}
	now := p.clock.Now()
	var beds, instant, delayed []*model.FlipInstance
	for _, f := range flips {
		switch {
		case !s.Mod.NoBedDelay && p.isBed(f, now):
			beds = append(beds, f)
		case p.fairness.IsAutomatedClient(f):
			instant = append(instant, f)
		default:
			delayed = append(delayed, f)
		}
	}

	var wg sync.WaitGroup
	if len(beds) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.bedWait(ctx, beds)
		}()
	}
	for _, f := range instant {
		p.dispatch(ctx, f, now)
	}
	if len(delayed) > 0 {
		p.sendDelayed(ctx, delayed)
	}
	wg.Wait()
}

func (p *Processor) sendDelayed(ctx context.Context, delayed []*model.FlipInstance) {
	rep := delayed[0]
	for _, f := range delayed[1:] {
		if f.Profit > rep.Profit {
			rep = f
		}
	}
	sendTime, err := p.fairness.AwaitSendTime(ctx, rep)
	if err != nil {
		if ctx.Err() != nil {
			p.log.Debugf("connection closed while delaying %d flips", len(delayed))
			return
		}
		p.log.Warnf("fairness delay for flip %d: %v", rep.ID(), err)
		sendTime = p.clock.Now()
	}
	for _, f := range delayed {
		p.dispatch(ctx, f, sendTime)
	}
}

// bedWait sends bed flips in ascending start order. Unless the fairness
// penalty already dominates, the client gets a countdown and a sound and
// the flip is released at BedRelease after auction start with fresh tags.
func (p *Processor) bedWait(ctx context.Context, beds []*model.FlipInstance) {
	sort.SliceStable(beds, func(i, j int) bool {
		return beds[i].Auction().Start.Before(beds[j].Auction().Start)
	})
	for _, f := range beds {
		start := f.Auction().Start
		if p.fairness.CurrentPenalty() > p.cfg.PenaltyBypass {
			natural := start.Add(properties.BedWindow).Sub(p.clock.Now())
			if err := p.clock.Sleep(ctx, natural); err != nil {
				return
			}
			p.dispatch(ctx, f, p.clock.Now())
			continue
		}

		release := start.Add(p.cfg.BedRelease)
		p.waitingBeds.Add(1)
		bedWaiting.Inc()
		p.host.StartTimer(release.Sub(p.clock.Now()), bedTimerPrefix)
		p.host.PlaySound(bedSound)
		err := p.clock.Sleep(ctx, release.Sub(p.clock.Now()))
		bedWaiting.Dec()
		if p.waitingBeds.Add(-1) == 0 {
			p.host.ClearTimer()
		}
		if err != nil {
			return
		}
		p.dispatch(ctx, p.project(f.Event, f), p.clock.Now())
	}
}
