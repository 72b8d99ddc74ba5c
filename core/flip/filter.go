package flip

import (
	"fmt"
	"strings"

	"github.com/kilianp07/flipnotify/core/events"
	"github.com/kilianp07/flipnotify/core/model"
)

// prefilter drops flips of disabled finders and sold auctions before any
// enrichment. User submitted flips of a disabled finder are dropped silently.
func (p *Processor) prefilter(f *model.FlipInstance, s *model.FilterSettings) bool {
	e := f.Event
	if s.IsFinderBlocked(e.Finder) {
		if e.Finder == model.FinderUser {
			return false
		}
		return p.blockedFlip(f, "finder "+e.Finder.String())
	}
	if e.Sold {
		return p.blockedFlip(f, "sold")
	}
	return true
}

// admit runs the remaining admission checks in order and commits f to the
// dedup cache. Every logged refusal goes through blockedFlip.
func (p *Processor) admit(f *model.FlipInstance, s *model.FilterSettings) bool {
	e := f.Event
	if p.dedup.Contains(e.ID) {
		return false
	}
	matched, reason, err := p.evaluate(s, f)
	if err != nil {
		p.log.Errorf("evaluating flip %d for %s: %v", e.ID, p.host.Account().UserID, err)
		p.monitor.CaptureException(err, map[string]string{
			"stage":   "rules",
			"auction": e.Auction.UUID,
			"user":    p.host.Account().UserID,
		})
		return p.blockedFlip(f, "Error "+err.Error())
	}
	if !matched {
		return p.blockedFlip(f, reason)
	}
	e.Props.Set("match", reason)
	if isWhitelist(reason) {
		f.Interesting = append([]string{"WL"}, f.Interesting...)
	}
	if !p.dedup.TryAdd(e.ID, p.clock.Now()) {
		return false
	}
	if !p.gate.Admit(f) {
		return p.blockedFlip(f, "spam")
	}
	e.Props.Set("dl", p.clock.Now().Sub(e.Auction.FindTime).String())
	return true
}

func (p *Processor) evaluate(s *model.FilterSettings, f *model.FlipInstance) (matched bool, reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched, reason, err = false, "", fmt.Errorf("panic: %v", r)
		}
	}()
	return p.rules.Evaluate(s, f)
}

// blockedFlip records a policy block and always returns false.
func (p *Processor) blockedFlip(f *model.FlipInstance, reason string) bool {
	now := p.clock.Now()
	p.blocked.Push(BlockedFlip{Event: f.Event, Reason: reason, At: now})
	p.blockedCount.Add(1)
	blockedFlips.WithLabelValues(blockKind(reason)).Inc()
	p.bus.Publish(events.FlipBlocked{
		AccountID: p.host.Account().UserID,
		EventID:   f.ID(),
		Reason:    reason,
		At:        now,
	})
	return false
}

func blockKind(reason string) string {
	switch {
	case strings.HasPrefix(reason, "finder "):
		return "finder"
	case reason == "sold":
		return "sold"
	case reason == "spam":
		return "spam"
	case strings.HasPrefix(reason, "Error "):
		return "error"
	default:
		return "filter"
	}
}

func isWhitelist(reason string) bool { return strings.HasPrefix(reason, "whitelist") }
