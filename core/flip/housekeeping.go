package flip

import "github.com/kilianp07/flipnotify/core/model"

// afterBatch bounds the per-connection caches once per processed batch.
func (p *Processor) afterBatch() {
	if n := p.dedup.Prune(p.clock.Now()); n > 0 {
		p.log.Debugf("pruned %d dedup entries", n)
	}
	p.recent.TrimTo(p.cfg.RecentCap)
	p.latencies.TrimTo(p.cfg.RecentCap)
}

// MinuteCleanup resets the per-minute blocked counter and the rate gate window.
func (p *Processor) MinuteCleanup() {
	p.blockedCount.Store(0)
	p.gate.ResetWindow()
}

// TrimBlocked keeps at most n entries in the blocked log.
func (p *Processor) TrimBlocked(n int) int { return p.blocked.TrimTo(n) }

// BlockedCount returns the number of blocks since the last MinuteCleanup.
func (p *Processor) BlockedCount() int64 { return p.blockedCount.Load() }

// Blocked returns the blocked log, oldest first.
func (p *Processor) Blocked() []BlockedFlip { return p.blocked.Items() }

// Recent returns the most recently sent flips, oldest first.
func (p *Processor) Recent() []*model.CandidateEvent { return p.recent.Items() }

// SentCount returns how many flips were handed to the transport.
func (p *Processor) SentCount() int64 { return p.sentCount.Load() }

// DedupSize returns the number of ids in the dedup cache.
func (p *Processor) DedupSize() int { return p.dedup.Len() }

// WaitingBeds returns how many bed flips are waiting for release.
func (p *Processor) WaitingBeds() int { return int(p.waitingBeds.Load()) }
