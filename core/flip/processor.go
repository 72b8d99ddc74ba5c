// Package flip implements the per-connection flip dispatch pipeline.
//
// A Processor receives candidate batches, filters and deduplicates them,
// applies the fairness and bed delays and hands survivors to the
// connection transport. Tracking and metrics run on supervised tasks so a
// slow analytics backend never holds up a send.
package flip

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/flipnotify/core/logger"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/monitoring"
	"github.com/kilianp07/flipnotify/core/properties"
	"github.com/kilianp07/flipnotify/core/tracking"
	"github.com/kilianp07/flipnotify/internal/eventbus"
)

const tracerName = "github.com/kilianp07/flipnotify/core/flip"

// Config holds the pipeline tunables.
type Config struct {
	DedupThreshold int           `json:"dedup_threshold"`
	DedupMaxAge    time.Duration `json:"dedup_max_age"`
	RecentCap      int           `json:"recent_cap"`
	SlowThreshold  time.Duration `json:"slow_threshold"`
	// BedThreshold is the minimum time left in the bed window for a flip
	// to be held back.
	BedThreshold time.Duration `json:"bed_threshold"`
	// BedRelease is the offset from auction start at which bed flips go out.
	BedRelease time.Duration `json:"bed_release"`
	// PenaltyBypass skips the bed countdown when the fairness penalty is larger.
	PenaltyBypass time.Duration `json:"penalty_bypass"`
	Retry         RetryPolicy   `json:"retry"`
}

// DefaultConfig returns the production values.
func DefaultConfig() Config {
	return Config{
		DedupThreshold: 700,
		DedupMaxAge:    2 * time.Minute,
		RecentCap:      30,
		SlowThreshold:  15 * time.Second,
		BedThreshold:   3100 * time.Millisecond,
		BedRelease:     17 * time.Second,
		PenaltyBypass:  600 * time.Millisecond,
		Retry:          DefaultRetryPolicy(),
	}
}

// Deps is the explicit dependency set of a Processor. Rules, Gate,
// Fairness and Transport are required.
type Deps struct {
	Rules     RuleEngine
	Gate      RateGate
	Fairness  FairnessDelay
	Transport Transport

	Tracker   tracking.Tracker
	Enricher  Enricher
	Selector  *properties.Selector
	Snapshots SnapshotSource
	Bus       eventbus.Publisher
	Logger    logger.Logger
	Monitor   monitoring.Monitor
	Tracer    trace.Tracer
	Clock     Clock
	Config    *Config
}

// Processor runs the pipeline for one connection.
type Processor struct {
	host      Host
	rules     RuleEngine
	gate      RateGate
	fairness  FairnessDelay
	transport Transport
	tracker   tracking.Tracker
	enricher  Enricher
	selector  *properties.Selector
	snapshots SnapshotSource
	bus       eventbus.Publisher
	log       logger.Logger
	monitor   monitoring.Monitor
	tracer    trace.Tracer
	clock     Clock
	cfg       Config

	dedup     *DedupCache
	blocked   *BlockedLog
	recent    *Queue[*model.CandidateEvent]
	latencies *Queue[float64]
	sup       *Supervisor

	blockedCount atomic.Int64
	sentCount    atomic.Int64
	waitingBeds  atomic.Int32
	batches      sync.WaitGroup
}

// NewProcessor validates deps and builds a Processor for host.
func NewProcessor(host Host, deps Deps) (*Processor, error) {
	if host == nil {
		return nil, fmt.Errorf("host is nil")
	}
	if deps.Rules == nil || deps.Gate == nil || deps.Fairness == nil || deps.Transport == nil {
		return nil, fmt.Errorf("rules, gate, fairness and transport are required")
	}
	cfg := DefaultConfig()
	if deps.Config != nil {
		cfg = *deps.Config
	}
	p := &Processor{
		host:      host,
		rules:     deps.Rules,
		gate:      deps.Gate,
		fairness:  deps.Fairness,
		transport: deps.Transport,
		tracker:   deps.Tracker,
		enricher:  deps.Enricher,
		selector:  deps.Selector,
		snapshots: deps.Snapshots,
		bus:       deps.Bus,
		log:       logger.OrNop(deps.Logger),
		monitor:   monitoring.OrNop(deps.Monitor),
		tracer:    deps.Tracer,
		clock:     deps.Clock,
		cfg:       cfg,
		dedup:     NewDedupCache(cfg.DedupThreshold, cfg.DedupMaxAge),
		blocked:   NewQueue[BlockedFlip](),
		recent:    NewQueue[*model.CandidateEvent](),
		latencies: NewQueue[float64](),
	}
	if p.tracker == nil {
		p.tracker = tracking.NopTracker{}
	}
	if p.selector == nil {
		p.selector = properties.NewSelector(nil)
	}
	if p.bus == nil {
		p.bus = eventbus.Nop{}
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	if p.clock == nil {
		p.clock = RealClock()
	}
	p.sup = NewSupervisor(p.log, p.monitor, cfg.Retry)
	return p, nil
}

// NewFlips processes one batch. It returns once every flip of the batch
// was sent or dropped; tracking may still be running afterwards.
// Faults of single flips are logged and never abort the batch.
func (p *Processor) NewFlips(ctx context.Context, batch []*model.CandidateEvent) {
	settings := p.host.Settings()
	if settings == nil || settings.DisableFlips || len(batch) == 0 {
		return
	}
	p.batches.Add(1)
	defer p.batches.Done()

	var uuid string
	for _, e := range batch {
		if e != nil {
			uuid = e.Auction.UUID
			break
		}
	}
	ctx, span := p.tracer.Start(ctx, "flip", trace.WithAttributes(
		attribute.String("uuid", uuid),
		attribute.Int("batchSize", len(batch)),
	))
	defer span.End()

	flips := make([]*model.FlipInstance, 0, len(batch))
	for _, e := range batch {
		if e == nil || p.dedup.Contains(e.ID) {
			continue
		}
		e.EnsureProps()
		f := p.project(e, nil)
		if p.prefilter(f, settings) {
			flips = append(flips, f)
		}
	}
	// only survivors of the finder and sold checks pay for lookups
	p.enrich(ctx, flips, settings)

	admitted := flips[:0]
	for _, f := range flips {
		if p.admit(f, settings) {
			admitted = append(admitted, f)
		}
	}
	span.SetAttributes(attribute.Int("admitted", len(admitted)))
	p.schedule(ctx, admitted, settings)
	p.afterBatch()
}

// project builds the per-connection view of e. Visibility data of prev is
// carried over so a rebuild after the bed wait keeps enrichment results.
// The WL marker is only set by admit; a rebuilt flip ranks its tags afresh.
func (p *Processor) project(e *model.CandidateEvent, prev *model.FlipInstance) *model.FlipInstance {
	f := model.NewFlipInstance(e)
	f.Interesting = p.selector.Interesting(e.Auction, p.clock.Now(), 0)
	if prev != nil {
		f.Profit, f.ProfitPercentage = prev.Profit, prev.ProfitPercentage
		f.LowestBin, f.ShowLowestBin = prev.LowestBin, prev.ShowLowestBin
		f.SellerName, f.ShowSeller = prev.SellerName, prev.ShowSeller
	}
	return f
}

// Wait blocks until running batches and background tasks finished.
func (p *Processor) Wait() {
	p.batches.Wait()
	p.sup.Wait()
}
