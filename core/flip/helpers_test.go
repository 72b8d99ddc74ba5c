package flip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/monitoring"
	"github.com/kilianp07/flipnotify/core/tracking"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		c.mu.Lock()
		c.now = c.now.Add(d)
		c.mu.Unlock()
	}
	return nil
}

type timerCall struct {
	d      time.Duration
	prefix string
}

type fakeHost struct {
	mu         sync.Mutex
	settings   *model.FilterSettings
	account    model.AccountInfo
	timers     []timerCall
	cleared    int
	sounds     []string
	heartbeats int
}

func newHost() *fakeHost {
	s := model.DefaultSettings()
	s.MinProfit = 0
	return &fakeHost{settings: s, account: model.AccountInfo{UserID: "u1", Tier: model.TierPremium}}
}

func (h *fakeHost) Settings() *model.FilterSettings { return h.settings }
func (h *fakeHost) Account() model.AccountInfo      { return h.account }

func (h *fakeHost) StartTimer(d time.Duration, prefix string) {
	h.mu.Lock()
	h.timers = append(h.timers, timerCall{d, prefix})
	h.mu.Unlock()
}

func (h *fakeHost) ClearTimer() {
	h.mu.Lock()
	h.cleared++
	h.mu.Unlock()
}

func (h *fakeHost) PlaySound(name string) {
	h.mu.Lock()
	h.sounds = append(h.sounds, name)
	h.mu.Unlock()
}

func (h *fakeHost) Heartbeat() {
	h.mu.Lock()
	h.heartbeats++
	h.mu.Unlock()
}

// fakeRules matches everything unless configured otherwise per id.
type fakeRules struct {
	reasons map[int64]string
	errs    map[int64]error
	panics  map[int64]bool
	match   string
}

func (r *fakeRules) Evaluate(_ *model.FilterSettings, f *model.FlipInstance) (bool, string, error) {
	if r.panics[f.ID()] {
		panic("boom")
	}
	if err, ok := r.errs[f.ID()]; ok {
		return false, "", err
	}
	if reason, ok := r.reasons[f.ID()]; ok {
		return false, reason, nil
	}
	if r.match != "" {
		return true, r.match, nil
	}
	return true, "general filter", nil
}

type fakeGate struct {
	mu     sync.Mutex
	refuse map[int64]bool
	resets int
}

func (g *fakeGate) Admit(f *model.FlipInstance) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.refuse[f.ID()]
}

func (g *fakeGate) ResetWindow() {
	g.mu.Lock()
	g.resets++
	g.mu.Unlock()
}

type fakeFairness struct {
	mu        sync.Mutex
	automated map[int64]bool
	penalty   time.Duration
	sendAt    time.Time
	calls     []int64
	onAwait   func()
	clock     Clock
}

func (f *fakeFairness) IsAutomatedClient(fl *model.FlipInstance) bool { return f.automated[fl.ID()] }
func (f *fakeFairness) CurrentPenalty() time.Duration                { return f.penalty }

func (f *fakeFairness) AwaitSendTime(ctx context.Context, fl *model.FlipInstance) (time.Time, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fl.ID())
	f.mu.Unlock()
	if f.onAwait != nil {
		f.onAwait()
	}
	if !f.sendAt.IsZero() {
		return f.sendAt, nil
	}
	return f.clock.Now(), nil
}

type sent struct {
	flip *model.FlipInstance
	at   time.Time
}

type fakeTransport struct {
	mu    sync.Mutex
	clock Clock
	sent  []sent
	fail  int
	err   error
	calls int
}

func (t *fakeTransport) SendFlip(_ context.Context, f *model.FlipInstance) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return t.err
	}
	if t.fail > 0 {
		t.fail--
		return errors.New("write failed")
	}
	t.sent = append(t.sent, sent{flip: f, at: t.clock.Now()})
	return nil
}

func (t *fakeTransport) Sent() []sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sent(nil), t.sent...)
}

func (t *fakeTransport) count(id int64) int {
	n := 0
	for _, s := range t.Sent() {
		if s.flip.ID() == id {
			n++
		}
	}
	return n
}

type memTracker struct {
	mu   sync.Mutex
	fail int
	recs map[string]tracking.Delivery
}

func (m *memTracker) RecordDelivery(_ context.Context, d tracking.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail > 0 {
		m.fail--
		return errors.New("tracking down")
	}
	if m.recs == nil {
		m.recs = make(map[string]tracking.Delivery)
	}
	m.recs[d.Key()] = d
	return nil
}

func (m *memTracker) all() []tracking.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tracking.Delivery
	for _, d := range m.recs {
		out = append(out, d)
	}
	return out
}

type fixture struct {
	host      *fakeHost
	rules     *fakeRules
	gate      *fakeGate
	fairness  *fakeFairness
	transport *fakeTransport
	tracker   *memTracker
	monitor   *monitoring.Recorder
	clock     *fakeClock
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	clock := newFakeClock()
	fx := &fixture{
		host:      newHost(),
		rules:     &fakeRules{},
		gate:      &fakeGate{refuse: map[int64]bool{}},
		fairness:  &fakeFairness{automated: map[int64]bool{}, clock: clock},
		transport: &fakeTransport{clock: clock},
		tracker:   &memTracker{},
		monitor:   &monitoring.Recorder{},
		clock:     clock,
	}
	cfg := DefaultConfig()
	cfg.Retry = RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	fx.deps = Deps{
		Rules:     fx.rules,
		Gate:      fx.gate,
		Fairness:  fx.fairness,
		Transport: fx.transport,
		Tracker:   fx.tracker,
		Monitor:   fx.monitor,
		Clock:     clock,
		Config:    &cfg,
	}
	return fx
}

func (fx *fixture) processor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(fx.host, fx.deps)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p
}

func candidate(id int64, finder model.FinderType) *model.CandidateEvent {
	return &model.CandidateEvent{
		ID:          id,
		Finder:      finder,
		TargetPrice: 2_000_000 + id,
		DailyVolume: 50,
		Auction: model.Auction{
			UUID:        "auction-" + string(rune('a'+id%26)),
			Tag:         "HYPERION",
			StartingBid: 1_000_000,
			FindTime:    epoch.Add(-500 * time.Millisecond),
		},
	}
}
