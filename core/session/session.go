// Package session owns the per-connection state around a flip processor:
// settings, keepalive pings, the blocked summary and fairness refreshes.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/flipnotify/core/delay"
	"github.com/kilianp07/flipnotify/core/flip"
	"github.com/kilianp07/flipnotify/core/logger"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/monitoring"
	"github.com/kilianp07/flipnotify/core/properties"
	"github.com/kilianp07/flipnotify/core/spam"
	"github.com/kilianp07/flipnotify/core/tracking"
	"github.com/kilianp07/flipnotify/internal/eventbus"
)

const tracerName = "github.com/kilianp07/flipnotify/core/session"

// PreventUpdateMsg as LastChanged suppresses the settings changed message.
const PreventUpdateMsg = "preventUpdateMsg"

const (
	blockedMsg      = "there were %d flips blocked by your filter the last minute"
	antiAfkMsg      = "You have been flipping for a while without a break. Please answer the check to keep receiving flips."
	macroWarningMsg = "Your reactions look automated. Flips may be delayed for this connection."
	lbinFinderMsg   = "Profit based on lowest bin is only accurate for the sniper finders, %s flips may show a wrong profit"
	lbinDisplayMsg  = "Lowest bin is only shown for sniper finders, other flips show the median instead"
	disabledMsg     = "you currently don't receive flips because you disabled them"
)

// Config holds the session timing and cap values.
type Config struct {
	PingInterval        time.Duration `json:"ping_interval"`
	HeartbeatDelay      time.Duration `json:"heartbeat_delay"`
	BlockedCap          int           `json:"blocked_cap"`
	BlockedEmergencyCap int           `json:"blocked_emergency_cap"`
	// RefreshJitter spreads the fairness refresh of many sessions.
	RefreshJitter time.Duration `json:"refresh_jitter"`
}

// DefaultConfig returns the production values.
func DefaultConfig() Config {
	return Config{
		PingInterval:        50 * time.Second,
		HeartbeatDelay:      20 * time.Second,
		BlockedCap:          500,
		BlockedEmergencyCap: 445,
		RefreshJitter:       2 * time.Second,
	}
}

// Deps are shared collaborators used to build each session.
type Deps struct {
	Rules      flip.RuleEngine
	Enricher   flip.Enricher
	Tracker    tracking.Tracker
	Selector   *properties.Selector
	Snapshots  flip.SnapshotSource
	Penalties  delay.PenaltySource
	BaseDelay  time.Duration
	Spam       spam.Config
	Challenger Challenger
	Bus        eventbus.Publisher
	Logger     logger.Logger
	Monitor    monitoring.Monitor
	Tracer     trace.Tracer
	Clock      flip.Clock
	Pipeline   *flip.Config
	Config     *Config
	// Gate and Fairness override the per session defaults.
	Gate     flip.RateGate
	Fairness flip.FairnessDelay
}

// Session is one connected client.
type Session struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	conn       Conn
	account    model.AccountInfo
	settings   atomic.Pointer[model.FilterSettings]
	proc       *flip.Processor
	gate       flip.RateGate
	delay      *delay.Handler
	rules      flip.RuleEngine
	challenger Challenger
	bus        eventbus.Publisher
	log        logger.Logger
	monitor    monitoring.Monitor
	tracer     trace.Tracer
	clock      flip.Clock
	cfg        Config

	mu              sync.Mutex
	pingTimer       *time.Timer
	nextPing        time.Time
	lastBlockedMsg  time.Time
	lbinWarningSent bool
	closed          bool
	hub             *Hub
}

// New builds a session for conn and starts its ping timer. The session
// lives until ctx is cancelled or Close is called.
func New(ctx context.Context, conn Conn, account model.AccountInfo, settings *model.FilterSettings, deps Deps) (*Session, error) {
	if conn == nil {
		return nil, fmt.Errorf("conn is nil")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("rule engine is nil")
	}
	cfg := DefaultConfig()
	if deps.Config != nil {
		cfg = *deps.Config
	}
	clock := deps.Clock
	if clock == nil {
		clock = flip.RealClock()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	bus := deps.Bus
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Session{
		id:         uuid.NewString(),
		conn:       conn,
		account:    account,
		rules:      deps.Rules,
		challenger: deps.Challenger,
		bus:        bus,
		log:        logger.OrNop(deps.Logger),
		monitor:    monitoring.OrNop(deps.Monitor),
		tracer:     tracer,
		clock:      clock,
		cfg:        cfg,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	if settings == nil {
		settings = model.DefaultSettings()
	}
	s.settings.Store(settings)

	s.delay = delay.NewHandler(deps.Penalties, account, deps.BaseDelay, clock)
	var fairness flip.FairnessDelay = s.delay
	if deps.Fairness != nil {
		fairness = deps.Fairness
	}
	s.gate = deps.Gate
	if s.gate == nil {
		s.gate = spam.NewController(deps.Spam)
	}
	proc, err := flip.NewProcessor(s, flip.Deps{
		Rules:     deps.Rules,
		Gate:      s.gate,
		Fairness:  fairness,
		Transport: conn,
		Tracker:   deps.Tracker,
		Enricher:  deps.Enricher,
		Selector:  deps.Selector,
		Snapshots: deps.Snapshots,
		Bus:       bus,
		Logger:    s.log,
		Monitor:   s.monitor,
		Tracer:    tracer,
		Clock:     clock,
		Config:    deps.Pipeline,
	})
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("processor: %w", err)
	}
	s.proc = proc

	s.mu.Lock()
	s.nextPing = clock.Now().Add(cfg.PingInterval)
	s.pingTimer = time.AfterFunc(cfg.PingInterval, s.onPingTimer)
	s.mu.Unlock()
	return s, nil
}

func (s *Session) onPingTimer() {
	s.SendPing()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.nextPing = s.clock.Now().Add(s.cfg.PingInterval)
	s.pingTimer.Reset(s.cfg.PingInterval)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Settings implements flip.Host.
func (s *Session) Settings() *model.FilterSettings { return s.settings.Load() }

// Account implements flip.Host.
func (s *Session) Account() model.AccountInfo { return s.account }

// Processor exposes the flip pipeline of the session.
func (s *Session) Processor() *flip.Processor { return s.proc }

// Deliver runs one candidate batch through the pipeline. The batch must
// be owned by this session.
func (s *Session) Deliver(batch []*model.CandidateEvent) {
	s.proc.NewFlips(s.ctx, batch)
}

// StartTimer shows a countdown using the display hints of the settings.
func (s *Session) StartTimer(d time.Duration, prefix string) {
	ms := model.ModSettings{}
	if st := s.Settings(); st != nil {
		ms = st.Mod
	}
	if ms.TimerPrefix != "" {
		prefix = ms.TimerPrefix
	}
	c := model.Countdown{
		Seconds:       d.Seconds(),
		WidthPercent:  orInt(ms.TimerX, 10),
		HeightPercent: orInt(ms.TimerY, 10),
		Scale:         orFloat(ms.TimerScale, 2),
		Prefix:        prefix,
		MaxPrecision:  orInt(ms.TimerPrecision, 3),
	}
	if err := s.conn.SendCountdown(s.ctx, c); err != nil && !errors.Is(err, flip.ErrConnectionClosed) {
		s.log.Warnf("countdown for %s: %v", s.account.UserID, err)
	}
}

// ClearTimer removes an active countdown.
func (s *Session) ClearTimer() { s.StartTimer(0, "clear timer") }

// PlaySound implements flip.Host.
func (s *Session) PlaySound(name string) {
	if err := s.conn.PlaySound(s.ctx, name); err != nil && !errors.Is(err, flip.ErrConnectionClosed) {
		s.log.Warnf("sound for %s: %v", s.account.UserID, err)
	}
}

// Heartbeat moves the next keepalive ping closer since flips show the
// connection is alive.
func (s *Session) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pingTimer == nil {
		return
	}
	s.nextPing = s.clock.Now().Add(s.cfg.HeartbeatDelay)
	s.pingTimer.Reset(s.cfg.HeartbeatDelay)
}

// NextPing returns when the keepalive ping is due.
func (s *Session) NextPing() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPing
}

// UpdateSettings swaps the filter settings and tells the user.
func (s *Session) UpdateSettings(settings *model.FilterSettings) {
	if settings == nil {
		return
	}
	s.settings.Store(settings)
	msg := settings.LastChanged
	if msg == "" {
		msg = "Settings changed"
	}
	if msg != PreventUpdateMsg {
		s.send(msg)
	}
	s.applyWarnings(settings)

	// evaluate once so a broken filter surfaces now and not on the first flip
	preload := model.NewFlipInstance(&model.CandidateEvent{Props: model.NewProperties()})
	if _, _, err := s.safeEvaluate(settings, preload); err != nil {
		s.log.Warnf("preloading filter for %s: %v", s.account.UserID, err)
	}
}

func (s *Session) safeEvaluate(st *model.FilterSettings, f *model.FlipInstance) (ok bool, reason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.rules.Evaluate(st, f)
}

func (s *Session) applyWarnings(st *model.FilterSettings) {
	other := st.EnabledFinders() &^ (model.FinderSniper | model.FinderSniperMedian)
	if st.BasedOnLBin && other != 0 {
		s.send(fmt.Sprintf(lbinFinderMsg, other))
	}
	if st.Visibility.LowestBin && other != 0 {
		s.mu.Lock()
		first := !s.lbinWarningSent
		s.lbinWarningSent = true
		s.mu.Unlock()
		if first {
			s.send(lbinDisplayMsg)
		}
	}
}

// SendPing reports the blocked summary, or sends a neutral keepalive when
// there is nothing to report, and refreshes the fairness summary. A session
// with flips disabled is reminded of it instead of the keepalive.
func (s *Session) SendPing() {
	ctx, span := s.tracer.Start(s.ctx, "ping")
	defer span.End()

	go s.refreshLater()
	s.gate.ResetWindow()

	count := s.proc.BlockedCount()
	span.SetAttributes(attribute.Int64("count", count), attribute.String("user", s.account.UserID))
	if count > 1000 {
		span.SetAttributes(attribute.Bool("error", true))
	}

	now := s.clock.Now()
	var err error
	if count > 0 && s.blockedMsgDue(now) {
		err = s.conn.SendMessage(ctx, fmt.Sprintf(blockedMsg, count))
		s.mu.Lock()
		s.lastBlockedMsg = now
		s.mu.Unlock()
		s.proc.TrimBlocked(s.cfg.BlockedEmergencyCap)
		pings.WithLabelValues("blocked").Inc()
	} else if st := s.Settings(); st != nil && st.DisableFlips {
		err = s.conn.SendMessage(ctx, disabledMsg)
		pings.WithLabelValues("disabled").Inc()
	} else {
		err = s.conn.Ping(ctx)
		pings.WithLabelValues("neutral").Inc()
	}
	switch {
	case errors.Is(err, flip.ErrConnectionClosed):
		s.log.Infof("session %s closed during ping", s.id)
		s.Close()
	case err != nil:
		s.log.Warnf("ping %s: %v", s.id, err)
	}
}

func (s *Session) blockedMsgDue(now time.Time) bool {
	minutes := 0
	if st := s.Settings(); st != nil {
		minutes = st.Mod.MinutesBetweenBlocked
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBlockedMsg.Add(time.Duration(minutes) * time.Minute).Before(now)
}

func (s *Session) refreshLater() {
	if s.cfg.RefreshJitter > 0 {
		if err := s.clock.Sleep(s.ctx, rand.N(s.cfg.RefreshJitter)); err != nil {
			return
		}
	}
	s.RefreshDelay(s.ctx)
}

// RefreshDelay fetches a new delay summary and reacts to its flags.
func (s *Session) RefreshDelay(ctx context.Context) {
	sum, err := s.delay.Update(ctx)
	if err != nil {
		s.log.Warnf("refresh delay: %v", err)
		s.monitor.CaptureException(err, map[string]string{"stage": "delay", "user": s.account.UserID})
		return
	}
	st := s.Settings()
	if sum.AntiAfk && st != nil && !st.DisableFlips {
		s.send(antiAfkMsg)
		if s.challenger != nil {
			if err := s.challenger.Challenge(ctx, s.account); err != nil {
				s.log.Warnf("challenge for %s: %v", s.account.UserID, err)
			}
		}
	}
	if sum.MacroWarning {
		s.send(macroWarningMsg)
		_, span := s.tracer.Start(ctx, "macroWarning", trace.WithAttributes(attribute.String("user", s.account.UserID)))
		span.End()
	}
	if sum.Penalty > 0 {
		_, span := s.tracer.Start(ctx, "nerv", trace.WithAttributes(
			attribute.String("user", s.account.UserID),
			attribute.String("summary", summaryJSON(sum)),
		))
		span.End()
	}
}

// DelaySummary returns the last fairness summary.
func (s *Session) DelaySummary() model.DelaySummary { return s.delay.Summary() }

// HouseKeeping runs the per-minute reset and bounds the blocked log.
func (s *Session) HouseKeeping() {
	s.proc.MinuteCleanup()
	s.proc.TrimBlocked(s.cfg.BlockedCap)
}

// Blocked returns the blocked log, oldest first.
func (s *Session) Blocked() []flip.BlockedFlip { return s.proc.Blocked() }

// Recent returns the most recently sent flips.
func (s *Session) Recent() []*model.CandidateEvent { return s.proc.Recent() }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Close stops the session, closes the connection and leaves the hub.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.pingTimer != nil {
		s.pingTimer.Stop()
	}
	hub := s.hub
	s.mu.Unlock()

	s.cancel()
	if err := s.conn.Close(); err != nil {
		s.log.Debugf("closing conn %s: %v", s.id, err)
	}
	if hub != nil {
		hub.Remove(s.id)
	}
}

func (s *Session) send(text string) {
	if err := s.conn.SendMessage(s.ctx, text); err != nil && !errors.Is(err, flip.ErrConnectionClosed) {
		s.log.Warnf("message to %s: %v", s.account.UserID, err)
	}
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
