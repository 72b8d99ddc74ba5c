// Package delay provides the default fairness delay for a connection.
package delay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/flipnotify/core/flip"
	"github.com/kilianp07/flipnotify/core/model"
)

// PenaltySource supplies the externally computed delay summary.
type PenaltySource interface {
	Summary(ctx context.Context, account model.AccountInfo) (model.DelaySummary, error)
}

// Handler implements flip.FairnessDelay from the last fetched summary.
type Handler struct {
	source  PenaltySource
	account model.AccountInfo
	base    time.Duration
	clock   flip.Clock

	mu      sync.RWMutex
	summary model.DelaySummary
}

// NewHandler creates a Handler. base is added to every delayed batch.
func NewHandler(source PenaltySource, account model.AccountInfo, base time.Duration, clock flip.Clock) *Handler {
	if clock == nil {
		clock = flip.RealClock()
	}
	return &Handler{source: source, account: account, base: base, clock: clock}
}

// Update refreshes the summary from the source.
func (h *Handler) Update(ctx context.Context) (model.DelaySummary, error) {
	if h.source == nil {
		return h.Summary(), nil
	}
	s, err := h.source.Summary(ctx, h.account)
	if err != nil {
		return h.Summary(), fmt.Errorf("delay summary for %s: %w", h.account.UserID, err)
	}
	if s.VerifiedAt.IsZero() {
		s.VerifiedAt = h.clock.Now()
	}
	h.mu.Lock()
	h.summary = s
	h.mu.Unlock()
	return s, nil
}

// Summary returns the last fetched summary.
func (h *Handler) Summary() model.DelaySummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.summary
}

// IsAutomatedClient is true for connections flagged as likely automated.
// Those already react faster than a human, so holding their flips back
// would not equalise anything.
func (h *Handler) IsAutomatedClient(*model.FlipInstance) bool {
	return h.Summary().LikelyBot
}

// CurrentPenalty returns the penalty of the last summary.
func (h *Handler) CurrentPenalty() time.Duration {
	return h.Summary().Penalty
}

// AwaitSendTime sleeps for the base delay plus the current penalty.
func (h *Handler) AwaitSendTime(ctx context.Context, _ *model.FlipInstance) (time.Time, error) {
	if err := h.clock.Sleep(ctx, h.base+h.CurrentPenalty()); err != nil {
		return time.Time{}, err
	}
	return h.clock.Now(), nil
}

// StaticConfig lists penalties by user id. It stands in for the external
// fairness service.
type StaticConfig struct {
	Penalties     map[string]time.Duration `json:"penalties"`
	LikelyBots    []string                 `json:"likely_bots"`
	MacroWarnings []string                 `json:"macro_warnings"`
	AntiAfk       []string                 `json:"anti_afk"`
}

// StaticSource implements PenaltySource from configuration.
type StaticSource struct {
	cfg StaticConfig
}

// NewStaticSource returns a StaticSource for cfg.
func NewStaticSource(cfg StaticConfig) *StaticSource { return &StaticSource{cfg: cfg} }

func (s *StaticSource) Summary(_ context.Context, a model.AccountInfo) (model.DelaySummary, error) {
	return model.DelaySummary{
		Penalty:      s.cfg.Penalties[a.UserID],
		LikelyBot:    contains(s.cfg.LikelyBots, a.UserID),
		MacroWarning: contains(s.cfg.MacroWarnings, a.UserID),
		AntiAfk:      contains(s.cfg.AntiAfk, a.UserID),
	}, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
