// Package spam limits how many flips a single connection receives.
package spam

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/flipnotify/core/model"
)

// Config configures a Controller.
type Config struct {
	// PerSecond and Burst size the token bucket shared by all flips.
	PerSecond float64 `json:"per_second"`
	Burst     int     `json:"burst"`
	// PerTag caps flips of one item tag within a window. Zero disables it.
	PerTag int `json:"per_tag"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.PerSecond == 0 {
		c.PerSecond = 10
	}
	if c.Burst == 0 {
		c.Burst = 20
	}
}

// Controller implements flip.RateGate with a token bucket and a per tag
// window counter that is reset by ResetWindow.
type Controller struct {
	limiter *rate.Limiter
	perTag  int
	now     func() time.Time

	mu   sync.Mutex
	tags map[string]int
}

// NewController builds a Controller from cfg.
func NewController(cfg Config) *Controller {
	cfg.SetDefaults()
	return &Controller{
		limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst),
		perTag:  cfg.PerTag,
		now:     time.Now,
		tags:    make(map[string]int),
	}
}

// Admit reports whether f may be sent.
func (c *Controller) Admit(f *model.FlipInstance) bool {
	tag := f.Auction().Tag
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.perTag > 0 && tag != "" && c.tags[tag] >= c.perTag {
		return false
	}
	if !c.limiter.AllowN(c.now(), 1) {
		return false
	}
	if tag != "" {
		c.tags[tag]++
	}
	return true
}

// ResetWindow clears the per tag counters.
func (c *Controller) ResetWindow() {
	c.mu.Lock()
	c.tags = make(map[string]int)
	c.mu.Unlock()
}
