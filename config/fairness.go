package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/flipnotify/core/delay"
)

// FairnessConfig feeds the static penalty source of the delay handler.
type FairnessConfig struct {
	BaseDelay     time.Duration            `json:"base_delay"`
	Penalties     map[string]time.Duration `json:"penalties"`
	LikelyBots    []string                 `json:"likely_bots"`
	MacroWarnings []string                 `json:"macro_warnings"`
	AntiAfk       []string                 `json:"anti_afk"`
}

// Static returns the penalty source configuration.
func (c FairnessConfig) Static() delay.StaticConfig {
	return delay.StaticConfig{
		Penalties:     c.Penalties,
		LikelyBots:    c.LikelyBots,
		MacroWarnings: c.MacroWarnings,
		AntiAfk:       c.AntiAfk,
	}
}

func (c FairnessConfig) Validate() error {
	if c.BaseDelay < 0 {
		return fmt.Errorf("fairness: base_delay must not be negative")
	}
	for acc, p := range c.Penalties {
		if p < 0 {
			return fmt.Errorf("fairness: negative penalty for %s", acc)
		}
	}
	return nil
}
