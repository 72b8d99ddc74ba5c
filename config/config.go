package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/flipnotify/core/factory"
	"github.com/kilianp07/flipnotify/core/flip"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/session"
	"github.com/kilianp07/flipnotify/core/spam"
	"github.com/kilianp07/flipnotify/infra/lookup"
	"github.com/kilianp07/flipnotify/infra/tracing"
)

type Config struct {
	Server          ServerConfig          `json:"server"`
	Logging         LoggingConfig         `json:"logging"`
	Source          factory.ModuleConfig  `json:"source"`
	Redis           lookup.Config         `json:"redis"`
	Pipeline        flip.Config           `json:"pipeline"`
	Session         session.Config        `json:"session"`
	Fairness        FairnessConfig        `json:"fairness"`
	Spam            spam.Config           `json:"spam"`
	Tracking        TrackingConfig        `json:"tracking"`
	Sentry          SentryConfig          `json:"sentry"`
	Tracing         tracing.Config        `json:"tracing"`
	DefaultSettings *model.FilterSettings `json:"default_settings"`
}

// TrackingConfig lists the delivery trackers; several are combined.
type TrackingConfig struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Default returns the configuration used when a file omits a section.
func Default() Config {
	return Config{
		Server:          ServerConfig{Addr: ":8080"},
		Logging:         LoggingConfig{Level: "info"},
		Source:          factory.ModuleConfig{Type: "none"},
		Pipeline:        flip.DefaultConfig(),
		Session:         session.DefaultConfig(),
		DefaultSettings: model.DefaultSettings(),
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Redis.SetDefaults()
	c.Spam.SetDefaults()
	c.Tracing.SetDefaults()
	if c.Source.Type == "" {
		c.Source.Type = "none"
	}
	if c.DefaultSettings == nil {
		c.DefaultSettings = model.DefaultSettings()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Fairness.Validate(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	if c.Pipeline.DedupThreshold <= 0 || c.Pipeline.RecentCap <= 0 {
		return fmt.Errorf("pipeline: dedup_threshold and recent_cap must be positive")
	}
	if c.Session.BlockedEmergencyCap > c.Session.BlockedCap {
		return fmt.Errorf("session: blocked_emergency_cap %d exceeds blocked_cap %d",
			c.Session.BlockedEmergencyCap, c.Session.BlockedCap)
	}
	for i, s := range c.Tracking.Sinks {
		if s.Type == "" {
			return fmt.Errorf("tracking.sinks[%d]: type is required", i)
		}
	}
	return nil
}
