package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flipnotify/core/model"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `server:
  addr: ":9000"
  api_token: "secret"
logging:
  level: debug
source:
  type: mqtt
  conf:
    broker: "tcp://localhost:1883"
    topic: "flips/batch"
redis:
  addr: "localhost:6379"
pipeline:
  dedup_threshold: 50
  slow_threshold: "20s"
fairness:
  base_delay: "150ms"
  penalties:
    u1: "2s"
  likely_bots: [u2]
spam:
  per_tag: 3
tracking:
  sinks:
    - type: jsonl
      conf:
        path: deliveries.jsonl
default_settings:
  min_profit: 250000
  allowed_finders: "SNIPER,FLIPPER"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.addr", cfg.Server.Addr, ":9000"},
		{"server.api_token", cfg.Server.APIToken, "secret"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"source.type", cfg.Source.Type, "mqtt"},
		{"source.conf.broker", cfg.Source.Conf["broker"], "tcp://localhost:1883"},
		{"redis.prefix", cfg.Redis.Prefix, "flip"},
		{"pipeline.dedup_threshold", cfg.Pipeline.DedupThreshold, 50},
		{"pipeline.slow_threshold", cfg.Pipeline.SlowThreshold, 20 * time.Second},
		{"pipeline.recent_cap", cfg.Pipeline.RecentCap, 30},
		{"session.blocked_cap", cfg.Session.BlockedCap, 500},
		{"fairness.base_delay", cfg.Fairness.BaseDelay, 150 * time.Millisecond},
		{"fairness.penalties", cfg.Fairness.Static().Penalties["u1"], 2 * time.Second},
		{"spam.per_second", cfg.Spam.PerSecond, 10.0},
		{"spam.per_tag", cfg.Spam.PerTag, 3},
		{"tracking", len(cfg.Tracking.Sinks) == 1 && cfg.Tracking.Sinks[0].Type == "jsonl", true},
		{"default_settings.min_profit", cfg.DefaultSettings.MinProfit, int64(250000)},
		{"default_settings.min_volume", cfg.DefaultSettings.MinVolume, 20.0},
		{"default_settings.allowed_finders", cfg.DefaultSettings.AllowedFinders, model.FinderSniper | model.FinderFlipper},
		{"tracing.sample_ratio", cfg.Tracing.SampleRatio, 1.0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"server":{"addr":":8080"}}`)
	t.Setenv("K_SERVER__ADDR", ":7070")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "none", cfg.Source.Type)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "c.toml", ""))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "c.yaml", "logging:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "c.yaml", "session:\n  blocked_cap: 10\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "c.yaml", "tracking:\n  sinks:\n    - conf: {}\n"))
	assert.Error(t, err)
}
