package config

import (
	"fmt"
	"time"
)

// ServerConfig configures the HTTP listener serving the websocket endpoint,
// the session API and /metrics.
type ServerConfig struct {
	Addr string `json:"addr"`
	// APIToken protects /api. Empty disables the check.
	APIToken        string        `json:"api_token"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server: addr is required")
	}
	return nil
}
