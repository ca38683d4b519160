package api

import (
	"time"

	"github.com/tailored-agentic-units/shellpilot/core/config"
)

// Config holds HTTP server settings. ServerURL is used by CLI commands that
// talk to a running server instead of executing in-process.
type Config struct {
	Addr            string          `toml:"addr" json:"addr,omitempty"`
	ServerURL       string          `toml:"server_url" json:"server_url,omitempty"`
	ShutdownTimeout config.Duration `toml:"shutdown_timeout" json:"shutdown_timeout,omitempty"`
}

// DefaultConfig listens on localhost port 5000.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:5000",
		ShutdownTimeout: config.Duration(10 * time.Second),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if source.ServerURL != "" {
		c.ServerURL = source.ServerURL
	}
	if source.ShutdownTimeout > 0 {
		c.ShutdownTimeout = source.ShutdownTimeout
	}
}
