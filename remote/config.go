package remote

import (
	"time"

	"github.com/tailored-agentic-units/shellpilot/core/config"
)

// HostKeyPolicy selects how server host keys are verified.
type HostKeyPolicy string

const (
	// HostKeyTOFU accepts and remembers the key of a host seen for the first
	// time and rejects a later change of that key.
	HostKeyTOFU HostKeyPolicy = "tofu"
	// HostKeyStrict accepts only keys already listed in known_hosts.
	HostKeyStrict HostKeyPolicy = "strict"
	// HostKeyInsecure accepts any key without remembering it.
	HostKeyInsecure HostKeyPolicy = "insecure"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultTermType       = "xterm"
	defaultTermWidth      = 200
	defaultTermHeight     = 50
)

// Config holds remote session parameters shared by every connection.
type Config struct {
	ConnectTimeout config.Duration `toml:"connect_timeout" json:"connect_timeout,omitempty"`
	HostKeyPolicy  HostKeyPolicy   `toml:"host_key_policy" json:"host_key_policy,omitempty"`
	// KnownHostsPath persists remembered keys. Empty keeps them in memory
	// for the lifetime of the connector.
	KnownHostsPath string     `toml:"known_hosts" json:"known_hosts,omitempty"`
	Term           TermConfig `toml:"term" json:"term"`
}

// TermConfig describes the pseudo-terminal requested for interactive shells.
type TermConfig struct {
	Type   string `toml:"type" json:"type,omitempty"`
	Width  int    `toml:"width" json:"width,omitempty"`
	Height int    `toml:"height" json:"height,omitempty"`
}

// DefaultConfig returns the default remote configuration: trust on first use
// with in-memory key storage.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: config.Duration(defaultConnectTimeout),
		HostKeyPolicy:  HostKeyTOFU,
		Term: TermConfig{
			Type:   defaultTermType,
			Width:  defaultTermWidth,
			Height: defaultTermHeight,
		},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.ConnectTimeout > 0 {
		c.ConnectTimeout = source.ConnectTimeout
	}
	if source.HostKeyPolicy != "" {
		c.HostKeyPolicy = source.HostKeyPolicy
	}
	if source.KnownHostsPath != "" {
		c.KnownHostsPath = source.KnownHostsPath
	}
	if source.Term.Type != "" {
		c.Term.Type = source.Term.Type
	}
	if source.Term.Width > 0 {
		c.Term.Width = source.Term.Width
	}
	if source.Term.Height > 0 {
		c.Term.Height = source.Term.Height
	}
}

// IdleConfig tunes the idle-drain used to collect interactive shell output.
// Output is read after Settle, then every Poll, until a poll finds no new
// data. MaxWait bounds a shell that never goes quiet. Zero fields take the
// defaults.
type IdleConfig struct {
	Settle  config.Duration `toml:"settle" json:"settle,omitempty"`
	Poll    config.Duration `toml:"poll" json:"poll,omitempty"`
	MaxWait config.Duration `toml:"max_wait" json:"max_wait,omitempty"`
}

// DefaultIdleConfig returns the reference drain timing: a 2s settle and
// 500ms polls, capped at one minute.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		Settle:  config.Duration(2 * time.Second),
		Poll:    config.Duration(500 * time.Millisecond),
		MaxWait: config.Duration(time.Minute),
	}
}

// Merge applies non-zero values from source into c.
func (c *IdleConfig) Merge(source *IdleConfig) {
	if source.Settle > 0 {
		c.Settle = source.Settle
	}
	if source.Poll > 0 {
		c.Poll = source.Poll
	}
	if source.MaxWait > 0 {
		c.MaxWait = source.MaxWait
	}
}
