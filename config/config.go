// Package config composes every subsystem configuration into one TOML
// document:
//
//	[kernel]
//	max_iterations = 10
//	command_timeout = "30s"
//
//	[kernel.agent]
//	model = "gpt-4o-mini"
//
//	[kernel.remote]
//	host_key_policy = "tofu"
//	known_hosts = "known_hosts"
//
//	[history]
//	driver = "sqlite"
//	path = "shellpilot.db"
//
//	[devices]
//	driver = "file"
//	path = "devices.yaml"
//	watch = true
//
//	[producers.chat]
//	model = "gpt-4o"
//
// Values missing from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/tailored-agentic-units/shellpilot/agent"
	"github.com/tailored-agentic-units/shellpilot/api"
	"github.com/tailored-agentic-units/shellpilot/device"
	"github.com/tailored-agentic-units/shellpilot/history"
	"github.com/tailored-agentic-units/shellpilot/kernel"
	"github.com/tailored-agentic-units/shellpilot/observability"
	"github.com/tailored-agentic-units/shellpilot/service"
)

// Producer names registered from configuration.
const (
	PlannerProducer = "planner"
	ChatProducer    = "chat"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the complete application configuration.
type Config struct {
	Kernel        kernel.Config           `toml:"kernel" json:"kernel"`
	Observability observability.Config    `toml:"observability" json:"observability"`
	History       history.Config          `toml:"history" json:"history"`
	Devices       device.Config           `toml:"devices" json:"devices"`
	Service       service.Config          `toml:"service" json:"service"`
	Server        api.Config              `toml:"server" json:"server"`
	Log           LogConfig               `toml:"log" json:"log"`
	Producers     map[string]agent.Config `toml:"producers" json:"producers,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level" json:"level,omitempty"`
	Format string `toml:"format" json:"format,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Kernel:        kernel.DefaultConfig(),
		Observability: observability.DefaultConfig(),
		History:       history.DefaultConfig(),
		Devices:       device.DefaultConfig(),
		Service:       service.DefaultConfig(),
		Server:        api.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	c.Kernel.Merge(&source.Kernel)
	c.Observability.Merge(&source.Observability)
	c.History.Merge(&source.History)
	c.Devices.Merge(&source.Devices)
	c.Service.Merge(&source.Service)
	c.Server.Merge(&source.Server)

	if source.Log.Level != "" {
		c.Log.Level = source.Log.Level
	}
	if source.Log.Format != "" {
		c.Log.Format = source.Log.Format
	}

	for name, p := range source.Producers {
		if c.Producers == nil {
			c.Producers = make(map[string]agent.Config)
		}
		existing, ok := c.Producers[name]
		if !ok {
			existing = agent.Config{}
		}
		existing.Merge(&p)
		c.Producers[name] = existing
	}
}

// Load reads the TOML file at path and merges it over the defaults. An
// empty path returns the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: %v", ErrUnknownKey, undecoded)
	}

	cfg.Merge(&file)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ErrUnknownKey reports a configuration key no subsystem recognizes.
var ErrUnknownKey = errors.New("unknown configuration key")

// Validate checks values that are not validated by their subsystem.
func (c *Config) Validate() error {
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Kernel.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.Kernel.MaxIterations)
	}
	return nil
}

// SlogLevel parses the configured level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// Producer returns the agent configuration registered under name. The
// planner is the kernel's agent; other names start from it and apply their
// own overrides.
func (c *Config) Producer(name string) agent.Config {
	cfg := agent.DefaultConfig()
	cfg.Merge(&c.Kernel.Agent)
	if name == PlannerProducer {
		return cfg
	}
	if override, ok := c.Producers[name]; ok {
		cfg.Merge(&override)
	}
	return cfg
}

// Environment overrides.
const (
	EnvModel     = "SHELLPILOT_MODEL"
	EnvServerURL = "SHELLPILOT_SERVER_URL"
	EnvLogLevel  = "SHELLPILOT_LOG_LEVEL"
	EnvHistory   = "SHELLPILOT_HISTORY_PATH"
)

// ApplyEnv overrides values from the environment. lookup is os.LookupEnv
// outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Kernel.Agent.Model = v
	}
	if v, ok := lookup(EnvServerURL); ok && v != "" {
		c.Server.ServerURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvHistory); ok && v != "" {
		c.History.Path = v
	}
}
