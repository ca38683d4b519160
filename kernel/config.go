package kernel

import (
	"time"

	"github.com/tailored-agentic-units/shellpilot/agent"
	"github.com/tailored-agentic-units/shellpilot/core/config"
	"github.com/tailored-agentic-units/shellpilot/remote"
)

const (
	defaultMaxIterations   = 10
	defaultProducerTimeout = 2 * time.Minute
	defaultCommandTimeout  = 30 * time.Second
)

// Config holds initialization parameters for the execution loop and the
// subsystems it creates.
type Config struct {
	Agent  agent.Config      `toml:"agent" json:"agent"`
	Remote remote.Config     `toml:"remote" json:"remote"`
	Idle   remote.IdleConfig `toml:"idle" json:"idle"`

	MaxIterations   int             `toml:"max_iterations" json:"max_iterations,omitempty"`
	ProducerTimeout config.Duration `toml:"producer_timeout" json:"producer_timeout,omitempty"`
	CommandTimeout  config.Duration `toml:"command_timeout" json:"command_timeout,omitempty"`
}

// DefaultConfig returns a Config with defaults for every subsystem.
func DefaultConfig() Config {
	return Config{
		Agent:           agent.DefaultConfig(),
		Remote:          remote.DefaultConfig(),
		Idle:            remote.DefaultIdleConfig(),
		MaxIterations:   defaultMaxIterations,
		ProducerTimeout: config.Duration(defaultProducerTimeout),
		CommandTimeout:  config.Duration(defaultCommandTimeout),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Remote.Merge(&source.Remote)
	c.Idle.Merge(&source.Idle)

	if source.MaxIterations > 0 {
		c.MaxIterations = source.MaxIterations
	}
	if source.ProducerTimeout > 0 {
		c.ProducerTimeout = source.ProducerTimeout
	}
	if source.CommandTimeout > 0 {
		c.CommandTimeout = source.CommandTimeout
	}
}
