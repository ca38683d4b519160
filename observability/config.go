package observability

// Config selects the observers used by the service. Sinks name registered
// observers; "nats" is registered at startup when NATS.URL is set.
type Config struct {
	Sinks []string   `toml:"sinks" json:"sinks,omitempty"`
	NATS  NATSConfig `toml:"nats" json:"nats"`
}

// NATSConfig configures event publishing to NATS.
type NATSConfig struct {
	URL      string `toml:"url" json:"url,omitempty"`
	Prefix   string `toml:"prefix" json:"prefix,omitempty"`
	MinLevel Level  `toml:"min_level" json:"min_level,omitempty"`
}

// DefaultConfig logs through slog and publishes nothing.
func DefaultConfig() Config {
	return Config{
		Sinks: []string{"slog"},
		NATS: NATSConfig{
			Prefix:   "shellpilot",
			MinLevel: LevelInfo,
		},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if len(source.Sinks) > 0 {
		c.Sinks = append([]string(nil), source.Sinks...)
	}
	if source.NATS.URL != "" {
		c.NATS.URL = source.NATS.URL
	}
	if source.NATS.Prefix != "" {
		c.NATS.Prefix = source.NATS.Prefix
	}
	if source.NATS.MinLevel > 0 {
		c.NATS.MinLevel = source.NATS.MinLevel
	}
}
