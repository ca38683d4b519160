package agent

import (
	"time"

	"github.com/tailored-agentic-units/shellpilot/core/config"
)

// ProviderOpenAI selects the OpenAI-compatible chat completions API. Any
// endpoint speaking that API (vLLM, Ollama, LM Studio) works through BaseURL.
const ProviderOpenAI = "openai"

const (
	defaultModel       = "gpt-3.5-turbo"
	defaultTemperature = 0.7
	defaultTimeout     = 60 * time.Second
)

// Config describes one producer. An empty APIKey or BaseURL falls back to
// OPENAI_API_KEY and OPENAI_BASE_URL.
type Config struct {
	Provider    string          `toml:"provider" json:"provider,omitempty"`
	BaseURL     string          `toml:"base_url" json:"base_url,omitempty"`
	APIKey      string          `toml:"api_key" json:"-"`
	Model       string          `toml:"model" json:"model,omitempty"`
	Temperature *float64        `toml:"temperature" json:"temperature,omitempty"`
	Timeout     config.Duration `toml:"timeout" json:"timeout,omitempty"`
	// MaxRetries is the number of transport-level retries made by the
	// client. The execution loop itself never retries a failed call.
	MaxRetries int `toml:"max_retries" json:"max_retries,omitempty"`
}

// DefaultConfig returns the default producer configuration.
func DefaultConfig() Config {
	temperature := defaultTemperature
	return Config{
		Provider:    ProviderOpenAI,
		Model:       defaultModel,
		Temperature: &temperature,
		Timeout:     config.Duration(defaultTimeout),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.Temperature != nil {
		t := *source.Temperature
		c.Temperature = &t
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if source.MaxRetries > 0 {
		c.MaxRetries = source.MaxRetries
	}
}
