package service

// Config holds boundary settings.
type Config struct {
	// DefaultConversation is used when a request carries no conversation id.
	DefaultConversation string `toml:"default_conversation" json:"default_conversation,omitempty"`
	// ChatPrompt seeds new conversations. Empty uses the built-in prompt.
	ChatPrompt string `toml:"chat_prompt" json:"chat_prompt,omitempty"`
}

// DefaultConfig returns the boundary defaults.
func DefaultConfig() Config {
	return Config{
		DefaultConversation: "default",
		ChatPrompt:          ChatPrompt,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.DefaultConversation != "" {
		c.DefaultConversation = source.DefaultConversation
	}
	if source.ChatPrompt != "" {
		c.ChatPrompt = source.ChatPrompt
	}
}
