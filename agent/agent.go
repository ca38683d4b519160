// Package agent provides directive producers: the language-model side of the
// execution loop that turns a conversation into the next reply.
//
// A Producer is built from Config by New. Named producers live in a Registry
// and are instantiated on first use.
//
//	p, err := agent.New(&cfg)
//	reply, err := p.Complete(ctx, messages)
package agent

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

// Producer returns the next assistant reply for a conversation. The reply
// is raw text; interpreting it is the caller's concern.
type Producer interface {
	Complete(ctx context.Context, messages []protocol.Message) (string, error)
}

// ModelLister is implemented by producers that can enumerate the models
// available at their endpoint.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// New creates a Producer for cfg merged over the defaults.
func New(cfg *Config) (Producer, error) {
	merged := DefaultConfig()
	merged.Merge(cfg)

	switch merged.Provider {
	case ProviderOpenAI:
		return NewOpenAIProducer(merged), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, merged.Provider)
	}
}
