// Package history provides durable conversation history: the messages that
// outlive a single run. Runs read a conversation once at the start and the
// service appends compressed outcomes at the end.
package history

import (
	"context"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

// Store persists ordered messages per conversation id. Loading an unknown
// conversation yields an empty slice, not an error. Stores perform I/O on
// every call; there is no write-back caching.
type Store interface {
	// Load returns the conversation's messages in append order.
	Load(ctx context.Context, conversationID string) ([]protocol.Message, error)
	// Append adds messages to the end of the conversation atomically.
	Append(ctx context.Context, conversationID string, messages ...protocol.Message) error
	// List returns every stored conversation id in sorted order.
	List(ctx context.Context) ([]string, error)
	// Delete removes a conversation. Missing ids are ignored.
	Delete(ctx context.Context, conversationID string) error
	Close() error
}

func validate(conversationID string, messages []protocol.Message) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	for _, m := range messages {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}
