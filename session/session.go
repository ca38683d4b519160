// Package session holds the conversation buffer that is replayed to the
// planner on every iteration of the execution loop.
package session

import (
	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

// Buffer is an ordered, append-only sequence of conversation messages.
// Implementations must be safe for concurrent use.
type Buffer interface {
	// ID returns the unique buffer identifier.
	ID() string
	// Append adds a message to the end of the buffer.
	Append(msg protocol.Message)
	// Snapshot returns a copy of the buffered messages in append order.
	Snapshot() []protocol.Message
	// Len returns the number of buffered messages.
	Len() int
}
