package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

type memoryBuffer struct {
	id       string
	messages []protocol.Message
	mu       sync.RWMutex
}

// NewBuffer creates a Buffer backed by an in-memory slice, optionally seeded
// with messages in order. The buffer is assigned a unique UUIDv7 identifier.
func NewBuffer(seed ...protocol.Message) Buffer {
	b := &memoryBuffer{
		id: uuid.Must(uuid.NewV7()).String(),
	}
	if len(seed) > 0 {
		b.messages = append(make([]protocol.Message, 0, len(seed)), seed...)
	}
	return b
}

func (b *memoryBuffer) ID() string {
	return b.id
}

func (b *memoryBuffer) Append(msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *memoryBuffer) Snapshot() []protocol.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	copied := make([]protocol.Message, len(b.messages))
	copy(copied, b.messages)
	return copied
}

func (b *memoryBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}
