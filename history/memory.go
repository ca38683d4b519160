package history

import (
	"context"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

// MemoryStore keeps history in process memory. Useful for tests and for
// throwaway servers.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string][]protocol.Message
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]protocol.Message)}
}

func (s *MemoryStore) Load(_ context.Context, conversationID string) ([]protocol.Message, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.convs[conversationID]
	if len(msgs) == 0 {
		return nil, nil
	}
	out := make([]protocol.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, conversationID string, messages ...protocol.Message) error {
	if err := validate(conversationID, messages); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conversationID] = append(s.convs[conversationID], messages...)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, conversationID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
