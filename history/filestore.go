package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

const fileExt = ".json"

type conversationFile struct {
	ConversationID string             `json:"conversation_id"`
	Messages       []protocol.Message `json:"messages"`
}

// FileStore keeps one JSON document per conversation under a root
// directory. Writes replace the document atomically.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore rooted at root. The directory is created
// on first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path(conversationID string) string {
	return filepath.Join(s.root, url.PathEscape(conversationID)+fileExt)
}

func (s *FileStore) read(conversationID string) ([]protocol.Message, error) {
	data, err := os.ReadFile(s.path(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, conversationID, err)
	}

	var doc conversationFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, conversationID, err)
	}
	return doc.Messages, nil
}

func (s *FileStore) Load(_ context.Context, conversationID string) ([]protocol.Message, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(conversationID)
}

func (s *FileStore) Append(_ context.Context, conversationID string, messages ...protocol.Message) error {
	if err := validate(conversationID, messages); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(conversationID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(conversationFile{
		ConversationID: conversationID,
		Messages:       append(existing, messages...),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, conversationID, err)
	}

	if err := writeAtomic(s.path(conversationID), data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, conversationID, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Delete(_ context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(conversationID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", conversationID, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// writeAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
