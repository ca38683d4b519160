package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

// SQLiteStore keeps history in a SQLite database, one row per message.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and creates the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps a ":memory:" database shared and writes serialized.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	return s, nil
}

// Init creates the schema if it does not exist.
func (s *SQLiteStore) Init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);`,
	}

	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, conversationID string) ([]protocol.Message, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM messages
		WHERE conversation_id = ?
		ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, conversationID, err)
	}
	defer rows.Close()

	var messages []protocol.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, conversationID, err)
		}
		messages = append(messages, protocol.NewMessage(protocol.Role(role), content))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, conversationID, err)
	}
	return messages, nil
}

func (s *SQLiteStore) Append(ctx context.Context, conversationID string, messages ...protocol.Message) error {
	if err := validate(conversationID, messages); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, conversationID, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, m := range messages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, role, content, created_at)
			VALUES (?, ?, ?, ?)`,
			conversationID, string(m.Role), m.Content, now,
		); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, conversationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, conversationID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT conversation_id FROM messages
		ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete %s: %w", conversationID, err)
	}
	return nil
}
