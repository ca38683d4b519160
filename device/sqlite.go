package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tailored-agentic-units/shellpilot/remote"
)

// SQLiteRegistry stores devices in a SQLite table. It can share a database
// file with the history store.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and creates the devices table.
func OpenSQLite(path string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := &SQLiteRegistry{db: db}
	if err := r.Init(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite: %w", err)
	}
	return r, nil
}

// Init creates the schema if it does not exist.
func (r *SQLiteRegistry) Init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			host TEXT NOT NULL,
			port INTEGER NOT NULL DEFAULT 0,
			username TEXT NOT NULL,
			password TEXT NOT NULL DEFAULT '',
			private_key TEXT NOT NULL DEFAULT '',
			passphrase TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range ddl {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRegistry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRegistry) Lookup(ctx context.Context, id string) (remote.Target, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT host, port, username, password, private_key, passphrase
		FROM devices WHERE id = ?`, id)

	var t remote.Target
	err := row.Scan(&t.Host, &t.Port, &t.Username, &t.Password, &t.PrivateKey, &t.Passphrase)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.Target{}, notFound(id)
	}
	if err != nil {
		return remote.Target{}, fmt.Errorf("lookup device %s: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRegistry) Put(ctx context.Context, d Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, host, port, username, password, private_key, passphrase, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			username = excluded.username,
			password = excluded.password,
			private_key = excluded.private_key,
			passphrase = excluded.passphrase,
			updated_at = excluded.updated_at`,
		d.ID, d.Host, d.Port, d.Username, d.Password, d.PrivateKey, d.Passphrase,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put device %s: %w", d.ID, err)
	}
	return nil
}

func (r *SQLiteRegistry) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove device %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove device %s: %w", id, err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *SQLiteRegistry) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, host, port, username, password, private_key, passphrase
		FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.Host, &d.Port, &d.Username, &d.Password, &d.PrivateKey, &d.Passphrase); err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
