// Package database keeps the state blob and the audit log in SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"topicvote/internal/events"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the bot.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// ":memory:" databases live per connection.
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path is the database file.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS state_blobs (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			participant_id INTEGER NOT NULL,
			payload TEXT,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// StateBackend stores the serialized state under one key.
type StateBackend struct {
	db  *DB
	key string
}

// NewStateBackend returns a backend writing to key.
func NewStateBackend(db *DB, key string) *StateBackend {
	return &StateBackend{db: db, key: key}
}

func (b *StateBackend) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM state_blobs WHERE key = ?`, b.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return data, nil
}

func (b *StateBackend) Save(ctx context.Context, blob []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO state_blobs (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		b.key, blob)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

func (b *StateBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// AuditEntry is one recorded domain event.
type AuditEntry struct {
	ID            int64
	Type          string
	ParticipantID int64
	Payload       string
}

// RecordEvent appends e to the audit log.
func (db *DB) RecordEvent(ctx context.Context, e events.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO audit_log (event_type, participant_id, payload, created_at) VALUES (?, ?, ?, ?)`,
		e.Type, e.ParticipantID, string(e.Payload), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit entries, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, event_type, participant_id, COALESCE(payload, '') FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.ParticipantID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SubscribeAudit records every event published on bus.
func (db *DB) SubscribeAudit(bus *events.EventBus) {
	bus.SubscribeAll(func(e events.Event) error {
		return db.RecordEvent(context.Background(), e)
	})
}
