// Package sqlite implements the durable store on a single SQLite database.
//
// The store is the process's single logical writer: every mutating operation
// runs inside one transaction under a write mutex, so concurrent writes
// serialize at the transaction boundary while reads proceed against
// committed state. The full-text index is maintained in the same
// transactions as the message rows it mirrors.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle together with the global seq allocator.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	nextSeq int64
}

// Open opens (and creates if needed) the database at path and prepares the
// schema. The seq allocator is seeded from MAX(seq)+1.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them;
	// foreign_keys in particular is per-connection.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	var maxSeq sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM messages`).Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("seed seq allocator: %w", err)
	}
	s.nextSeq = maxSeq.Int64

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema. Statements are idempotent.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			created_by TEXT,
			admin_key_hash TEXT NOT NULL,
			max_messages INTEGER,
			max_age_hours INTEGER,
			room_type TEXT NOT NULL DEFAULT 'standard',
			archived_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		// Name uniqueness applies among non-archived rooms only.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_active_name
			ON rooms(name) WHERE archived_at IS NULL;`,

		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL UNIQUE,
			sender TEXT NOT NULL,
			sender_type TEXT,
			content TEXT NOT NULL,
			metadata TEXT,
			reply_to TEXT,
			edited_at DATETIME,
			pinned_at DATETIME,
			pinned_by TEXT,
			edit_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_seq ON messages(room_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender);`,

		`CREATE TABLE IF NOT EXISTS edit_history (
			id TEXT PRIMARY KEY,
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			previous_content TEXT NOT NULL,
			editor TEXT NOT NULL,
			edited_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edit_history_message ON edit_history(message_id, edited_at);`,

		`CREATE TABLE IF NOT EXISTS reactions (
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			emoji TEXT NOT NULL,
			sender TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (message_id, emoji, sender)
		);`,

		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			filename TEXT NOT NULL,
			content_type TEXT,
			size INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_room ON files(room_id);`,

		`CREATE TABLE IF NOT EXISTS profiles (
			sender TEXT PRIMARY KEY,
			display_name TEXT,
			sender_type TEXT,
			avatar_url TEXT,
			bio TEXT,
			status_text TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS read_positions (
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			last_read_seq INTEGER NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (room_id, sender)
		);`,

		`CREATE TABLE IF NOT EXISTS bookmarks (
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			bookmarked_at DATETIME NOT NULL,
			PRIMARY KEY (room_id, sender)
		);`,

		`CREATE TABLE IF NOT EXISTS outgoing_webhooks (
			id TEXT PRIMARY KEY,
			room_id TEXT REFERENCES rooms(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			events TEXT NOT NULL DEFAULT '',
			secret TEXT,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS incoming_webhooks (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			active INTEGER NOT NULL DEFAULT 1,
			created_by TEXT,
			created_at DATETIME NOT NULL
		);`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts
			USING fts5(content, message_id UNINDEXED);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a write transaction under the store's write mutex.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// allocSeq hands out the next global seq. Only call while holding the write
// mutex (i.e. inside withTx); an aborted transaction leaves a gap, which is
// fine: seq must be strictly increasing, not dense.
func (s *Store) allocSeq() int64 {
	s.nextSeq++
	return s.nextSeq
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
