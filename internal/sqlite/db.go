package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas are per connection and each :memory: connection is its own
	// database, so the pool holds a single connection.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema if it does not exist.
// Timestamps are stored as unix nanoseconds.
func (db *DB) RunMigrations() error {
	migration := `
-- Users seen by ingestion
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY,
    username TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

-- Packets
CREATE TABLE IF NOT EXISTS packets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_packets_owner ON packets(owner_id, created_at);

-- Messages, append-only in arrival order
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    packet_id INTEGER NOT NULL,
    sender_id INTEGER NOT NULL DEFAULT 0,
    sender_name TEXT NOT NULL,
    is_own INTEGER NOT NULL DEFAULT 0,
    text TEXT NOT NULL,
    type TEXT NOT NULL CHECK(type IN ('text', 'photo', 'video', 'document', 'voice', 'audio', 'sticker', 'video_note')),
    attachment_ref TEXT NOT NULL DEFAULT '',
    received_at INTEGER NOT NULL,
    FOREIGN KEY (packet_id) REFERENCES packets(id)
);
CREATE INDEX IF NOT EXISTS idx_messages_packet ON messages(packet_id, id);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
