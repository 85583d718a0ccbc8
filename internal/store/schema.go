// Package store provides the SQLite-backed tree edge store together with the
// sync and audit tables written alongside every move.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/outline/internal/tree"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes_tree (
	note_tree_id  TEXT PRIMARY KEY,
	note_id       TEXT NOT NULL DEFAULT '',
	note_pid      TEXT NOT NULL,
	note_pos      INTEGER NOT NULL,
	is_expanded   INTEGER NOT NULL DEFAULT 0,
	is_deleted    INTEGER NOT NULL DEFAULT 0,
	date_modified DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notes_tree_pid_pos ON notes_tree(note_pid, note_pos);

CREATE TABLE IF NOT EXISTS sync (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_name TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	sync_date   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	date_modified DATETIME NOT NULL,
	category      TEXT NOT NULL,
	browser_id    TEXT NOT NULL DEFAULT '',
	note_tree_id  TEXT NOT NULL DEFAULT '',
	change_from   TEXT NOT NULL DEFAULT '',
	change_to     TEXT NOT NULL DEFAULT ''
);
`

// DB wraps a sql.DB with tree-specific operations.
type DB struct {
	conn *sql.DB
}

var _ tree.Store = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
//
// Transactions are started with BEGIN IMMEDIATE (_txlock=immediate) so a
// move holds the write lock from its first read to its commit.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
