package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const (
	SchemaVersion = 2
)

var ErrClosed = errors.New("storage: database is closed")

// DB is the SQLite store for labeled examples and decision edges.
type DB struct {
	mu     sync.RWMutex
	conn   *sql.DB
	path   string
	closed bool
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func Open(path string) (*DB, error) {
	dsn := path + "?_busy_timeout=10000&_foreign_keys=on"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}

	for version < SchemaVersion {
		version++
		switch version {
		case 1:
			err = applySchemaV1(tx)
		case 2:
			err = applySchemaV2(tx)
		default:
			return fmt.Errorf("unknown schema version: %d", version)
		}
		if err != nil {
			return fmt.Errorf("failed to apply schema v%d: %w", version, err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func applySchemaV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS labeled_examples (
			seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
			id                   TEXT NOT NULL UNIQUE,
			item_a               TEXT NOT NULL DEFAULT '',
			item_b               TEXT NOT NULL DEFAULT '',
			embedding_similarity REAL NOT NULL,
			token_jaccard        REAL NOT NULL,
			trigram_jaccard      REAL NOT NULL,
			desc_length_ratio    REAL NOT NULL,
			same_category        INTEGER NOT NULL,
			verb_match           INTEGER NOT NULL,
			name_similarity      REAL NOT NULL,
			label                INTEGER NOT NULL CHECK (label IN (0, 1)),
			oracle_confidence    REAL NOT NULL DEFAULT 0,
			created_at           TEXT NOT NULL
		);
	`)
	return err
}

func applySchemaV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS decision_edges (
			source_id  TEXT NOT NULL,
			target_id  TEXT NOT NULL,
			is_match   INTEGER NOT NULL,
			confidence REAL NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id),
			CHECK (source_id < target_id)
		);
	`)
	return err
}

// SchemaVersionInUse reads PRAGMA user_version.
func (db *DB) SchemaVersionInUse(ctx context.Context) (int, error) {
	conn, release, err := db.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	var v int
	err = conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// acquire hands out the connection under a read lock so Close waits for
// in-flight calls.
func (db *DB) acquire() (*sql.DB, func(), error) {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	return db.conn, db.mu.RUnlock, nil
}

func (db *DB) Path() string { return db.path }

func (db *DB) Ping(ctx context.Context) error {
	conn, release, err := db.acquire()
	if err != nil {
		return err
	}
	defer release()
	return conn.PingContext(ctx)
}

// Close is idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.conn.Close()
}
