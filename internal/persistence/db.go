// Package persistence provides SQLite-based storage for run results.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SchemaVersion is recorded in the meta table on every open.
const SchemaVersion = 1

// ErrNotFound is returned when a run, sweep or meta key does not exist.
var ErrNotFound = errors.New("persistence: not found")

// DB wraps a SQLite connection for result storage.
type DB struct {
	conn *sqlx.DB
	path string
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY inside one process.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Debug("database opened", "path", path)
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		max_steps INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		issues INTEGER NOT NULL,
		cthresh REAL NOT NULL,
		edge_prob REAL NOT NULL,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		edges INTEGER NOT NULL,
		graph_attempts INTEGER NOT NULL,
		mean_degree REAL NOT NULL,
		final_dispersion REAL NOT NULL,
		persuaded INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		isolated INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		columns_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		step INTEGER NOT NULL,
		name TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (run_id, step, name)
	);

	CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		variable TEXT NOT NULL,
		runs INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		plan_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sweep_results (
		sweep_id TEXT NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		value REAL NOT NULL,
		replicate INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		lambda REAL NOT NULL,
		final_dispersion REAL NOT NULL,
		convergence_step INTEGER NOT NULL,
		graph_attempts INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (sweep_id, idx)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_sweeps_created ON sweeps(created_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	return db.SaveMeta("schema_version", strconv.Itoa(SchemaVersion))
}

// SaveMeta stores a key-value pair in the meta table.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 50
	}
	return limit
}
