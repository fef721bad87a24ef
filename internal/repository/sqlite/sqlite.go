// Package sqlite stores lot state in a local SQLite database. The pure-Go
// modernc driver is the default; the cgo mattn driver can be selected with
// driver name "sqlite3".
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"smart_parking_lot/internal/repository"
)

const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

const schemaVersion = 1

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS parking_spots (
		id                 INTEGER PRIMARY KEY,
		row_no             INTEGER NOT NULL,
		position           INTEGER NOT NULL,
		side               TEXT    NOT NULL,
		spot_type          TEXT    NOT NULL,
		occupied           INTEGER NOT NULL DEFAULT 0,
		entry_time         TEXT,
		license_plate      TEXT,
		vehicle_entry_time TEXT,
		preferred_type     TEXT,
		handicap_permit    INTEGER,
		notes              TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS parking_history (
		seq                INTEGER PRIMARY KEY,
		session_id         TEXT    NOT NULL UNIQUE,
		spot_id            INTEGER NOT NULL,
		spot_type          TEXT    NOT NULL,
		license_plate      TEXT    NOT NULL,
		vehicle_entry_time TEXT    NOT NULL,
		preferred_type     TEXT    NOT NULL,
		handicap_permit    INTEGER NOT NULL,
		notes              TEXT    NOT NULL DEFAULT '',
		entry_time         TEXT    NOT NULL,
		exit_time          TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS detection_records (
		id            TEXT PRIMARY KEY,
		detected_at   TEXT NOT NULL,
		license_plate TEXT NOT NULL,
		confidence    REAL NOT NULL,
		source        TEXT NOT NULL,
		image_ref     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_detection_records_detected_at ON detection_records(detected_at)`,
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, driver, path string) (*repository.Store, error) {
	db, err := openDB(ctx, driver, path)
	if err != nil {
		return nil, err
	}
	return repository.NewStore(
		NewLayoutRepository(db),
		NewHistoryRepository(db),
		NewUserRepository(db),
		NewDetectionRepository(db),
		db.Close,
	), nil
}

func openDB(ctx context.Context, driver, path string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("sqlite: unknown driver %q", driver)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create db dir: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// SQLite has a single writer; one connection keeps the PRAGMAs below in effect.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("sqlite: create meta table: %w", err)
	}

	var current int
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", repository.ErrCorruptState, s)
	}
	return t.UTC(), nil
}

func nullTimeString(t time.Time, valid bool) sql.NullString {
	if !valid {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}
