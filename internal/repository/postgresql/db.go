package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"smart_parking_lot/internal/config"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS parking_spots (
    id                 INTEGER PRIMARY KEY,
    row_no             INTEGER     NOT NULL,
    position           INTEGER     NOT NULL,
    side               TEXT        NOT NULL,
    spot_type          TEXT        NOT NULL,
    occupied           BOOLEAN     NOT NULL DEFAULT FALSE,
    entry_time         TIMESTAMPTZ,
    license_plate      TEXT,
    vehicle_entry_time TIMESTAMPTZ,
    preferred_type     TEXT,
    handicap_permit    BOOLEAN,
    notes              TEXT
);

CREATE TABLE IF NOT EXISTS parking_history (
    seq                INTEGER PRIMARY KEY,
    session_id         TEXT        NOT NULL UNIQUE,
    spot_id            INTEGER     NOT NULL,
    spot_type          TEXT        NOT NULL,
    license_plate      TEXT        NOT NULL,
    vehicle_entry_time TIMESTAMPTZ NOT NULL,
    preferred_type     TEXT        NOT NULL,
    handicap_permit    BOOLEAN     NOT NULL,
    notes              TEXT        NOT NULL DEFAULT '',
    entry_time         TIMESTAMPTZ NOT NULL,
    exit_time          TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS users (
    id            SERIAL PRIMARY KEY,
    username      TEXT        NOT NULL,
    password_hash TEXT        NOT NULL,
    role          TEXT        NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (lower(username));

CREATE TABLE IF NOT EXISTS detection_records (
    id            UUID PRIMARY KEY,
    detected_at   TIMESTAMPTZ      NOT NULL,
    license_plate TEXT             NOT NULL,
    confidence    DOUBLE PRECISION NOT NULL,
    source        TEXT             NOT NULL,
    image_ref     TEXT             NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS detection_records_detected_at_idx ON detection_records (detected_at DESC);
`

// NewDB opens the database with the configured driver ("pgx" or "postgres")
// and pings it with exponential backoff so the service survives a database
// that starts slower than it does.
func NewDB(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgresql: open database: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := db.PingContext(ctx); err != nil {
			logging.Warnf(ctx, "postgresql: ping %s:%d failed: %v", cfg.Host, cfg.Port, err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(6),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgresql: ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables on first start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgresql: create schema: %w", err)
	}
	return nil
}

// Open connects, migrates and returns the Postgres-backed store.
func Open(ctx context.Context, cfg config.DBConfig) (*repository.Store, error) {
	db, err := NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return repository.NewStore(
		NewPgLayoutRepository(db),
		NewPgHistoryRepository(db),
		NewPgUserRepository(db),
		NewPgDetectionRepository(db),
		db.Close,
	), nil
}
