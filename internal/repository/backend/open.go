// Package backend picks the repository implementation named in the config.
package backend

import (
	"context"
	"fmt"

	"smart_parking_lot/internal/config"
	"smart_parking_lot/internal/repository"
	"smart_parking_lot/internal/repository/filestore"
	"smart_parking_lot/internal/repository/memory"
	"smart_parking_lot/internal/repository/postgresql"
	"smart_parking_lot/internal/repository/sqlite"
)

func Open(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return filestore.Open(cfg.Storage.Dir)
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.Storage.SQLiteDriver, cfg.Storage.SQLitePath)
	case config.BackendPostgres:
		return postgresql.Open(ctx, cfg.DB)
	case config.BackendMemory:
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("backend: unknown storage backend %q", cfg.Storage.Backend)
}
