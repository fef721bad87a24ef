// Package filestore persists lot state as TOML documents in one directory.
// Every save rewrites the whole document through a temp file and rename, so
// a crash never leaves a half-written file behind.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"

	"smart_parking_lot/internal/repository"
)

const (
	layoutFileName     = "parking_layout.toml"
	historyFileName    = "parking_history.toml"
	usersFileName      = "users.toml"
	detectionsFileName = "detections.toml"

	formatVersion = 1
)

// Open creates dir if needed and returns a store backed by files inside it.
func Open(dir string) (*repository.Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return repository.NewStore(
		NewLayoutRepository(dir),
		NewHistoryRepository(dir),
		NewUserRepository(dir),
		NewDetectionRepository(dir),
		nil,
	), nil
}

type document struct {
	mu   sync.Mutex
	path string
}

// read decodes the document into v. A missing file yields ErrNotFound and
// an undecodable one ErrCorruptState.
func (d *document) read(v any) error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("filestore: read %s: %w", d.path, err)
	}
	if err := toml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", repository.ErrCorruptState, d.path, err)
	}
	return nil
}

func (d *document) write(v any) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", filepath.Base(d.path), err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("filestore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("filestore: rename %s: %w", tmp, err)
	}
	return nil
}
