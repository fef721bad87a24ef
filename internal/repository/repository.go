package repository

import (
	"context"
	"errors"

	"smart_parking_lot/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")
var ErrNoActiveSession = errors.New("no active parking session for the given vehicle")

// ErrCorruptState is returned by a Load method when persisted state exists
// but cannot be decoded.
var ErrCorruptState = errors.New("persisted state is corrupt")

// LayoutRepository persists the full spot roster. SaveSpots replaces
// whatever was stored before.
type LayoutRepository interface {
	// LoadSpots returns ErrNotFound when nothing has been saved yet.
	LoadSpots(ctx context.Context) ([]domain.ParkingSpot, error)
	SaveSpots(ctx context.Context, spots []domain.ParkingSpot) error
}

// HistoryRepository persists the ordered session history. SaveHistory
// replaces whatever was stored before.
type HistoryRepository interface {
	// LoadHistory may return ErrNotFound when nothing has been saved yet.
	LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error)
	SaveHistory(ctx context.Context, entries []domain.HistoryEntry) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

type DetectionRepository interface {
	Create(ctx context.Context, record *domain.DetectionRecord) error
	// FindRecent returns at most limit records, newest first.
	FindRecent(ctx context.Context, limit int) ([]domain.DetectionRecord, error)
}

// Store bundles the repositories of one storage backend.
type Store struct {
	Layout     LayoutRepository
	History    HistoryRepository
	Users      UserRepository
	Detections DetectionRepository

	closeFn func() error
}

func NewStore(layout LayoutRepository, history HistoryRepository, users UserRepository,
	detections DetectionRepository, closeFn func() error) *Store {
	return &Store{Layout: layout, History: history, Users: users, Detections: detections, closeFn: closeFn}
}

func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
