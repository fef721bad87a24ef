// Package memory keeps repository state in process memory. Nothing survives
// a restart; it backs tests and throwaway demo runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

func NewStore() *repository.Store {
	return repository.NewStore(NewLayoutRepository(), NewHistoryRepository(), NewUserRepository(),
		NewDetectionRepository(), nil)
}

type LayoutRepository struct {
	mu    sync.Mutex
	spots []domain.ParkingSpot
	saved bool
}

func NewLayoutRepository() *LayoutRepository {
	return &LayoutRepository{}
}

func (r *LayoutRepository) LoadSpots(_ context.Context) ([]domain.ParkingSpot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.saved {
		return nil, repository.ErrNotFound
	}
	return cloneSpots(r.spots), nil
}

func (r *LayoutRepository) SaveSpots(_ context.Context, spots []domain.ParkingSpot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spots = cloneSpots(spots)
	r.saved = true
	return nil
}

func cloneSpots(spots []domain.ParkingSpot) []domain.ParkingSpot {
	out := make([]domain.ParkingSpot, len(spots))
	for i, s := range spots {
		out[i] = s.Clone()
	}
	return out
}

type HistoryRepository struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	saved   bool
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) LoadHistory(_ context.Context) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.saved {
		return nil, repository.ErrNotFound
	}
	return append([]domain.HistoryEntry(nil), r.entries...), nil
}

func (r *HistoryRepository) SaveHistory(_ context.Context, entries []domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]domain.HistoryEntry(nil), entries...)
	r.saved = true
	return nil
}

type UserRepository struct {
	mu     sync.Mutex
	users  map[int]domain.User
	nextID int
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int]domain.User), nextID: 1}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) {
			return nil, repository.ErrDuplicateEntry
		}
	}
	now := time.Now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.nextID++
	r.users[user.ID] = *user
	return user, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) FindByID(_ context.Context, id int) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type DetectionRepository struct {
	mu      sync.Mutex
	records []domain.DetectionRecord
}

func NewDetectionRepository() *DetectionRepository {
	return &DetectionRepository{}
}

func (r *DetectionRepository) Create(_ context.Context, record *domain.DetectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *DetectionRepository) FindRecent(_ context.Context, limit int) ([]domain.DetectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.DetectionRecord(nil), r.records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
