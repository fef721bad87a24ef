package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/guregu/null.v4"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
)

var ErrSpotNotFound = fmt.Errorf("parking spot %w", repository.ErrNotFound)
var ErrSpotAlreadyOccupied = errors.New("parking spot is already occupied")
var ErrSpotAlreadyFree = errors.New("parking spot is already free")

// BuildLayout returns a fresh, fully unoccupied roster for layout. The
// result depends only on layout.
func BuildLayout(layout domain.LotLayout) []domain.ParkingSpot {
	spots := make([]domain.ParkingSpot, 0, layout.Capacity())
	id := 1
	for row := 1; row <= layout.Rows; row++ {
		for pos := 1; pos <= layout.SpotsPerRow; pos++ {
			spots = append(spots, domain.ParkingSpot{
				ID:       id,
				Row:      row,
				Position: pos,
				Side:     domain.SideOf(row),
				Type:     layout.TypeAt(row, pos),
			})
			id++
		}
	}
	return spots
}

// LayoutStore is the single source of truth for spot occupancy. Every
// mutation is written through to the repository before it returns; a failed
// write leaves the in-memory state as it was.
type LayoutStore struct {
	mu     sync.RWMutex
	repo   repository.LayoutRepository
	layout domain.LotLayout
	spots  map[int]*domain.ParkingSpot
	ids    []int
	now    func() time.Time
}

// NewLayoutStore loads the persisted roster. Missing or corrupt state is
// replaced by a fresh layout; other repository errors are returned.
func NewLayoutStore(ctx context.Context, repo repository.LayoutRepository, layout domain.LotLayout, opts ...Option) (*LayoutStore, error) {
	o := buildOptions(opts)
	s := &LayoutStore{repo: repo, layout: layout, now: o.now}

	spots, err := repo.LoadSpots(ctx)
	switch {
	case err == nil:
		if verr := validateRoster(spots); verr != nil {
			logging.Warnf(ctx, "LayoutStore: persisted layout is invalid (%v), creating a fresh one", verr)
			return s, s.CreateLayout(ctx)
		}
		if len(spots) != layout.Capacity() {
			logging.Warnf(ctx, "LayoutStore: persisted layout has %d spots but the configured lot has %d; keeping the persisted layout until the lot is reset",
				len(spots), layout.Capacity())
		}
		s.replace(spots)
		logging.Infof(ctx, "LayoutStore: loaded %d spots", len(spots))
		return s, nil
	case errors.Is(err, repository.ErrNotFound):
		logging.Infof(ctx, "LayoutStore: no persisted layout, creating %s", layout.Name)
		return s, s.CreateLayout(ctx)
	case errors.Is(err, repository.ErrCorruptState):
		logging.Warnf(ctx, "LayoutStore: %v, creating a fresh layout", err)
		return s, s.CreateLayout(ctx)
	default:
		return nil, fmt.Errorf("LayoutStore: load layout: %w", err)
	}
}

func validateRoster(spots []domain.ParkingSpot) error {
	if len(spots) == 0 {
		return errors.New("no spots")
	}
	sorted := append([]domain.ParkingSpot(nil), spots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i, spot := range sorted {
		if spot.ID != i+1 {
			return fmt.Errorf("spot ids are not contiguous at %d", spot.ID)
		}
		if !spot.Type.Valid() {
			return fmt.Errorf("spot %d has unknown type %q", spot.ID, spot.Type)
		}
		if !spot.Consistent() {
			return fmt.Errorf("spot %d has inconsistent occupancy fields", spot.ID)
		}
	}
	return nil
}

// replace swaps the in-memory roster. Callers hold mu or own s exclusively.
func (s *LayoutStore) replace(spots []domain.ParkingSpot) {
	s.spots = make(map[int]*domain.ParkingSpot, len(spots))
	s.ids = make([]int, 0, len(spots))
	for _, spot := range spots {
		c := spot.Clone()
		s.spots[c.ID] = &c
		s.ids = append(s.ids, c.ID)
	}
	sort.Ints(s.ids)
}

func (s *LayoutStore) snapshotLocked() []domain.ParkingSpot {
	out := make([]domain.ParkingSpot, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.spots[id].Clone())
	}
	return out
}

// CreateLayout wipes the lot and rebuilds it from the configured layout.
func (s *LayoutStore) CreateLayout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spots := BuildLayout(s.layout)
	if err := s.repo.SaveSpots(ctx, spots); err != nil {
		return fmt.Errorf("LayoutStore.CreateLayout: %w", err)
	}
	s.replace(spots)
	return nil
}

// Layout returns the configured lot description.
func (s *LayoutStore) Layout() domain.LotLayout {
	return s.layout
}

func (s *LayoutStore) GetSpotInfo(spotID int) (domain.ParkingSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spot, ok := s.spots[spotID]
	if !ok {
		return domain.ParkingSpot{}, fmt.Errorf("%w: %d", ErrSpotNotFound, spotID)
	}
	return spot.Clone(), nil
}

// Spots returns every spot ordered by ID.
func (s *LayoutStore) Spots() []domain.ParkingSpot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// GetAvailableSpots returns free spot IDs in ascending order, optionally
// restricted to one type.
func (s *LayoutStore) GetAvailableSpots(filter *domain.SpotType) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := []int{}
	for _, id := range s.ids {
		spot := s.spots[id]
		if spot.Occupied {
			continue
		}
		if filter != nil && spot.Type != *filter {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// FindByPlate returns the occupied spot holding plate, if any.
func (s *LayoutStore) FindByPlate(plate string) (domain.ParkingSpot, bool) {
	plate = domain.NormalizePlate(plate)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.ids {
		spot := s.spots[id]
		if spot.Occupied && domain.NormalizePlate(spot.Vehicle.LicensePlate) == plate {
			return spot.Clone(), true
		}
	}
	return domain.ParkingSpot{}, false
}

func (s *LayoutStore) OccupySpot(ctx context.Context, spotID int, vehicle domain.VehicleInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spot, ok := s.spots[spotID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrSpotNotFound, spotID)
	}
	if spot.Occupied {
		return fmt.Errorf("%w: %d", ErrSpotAlreadyOccupied, spotID)
	}

	prev := spot.Clone()
	now := s.now()
	v := vehicle
	v.EntryTime = now
	spot.Occupied = true
	spot.Vehicle = &v
	spot.EntryTime = null.TimeFrom(now)

	if err := s.repo.SaveSpots(ctx, s.snapshotLocked()); err != nil {
		*spot = prev
		return fmt.Errorf("LayoutStore.OccupySpot: %w", err)
	}
	return nil
}

func (s *LayoutStore) ReleaseSpot(ctx context.Context, spotID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spot, ok := s.spots[spotID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrSpotNotFound, spotID)
	}
	if !spot.Occupied {
		return fmt.Errorf("%w: %d", ErrSpotAlreadyFree, spotID)
	}

	prev := spot.Clone()
	spot.Occupied = false
	spot.Vehicle = nil
	spot.EntryTime = null.Time{}

	if err := s.repo.SaveSpots(ctx, s.snapshotLocked()); err != nil {
		*spot = prev
		return fmt.Errorf("LayoutStore.ReleaseSpot: %w", err)
	}
	return nil
}

func (s *LayoutStore) GetOccupancyStatus() domain.OccupancyStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := domain.OccupancyStatus{
		TotalSpots: len(s.ids),
		ByType:     make(map[domain.SpotType]domain.TypeOccupancy, len(domain.SpotTypes)),
	}
	for _, t := range domain.SpotTypes {
		status.ByType[t] = domain.TypeOccupancy{}
	}
	for _, id := range s.ids {
		spot := s.spots[id]
		byType := status.ByType[spot.Type]
		byType.Total++
		if spot.Occupied {
			byType.Occupied++
			status.OccupiedSpots++
		}
		status.ByType[spot.Type] = byType
	}
	status.AvailableSpots = status.TotalSpots - status.OccupiedSpots
	if status.TotalSpots > 0 {
		status.OccupancyRate = float64(status.OccupiedSpots) / float64(status.TotalSpots) * 100
	}
	return status
}
