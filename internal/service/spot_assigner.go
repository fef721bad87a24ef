package service

import (
	"context"
	"errors"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
)

// SpotPool is the part of the LayoutStore the assigner needs.
type SpotPool interface {
	GetAvailableSpots(filter *domain.SpotType) []int
	OccupySpot(ctx context.Context, spotID int, vehicle domain.VehicleInfo) error
}

// SpotAssigner picks and occupies a spot for an arriving vehicle. It keeps no
// state of its own.
type SpotAssigner struct {
	pool SpotPool
}

func NewSpotAssigner(pool SpotPool) *SpotAssigner {
	return &SpotAssigner{pool: pool}
}

// AutoAssignSpot tries, in order, a handicap spot for permit holders, a spot
// of the preferred type and finally any free spot. The lowest ID wins at each
// step. ok is false when the lot is full; err is only set when occupying a
// spot could not be persisted.
func (a *SpotAssigner) AutoAssignSpot(ctx context.Context, vehicle domain.VehicleInfo) (int, bool, error) {
	if vehicle.HandicapPermit {
		handicap := domain.SpotHandicap
		if id, ok, err := a.occupyFirst(ctx, &handicap, vehicle); ok || err != nil {
			return id, ok, err
		}
	}
	if vehicle.PreferredType.Valid() {
		preferred := vehicle.PreferredType
		if id, ok, err := a.occupyFirst(ctx, &preferred, vehicle); ok || err != nil {
			return id, ok, err
		}
	}
	return a.occupyFirst(ctx, nil, vehicle)
}

func (a *SpotAssigner) occupyFirst(ctx context.Context, filter *domain.SpotType, vehicle domain.VehicleInfo) (int, bool, error) {
	for _, id := range a.pool.GetAvailableSpots(filter) {
		err := a.pool.OccupySpot(ctx, id, vehicle)
		if err == nil {
			return id, true, nil
		}
		// Another caller took the spot between the query and the occupy.
		if errors.Is(err, ErrSpotAlreadyOccupied) {
			logging.Debugf(ctx, "SpotAssigner: spot %d was taken, trying the next one", id)
			continue
		}
		return 0, false, err
	}
	return 0, false, nil
}
