package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_parking_lot/internal/domain"
)

func vehicle(plate string, preferred domain.SpotType, permit bool) domain.VehicleInfo {
	return domain.VehicleInfo{LicensePlate: plate, PreferredType: preferred, HandicapPermit: permit}
}

func TestAutoAssignSpot_Priority(t *testing.T) {
	tests := []struct {
		name    string
		vehicle domain.VehicleInfo
		want    int
	}{
		{"permit holder gets handicap spot", vehicle("H1", domain.SpotStandard, true), 1},
		{"standard preference", vehicle("S1", domain.SpotStandard, false), 3},
		{"premium preference", vehicle("P1", domain.SpotPremium, false), 31},
		{"handicap preference without permit", vehicle("X1", domain.SpotHandicap, false), 1},
		{"unknown preference falls through to any spot", vehicle("U1", domain.SpotType("valet"), false), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLotFixture(t, ParkingSettings{})
			id, ok, err := f.assigner.AutoAssignSpot(context.Background(), tt.vehicle)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, id)

			spot, err := f.layout.GetSpotInfo(id)
			require.NoError(t, err)
			assert.True(t, spot.Occupied)
			assert.Equal(t, tt.vehicle.LicensePlate, spot.Vehicle.LicensePlate)
		})
	}
}

func TestAutoAssignSpot_PermitHolderFallsBackToPreferredType(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	ctx := context.Background()

	var got []int
	for i := 0; i < 3; i++ {
		id, ok, err := f.assigner.AutoAssignSpot(ctx, vehicle(fmt.Sprintf("H%d", i), domain.SpotPremium, true))
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, id)
	}
	assert.Equal(t, []int{1, 2, 31}, got)
}

func TestAutoAssignSpot_SpillsIntoOtherTypes(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	ctx := context.Background()

	var got []int
	for i := 0; i < 30; i++ {
		id, ok, err := f.assigner.AutoAssignSpot(ctx, vehicle(fmt.Sprintf("CAR%02d", i), domain.SpotStandard, false))
		require.NoError(t, err)
		require.True(t, ok, "vehicle %d should be placed", i)
		got = append(got, id)
	}

	for i := 0; i < 28; i++ {
		assert.Equal(t, i+3, got[i])
	}
	assert.Equal(t, 1, got[28])
	assert.Equal(t, 2, got[29])

	premium := domain.SpotPremium
	assert.Equal(t, []int{31, 32}, f.layout.GetAvailableSpots(&premium))
}

func TestAutoAssignSpot_FullLot(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	ctx := context.Background()

	for i := 0; i < 32; i++ {
		_, ok, err := f.assigner.AutoAssignSpot(ctx, vehicle(fmt.Sprintf("CAR%02d", i), domain.SpotStandard, false))
		require.NoError(t, err)
		require.True(t, ok)
	}
	before := f.layout.Spots()

	id, ok, err := f.assigner.AutoAssignSpot(ctx, vehicle("LATE", domain.SpotStandard, true))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, id)
	assert.Equal(t, before, f.layout.Spots())
}

// racyPool pretends another caller grabbed some spots after they were listed.
type racyPool struct {
	free     []int
	taken    map[int]bool
	saveErr  error
	occupied []int
}

func (p *racyPool) GetAvailableSpots(_ *domain.SpotType) []int {
	return p.free
}

func (p *racyPool) OccupySpot(_ context.Context, spotID int, _ domain.VehicleInfo) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	if p.taken[spotID] {
		return fmt.Errorf("%w: %d", ErrSpotAlreadyOccupied, spotID)
	}
	p.occupied = append(p.occupied, spotID)
	return nil
}

func TestAutoAssignSpot_SkipsSpotTakenConcurrently(t *testing.T) {
	pool := &racyPool{free: []int{3, 4, 5}, taken: map[int]bool{3: true, 4: true}}
	a := NewSpotAssigner(pool)

	id, ok, err := a.AutoAssignSpot(context.Background(), vehicle("R1", domain.SpotStandard, false))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, id)
	assert.Equal(t, []int{5}, pool.occupied)
}

func TestAutoAssignSpot_PersistenceErrorStops(t *testing.T) {
	pool := &racyPool{free: []int{3, 4}, saveErr: errDiskFull}
	a := NewSpotAssigner(pool)

	_, ok, err := a.AutoAssignSpot(context.Background(), vehicle("R1", domain.SpotStandard, false))
	assert.False(t, ok)
	assert.ErrorIs(t, err, errDiskFull)
}
