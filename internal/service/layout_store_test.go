package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
	"smart_parking_lot/internal/repository/memory"
)

func TestBuildLayout_DefaultLot(t *testing.T) {
	spots := BuildLayout(domain.DefaultLotLayout())
	require.Len(t, spots, 32)

	counts := map[domain.SpotType]int{}
	for i, spot := range spots {
		assert.Equal(t, i+1, spot.ID)
		assert.False(t, spot.Occupied)
		assert.Nil(t, spot.Vehicle)
		assert.False(t, spot.EntryTime.Valid)
		counts[spot.Type]++
	}
	assert.Equal(t, 28, counts[domain.SpotStandard])
	assert.Equal(t, 2, counts[domain.SpotHandicap])
	assert.Equal(t, 2, counts[domain.SpotPremium])

	assert.Equal(t, domain.SpotHandicap, spots[0].Type)
	assert.Equal(t, domain.SpotHandicap, spots[1].Type)
	assert.Equal(t, domain.SpotStandard, spots[2].Type)
	assert.Equal(t, domain.SpotPremium, spots[30].Type)
	assert.Equal(t, domain.SpotPremium, spots[31].Type)

	assert.Equal(t, 1, spots[0].Row)
	assert.Equal(t, domain.SideNorth, spots[0].Side)
	assert.Equal(t, 2, spots[8].Row)
	assert.Equal(t, 1, spots[8].Position)
	assert.Equal(t, domain.SideSouth, spots[8].Side)
	assert.Equal(t, 4, spots[31].Row)
	assert.Equal(t, 8, spots[31].Position)
}

func TestBuildLayout_IsDeterministic(t *testing.T) {
	layout := domain.LotLayout{Rows: 2, SpotsPerRow: 3, TypeRules: []domain.SpotTypeRule{
		{Row: 2, FromPosition: 3, ToPosition: 3, Type: domain.SpotPremium},
	}}
	first := BuildLayout(layout)
	assert.Equal(t, first, BuildLayout(layout))
	assert.Len(t, first, 6)
	assert.Equal(t, domain.SpotPremium, first[5].Type)
}

func TestNewLayoutStore_CreatesAndPersistsFreshLayout(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLayoutRepository()

	store, err := NewLayoutStore(ctx, repo, domain.DefaultLotLayout())
	require.NoError(t, err)
	assert.Len(t, store.Spots(), 32)

	saved, err := repo.LoadSpots(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 32)
}

func TestNewLayoutStore_LoadsPersistedOccupancy(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLayoutRepository()
	clock := newFakeClock()

	first, err := NewLayoutStore(ctx, repo, domain.DefaultLotLayout(), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, first.OccupySpot(ctx, 5, domain.VehicleInfo{LicensePlate: "KA01AB1234"}))

	second, err := NewLayoutStore(ctx, repo, domain.DefaultLotLayout())
	require.NoError(t, err)
	spot, err := second.GetSpotInfo(5)
	require.NoError(t, err)
	assert.True(t, spot.Occupied)
	require.NotNil(t, spot.Vehicle)
	assert.Equal(t, "KA01AB1234", spot.Vehicle.LicensePlate)
	assert.True(t, spot.EntryTime.Time.Equal(clock.Now()))
}

func TestNewLayoutStore_ReplacesInconsistentRoster(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLayoutRepository()
	spots := BuildLayout(domain.DefaultLotLayout())
	spots[3].Occupied = true
	require.NoError(t, repo.SaveSpots(ctx, spots))

	store, err := NewLayoutStore(ctx, repo, domain.DefaultLotLayout())
	require.NoError(t, err)
	assert.Len(t, store.GetAvailableSpots(nil), 32)
}

func TestNewLayoutStore_KeepsRosterOfDifferentSize(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLayoutRepository()
	small := domain.LotLayout{Name: "small", Rows: 1, SpotsPerRow: 4}
	require.NoError(t, repo.SaveSpots(ctx, BuildLayout(small)))

	store, err := NewLayoutStore(ctx, repo, domain.DefaultLotLayout())
	require.NoError(t, err)
	assert.Len(t, store.Spots(), 4)

	require.NoError(t, store.CreateLayout(ctx))
	assert.Len(t, store.Spots(), 32)
}

func TestNewLayoutStore_LoadErrors(t *testing.T) {
	ctx := context.Background()

	corrupt := &flakyLayoutRepo{
		LayoutRepository: memory.NewLayoutRepository(),
		loadErr:          fmt.Errorf("%w: unexpected end of JSON input", repository.ErrCorruptState),
	}
	store, err := NewLayoutStore(ctx, corrupt, domain.DefaultLotLayout())
	require.NoError(t, err)
	assert.Len(t, store.Spots(), 32)

	broken := &flakyLayoutRepo{LayoutRepository: memory.NewLayoutRepository(), loadErr: errDiskFull}
	_, err = NewLayoutStore(ctx, broken, domain.DefaultLotLayout())
	assert.ErrorIs(t, err, errDiskFull)
}

func TestLayoutStore_OccupyAndRelease(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	ctx := context.Background()
	vehicle := domain.VehicleInfo{LicensePlate: "MH12XY9999", PreferredType: domain.SpotStandard}

	before, err := f.layout.GetSpotInfo(7)
	require.NoError(t, err)

	require.NoError(t, f.layout.OccupySpot(ctx, 7, vehicle))
	spot, err := f.layout.GetSpotInfo(7)
	require.NoError(t, err)
	assert.True(t, spot.Occupied)
	assert.Equal(t, "MH12XY9999", spot.Vehicle.LicensePlate)
	assert.True(t, spot.EntryTime.Valid)
	assert.True(t, spot.EntryTime.Time.Equal(f.clock.Now()))
	assert.True(t, spot.Vehicle.EntryTime.Equal(spot.EntryTime.Time))

	err = f.layout.OccupySpot(ctx, 7, vehicle)
	assert.ErrorIs(t, err, ErrSpotAlreadyOccupied)

	require.NoError(t, f.layout.ReleaseSpot(ctx, 7))
	after, err := f.layout.GetSpotInfo(7)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	err = f.layout.ReleaseSpot(ctx, 7)
	assert.ErrorIs(t, err, ErrSpotAlreadyFree)

	f.clock.Advance(time.Hour)
	second := domain.VehicleInfo{LicensePlate: "KA01AB1234", PreferredType: domain.SpotPremium}
	require.NoError(t, f.layout.OccupySpot(ctx, 7, second))
	spot, err = f.layout.GetSpotInfo(7)
	require.NoError(t, err)
	assert.Equal(t, "KA01AB1234", spot.Vehicle.LicensePlate)
	assert.True(t, spot.Vehicle.EntryTime.Equal(f.clock.Now()))
	assert.True(t, spot.EntryTime.Time.Equal(f.clock.Now()))
}

func TestLayoutStore_UnknownSpot(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	ctx := context.Background()

	_, err := f.layout.GetSpotInfo(99)
	assert.ErrorIs(t, err, ErrSpotNotFound)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, f.layout.OccupySpot(ctx, 0, domain.VehicleInfo{LicensePlate: "X"}), ErrSpotNotFound)
	assert.ErrorIs(t, f.layout.ReleaseSpot(ctx, 33), ErrSpotNotFound)
}

func TestLayoutStore_SnapshotsAreCopies(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	f.park(t, 3, "AAA111")

	spot, err := f.layout.GetSpotInfo(3)
	require.NoError(t, err)
	spot.Vehicle.LicensePlate = "CHANGED"
	spot.Occupied = false

	again, err := f.layout.GetSpotInfo(3)
	require.NoError(t, err)
	assert.True(t, again.Occupied)
	assert.Equal(t, "AAA111", again.Vehicle.LicensePlate)
}

func TestLayoutStore_FailedSaveLeavesStateUnchanged(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	ctx := context.Background()
	f.park(t, 4, "BBB222")
	before := f.layout.Spots()

	f.layoutRepo.failSaves = true
	err := f.layout.OccupySpot(ctx, 3, domain.VehicleInfo{LicensePlate: "CCC333"})
	assert.ErrorIs(t, err, errDiskFull)
	err = f.layout.ReleaseSpot(ctx, 4)
	assert.ErrorIs(t, err, errDiskFull)
	err = f.layout.CreateLayout(ctx)
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, before, f.layout.Spots())
}

func TestLayoutStore_GetAvailableSpots(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	handicap := domain.SpotHandicap
	premium := domain.SpotPremium

	assert.Equal(t, []int{1, 2}, f.layout.GetAvailableSpots(&handicap))
	assert.Equal(t, []int{31, 32}, f.layout.GetAvailableSpots(&premium))

	f.park(t, 1, "H1")
	f.park(t, 31, "P1")
	assert.Equal(t, []int{2}, f.layout.GetAvailableSpots(&handicap))
	assert.Equal(t, []int{32}, f.layout.GetAvailableSpots(&premium))

	all := f.layout.GetAvailableSpots(nil)
	assert.Len(t, all, 30)
	assert.Equal(t, 2, all[0])
	assert.IsIncreasing(t, all)
}

func TestLayoutStore_GetOccupancyStatus(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	for id := 3; id <= 9; id++ {
		f.park(t, id, fmt.Sprintf("STD%d", id))
	}
	f.park(t, 1, "HANDI")

	status := f.layout.GetOccupancyStatus()
	assert.Equal(t, 32, status.TotalSpots)
	assert.Equal(t, 8, status.OccupiedSpots)
	assert.Equal(t, 24, status.AvailableSpots)
	assert.InDelta(t, 25.0, status.OccupancyRate, 1e-9)
	assert.Equal(t, domain.TypeOccupancy{Total: 28, Occupied: 7}, status.ByType[domain.SpotStandard])
	assert.Equal(t, domain.TypeOccupancy{Total: 2, Occupied: 1}, status.ByType[domain.SpotHandicap])
	assert.Equal(t, domain.TypeOccupancy{Total: 2, Occupied: 0}, status.ByType[domain.SpotPremium])
}

func TestLayoutStore_FindByPlateNormalizes(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	f.park(t, 12, "DL3CAF0001")

	spot, ok := f.layout.FindByPlate("  dl3caf0001 ")
	require.True(t, ok)
	assert.Equal(t, 12, spot.ID)

	_, ok = f.layout.FindByPlate("NOPE")
	assert.False(t, ok)
}

func TestLayoutStore_CreateLayoutClearsOccupancy(t *testing.T) {
	f := newLotFixture(t, ParkingSettings{})
	f.park(t, 3, "A")
	f.park(t, 4, "B")

	require.NoError(t, f.layout.CreateLayout(context.Background()))
	assert.Equal(t, BuildLayout(domain.DefaultLotLayout()), f.layout.Spots())
}
