package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
	"smart_parking_lot/internal/repository/memory"
)

var errDiskFull = errors.New("disk full")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyLayoutRepo fails loads or saves on demand.
type flakyLayoutRepo struct {
	*memory.LayoutRepository
	loadErr   error
	failSaves bool
}

func (r *flakyLayoutRepo) LoadSpots(ctx context.Context) ([]domain.ParkingSpot, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.LayoutRepository.LoadSpots(ctx)
}

func (r *flakyLayoutRepo) SaveSpots(ctx context.Context, spots []domain.ParkingSpot) error {
	if r.failSaves {
		return errDiskFull
	}
	return r.LayoutRepository.SaveSpots(ctx, spots)
}

type flakyHistoryRepo struct {
	*memory.HistoryRepository
	loadErr   error
	failSaves bool
}

func (r *flakyHistoryRepo) LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.HistoryRepository.LoadHistory(ctx)
}

func (r *flakyHistoryRepo) SaveHistory(ctx context.Context, entries []domain.HistoryEntry) error {
	if r.failSaves {
		return errDiskFull
	}
	return r.HistoryRepository.SaveHistory(ctx, entries)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.LotEventNotification
}

func (n *recordingNotifier) BroadcastLotEvent(event domain.LotEventNotification) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []domain.LotEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.LotEventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.EventType)
	}
	return out
}

func (n *recordingNotifier) last() domain.LotEventNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

var testTariff = Tariff{HourlyRate: 200, MinimumCharge: 100, Currency: "INR"}

type lotFixture struct {
	clock       *fakeClock
	layoutRepo  *flakyLayoutRepo
	historyRepo *flakyHistoryRepo
	layout      *LayoutStore
	tracker     *OccupancyTracker
	assigner    *SpotAssigner
	parking     *ParkingService
	events      *recordingNotifier
}

func newLotFixture(t *testing.T, settings ParkingSettings) *lotFixture {
	t.Helper()
	ctx := context.Background()

	f := &lotFixture{
		clock:       newFakeClock(),
		layoutRepo:  &flakyLayoutRepo{LayoutRepository: memory.NewLayoutRepository()},
		historyRepo: &flakyHistoryRepo{HistoryRepository: memory.NewHistoryRepository()},
		events:      &recordingNotifier{},
	}
	clock := WithClock(f.clock.Now)

	var err error
	f.layout, err = NewLayoutStore(ctx, f.layoutRepo, domain.DefaultLotLayout(), clock)
	require.NoError(t, err)
	f.tracker, err = NewOccupancyTracker(ctx, f.historyRepo, f.layout, clock)
	require.NoError(t, err)
	f.assigner = NewSpotAssigner(f.layout)

	if settings.Tariff == (Tariff{}) {
		settings.Tariff = testTariff
	}
	f.parking = NewParkingService(f.layout, f.assigner, f.tracker, settings, clock, WithNotifier(f.events))
	return f
}

// park occupies spotID and opens its session without going through the assigner.
func (f *lotFixture) park(t *testing.T, spotID int, plate string) domain.HistoryEntry {
	t.Helper()
	ctx := context.Background()
	vehicle := domain.VehicleInfo{LicensePlate: plate, PreferredType: domain.SpotStandard}
	require.NoError(t, f.layout.OccupySpot(ctx, spotID, vehicle))
	entry, err := f.tracker.RecordEntry(ctx, spotID, vehicle)
	require.NoError(t, err)
	return entry
}

func (f *lotFixture) leave(t *testing.T, spotID int) *domain.HistoryEntry {
	t.Helper()
	ctx := context.Background()
	closed, err := f.tracker.RecordExit(ctx, spotID)
	require.NoError(t, err)
	require.NoError(t, f.layout.ReleaseSpot(ctx, spotID))
	return closed
}

func assertLotConsistent(t *testing.T, f *lotFixture) {
	t.Helper()
	open := map[int]bool{}
	for _, e := range f.tracker.History(domain.HistoryFilter{Period: domain.PeriodAll}) {
		if e.Open() {
			require.False(t, open[e.SpotID], "spot %d has two open sessions", e.SpotID)
			open[e.SpotID] = true
		}
	}
	for _, spot := range f.layout.Spots() {
		require.True(t, spot.Consistent(), "spot %d is inconsistent", spot.ID)
		require.Equal(t, spot.Occupied, open[spot.ID], "spot %d occupancy disagrees with history", spot.ID)
	}
}

var _ repository.LayoutRepository = (*flakyLayoutRepo)(nil)
var _ repository.HistoryRepository = (*flakyHistoryRepo)(nil)
