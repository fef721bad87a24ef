package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

var entryAt = time.Date(2026, 3, 2, 8, 15, 30, 0, time.UTC)

func openTestStore(t *testing.T) (*repository.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "parking.db")
	store, err := Open(context.Background(), DriverModernc, path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}

func TestLayoutRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	_, err := store.Layout.LoadSpots(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	spots := []domain.ParkingSpot{
		{ID: 1, Row: 1, Position: 1, Side: domain.SideNorth, Type: domain.SpotHandicap},
		{
			ID: 2, Row: 1, Position: 2, Side: domain.SideNorth, Type: domain.SpotStandard, Occupied: true,
			Vehicle:   &domain.VehicleInfo{LicensePlate: "KA01AB1234", EntryTime: entryAt, PreferredType: domain.SpotStandard, HandicapPermit: true},
			EntryTime: null.TimeFrom(entryAt),
		},
	}
	require.NoError(t, store.Layout.SaveSpots(ctx, spots))
	got, err := store.Layout.LoadSpots(ctx)
	require.NoError(t, err)
	assert.Equal(t, spots, got)

	// Saving replaces the previous roster.
	require.NoError(t, store.Layout.SaveSpots(ctx, spots[:1]))
	got, err = store.Layout.LoadSpots(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestHistoryRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)

	entries := []domain.HistoryEntry{
		{
			SessionID: "s-1", SpotID: 3, SpotType: domain.SpotStandard,
			Vehicle:   domain.VehicleInfo{LicensePlate: "A1", EntryTime: entryAt, PreferredType: domain.SpotStandard},
			EntryTime: entryAt,
			ExitTime:  null.TimeFrom(entryAt.Add(95 * time.Minute)),
		},
		{
			SessionID: "s-2", SpotID: 31, SpotType: domain.SpotPremium,
			Vehicle:   domain.VehicleInfo{LicensePlate: "B2", EntryTime: entryAt.Add(time.Hour), PreferredType: domain.SpotPremium, Notes: "valet"},
			EntryTime: entryAt.Add(time.Hour),
		},
	}
	require.NoError(t, store.History.SaveHistory(ctx, entries))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, DriverModernc, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.History.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	created, err := store.Users.Create(ctx, &domain.User{Username: "operator1", Password: "hash", Role: domain.RoleOperator})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = store.Users.Create(ctx, &domain.User{Username: "OPERATOR1", Password: "hash", Role: domain.RoleOperator})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	found, err := store.Users.FindByUsername(ctx, "operator1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hash", found.Password)

	_, err = store.Users.FindByID(ctx, created.ID+10)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDetectionRepository(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	for i, plate := range []string{"A1", "B2", "C3"} {
		require.NoError(t, store.Detections.Create(ctx, &domain.DetectionRecord{
			ID: plate, Timestamp: entryAt.Add(time.Duration(i) * time.Second), LicensePlate: plate,
			Confidence: 0.8, Source: domain.SourceGate, ImageRef: "evt-" + plate,
		}))
	}

	got, err := store.Detections.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C3", got[0].LicensePlate)
	assert.Equal(t, "evt-C3", got[0].ImageRef)

	all, err := store.Detections.FindRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpen_UnreadableSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "parking.db")
	store, err := Open(ctx, DriverModernc, path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open(DriverModernc, path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE meta SET value = 'two' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(ctx, DriverModernc, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read schema version")
}
