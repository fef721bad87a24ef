package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

var entryAt = time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC)

func sampleSpots() []domain.ParkingSpot {
	return []domain.ParkingSpot{
		{ID: 1, Row: 1, Position: 1, Side: domain.SideNorth, Type: domain.SpotHandicap},
		{
			ID: 2, Row: 1, Position: 2, Side: domain.SideNorth, Type: domain.SpotStandard, Occupied: true,
			Vehicle: &domain.VehicleInfo{
				LicensePlate: "KA01AB1234", EntryTime: entryAt, PreferredType: domain.SpotStandard,
				HandicapPermit: true, Notes: "red sedan",
			},
			EntryTime: null.TimeFrom(entryAt),
		},
	}
}

func sampleHistory() []domain.HistoryEntry {
	return []domain.HistoryEntry{
		{
			SessionID: "s-1", SpotID: 2, SpotType: domain.SpotStandard,
			Vehicle:   domain.VehicleInfo{LicensePlate: "OLD1", EntryTime: entryAt.Add(-3 * time.Hour), PreferredType: domain.SpotPremium},
			EntryTime: entryAt.Add(-3 * time.Hour),
			ExitTime:  null.TimeFrom(entryAt.Add(-time.Hour)),
		},
		{
			SessionID: "s-2", SpotID: 2, SpotType: domain.SpotStandard,
			Vehicle:   domain.VehicleInfo{LicensePlate: "KA01AB1234", EntryTime: entryAt, PreferredType: domain.SpotStandard, HandicapPermit: true, Notes: "red sedan"},
			EntryTime: entryAt,
		},
	}
}

func TestLayoutRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewLayoutRepository(t.TempDir())

	_, err := repo.LoadSpots(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.SaveSpots(ctx, sampleSpots()))
	got, err := repo.LoadSpots(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSpots(), got)
}

func TestHistoryRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo := NewHistoryRepository(dir)

	_, err := repo.LoadHistory(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.SaveHistory(ctx, sampleHistory()))
	got, err := NewHistoryRepository(dir).LoadHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleHistory(), got)

	require.NoError(t, repo.SaveHistory(ctx, nil))
	got, err = repo.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCorruptFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, layoutFileName), []byte("spots = [[[ nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, historyFileName), []byte("version = 7\n"), 0o644))

	_, err := NewLayoutRepository(dir).LoadSpots(ctx)
	assert.ErrorIs(t, err, repository.ErrCorruptState)

	_, err = NewHistoryRepository(dir).LoadHistory(ctx)
	assert.ErrorIs(t, err, repository.ErrCorruptState)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewLayoutRepository(dir).SaveSpots(context.Background(), sampleSpots()))

	_, err := os.Stat(filepath.Join(dir, layoutFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, layoutFileName))
	assert.NoError(t, err)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo := NewUserRepository(dir)

	created, err := repo.Create(ctx, &domain.User{Username: "gatekeeper", Password: "hash", Role: domain.RoleOperator})
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)

	_, err = repo.Create(ctx, &domain.User{Username: "GateKeeper", Password: "x", Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	second, err := repo.Create(ctx, &domain.User{Username: "admin", Password: "hash2", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	found, err := NewUserRepository(dir).FindByUsername(ctx, "GATEKEEPER")
	require.NoError(t, err)
	assert.Equal(t, "gatekeeper", found.Username)
	assert.Equal(t, "hash", found.Password)

	byID, err := repo.FindByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, byID.Role)

	_, err = repo.FindByID(ctx, 9)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDetectionRepository_FindRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewDetectionRepository(t.TempDir())

	for i, plate := range []string{"A1", "B2", "C3"} {
		require.NoError(t, repo.Create(ctx, &domain.DetectionRecord{
			ID: plate, Timestamp: entryAt.Add(time.Duration(i) * time.Minute), LicensePlate: plate,
			Confidence: 0.9, Source: domain.SourceCamera,
		}))
	}

	got, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C3", got[0].LicensePlate)
	assert.Equal(t, "B2", got[1].LicensePlate)
	assert.Equal(t, domain.SourceCamera, got[0].Source)
}
