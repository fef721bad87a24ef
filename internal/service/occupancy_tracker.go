package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v4"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
)

var ErrSpotNotOccupied = errors.New("parking spot is not occupied")

// SpotReader is the read side of the LayoutStore used by the tracker.
type SpotReader interface {
	GetSpotInfo(spotID int) (domain.ParkingSpot, error)
}

// OccupancyTracker keeps the append-only session history and derives
// statistics from it. Every mutation is written through to the repository.
type OccupancyTracker struct {
	mu      sync.RWMutex
	repo    repository.HistoryRepository
	spots   SpotReader
	entries []domain.HistoryEntry
	now     func() time.Time
}

// NewOccupancyTracker loads the persisted history. Missing or corrupt history
// starts empty; other repository errors are returned.
func NewOccupancyTracker(ctx context.Context, repo repository.HistoryRepository, spots SpotReader, opts ...Option) (*OccupancyTracker, error) {
	o := buildOptions(opts)
	t := &OccupancyTracker{repo: repo, spots: spots, now: o.now}

	entries, err := repo.LoadHistory(ctx)
	switch {
	case err == nil:
		if verr := validateHistory(entries); verr != nil {
			logging.Warnf(ctx, "OccupancyTracker: persisted history is invalid (%v), starting empty", verr)
			return t, nil
		}
		t.entries = entries
		logging.Infof(ctx, "OccupancyTracker: loaded %d history entries", len(entries))
	case errors.Is(err, repository.ErrNotFound):
		logging.Infof(ctx, "OccupancyTracker: no persisted history, starting empty")
	case errors.Is(err, repository.ErrCorruptState):
		logging.Warnf(ctx, "OccupancyTracker: %v, starting with an empty history", err)
	default:
		return nil, fmt.Errorf("OccupancyTracker: load history: %w", err)
	}
	return t, nil
}

func validateHistory(entries []domain.HistoryEntry) error {
	for i, e := range entries {
		if e.SpotID <= 0 || !e.SpotType.Valid() {
			return fmt.Errorf("entry %d has spot %d of type %q", i, e.SpotID, e.SpotType)
		}
		if e.ExitTime.Valid && e.ExitTime.Time.Before(e.EntryTime) {
			return fmt.Errorf("entry %d exits before it enters", i)
		}
	}
	return nil
}

func (t *OccupancyTracker) save(ctx context.Context) error {
	return t.repo.SaveHistory(ctx, t.entries)
}

// RecordEntry opens a session for the vehicle now parked in spotID. The spot
// must already be occupied.
func (t *OccupancyTracker) RecordEntry(ctx context.Context, spotID int, vehicle domain.VehicleInfo) (domain.HistoryEntry, error) {
	spot, err := t.spots.GetSpotInfo(spotID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if !spot.Occupied {
		return domain.HistoryEntry{}, fmt.Errorf("%w: %d", ErrSpotNotOccupied, spotID)
	}

	vehicle.EntryTime = spot.EntryTime.Time
	entry := domain.HistoryEntry{
		SessionID: uuid.NewString(),
		SpotID:    spotID,
		SpotType:  spot.Type,
		Vehicle:   vehicle,
		EntryTime: spot.EntryTime.Time,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, entry)
	if err := t.save(ctx); err != nil {
		t.entries = t.entries[:len(t.entries)-1]
		return domain.HistoryEntry{}, fmt.Errorf("OccupancyTracker.RecordEntry: %w", err)
	}
	return entry, nil
}

// RecordExit closes the most recent open session of the vehicle currently in
// spotID. It returns nil without error when there is no such session.
func (t *OccupancyTracker) RecordExit(ctx context.Context, spotID int) (*domain.HistoryEntry, error) {
	spot, err := t.spots.GetSpotInfo(spotID)
	if err != nil {
		return nil, err
	}
	if !spot.Occupied {
		return nil, nil
	}
	plate := spot.Vehicle.LicensePlate

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := &t.entries[i]
		if e.SpotID != spotID || e.Vehicle.LicensePlate != plate || !e.Open() {
			continue
		}
		e.ExitTime = null.TimeFrom(t.now())
		if err := t.save(ctx); err != nil {
			e.ExitTime = null.Time{}
			return nil, fmt.Errorf("OccupancyTracker.RecordExit: %w", err)
		}
		closed := *e
		return &closed, nil
	}
	logging.Warnf(ctx, "OccupancyTracker: no open session for %s in spot %d", plate, spotID)
	return nil, nil
}

// reopen undoes RecordExit when the spot could not be released afterwards.
func (t *OccupancyTracker) reopen(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		e := &t.entries[i]
		if e.SessionID != sessionID {
			continue
		}
		prev := e.ExitTime
		e.ExitTime = null.Time{}
		if err := t.save(ctx); err != nil {
			e.ExitTime = prev
			return fmt.Errorf("OccupancyTracker.reopen: %w", err)
		}
		return nil
	}
	return fmt.Errorf("OccupancyTracker.reopen: session %s %w", sessionID, repository.ErrNotFound)
}

// CloseOpenEntries stamps every open session with the current time and
// returns how many were closed.
func (t *OccupancyTracker) CloseOpenEntries(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var closed []int
	for i := range t.entries {
		if t.entries[i].Open() {
			t.entries[i].ExitTime = null.TimeFrom(now)
			closed = append(closed, i)
		}
	}
	if len(closed) == 0 {
		return 0, nil
	}
	if err := t.save(ctx); err != nil {
		for _, i := range closed {
			t.entries[i].ExitTime = null.Time{}
		}
		return 0, fmt.Errorf("OccupancyTracker.CloseOpenEntries: %w", err)
	}
	return len(closed), nil
}

func (t *OccupancyTracker) ClearHistory(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.entries
	t.entries = nil
	if err := t.save(ctx); err != nil {
		t.entries = prev
		return fmt.Errorf("OccupancyTracker.ClearHistory: %w", err)
	}
	return nil
}

// History returns the sessions matching filter in the order they started.
func (t *OccupancyTracker) History(filter domain.HistoryFilter) []domain.HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	period := filter.Period
	if period == "" {
		period = domain.PeriodAll
	}
	cutoff := period.Cutoff(t.now())

	out := []domain.HistoryEntry{}
	for _, e := range t.entries {
		if e.EntryTime.Before(cutoff) {
			continue
		}
		if filter.Type != nil && e.SpotType != *filter.Type {
			continue
		}
		if filter.Status != nil && e.Status() != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (t *OccupancyTracker) inWindow(period domain.Period) []domain.HistoryEntry {
	return t.History(domain.HistoryFilter{Period: period})
}

// GetStatistics summarizes sessions that entered within the period window.
// Durations only count closed sessions.
func (t *OccupancyTracker) GetStatistics(period domain.Period) domain.Statistics {
	entries := t.inWindow(period)

	stats := domain.Statistics{
		Period:        period,
		TotalVehicles: len(entries),
		ByType:        make(map[domain.SpotType]domain.TypeStatistics, len(domain.SpotTypes)),
	}

	type acc struct {
		count  int
		closed int
		total  time.Duration
	}
	perType := make(map[domain.SpotType]*acc, len(domain.SpotTypes))
	for _, st := range domain.SpotTypes {
		perType[st] = &acc{}
	}

	var closed int
	var total time.Duration
	for _, e := range entries {
		a, ok := perType[e.SpotType]
		if !ok {
			a = &acc{}
			perType[e.SpotType] = a
		}
		a.count++
		if d, ok := e.Duration(); ok {
			a.closed++
			a.total += d
			closed++
			total += d
		}
	}

	if closed > 0 {
		stats.AvgDurationMinutes = null.FloatFrom(minutes(total / time.Duration(closed)))
	}
	for st, a := range perType {
		ts := domain.TypeStatistics{Count: a.count}
		if a.closed > 0 {
			ts.AvgDurationMinutes = minutes(a.total / time.Duration(a.closed))
		}
		stats.ByType[st] = ts
	}
	return stats
}

// GetRevenue prices every closed session in the period window with tariff.
func (t *OccupancyTracker) GetRevenue(period domain.Period, tariff Tariff) domain.RevenueReport {
	entries := t.inWindow(period)

	report := domain.RevenueReport{
		Period:   period,
		Currency: tariff.Currency,
		ByType:   make(map[domain.SpotType]domain.TypeRevenue, len(domain.SpotTypes)),
	}
	durations := make(map[domain.SpotType]time.Duration, len(domain.SpotTypes))
	for _, st := range domain.SpotTypes {
		report.ByType[st] = domain.TypeRevenue{}
	}

	for _, e := range entries {
		d, ok := e.Duration()
		if !ok {
			continue
		}
		fee := tariff.Fee(e.EntryTime, e.ExitTime.Time)
		r := report.ByType[e.SpotType]
		r.Revenue += fee
		r.ExitedCount++
		report.ByType[e.SpotType] = r
		durations[e.SpotType] += d
		report.TotalRevenue += fee
		report.ExitedCount++
	}

	for st, r := range report.ByType {
		r.Revenue = roundCents(r.Revenue)
		if r.ExitedCount > 0 {
			r.AvgFee = roundCents(r.Revenue / float64(r.ExitedCount))
			r.AvgDurationMinutes = minutes(durations[st] / time.Duration(r.ExitedCount))
		}
		report.ByType[st] = r
	}
	report.TotalRevenue = roundCents(report.TotalRevenue)
	return report
}

// OpenSession returns the open session for spotID, if any.
func (t *OccupancyTracker) OpenSession(spotID int) (domain.HistoryEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		if e := t.entries[i]; e.SpotID == spotID && e.Open() {
			return e, true
		}
	}
	return domain.HistoryEntry{}, false
}
