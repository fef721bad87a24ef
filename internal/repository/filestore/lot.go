package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/guregu/null.v4"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

type vehicleRecord struct {
	LicensePlate   string    `toml:"license_plate"`
	EntryTime      time.Time `toml:"entry_time"`
	PreferredType  string    `toml:"preferred_type"`
	HandicapPermit bool      `toml:"handicap_permit"`
	Notes          string    `toml:"notes,omitempty"`
}

func toVehicleRecord(v domain.VehicleInfo) vehicleRecord {
	return vehicleRecord{
		LicensePlate:   v.LicensePlate,
		EntryTime:      v.EntryTime.UTC(),
		PreferredType:  string(v.PreferredType),
		HandicapPermit: v.HandicapPermit,
		Notes:          v.Notes,
	}
}

func (r vehicleRecord) toDomain() domain.VehicleInfo {
	return domain.VehicleInfo{
		LicensePlate:   r.LicensePlate,
		EntryTime:      r.EntryTime.UTC(),
		PreferredType:  domain.SpotType(r.PreferredType),
		HandicapPermit: r.HandicapPermit,
		Notes:          r.Notes,
	}
}

type spotRecord struct {
	ID        int            `toml:"id"`
	Row       int            `toml:"row"`
	Position  int            `toml:"position"`
	Side      string         `toml:"side"`
	Type      string         `toml:"type"`
	Occupied  bool           `toml:"occupied"`
	EntryTime *time.Time     `toml:"entry_time,omitempty"`
	Vehicle   *vehicleRecord `toml:"vehicle,omitempty"`
}

type layoutDocument struct {
	Version int          `toml:"version"`
	SavedAt time.Time    `toml:"saved_at"`
	Spots   []spotRecord `toml:"spots"`
}

type LayoutRepository struct {
	doc document
}

func NewLayoutRepository(dir string) *LayoutRepository {
	return &LayoutRepository{doc: document{path: filepath.Join(dir, layoutFileName)}}
}

func (r *LayoutRepository) LoadSpots(_ context.Context) ([]domain.ParkingSpot, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	var doc layoutDocument
	if err := r.doc.read(&doc); err != nil {
		return nil, err
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("%w: %s has version %d", repository.ErrCorruptState, r.doc.path, doc.Version)
	}
	spots := make([]domain.ParkingSpot, 0, len(doc.Spots))
	for _, rec := range doc.Spots {
		spot := domain.ParkingSpot{
			ID:       rec.ID,
			Row:      rec.Row,
			Position: rec.Position,
			Side:     domain.SpotSide(rec.Side),
			Type:     domain.SpotType(rec.Type),
			Occupied: rec.Occupied,
		}
		if rec.EntryTime != nil {
			spot.EntryTime = null.TimeFrom(rec.EntryTime.UTC())
		}
		if rec.Vehicle != nil {
			v := rec.Vehicle.toDomain()
			spot.Vehicle = &v
		}
		spots = append(spots, spot)
	}
	return spots, nil
}

func (r *LayoutRepository) SaveSpots(_ context.Context, spots []domain.ParkingSpot) error {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	doc := layoutDocument{
		Version: formatVersion,
		SavedAt: time.Now().UTC(),
		Spots:   make([]spotRecord, 0, len(spots)),
	}
	for _, s := range spots {
		rec := spotRecord{
			ID:       s.ID,
			Row:      s.Row,
			Position: s.Position,
			Side:     string(s.Side),
			Type:     string(s.Type),
			Occupied: s.Occupied,
		}
		if s.EntryTime.Valid {
			t := s.EntryTime.Time.UTC()
			rec.EntryTime = &t
		}
		if s.Vehicle != nil {
			v := toVehicleRecord(*s.Vehicle)
			rec.Vehicle = &v
		}
		doc.Spots = append(doc.Spots, rec)
	}
	return r.doc.write(doc)
}

type historyRecord struct {
	SessionID string        `toml:"session_id"`
	SpotID    int           `toml:"spot_id"`
	SpotType  string        `toml:"spot_type"`
	EntryTime time.Time     `toml:"entry_time"`
	ExitTime  *time.Time    `toml:"exit_time,omitempty"`
	Vehicle   vehicleRecord `toml:"vehicle"`
}

type historyDocument struct {
	Version int             `toml:"version"`
	SavedAt time.Time       `toml:"saved_at"`
	Entries []historyRecord `toml:"entries"`
}

type HistoryRepository struct {
	doc document
}

func NewHistoryRepository(dir string) *HistoryRepository {
	return &HistoryRepository{doc: document{path: filepath.Join(dir, historyFileName)}}
}

func (r *HistoryRepository) LoadHistory(_ context.Context) ([]domain.HistoryEntry, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	var doc historyDocument
	if err := r.doc.read(&doc); err != nil {
		return nil, err
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("%w: %s has version %d", repository.ErrCorruptState, r.doc.path, doc.Version)
	}
	entries := make([]domain.HistoryEntry, 0, len(doc.Entries))
	for _, rec := range doc.Entries {
		e := domain.HistoryEntry{
			SessionID: rec.SessionID,
			SpotID:    rec.SpotID,
			SpotType:  domain.SpotType(rec.SpotType),
			Vehicle:   rec.Vehicle.toDomain(),
			EntryTime: rec.EntryTime.UTC(),
		}
		if rec.ExitTime != nil {
			e.ExitTime = null.TimeFrom(rec.ExitTime.UTC())
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *HistoryRepository) SaveHistory(_ context.Context, entries []domain.HistoryEntry) error {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	doc := historyDocument{
		Version: formatVersion,
		SavedAt: time.Now().UTC(),
		Entries: make([]historyRecord, 0, len(entries)),
	}
	for _, e := range entries {
		rec := historyRecord{
			SessionID: e.SessionID,
			SpotID:    e.SpotID,
			SpotType:  string(e.SpotType),
			EntryTime: e.EntryTime.UTC(),
			Vehicle:   toVehicleRecord(e.Vehicle),
		}
		if e.ExitTime.Valid {
			t := e.ExitTime.Time.UTC()
			rec.ExitTime = &t
		}
		doc.Entries = append(doc.Entries, rec)
	}
	return r.doc.write(doc)
}
