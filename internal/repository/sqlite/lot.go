package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"gopkg.in/guregu/null.v4"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

type sqliteLayoutRepository struct {
	db *sql.DB
}

func NewLayoutRepository(db *sql.DB) repository.LayoutRepository {
	return &sqliteLayoutRepository{db: db}
}

func (r *sqliteLayoutRepository) LoadSpots(ctx context.Context) ([]domain.ParkingSpot, error) {
	query := `SELECT id, row_no, position, side, spot_type, occupied, entry_time,
	                 license_plate, vehicle_entry_time, preferred_type, handicap_permit, notes
	          FROM parking_spots ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("LayoutRepository.LoadSpots: %w", err)
	}
	defer rows.Close()

	var spots []domain.ParkingSpot
	for rows.Next() {
		var spot domain.ParkingSpot
		var side, spotType string
		var entryTime, plate, vehicleEntry, preferred, notes sql.NullString
		var permit sql.NullBool
		if err := rows.Scan(&spot.ID, &spot.Row, &spot.Position, &side, &spotType, &spot.Occupied, &entryTime,
			&plate, &vehicleEntry, &preferred, &permit, &notes); err != nil {
			return nil, fmt.Errorf("LayoutRepository.LoadSpots (scanning row): %w", err)
		}
		spot.Side = domain.SpotSide(side)
		spot.Type = domain.SpotType(spotType)
		if entryTime.Valid {
			t, err := parseTime(entryTime.String)
			if err != nil {
				return nil, err
			}
			spot.EntryTime = null.TimeFrom(t)
		}
		if plate.Valid {
			v := domain.VehicleInfo{
				LicensePlate:   plate.String,
				PreferredType:  domain.SpotType(preferred.String),
				HandicapPermit: permit.Bool,
				Notes:          notes.String,
			}
			if vehicleEntry.Valid {
				if v.EntryTime, err = parseTime(vehicleEntry.String); err != nil {
					return nil, err
				}
			}
			spot.Vehicle = &v
		}
		spots = append(spots, spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("LayoutRepository.LoadSpots (rows error): %w", err)
	}
	if len(spots) == 0 {
		return nil, repository.ErrNotFound
	}
	return spots, nil
}

func (r *sqliteLayoutRepository) SaveSpots(ctx context.Context, spots []domain.ParkingSpot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("LayoutRepository.SaveSpots: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_spots`); err != nil {
		return fmt.Errorf("LayoutRepository.SaveSpots (clear): %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO parking_spots
		(id, row_no, position, side, spot_type, occupied, entry_time,
		 license_plate, vehicle_entry_time, preferred_type, handicap_permit, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("LayoutRepository.SaveSpots (prepare): %w", err)
	}
	defer stmt.Close()

	for _, s := range spots {
		var plate, vehicleEntry, preferred, notes sql.NullString
		var permit sql.NullBool
		if s.Vehicle != nil {
			plate = sql.NullString{String: s.Vehicle.LicensePlate, Valid: true}
			vehicleEntry = nullTimeString(s.Vehicle.EntryTime, true)
			preferred = sql.NullString{String: string(s.Vehicle.PreferredType), Valid: true}
			permit = sql.NullBool{Bool: s.Vehicle.HandicapPermit, Valid: true}
			notes = sql.NullString{String: s.Vehicle.Notes, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.ID, s.Row, s.Position, string(s.Side), string(s.Type), s.Occupied,
			nullTimeString(s.EntryTime.Time, s.EntryTime.Valid),
			plate, vehicleEntry, preferred, permit, notes); err != nil {
			return fmt.Errorf("LayoutRepository.SaveSpots (spot %d): %w", s.ID, err)
		}
	}
	return tx.Commit()
}

type sqliteHistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &sqliteHistoryRepository{db: db}
}

func (r *sqliteHistoryRepository) LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	query := `SELECT session_id, spot_id, spot_type, license_plate, vehicle_entry_time, preferred_type,
	                 handicap_permit, notes, entry_time, exit_time
	          FROM parking_history ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("HistoryRepository.LoadHistory: %w", err)
	}
	defer rows.Close()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		var spotType, preferred, vehicleEntry, entryTime string
		var exitTime sql.NullString
		if err := rows.Scan(&e.SessionID, &e.SpotID, &spotType, &e.Vehicle.LicensePlate, &vehicleEntry, &preferred,
			&e.Vehicle.HandicapPermit, &e.Vehicle.Notes, &entryTime, &exitTime); err != nil {
			return nil, fmt.Errorf("HistoryRepository.LoadHistory (scanning row): %w", err)
		}
		e.SpotType = domain.SpotType(spotType)
		e.Vehicle.PreferredType = domain.SpotType(preferred)
		if e.Vehicle.EntryTime, err = parseTime(vehicleEntry); err != nil {
			return nil, err
		}
		if e.EntryTime, err = parseTime(entryTime); err != nil {
			return nil, err
		}
		if exitTime.Valid {
			t, err := parseTime(exitTime.String)
			if err != nil {
				return nil, err
			}
			e.ExitTime = null.TimeFrom(t)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("HistoryRepository.LoadHistory (rows error): %w", err)
	}
	return entries, nil
}

func (r *sqliteHistoryRepository) SaveHistory(ctx context.Context, entries []domain.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("HistoryRepository.SaveHistory: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_history`); err != nil {
		return fmt.Errorf("HistoryRepository.SaveHistory (clear): %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO parking_history
		(seq, session_id, spot_id, spot_type, license_plate, vehicle_entry_time, preferred_type,
		 handicap_permit, notes, entry_time, exit_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("HistoryRepository.SaveHistory (prepare): %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i+1, e.SessionID, e.SpotID, string(e.SpotType), e.Vehicle.LicensePlate,
			formatTime(e.Vehicle.EntryTime), string(e.Vehicle.PreferredType), e.Vehicle.HandicapPermit, e.Vehicle.Notes,
			formatTime(e.EntryTime), nullTimeString(e.ExitTime.Time, e.ExitTime.Valid)); err != nil {
			return fmt.Errorf("HistoryRepository.SaveHistory (session %s): %w", e.SessionID, err)
		}
	}
	return tx.Commit()
}
