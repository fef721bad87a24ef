package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

type pgLayoutRepository struct {
	db *sql.DB
}

func NewPgLayoutRepository(db *sql.DB) repository.LayoutRepository {
	return &pgLayoutRepository{db: db}
}

func (r *pgLayoutRepository) LoadSpots(ctx context.Context) ([]domain.ParkingSpot, error) {
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
		var entryTime, vehicleEntry sql.NullTime
		var plate, preferred, notes sql.NullString
		var permit sql.NullBool
		if err := rows.Scan(&spot.ID, &spot.Row, &spot.Position, &side, &spotType, &spot.Occupied, &entryTime,
			&plate, &vehicleEntry, &preferred, &permit, &notes); err != nil {
			return nil, fmt.Errorf("LayoutRepository.LoadSpots (scanning row): %w", err)
		}
		spot.Side = domain.SpotSide(side)
		spot.Type = domain.SpotType(spotType)
		if entryTime.Valid {
			spot.EntryTime = null.TimeFrom(entryTime.Time.In(time.UTC))
		}
		if plate.Valid {
			spot.Vehicle = &domain.VehicleInfo{
				LicensePlate:   plate.String,
				EntryTime:      vehicleEntry.Time.In(time.UTC),
				PreferredType:  domain.SpotType(preferred.String),
				HandicapPermit: permit.Bool,
				Notes:          notes.String,
			}
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

func (r *pgLayoutRepository) SaveSpots(ctx context.Context, spots []domain.ParkingSpot) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
	if err != nil {
		return fmt.Errorf("LayoutRepository.SaveSpots (prepare): %w", err)
	}
	defer stmt.Close()

	for _, s := range spots {
		var entryTime, vehicleEntry sql.NullTime
		var plate, preferred, notes sql.NullString
		var permit sql.NullBool
		if s.EntryTime.Valid {
			entryTime = sql.NullTime{Time: s.EntryTime.Time, Valid: true}
		}
		if s.Vehicle != nil {
			plate = sql.NullString{String: s.Vehicle.LicensePlate, Valid: true}
			vehicleEntry = sql.NullTime{Time: s.Vehicle.EntryTime, Valid: true}
			preferred = sql.NullString{String: string(s.Vehicle.PreferredType), Valid: true}
			permit = sql.NullBool{Bool: s.Vehicle.HandicapPermit, Valid: true}
			notes = sql.NullString{String: s.Vehicle.Notes, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.ID, s.Row, s.Position, string(s.Side), string(s.Type), s.Occupied,
			entryTime, plate, vehicleEntry, preferred, permit, notes); err != nil {
			return fmt.Errorf("LayoutRepository.SaveSpots (spot %d): %w", s.ID, err)
		}
	}
	return tx.Commit()
}
