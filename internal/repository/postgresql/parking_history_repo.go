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

type pgHistoryRepository struct {
	db *sql.DB
}

func NewPgHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &pgHistoryRepository{db: db}
}

func (r *pgHistoryRepository) LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
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
		var spotType, preferred string
		var exitTime sql.NullTime
		if err := rows.Scan(&e.SessionID, &e.SpotID, &spotType, &e.Vehicle.LicensePlate, &e.Vehicle.EntryTime,
			&preferred, &e.Vehicle.HandicapPermit, &e.Vehicle.Notes, &e.EntryTime, &exitTime); err != nil {
			return nil, fmt.Errorf("HistoryRepository.LoadHistory (scanning row): %w", err)
		}
		e.SpotType = domain.SpotType(spotType)
		e.Vehicle.PreferredType = domain.SpotType(preferred)
		e.Vehicle.EntryTime = e.Vehicle.EntryTime.In(time.UTC)
		e.EntryTime = e.EntryTime.In(time.UTC)
		if exitTime.Valid {
			e.ExitTime = null.TimeFrom(exitTime.Time.In(time.UTC))
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("HistoryRepository.LoadHistory (rows error): %w", err)
	}
	return entries, nil
}

func (r *pgHistoryRepository) SaveHistory(ctx context.Context, entries []domain.HistoryEntry) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("HistoryRepository.SaveHistory (prepare): %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		var exitTime sql.NullTime
		if e.ExitTime.Valid {
			exitTime = sql.NullTime{Time: e.ExitTime.Time, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i+1, e.SessionID, e.SpotID, string(e.SpotType), e.Vehicle.LicensePlate,
			e.Vehicle.EntryTime, string(e.Vehicle.PreferredType), e.Vehicle.HandicapPermit, e.Vehicle.Notes,
			e.EntryTime, exitTime); err != nil {
			return fmt.Errorf("HistoryRepository.SaveHistory (session %s): %w", e.SessionID, err)
		}
	}
	return tx.Commit()
}
