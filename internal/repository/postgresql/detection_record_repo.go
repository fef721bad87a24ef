package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

type pgDetectionRepository struct {
	db *sql.DB
}

func NewPgDetectionRepository(db *sql.DB) repository.DetectionRepository {
	return &pgDetectionRepository{db: db}
}

func (r *pgDetectionRepository) Create(ctx context.Context, rec *domain.DetectionRecord) error {
	query := `INSERT INTO detection_records (id, detected_at, license_plate, confidence, source, image_ref)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Timestamp, rec.LicensePlate, rec.Confidence, string(rec.Source), rec.ImageRef)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: detection %s", repository.ErrDuplicateEntry, rec.ID)
		}
		return fmt.Errorf("DetectionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgDetectionRepository) FindRecent(ctx context.Context, limit int) ([]domain.DetectionRecord, error) {
	query := `SELECT id, detected_at, license_plate, confidence, source, image_ref
	          FROM detection_records ORDER BY detected_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("DetectionRepository.FindRecent: %w", err)
	}
	defer rows.Close()

	records := []domain.DetectionRecord{}
	for rows.Next() {
		var rec domain.DetectionRecord
		var source string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.LicensePlate, &rec.Confidence, &source, &rec.ImageRef); err != nil {
			return nil, fmt.Errorf("DetectionRepository.FindRecent (scanning row): %w", err)
		}
		rec.Timestamp = rec.Timestamp.In(time.UTC)
		rec.Source = domain.DetectionSource(source)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("DetectionRepository.FindRecent (rows error): %w", err)
	}
	return records, nil
}
