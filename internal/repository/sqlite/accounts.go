package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

type sqliteUserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &sqliteUserRepository{db: db}
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.Username, user.Password, user.Role, formatTime(now), formatTime(now))
	if err != nil {
		// Both drivers report "UNIQUE constraint failed" in the message.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: username '%s' is taken", repository.ErrDuplicateEntry, user.Username)
		}
		return nil, fmt.Errorf("UserRepository.Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("UserRepository.Create (last insert id): %w", err)
	}
	user.ID = int(id)
	user.CreatedAt = now
	user.UpdatedAt = now
	return user, nil
}

func (r *sqliteUserRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	user := &domain.User{}
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at, updated_at FROM users WHERE `+where, arg).
		Scan(&user.ID, &user.Username, &user.Password, &user.Role, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("UserRepository: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *sqliteUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *sqliteUserRepository) FindByID(ctx context.Context, id int) (*domain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

type sqliteDetectionRepository struct {
	db *sql.DB
}

func NewDetectionRepository(db *sql.DB) repository.DetectionRepository {
	return &sqliteDetectionRepository{db: db}
}

func (r *sqliteDetectionRepository) Create(ctx context.Context, rec *domain.DetectionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO detection_records (id, detected_at, license_plate, confidence, source, image_ref)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, formatTime(rec.Timestamp), rec.LicensePlate, rec.Confidence, string(rec.Source), rec.ImageRef)
	if err != nil {
		return fmt.Errorf("DetectionRepository.Create: %w", err)
	}
	return nil
}

func (r *sqliteDetectionRepository) FindRecent(ctx context.Context, limit int) ([]domain.DetectionRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, detected_at, license_plate, confidence, source, image_ref
		 FROM detection_records ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("DetectionRepository.FindRecent: %w", err)
	}
	defer rows.Close()

	records := []domain.DetectionRecord{}
	for rows.Next() {
		var rec domain.DetectionRecord
		var detectedAt, source string
		if err := rows.Scan(&rec.ID, &detectedAt, &rec.LicensePlate, &rec.Confidence, &source, &rec.ImageRef); err != nil {
			return nil, fmt.Errorf("DetectionRepository.FindRecent (scanning row): %w", err)
		}
		if rec.Timestamp, err = parseTime(detectedAt); err != nil {
			return nil, err
		}
		rec.Source = domain.DetectionSource(source)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("DetectionRepository.FindRecent (rows error): %w", err)
	}
	return records, nil
}
