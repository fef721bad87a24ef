package filestore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/repository"
)

type userRecord struct {
	ID           int       `toml:"id"`
	Username     string    `toml:"username"`
	PasswordHash string    `toml:"password_hash"`
	Role         string    `toml:"role"`
	CreatedAt    time.Time `toml:"created_at"`
	UpdatedAt    time.Time `toml:"updated_at"`
}

type usersDocument struct {
	Version int          `toml:"version"`
	NextID  int          `toml:"next_id"`
	Users   []userRecord `toml:"users"`
}

type UserRepository struct {
	doc document
}

func NewUserRepository(dir string) *UserRepository {
	return &UserRepository{doc: document{path: filepath.Join(dir, usersFileName)}}
}

func (r *UserRepository) load() (usersDocument, error) {
	doc := usersDocument{Version: formatVersion, NextID: 1}
	if err := r.doc.read(&doc); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return doc, fmt.Errorf("UserRepository: %w", err)
	}
	return doc, nil
}

func (rec userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:        rec.ID,
		Username:  rec.Username,
		Password:  rec.PasswordHash,
		Role:      rec.Role,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if strings.EqualFold(u.Username, user.Username) {
			return nil, fmt.Errorf("%w: username '%s' is taken", repository.ErrDuplicateEntry, user.Username)
		}
	}
	now := time.Now().UTC()
	user.ID = doc.NextID
	user.CreatedAt = now
	user.UpdatedAt = now
	doc.NextID++
	doc.Users = append(doc.Users, userRecord{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.Password,
		Role:         user.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err := r.doc.write(doc); err != nil {
		return nil, fmt.Errorf("UserRepository.Create: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if strings.EqualFold(u.Username, username) {
			return u.toDomain(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) FindByID(_ context.Context, id int) (*domain.User, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		if u.ID == id {
			return u.toDomain(), nil
		}
	}
	return nil, repository.ErrNotFound
}

type detectionRecord struct {
	ID           string    `toml:"id"`
	Timestamp    time.Time `toml:"timestamp"`
	LicensePlate string    `toml:"license_plate"`
	Confidence   float64   `toml:"confidence"`
	Source       string    `toml:"source"`
	ImageRef     string    `toml:"image_ref,omitempty"`
}

type detectionsDocument struct {
	Version int               `toml:"version"`
	Records []detectionRecord `toml:"records"`
}

type DetectionRepository struct {
	doc document
}

func NewDetectionRepository(dir string) *DetectionRepository {
	return &DetectionRepository{doc: document{path: filepath.Join(dir, detectionsFileName)}}
}

func (r *DetectionRepository) load() (detectionsDocument, error) {
	doc := detectionsDocument{Version: formatVersion}
	if err := r.doc.read(&doc); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return doc, fmt.Errorf("DetectionRepository: %w", err)
	}
	return doc, nil
}

func (r *DetectionRepository) Create(_ context.Context, record *domain.DetectionRecord) error {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.Records = append(doc.Records, detectionRecord{
		ID:           record.ID,
		Timestamp:    record.Timestamp.UTC(),
		LicensePlate: record.LicensePlate,
		Confidence:   record.Confidence,
		Source:       string(record.Source),
		ImageRef:     record.ImageRef,
	})
	return r.doc.write(doc)
}

func (r *DetectionRepository) FindRecent(_ context.Context, limit int) ([]domain.DetectionRecord, error) {
	r.doc.mu.Lock()
	defer r.doc.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]domain.DetectionRecord, 0, len(doc.Records))
	for _, rec := range doc.Records {
		out = append(out, domain.DetectionRecord{
			ID:           rec.ID,
			Timestamp:    rec.Timestamp.UTC(),
			LicensePlate: rec.LicensePlate,
			Confidence:   rec.Confidence,
			Source:       domain.DetectionSource(rec.Source),
			ImageRef:     rec.ImageRef,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
