package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stockroom/internal/domain"

	"github.com/google/uuid"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository stores the one-to-one profile attached to each user
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)
	Upsert(ctx context.Context, profile *domain.UserProfile) error
}

type profileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	query := `
		SELECT user_id, position, department, bio, phone, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`

	profile := &domain.UserProfile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Position,
		&profile.Department,
		&profile.Bio,
		&profile.Phone,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return profile, nil
}

// Upsert creates the profile or overwrites its editable fields
func (r *profileRepository) Upsert(ctx context.Context, profile *domain.UserProfile) error {
	query := `
		INSERT INTO user_profiles (user_id, position, department, bio, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET position = EXCLUDED.position,
		    department = EXCLUDED.department,
		    bio = EXCLUDED.bio,
		    phone = EXCLUDED.phone,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		profile.UserID,
		profile.Position,
		profile.Department,
		profile.Bio,
		profile.Phone,
		profile.CreatedAt,
		profile.UpdatedAt,
	).Scan(&profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}
