package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockroom/internal/apperror"
	"stockroom/internal/domain"
	"stockroom/internal/repository"
	"stockroom/internal/validation"

	"github.com/google/uuid"
)

// ProfileService manages the profile attached to each account
type ProfileService interface {
	// Get returns the profile, creating an empty one on first access
	Get(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)
	Update(ctx context.Context, actor *domain.Actor, userID uuid.UUID, in validation.ProfileFields) (*domain.UserProfile, error)
}

type profileService struct {
	profiles    repository.ProfileRepository
	countryCode string
}

func NewProfileService(profiles repository.ProfileRepository, countryCode string) ProfileService {
	if countryCode == "" {
		countryCode = validation.DefaultCountryCode
	}
	return &profileService{profiles: profiles, countryCode: countryCode}
}

func (s *profileService) Get(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	now := time.Now().UTC()
	profile = &domain.UserProfile{UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// Update replaces the profile fields. Users may only edit their own profile.
func (s *profileService) Update(ctx context.Context, actor *domain.Actor, userID uuid.UUID, in validation.ProfileFields) (*domain.UserProfile, error) {
	if actor == nil {
		return nil, apperror.New(apperror.KindUnauthenticated, "authentication required")
	}
	if actor.ID != userID {
		return nil, apperror.New(apperror.KindPermissionDenied, "You can only edit your own profile.")
	}

	fields, err := validation.Profile(in, s.countryCode)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	profile := &domain.UserProfile{
		UserID:     userID,
		Position:   fields.Position,
		Department: fields.Department,
		Bio:        fields.Bio,
		Phone:      fields.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}
