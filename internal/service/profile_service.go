package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/bookrag/internal/model"
	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
	"github.com/xxxsen/bookrag/internal/repo"
)

type ProfileService struct {
	profiles *repo.ProfileRepo
}

func NewProfileService(profiles *repo.ProfileRepo) *ProfileService {
	return &ProfileService{profiles: profiles}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

// Save validates and upserts the caller's profile. The user id always
// comes from the session, never the request body.
func (s *ProfileService) Save(ctx context.Context, userID string, profile *model.Profile) (*model.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", appErr.ErrUnauthorized)
	}
	existing, err := s.profiles.Get(ctx, userID)
	if err != nil && err != appErr.ErrNotFound {
		return nil, err
	}
	profile.UserID = userID
	if existing != nil {
		profile.Ctime = existing.Ctime
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
