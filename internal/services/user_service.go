package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kograph/api/internal/repositories"
)

var (
	// ErrUserInvalidInput signals the caller provided invalid data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the profile could not be located.
	ErrUserNotFound = errors.New("user: not found")
)

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users  repositories.UserRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users  repositories.UserRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ UserService = (*userService)(nil)

// NewUserService wires dependencies into a UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users: deps.Users,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}
	return profile, nil
}

// UpsertProfile mirrors the authenticated account into the users collection.
func (s *userService) UpsertProfile(ctx context.Context, cmd UpsertProfileCommand) (UserProfile, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	now := s.clock()
	profile := UserProfile{
		ID:          userID,
		Email:       strings.TrimSpace(cmd.Email),
		DisplayName: strings.TrimSpace(cmd.DisplayName),
		Role:        strings.TrimSpace(cmd.Role),
		PhotoURL:    strings.TrimSpace(cmd.PhotoURL),
		Active:      true,
		CreatedAt:   now,
		LastActive:  now,
	}

	stored, err := s.users.Upsert(ctx, profile)
	if err != nil {
		return UserProfile{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "user.profile.upserted", map[string]any{
		"userId": stored.ID,
	})
	return stored, nil
}

func (s *userService) TouchLastActive(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	if err := s.users.TouchLastActive(ctx, userID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *userService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("user: repository unavailable: %w", err)
		}
	}

	return err
}
