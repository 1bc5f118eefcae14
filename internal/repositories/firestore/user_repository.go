package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kograph/api/internal/domain"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
)

const userCollection = "users"

type userDocument struct {
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName,omitempty"`
	Role        string    `firestore:"role,omitempty"`
	PhotoURL    string    `firestore:"photoUrl,omitempty"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
	LastActive  time.Time `firestore:"lastActive"`
}

// UserRepository implements repositories.UserRepository backed by Firestore.
type UserRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.Collection[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[userDocument](provider, userCollection, nil)
	if err != nil {
		return nil, err
	}
	return &UserRepository{provider: provider, users: collection}, nil
}

// FindByID loads a user profile.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.UserProfile{}, errors.New("user id is required")
	}
	doc, err := r.users.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return toDomainUserProfile(userID, doc), nil
}

// Upsert writes the profile, preserving the original creation timestamp when
// the document already exists.
func (r *UserRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if strings.TrimSpace(profile.ID) == "" {
		return domain.UserProfile{}, errors.New("user id is required")
	}
	existing, err := r.users.Get(ctx, profile.ID)
	switch {
	case err == nil:
		if !existing.CreatedAt.IsZero() {
			profile.CreatedAt = existing.CreatedAt
		}
	default:
		var repoErr *pfirestore.Error
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			return domain.UserProfile{}, err
		}
	}
	if err := r.users.Set(ctx, profile.ID, fromDomainUserProfile(profile)); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

// TouchLastActive bumps the lastActive timestamp without rewriting the profile.
func (r *UserRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	return r.users.Update(ctx, userID, []firestore.Update{
		{Path: "lastActive", Value: at},
	})
}

func fromDomainUserProfile(profile domain.UserProfile) userDocument {
	return userDocument{
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Role:        profile.Role,
		PhotoURL:    profile.PhotoURL,
		Active:      profile.Active,
		CreatedAt:   profile.CreatedAt,
		LastActive:  profile.LastActive,
	}
}

func toDomainUserProfile(id string, doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		ID:          id,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		Role:        doc.Role,
		PhotoURL:    doc.PhotoURL,
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
		LastActive:  doc.LastActive,
	}
}
