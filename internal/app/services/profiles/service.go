// Package profiles manages user profile reads and updates.
package profiles

import (
	"context"

	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/logging"
)

// Store is the database surface for profiles.
type Store interface {
	EnsureProfile(ctx context.Context, userID string) (*database.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update database.ProfileUpdate) (*database.Profile, error)
	GetCreditBalance(ctx context.Context, userID string) (int, error)
}

// Service manages profiles.
type Service struct {
	store Store
	log   *logging.Logger
}

// New constructs a profile service.
func New(store Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("profiles", "info", "json")
	}
	return &Service{store: store, log: log}
}

// Get returns the user's profile, creating the row on first sight. Supabase
// auth owns the user record; the profile row is app-side state keyed by the
// auth user id.
func (s *Service) Get(ctx context.Context, userID string) (*database.Profile, error) {
	return s.store.EnsureProfile(ctx, userID)
}

// Update applies a partial profile update.
func (s *Service) Update(ctx context.Context, userID string, update database.ProfileUpdate) (*database.Profile, error) {
	return s.store.UpdateProfile(ctx, userID, update)
}

// Credits returns the user's current credit balance.
func (s *Service) Credits(ctx context.Context, userID string) (int, error) {
	return s.store.GetCreditBalance(ctx, userID)
}
