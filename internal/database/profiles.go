package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Profile represents a user profile row.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Onboarded   bool      `json:"onboarded"`
	Credits     int       `json:"credits"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileUpdate holds the mutable profile fields.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Onboarded   *bool   `json:"onboarded,omitempty"`
}

// GetProfile retrieves a profile by user id.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(userID) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "profiles", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %v", ErrDatabaseError, err)
	}

	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: unmarshal profiles: %v", ErrDatabaseError, err)
	}
	if len(profiles) == 0 {
		return nil, NewNotFoundError("profile", userID)
	}
	return &profiles[0], nil
}

// EnsureProfile creates a profile row for the user when one does not exist.
// Existing rows are left untouched.
func (r *Repository) EnsureProfile(ctx context.Context, userID string) (*Profile, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	profile, err := r.GetProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	row := map[string]interface{}{"id": userID}
	data, err := r.client.requestWithPrefer(ctx, "POST", "profiles", row,
		"on_conflict=id", "resolution=ignore-duplicates,return=representation")
	if err != nil {
		return nil, fmt.Errorf("%w: create profile: %v", ErrDatabaseError, err)
	}

	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: unmarshal profiles: %v", ErrDatabaseError, err)
	}
	if len(profiles) > 0 {
		return &profiles[0], nil
	}
	// Conflict swallowed the insert; another request created the row first.
	return r.GetProfile(ctx, userID)
}

// UpdateProfile applies a partial update to the caller's profile.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*Profile, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if update.DisplayName == nil && update.AvatarURL == nil && update.Onboarded == nil {
		return nil, fmt.Errorf("%w: no profile fields to update", ErrInvalidInput)
	}

	body := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.DisplayName != nil {
		body["display_name"] = *update.DisplayName
	}
	if update.AvatarURL != nil {
		body["avatar_url"] = *update.AvatarURL
	}
	if update.Onboarded != nil {
		body["onboarded"] = *update.Onboarded
	}

	query := "id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "PATCH", "profiles", body, query)
	if err != nil {
		return nil, fmt.Errorf("%w: update profile: %v", ErrDatabaseError, err)
	}

	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("%w: unmarshal profiles: %v", ErrDatabaseError, err)
	}
	if len(profiles) == 0 {
		return nil, NewNotFoundError("profile", userID)
	}
	return &profiles[0], nil
}

// GetCreditBalance returns the user's current credit balance.
func (r *Repository) GetCreditBalance(ctx context.Context, userID string) (int, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return profile.Credits, nil
}

// DeductCredits atomically deducts credits from the user's balance via the
// deduct_credits database function. The function refuses to go negative.
func (r *Repository) DeductCredits(ctx context.Context, userID string, amount int) (int, error) {
	if err := ValidateUserID(userID); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	args := map[string]interface{}{"p_user_id": userID, "p_amount": amount}
	data, err := r.client.rpc(ctx, "deduct_credits", args)
	if err != nil {
		return 0, fmt.Errorf("%w: deduct credits: %v", ErrDatabaseError, err)
	}

	var balance int
	if err := json.Unmarshal(data, &balance); err != nil {
		return 0, fmt.Errorf("%w: unmarshal balance: %v", ErrDatabaseError, err)
	}
	return balance, nil
}

// GrantCredits adds credits to the user's balance via the grant_credits
// database function. Used by billing webhooks on renewal.
func (r *Repository) GrantCredits(ctx context.Context, userID string, amount int) (int, error) {
	if err := ValidateUserID(userID); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	args := map[string]interface{}{"p_user_id": userID, "p_amount": amount}
	data, err := r.client.rpc(ctx, "grant_credits", args)
	if err != nil {
		return 0, fmt.Errorf("%w: grant credits: %v", ErrDatabaseError, err)
	}

	var balance int
	if err := json.Unmarshal(data, &balance); err != nil {
		return 0, fmt.Errorf("%w: unmarshal balance: %v", ErrDatabaseError, err)
	}
	return balance, nil
}
