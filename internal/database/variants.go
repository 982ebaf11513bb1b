package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

const (
	VariantStatusCandidate = "candidate"
	VariantStatusWinner    = "winner"
	VariantStatusArchived  = "archived"
)

var variantStatuses = []string{
	VariantStatusCandidate,
	VariantStatusWinner,
	VariantStatusArchived,
}

// Variant represents one generated arm of a thumbnail experiment.
type Variant struct {
	ID                 string     `json:"id"`
	ThumbnailID        string     `json:"thumbnail_id"`
	UserID             string     `json:"user_id"`
	Status             string     `json:"status"`
	Prompt             string     `json:"prompt,omitempty"`
	StoragePath        string     `json:"storage_path"`
	SignedURL          string     `json:"signed_url,omitempty"`
	SignedURLExpiresAt *time.Time `json:"signed_url_expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// VariantCreate holds the fields for inserting a variant row.
type VariantCreate struct {
	ID                 string     `json:"id"`
	ThumbnailID        string     `json:"thumbnail_id"`
	UserID             string     `json:"user_id"`
	Status             string     `json:"status"`
	Prompt             string     `json:"prompt,omitempty"`
	StoragePath        string     `json:"storage_path"`
	SignedURL          string     `json:"signed_url,omitempty"`
	SignedURLExpiresAt *time.Time `json:"signed_url_expires_at,omitempty"`
}

func (c VariantCreate) validate() error {
	if err := ValidateUserID(c.UserID); err != nil {
		return err
	}
	if err := ValidateID(c.ThumbnailID); err != nil {
		return err
	}
	if c.StoragePath == "" {
		return fmt.Errorf("%w: storage_path cannot be empty", ErrInvalidInput)
	}
	return ValidateStatus(c.Status, variantStatuses)
}

// CreateVariant inserts one variant row.
func (r *Repository) CreateVariant(ctx context.Context, create VariantCreate) (*Variant, error) {
	if err := create.validate(); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "POST", "thumbnail_variants", create, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create variant: %v", ErrDatabaseError, err)
	}

	var rows []Variant
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal variants: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create variant returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// ListVariantsForThumbnail lists variants of a thumbnail the user owns.
func (r *Repository) ListVariantsForThumbnail(ctx context.Context, userID, thumbnailID string) ([]Variant, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(thumbnailID); err != nil {
		return nil, err
	}

	query := "thumbnail_id=eq." + url.QueryEscape(thumbnailID) +
		"&user_id=eq." + url.QueryEscape(userID) + "&order=created_at.asc"
	data, err := r.client.request(ctx, "GET", "thumbnail_variants", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list variants: %v", ErrDatabaseError, err)
	}

	var rows []Variant
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal variants: %v", ErrDatabaseError, err)
	}
	return rows, nil
}

// GetVariantForUser retrieves one variant the user owns.
func (r *Repository) GetVariantForUser(ctx context.Context, userID, id string) (*Variant, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "thumbnail_variants", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get variant: %v", ErrDatabaseError, err)
	}

	var rows []Variant
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal variants: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("variant", id)
	}
	return &rows[0], nil
}

// SetVariantStatusForUser updates a variant's experiment status. Promoting a
// winner demotes the thumbnail's other variants to candidates first.
func (r *Repository) SetVariantStatusForUser(ctx context.Context, userID, id, status string) (*Variant, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ValidateStatus(status, variantStatuses); err != nil {
		return nil, err
	}

	if status == VariantStatusWinner {
		variant, err := r.GetVariantForUser(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		demote := map[string]interface{}{"status": VariantStatusCandidate, "updated_at": time.Now().UTC()}
		demoteQuery := "thumbnail_id=eq." + url.QueryEscape(variant.ThumbnailID) +
			"&user_id=eq." + url.QueryEscape(userID) +
			"&status=eq." + VariantStatusWinner
		if _, err := r.client.request(ctx, "PATCH", "thumbnail_variants", demote, demoteQuery); err != nil {
			return nil, fmt.Errorf("%w: demote winner: %v", ErrDatabaseError, err)
		}
	}

	body := map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}
	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "PATCH", "thumbnail_variants", body, query)
	if err != nil {
		return nil, fmt.Errorf("%w: update variant: %v", ErrDatabaseError, err)
	}

	var rows []Variant
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal variants: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("variant", id)
	}
	return &rows[0], nil
}

// DeleteVariantForUser deletes a variant the user owns.
func (r *Repository) DeleteVariantForUser(ctx context.Context, userID, id string) (*Variant, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "DELETE", "thumbnail_variants", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: delete variant: %v", ErrDatabaseError, err)
	}

	var rows []Variant
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal variants: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("variant", id)
	}
	return &rows[0], nil
}

// UpdateVariantSignedURL persists a refreshed signed URL for a variant.
func (r *Repository) UpdateVariantSignedURL(ctx context.Context, id, signedURL string, expiresAt time.Time) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	body := map[string]interface{}{
		"signed_url":            signedURL,
		"signed_url_expires_at": expiresAt.UTC(),
	}
	query := "id=eq." + url.QueryEscape(id)
	if _, err := r.client.request(ctx, "PATCH", "thumbnail_variants", body, query); err != nil {
		return fmt.Errorf("%w: update variant signed url: %v", ErrDatabaseError, err)
	}
	return nil
}
