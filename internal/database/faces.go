package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Face represents a reference face image used to keep generated thumbnails
// consistent with the creator's appearance.
type Face struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Label              string     `json:"label"`
	StoragePath        string     `json:"storage_path"`
	SignedURL          string     `json:"signed_url,omitempty"`
	SignedURLExpiresAt *time.Time `json:"signed_url_expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// FaceCreate holds the fields for inserting a face.
type FaceCreate struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Label              string     `json:"label"`
	StoragePath        string     `json:"storage_path"`
	SignedURL          string     `json:"signed_url,omitempty"`
	SignedURLExpiresAt *time.Time `json:"signed_url_expires_at,omitempty"`
}

// CreateFace inserts a face row.
func (r *Repository) CreateFace(ctx context.Context, create FaceCreate) (*Face, error) {
	if err := ValidateUserID(create.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(create.Label) == "" {
		return nil, fmt.Errorf("%w: face label cannot be empty", ErrInvalidInput)
	}
	if create.StoragePath == "" {
		return nil, fmt.Errorf("%w: storage_path cannot be empty", ErrInvalidInput)
	}

	data, err := r.client.request(ctx, "POST", "faces", create, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create face: %v", ErrDatabaseError, err)
	}
	var rows []Face
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal faces: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create face returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// ListFacesForUser lists the user's faces, newest first.
func (r *Repository) ListFacesForUser(ctx context.Context, userID string) ([]Face, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	query := "user_id=eq." + url.QueryEscape(userID) + "&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "faces", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list faces: %v", ErrDatabaseError, err)
	}
	var rows []Face
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal faces: %v", ErrDatabaseError, err)
	}
	return rows, nil
}

// GetFaceForUser retrieves a face the user owns.
func (r *Repository) GetFaceForUser(ctx context.Context, userID, id string) (*Face, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "faces", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get face: %v", ErrDatabaseError, err)
	}
	var rows []Face
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal faces: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("face", id)
	}
	return &rows[0], nil
}

// UpdateFaceSignedURL persists a refreshed signed URL for a face.
func (r *Repository) UpdateFaceSignedURL(ctx context.Context, id, signedURL string, expiresAt time.Time) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	body := map[string]interface{}{
		"signed_url":            signedURL,
		"signed_url_expires_at": expiresAt.UTC(),
	}
	query := "id=eq." + url.QueryEscape(id)
	if _, err := r.client.request(ctx, "PATCH", "faces", body, query); err != nil {
		return fmt.Errorf("%w: update face signed url: %v", ErrDatabaseError, err)
	}
	return nil
}

// DeleteFaceForUser deletes a face the user owns and returns the deleted row
// so callers can remove the stored object.
func (r *Repository) DeleteFaceForUser(ctx context.Context, userID, id string) (*Face, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "DELETE", "faces", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: delete face: %v", ErrDatabaseError, err)
	}
	var rows []Face
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal faces: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("face", id)
	}
	return &rows[0], nil
}
