package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Thumbnail represents a generated thumbnail row. Image bytes live in
// storage; the row carries the object path plus a short-lived signed URL.
type Thumbnail struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	Prompt             string     `json:"prompt,omitempty"`
	StyleID            string     `json:"style_id,omitempty"`
	PaletteID          string     `json:"palette_id,omitempty"`
	FaceID             string     `json:"face_id,omitempty"`
	StoragePath        string     `json:"storage_path"`
	SignedURL          string     `json:"signed_url,omitempty"`
	SignedURLExpiresAt *time.Time `json:"signed_url_expires_at,omitempty"`
	Width              int        `json:"width"`
	Height             int        `json:"height"`
	Favorite           bool       `json:"favorite"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ThumbnailCreate holds the fields for inserting a thumbnail row.
type ThumbnailCreate struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	Prompt             string     `json:"prompt,omitempty"`
	StyleID            string     `json:"style_id,omitempty"`
	PaletteID          string     `json:"palette_id,omitempty"`
	FaceID             string     `json:"face_id,omitempty"`
	StoragePath        string     `json:"storage_path"`
	SignedURL          string     `json:"signed_url,omitempty"`
	SignedURLExpiresAt *time.Time `json:"signed_url_expires_at,omitempty"`
	Width              int        `json:"width"`
	Height             int        `json:"height"`
}

// ThumbnailUpdate holds the mutable thumbnail fields.
type ThumbnailUpdate struct {
	Title    *string `json:"title,omitempty"`
	Favorite *bool   `json:"favorite,omitempty"`
}

func (c ThumbnailCreate) validate() error {
	if err := ValidateUserID(c.UserID); err != nil {
		return err
	}
	if c.StoragePath == "" {
		return fmt.Errorf("%w: storage_path cannot be empty", ErrInvalidInput)
	}
	return nil
}

// CreateThumbnail inserts a thumbnail row.
func (r *Repository) CreateThumbnail(ctx context.Context, create ThumbnailCreate) (*Thumbnail, error) {
	if err := create.validate(); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "POST", "thumbnails", create, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create thumbnail: %v", ErrDatabaseError, err)
	}

	var rows []Thumbnail
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal thumbnails: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create thumbnail returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// GetThumbnailForUser retrieves a thumbnail owned by the user. Rows owned by
// other users surface as not found.
func (r *Repository) GetThumbnailForUser(ctx context.Context, userID, id string) (*Thumbnail, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "thumbnails", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get thumbnail: %v", ErrDatabaseError, err)
	}

	var rows []Thumbnail
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal thumbnails: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("thumbnail", id)
	}
	return &rows[0], nil
}

// ListThumbnailsForUser lists the user's thumbnails, newest first.
func (r *Repository) ListThumbnailsForUser(ctx context.Context, userID string, limit, offset int) ([]Thumbnail, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := "user_id=eq." + url.QueryEscape(userID) +
		"&order=created_at.desc&limit=" + strconv.Itoa(limit) +
		"&offset=" + strconv.Itoa(offset)
	data, err := r.client.request(ctx, "GET", "thumbnails", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list thumbnails: %v", ErrDatabaseError, err)
	}

	var rows []Thumbnail
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal thumbnails: %v", ErrDatabaseError, err)
	}
	return rows, nil
}

// UpdateThumbnailForUser applies a partial update to a thumbnail the user
// owns.
func (r *Repository) UpdateThumbnailForUser(ctx context.Context, userID, id string, update ThumbnailUpdate) (*Thumbnail, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if update.Title == nil && update.Favorite == nil {
		return nil, fmt.Errorf("%w: no thumbnail fields to update", ErrInvalidInput)
	}

	body := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Title != nil {
		body["title"] = *update.Title
	}
	if update.Favorite != nil {
		body["favorite"] = *update.Favorite
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "PATCH", "thumbnails", body, query)
	if err != nil {
		return nil, fmt.Errorf("%w: update thumbnail: %v", ErrDatabaseError, err)
	}

	var rows []Thumbnail
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal thumbnails: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("thumbnail", id)
	}
	return &rows[0], nil
}

// UpdateThumbnailSignedURL persists a refreshed signed URL for a thumbnail.
func (r *Repository) UpdateThumbnailSignedURL(ctx context.Context, id, signedURL string, expiresAt time.Time) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	body := map[string]interface{}{
		"signed_url":            signedURL,
		"signed_url_expires_at": expiresAt.UTC(),
	}
	query := "id=eq." + url.QueryEscape(id)
	if _, err := r.client.request(ctx, "PATCH", "thumbnails", body, query); err != nil {
		return fmt.Errorf("%w: update thumbnail signed url: %v", ErrDatabaseError, err)
	}
	return nil
}

// DeleteThumbnailForUser deletes a thumbnail the user owns. Deleting a row
// the user does not own surfaces as not found.
func (r *Repository) DeleteThumbnailForUser(ctx context.Context, userID, id string) (*Thumbnail, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "DELETE", "thumbnails", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: delete thumbnail: %v", ErrDatabaseError, err)
	}

	var rows []Thumbnail
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal thumbnails: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("thumbnail", id)
	}
	return &rows[0], nil
}
