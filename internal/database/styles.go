package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Style represents a reusable visual style owned by a user.
type Style struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PromptHint  string    `json:"prompt_hint,omitempty"`
	BuiltIn     bool      `json:"built_in"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StyleCreate holds the fields for inserting a style.
type StyleCreate struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PromptHint  string `json:"prompt_hint,omitempty"`
}

// StyleUpdate holds the mutable style fields.
type StyleUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	PromptHint  *string `json:"prompt_hint,omitempty"`
}

// CreateStyle inserts a style row.
func (r *Repository) CreateStyle(ctx context.Context, create StyleCreate) (*Style, error) {
	if err := ValidateUserID(create.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(create.Name) == "" {
		return nil, fmt.Errorf("%w: style name cannot be empty", ErrInvalidInput)
	}

	data, err := r.client.request(ctx, "POST", "styles", create, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create style: %v", ErrDatabaseError, err)
	}
	var rows []Style
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal styles: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create style returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// ListStylesForUser lists the user's styles plus the built-in set.
func (r *Repository) ListStylesForUser(ctx context.Context, userID string) ([]Style, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	query := "or=(user_id.eq." + url.QueryEscape(userID) + ",built_in.is.true)&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "styles", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list styles: %v", ErrDatabaseError, err)
	}
	var rows []Style
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal styles: %v", ErrDatabaseError, err)
	}
	return rows, nil
}

// GetStyleForUser retrieves a style the user can use (owned or built-in).
func (r *Repository) GetStyleForUser(ctx context.Context, userID, id string) (*Style, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) +
		"&or=(user_id.eq." + url.QueryEscape(userID) + ",built_in.is.true)&limit=1"
	data, err := r.client.request(ctx, "GET", "styles", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get style: %v", ErrDatabaseError, err)
	}
	var rows []Style
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal styles: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("style", id)
	}
	return &rows[0], nil
}

// UpdateStyleForUser applies a partial update to a style the user owns.
// Built-in styles cannot be updated.
func (r *Repository) UpdateStyleForUser(ctx context.Context, userID, id string, update StyleUpdate) (*Style, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if update.Name == nil && update.Description == nil && update.PromptHint == nil {
		return nil, fmt.Errorf("%w: no style fields to update", ErrInvalidInput)
	}

	body := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		body["name"] = *update.Name
	}
	if update.Description != nil {
		body["description"] = *update.Description
	}
	if update.PromptHint != nil {
		body["prompt_hint"] = *update.PromptHint
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID) + "&built_in=is.false"
	data, err := r.client.request(ctx, "PATCH", "styles", body, query)
	if err != nil {
		return nil, fmt.Errorf("%w: update style: %v", ErrDatabaseError, err)
	}
	var rows []Style
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal styles: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("style", id)
	}
	return &rows[0], nil
}

// DeleteStyleForUser deletes a style the user owns.
func (r *Repository) DeleteStyleForUser(ctx context.Context, userID, id string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID) + "&built_in=is.false"
	data, err := r.client.request(ctx, "DELETE", "styles", nil, query)
	if err != nil {
		return fmt.Errorf("%w: delete style: %v", ErrDatabaseError, err)
	}
	var rows []Style
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%w: unmarshal styles: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return NewNotFoundError("style", id)
	}
	return nil
}
