package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Palette represents a named color palette owned by a user.
type Palette struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Colors    []string  `json:"colors"`
	BuiltIn   bool      `json:"built_in"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaletteCreate holds the fields for inserting a palette.
type PaletteCreate struct {
	ID     string   `json:"id"`
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Colors []string `json:"colors"`
}

// PaletteUpdate holds the mutable palette fields.
type PaletteUpdate struct {
	Name   *string  `json:"name,omitempty"`
	Colors []string `json:"colors,omitempty"`
}

func validateColors(colors []string) error {
	if len(colors) == 0 {
		return fmt.Errorf("%w: palette needs at least one color", ErrInvalidInput)
	}
	if len(colors) > 12 {
		return fmt.Errorf("%w: palette cannot exceed 12 colors", ErrInvalidInput)
	}
	for _, c := range colors {
		if !strings.HasPrefix(c, "#") || (len(c) != 7 && len(c) != 4) {
			return fmt.Errorf("%w: color %q is not a hex color", ErrInvalidInput, c)
		}
	}
	return nil
}

// CreatePalette inserts a palette row.
func (r *Repository) CreatePalette(ctx context.Context, create PaletteCreate) (*Palette, error) {
	if err := ValidateUserID(create.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(create.Name) == "" {
		return nil, fmt.Errorf("%w: palette name cannot be empty", ErrInvalidInput)
	}
	if err := validateColors(create.Colors); err != nil {
		return nil, err
	}

	data, err := r.client.request(ctx, "POST", "palettes", create, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create palette: %v", ErrDatabaseError, err)
	}
	var rows []Palette
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal palettes: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create palette returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// ListPalettesForUser lists the user's palettes plus the built-in set.
func (r *Repository) ListPalettesForUser(ctx context.Context, userID string) ([]Palette, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	query := "or=(user_id.eq." + url.QueryEscape(userID) + ",built_in.is.true)&order=created_at.desc"
	data, err := r.client.request(ctx, "GET", "palettes", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list palettes: %v", ErrDatabaseError, err)
	}
	var rows []Palette
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal palettes: %v", ErrDatabaseError, err)
	}
	return rows, nil
}

// GetPaletteForUser retrieves a palette the user can use (owned or built-in).
func (r *Repository) GetPaletteForUser(ctx context.Context, userID, id string) (*Palette, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	query := "id=eq." + url.QueryEscape(id) +
		"&or=(user_id.eq." + url.QueryEscape(userID) + ",built_in.is.true)&limit=1"
	data, err := r.client.request(ctx, "GET", "palettes", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get palette: %v", ErrDatabaseError, err)
	}
	var rows []Palette
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal palettes: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("palette", id)
	}
	return &rows[0], nil
}

// UpdatePaletteForUser applies a partial update to a palette the user owns.
func (r *Repository) UpdatePaletteForUser(ctx context.Context, userID, id string, update PaletteUpdate) (*Palette, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if update.Name == nil && update.Colors == nil {
		return nil, fmt.Errorf("%w: no palette fields to update", ErrInvalidInput)
	}
	if update.Colors != nil {
		if err := validateColors(update.Colors); err != nil {
			return nil, err
		}
	}

	body := map[string]interface{}{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		body["name"] = *update.Name
	}
	if update.Colors != nil {
		body["colors"] = update.Colors
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID) + "&built_in=is.false"
	data, err := r.client.request(ctx, "PATCH", "palettes", body, query)
	if err != nil {
		return nil, fmt.Errorf("%w: update palette: %v", ErrDatabaseError, err)
	}
	var rows []Palette
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal palettes: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("palette", id)
	}
	return &rows[0], nil
}

// DeletePaletteForUser deletes a palette the user owns.
func (r *Repository) DeletePaletteForUser(ctx context.Context, userID, id string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID) + "&built_in=is.false"
	data, err := r.client.request(ctx, "DELETE", "palettes", nil, query)
	if err != nil {
		return fmt.Errorf("%w: delete palette: %v", ErrDatabaseError, err)
	}
	var rows []Palette
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%w: unmarshal palettes: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return NewNotFoundError("palette", id)
	}
	return nil
}
