package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// YouTubeConnection stores a user's OAuth tokens and channel identity for
// the YouTube integration. One row per user.
type YouTubeConnection struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ChannelID    string    `json:"channel_id,omitempty"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// YouTubeConnectionUpsert holds the fields written after a successful OAuth
// exchange.
type YouTubeConnectionUpsert struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ChannelID    string    `json:"channel_id,omitempty"`
	ChannelTitle string    `json:"channel_title,omitempty"`
}

// GetYouTubeConnection retrieves the user's YouTube connection.
func (r *Repository) GetYouTubeConnection(ctx context.Context, userID string) (*YouTubeConnection, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	query := "user_id=eq." + url.QueryEscape(userID) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "youtube_connections", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get youtube connection: %v", ErrDatabaseError, err)
	}

	var rows []YouTubeConnection
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal youtube connections: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("youtube_connection", userID)
	}
	return &rows[0], nil
}

// UpsertYouTubeConnection persists freshly exchanged tokens for a user.
func (r *Repository) UpsertYouTubeConnection(ctx context.Context, upsert YouTubeConnectionUpsert) (*YouTubeConnection, error) {
	if err := ValidateUserID(upsert.UserID); err != nil {
		return nil, err
	}
	if upsert.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token cannot be empty", ErrInvalidInput)
	}

	data, err := r.client.requestWithPrefer(ctx, "POST", "youtube_connections", upsert,
		"on_conflict=user_id", "resolution=merge-duplicates,return=representation")
	if err != nil {
		return nil, fmt.Errorf("%w: upsert youtube connection: %v", ErrDatabaseError, err)
	}

	var rows []YouTubeConnection
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal youtube connections: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: upsert youtube connection returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// UpdateYouTubeTokens persists refreshed OAuth tokens.
func (r *Repository) UpdateYouTubeTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if accessToken == "" {
		return fmt.Errorf("%w: access_token cannot be empty", ErrInvalidInput)
	}

	body := map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt.UTC(),
		"updated_at":   time.Now().UTC(),
	}
	// Providers only return a refresh token on the first exchange; keep the
	// stored one unless a replacement arrived.
	if refreshToken != "" {
		body["refresh_token"] = refreshToken
	}

	query := "user_id=eq." + url.QueryEscape(userID)
	if _, err := r.client.request(ctx, "PATCH", "youtube_connections", body, query); err != nil {
		return fmt.Errorf("%w: update youtube tokens: %v", ErrDatabaseError, err)
	}
	return nil
}

// DeleteYouTubeConnection removes the user's YouTube connection.
func (r *Repository) DeleteYouTubeConnection(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	query := "user_id=eq." + url.QueryEscape(userID)
	if _, err := r.client.request(ctx, "DELETE", "youtube_connections", nil, query); err != nil {
		return fmt.Errorf("%w: delete youtube connection: %v", ErrDatabaseError, err)
	}
	return nil
}
