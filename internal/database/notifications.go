package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Notification represents an in-app notification row.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationCreate holds the fields for inserting a notification.
type NotificationCreate struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
}

// CreateNotification inserts a notification row.
func (r *Repository) CreateNotification(ctx context.Context, create NotificationCreate) (*Notification, error) {
	if err := ValidateUserID(create.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(create.Title) == "" {
		return nil, fmt.Errorf("%w: notification title cannot be empty", ErrInvalidInput)
	}
	if create.Kind == "" {
		create.Kind = "info"
	}

	data, err := r.client.request(ctx, "POST", "notifications", create, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create notification: %v", ErrDatabaseError, err)
	}
	var rows []Notification
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal notifications: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create notification returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// ListNotificationsForUser lists the user's notifications, newest first.
func (r *Repository) ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := "user_id=eq." + url.QueryEscape(userID) +
		"&order=created_at.desc&limit=" + strconv.Itoa(limit)
	data, err := r.client.request(ctx, "GET", "notifications", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications: %v", ErrDatabaseError, err)
	}
	var rows []Notification
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal notifications: %v", ErrDatabaseError, err)
	}
	return rows, nil
}

// CountUnreadForUser returns the number of unread notifications.
func (r *Repository) CountUnreadForUser(ctx context.Context, userID string) (int, error) {
	rows, err := r.listUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *Repository) listUnread(ctx context.Context, userID string) ([]Notification, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	query := "user_id=eq." + url.QueryEscape(userID) + "&read=is.false&select=id"
	data, err := r.client.request(ctx, "GET", "notifications", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: count unread: %v", ErrDatabaseError, err)
	}
	var rows []Notification
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal notifications: %v", ErrDatabaseError, err)
	}
	return rows, nil
}

// MarkNotificationRead marks one notification read for the user.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id string) (*Notification, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	body := map[string]interface{}{"read": true}
	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "PATCH", "notifications", body, query)
	if err != nil {
		return nil, fmt.Errorf("%w: mark notification read: %v", ErrDatabaseError, err)
	}
	var rows []Notification
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal notifications: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("notification", id)
	}
	return &rows[0], nil
}

// MarkAllNotificationsRead marks all of the user's notifications read.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	body := map[string]interface{}{"read": true}
	query := "user_id=eq." + url.QueryEscape(userID) + "&read=is.false"
	if _, err := r.client.request(ctx, "PATCH", "notifications", body, query); err != nil {
		return fmt.Errorf("%w: mark all read: %v", ErrDatabaseError, err)
	}
	return nil
}

// DeleteNotificationForUser deletes a notification the user owns.
func (r *Repository) DeleteNotificationForUser(ctx context.Context, userID, id string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}

	query := "id=eq." + url.QueryEscape(id) + "&user_id=eq." + url.QueryEscape(userID)
	data, err := r.client.request(ctx, "DELETE", "notifications", nil, query)
	if err != nil {
		return fmt.Errorf("%w: delete notification: %v", ErrDatabaseError, err)
	}
	var rows []Notification
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("%w: unmarshal notifications: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return NewNotFoundError("notification", id)
	}
	return nil
}
