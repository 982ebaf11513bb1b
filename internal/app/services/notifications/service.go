// Package notifications manages in-app notifications.
package notifications

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
	"github.com/Danejw/viewbait/internal/logging"
)

// Store is the database surface for notifications.
type Store interface {
	CreateNotification(ctx context.Context, create database.NotificationCreate) (*database.Notification, error)
	ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]database.Notification, error)
	CountUnreadForUser(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (*database.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotificationForUser(ctx context.Context, userID, id string) error
}

// Service manages notification reads and internal creation.
type Service struct {
	store Store
	log   *logging.Logger
}

// New constructs a notification service.
func New(store Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("notifications", "info", "json")
	}
	return &Service{store: store, log: log}
}

// CreateRequest is the internal notification payload.
type CreateRequest struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind,omitempty"`
	Title  string `json:"title"`
	Body   string `json:"body,omitempty"`
}

// Create inserts a notification for a user. Reachable only through the
// internal-secret endpoint.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*database.Notification, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.Validation("Notification title is required")
	}

	notification, err := s.store.CreateNotification(ctx, database.NotificationCreate{
		ID:     uuid.New().String(),
		UserID: req.UserID,
		Kind:   req.Kind,
		Title:  req.Title,
		Body:   req.Body,
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"user_id": req.UserID,
		"kind":    notification.Kind,
	}).Info("Notification created")
	return notification, nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]database.Notification, error) {
	return s.store.ListNotificationsForUser(ctx, userID, limit)
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnreadForUser(ctx, userID)
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) (*database.Notification, error) {
	return s.store.MarkNotificationRead(ctx, userID, id)
}

// MarkAllRead marks all of the user's notifications as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteNotificationForUser(ctx, userID, id)
}
