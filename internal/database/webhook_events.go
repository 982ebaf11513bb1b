package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WebhookEvent records a processed billing webhook delivery. The event id
// column carries a unique constraint; inserting a duplicate is the
// idempotency guard.
type WebhookEvent struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordWebhookEvent durably records a webhook delivery. A second delivery
// of the same event id returns ErrDuplicateEvent and writes nothing.
func (r *Repository) RecordWebhookEvent(ctx context.Context, eventID, eventType string) (*WebhookEvent, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event_id cannot be empty", ErrInvalidInput)
	}

	row := map[string]interface{}{
		"event_id":   eventID,
		"event_type": eventType,
	}
	data, err := r.client.requestWithPrefer(ctx, "POST", "webhook_events", row,
		"on_conflict=event_id", "resolution=ignore-duplicates,return=representation")
	if err != nil {
		return nil, fmt.Errorf("%w: record webhook event: %v", ErrDatabaseError, err)
	}

	var rows []WebhookEvent
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal webhook events: %v", ErrDatabaseError, err)
	}
	// ignore-duplicates returns an empty representation when the insert was
	// swallowed by the conflict.
	if len(rows) == 0 {
		return nil, ErrDuplicateEvent
	}
	return &rows[0], nil
}
