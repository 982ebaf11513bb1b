package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

var subscriptionStatuses = []string{
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
}

// Subscription represents a user's billing subscription row, kept in sync by
// Stripe webhooks.
type Subscription struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	Tier                 string     `json:"tier"`
	Status               string     `json:"status"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// SubscriptionUpsert holds the fields written from webhook processing.
type SubscriptionUpsert struct {
	UserID               string     `json:"user_id"`
	Tier                 string     `json:"tier"`
	Status               string     `json:"status"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
}

// GetSubscriptionForUser retrieves the user's subscription row.
func (r *Repository) GetSubscriptionForUser(ctx context.Context, userID string) (*Subscription, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	query := "user_id=eq." + url.QueryEscape(userID) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "subscriptions", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription: %v", ErrDatabaseError, err)
	}

	var rows []Subscription
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal subscriptions: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("subscription", userID)
	}
	return &rows[0], nil
}

// GetSubscriptionByCustomer looks a subscription up by Stripe customer id.
func (r *Repository) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*Subscription, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id cannot be empty", ErrInvalidInput)
	}

	query := "stripe_customer_id=eq." + url.QueryEscape(SanitizeString(customerID)) + "&limit=1"
	data, err := r.client.request(ctx, "GET", "subscriptions", nil, query)
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription by customer: %v", ErrDatabaseError, err)
	}

	var rows []Subscription
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal subscriptions: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, NewNotFoundError("subscription", customerID)
	}
	return &rows[0], nil
}

// UpsertSubscription writes the subscription state for a user, creating the
// row when absent and merging when present.
func (r *Repository) UpsertSubscription(ctx context.Context, upsert SubscriptionUpsert) (*Subscription, error) {
	if err := ValidateUserID(upsert.UserID); err != nil {
		return nil, err
	}
	if err := ValidateStatus(upsert.Status, subscriptionStatuses); err != nil {
		return nil, err
	}

	data, err := r.client.requestWithPrefer(ctx, "POST", "subscriptions", upsert,
		"on_conflict=user_id", "resolution=merge-duplicates,return=representation")
	if err != nil {
		return nil, fmt.Errorf("%w: upsert subscription: %v", ErrDatabaseError, err)
	}

	var rows []Subscription
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: unmarshal subscriptions: %v", ErrDatabaseError, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: upsert subscription returned no rows", ErrDatabaseError)
	}
	return &rows[0], nil
}

// UpdateSubscriptionStatus updates the status of a subscription identified by
// its Stripe subscription id.
func (r *Repository) UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string) error {
	if stripeSubscriptionID == "" {
		return fmt.Errorf("%w: subscription id cannot be empty", ErrInvalidInput)
	}
	if err := ValidateStatus(status, subscriptionStatuses); err != nil {
		return err
	}

	body := map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}
	query := "stripe_subscription_id=eq." + url.QueryEscape(SanitizeString(stripeSubscriptionID))
	if _, err := r.client.request(ctx, "PATCH", "subscriptions", body, query); err != nil {
		return fmt.Errorf("%w: update subscription status: %v", ErrDatabaseError, err)
	}
	return nil
}
