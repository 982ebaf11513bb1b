package billing

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
	"github.com/Danejw/viewbait/internal/logging"
	"github.com/Danejw/viewbait/internal/metrics"
)

// Store is the persistence surface billing needs.
type Store interface {
	RecordWebhookEvent(ctx context.Context, eventID, eventType string) (*database.WebhookEvent, error)
	UpsertSubscription(ctx context.Context, upsert database.SubscriptionUpsert) (*database.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string) error
	GetSubscriptionByCustomer(ctx context.Context, customerID string) (*database.Subscription, error)
	GetSubscriptionForUser(ctx context.Context, userID string) (*database.Subscription, error)
	GrantCredits(ctx context.Context, userID string, amount int) (int, error)
	CreateNotification(ctx context.Context, create database.NotificationCreate) (*database.Notification, error)
}

// Service handles Stripe billing.
type Service struct {
	api           *client.API
	store         Store
	webhookSecret string
	priceToTier   map[string]Tier
	tierToPrice   map[Tier]string
	returnURL     string
	logger        *logging.Logger
	metrics       *metrics.Metrics
}

// ServiceConfig configures the billing service.
type ServiceConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceProID    string
	PriceStudioID string
	ReturnURL     string
	Store         Store
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
}

// NewService creates the billing service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.SecretKey == "" || cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe secret key and webhook secret are required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("billing store is required")
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &Service{
		api:           api,
		store:         cfg.Store,
		webhookSecret: cfg.WebhookSecret,
		priceToTier: map[string]Tier{
			cfg.PriceProID:    TierPro,
			cfg.PriceStudioID: TierStudio,
		},
		tierToPrice: map[Tier]string{
			TierPro:    cfg.PriceProID,
			TierStudio: cfg.PriceStudioID,
		},
		returnURL: cfg.ReturnURL,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// CreateCheckoutSession starts a subscription checkout for a paid tier and
// returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, userID string, tier Tier) (string, error) {
	priceID, ok := s.tierToPrice[tier]
	if !ok || priceID == "" {
		return "", errors.Validation("Unknown subscription tier")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(s.returnURL + "?checkout=success"),
		CancelURL:         stripe.String(s.returnURL + "?checkout=canceled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
	}
	params.AddMetadata("user_id", userID)
	params.AddMetadata("tier", string(tier))
	params.Context = ctx

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", errors.Upstream("stripe", fmt.Errorf("create checkout session: %w", err))
	}
	return session.URL, nil
}

// CreatePortalSession returns a billing-portal URL for the user's customer.
func (s *Service) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	sub, err := s.store.GetSubscriptionForUser(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return "", errors.NotFound("subscription")
		}
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", errors.NotFound("subscription")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(s.returnURL),
	}
	params.Context = ctx

	session, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", errors.Upstream("stripe", fmt.Errorf("create portal session: %w", err))
	}
	return session.URL, nil
}

// HandleWebhook verifies and processes one webhook delivery. Signature
// failures return an error (the handler rejects with 400). Duplicate events
// and post-dedupe processing failures return nil so the delivery is
// acknowledged and Stripe does not retry.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	// Dashboard accounts pin their own API version, so the event version
	// routinely differs from the SDK's.
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if s.logger != nil {
			s.logger.LogSecurityEvent(ctx, "webhook_signature_invalid", map[string]interface{}{"error": err.Error()})
		}
		s.recordEvent("unknown", "rejected")
		return errors.Validation("Invalid webhook signature")
	}

	if _, err := s.store.RecordWebhookEvent(ctx, event.ID, string(event.Type)); err != nil {
		if goerrors.Is(err, database.ErrDuplicateEvent) {
			s.recordEvent(string(event.Type), "duplicate")
			return nil
		}
		// Not durably recorded; fail so the provider redelivers.
		s.recordEvent(string(event.Type), "failed")
		return errors.Internal("Failed to record webhook event", err)
	}

	if err := s.process(ctx, event); err != nil {
		// The event is recorded; acknowledge and rely on logs rather than
		// triggering a retry storm.
		if s.logger != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Error("Webhook processing failed")
		}
		s.recordEvent(string(event.Type), "failed")
		return nil
	}

	s.recordEvent(string(event.Type), "processed")
	return nil
}

func (s *Service) process(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("unmarshal checkout session: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, &session)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		return s.handleSubscriptionUpdated(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("unmarshal subscription: %w", err)
		}
		return s.store.UpdateSubscriptionStatus(ctx, sub.ID, database.SubscriptionStatusCanceled)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("unmarshal invoice: %w", err)
		}
		return s.handlePaymentFailed(ctx, &invoice)

	default:
		// Unhandled event types are recorded and acknowledged.
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	userID := session.ClientReferenceID
	if userID == "" {
		return fmt.Errorf("checkout session %s has no client reference id", session.ID)
	}

	tier := TierPro
	if t := Tier(session.Metadata["tier"]); ValidTier(t) {
		tier = t
	}

	upsert := database.SubscriptionUpsert{
		UserID: userID,
		Tier:   string(tier),
		Status: database.SubscriptionStatusActive,
	}
	if session.Customer != nil {
		upsert.StripeCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		upsert.StripeSubscriptionID = session.Subscription.ID
	}
	if _, err := s.store.UpsertSubscription(ctx, upsert); err != nil {
		return err
	}

	if _, err := s.store.GrantCredits(ctx, userID, LimitsFor(tier).MonthlyCredits); err != nil {
		return err
	}

	_, err := s.store.CreateNotification(ctx, database.NotificationCreate{
		ID:     uuid.New().String(),
		UserID: userID,
		Kind:   "billing",
		Title:  "Subscription activated",
		Body:   fmt.Sprintf("Your %s plan is active. Credits have been added to your account.", tier),
	})
	if err != nil && s.logger != nil {
		// Notification is best effort.
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to create billing notification")
	}
	return nil
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return fmt.Errorf("subscription %s has no customer", sub.ID)
	}

	existing, err := s.store.GetSubscriptionByCustomer(ctx, sub.Customer.ID)
	if err != nil {
		return err
	}

	tier := Tier(existing.Tier)
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if mapped, ok := s.priceToTier[item.Price.ID]; ok {
				tier = mapped
			}
		}
	}

	status := database.SubscriptionStatusActive
	switch sub.Status {
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		status = database.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		status = database.SubscriptionStatusCanceled
	}

	upsert := database.SubscriptionUpsert{
		UserID:               existing.UserID,
		Tier:                 string(tier),
		Status:               status,
		StripeCustomerID:     sub.Customer.ID,
		StripeSubscriptionID: sub.ID,
	}
	if sub.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		upsert.CurrentPeriodEnd = &periodEnd
	}

	_, err = s.store.UpsertSubscription(ctx, upsert)
	return err
}

func (s *Service) handlePaymentFailed(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil
	}
	if err := s.store.UpdateSubscriptionStatus(ctx, invoice.Subscription.ID, database.SubscriptionStatusPastDue); err != nil {
		return err
	}

	if invoice.Customer != nil {
		if sub, err := s.store.GetSubscriptionByCustomer(ctx, invoice.Customer.ID); err == nil {
			_, notifyErr := s.store.CreateNotification(ctx, database.NotificationCreate{
				ID:     uuid.New().String(),
				UserID: sub.UserID,
				Kind:   "billing",
				Title:  "Payment failed",
				Body:   "We could not process your latest payment. Update your payment method to keep your plan.",
			})
			if notifyErr != nil && s.logger != nil {
				s.logger.WithContext(ctx).WithError(notifyErr).Warn("Failed to create payment notification")
			}
		}
	}
	return nil
}

// TierForUser resolves the user's effective tier; users without a
// subscription row or with a lapsed subscription are on the free tier.
func (s *Service) TierForUser(ctx context.Context, userID string) (Tier, error) {
	sub, err := s.store.GetSubscriptionForUser(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return TierFree, nil
		}
		return TierFree, err
	}
	if sub.Status != database.SubscriptionStatusActive {
		return TierFree, nil
	}
	tier := Tier(sub.Tier)
	if !ValidTier(tier) {
		return TierFree, nil
	}
	return tier, nil
}

func (s *Service) recordEvent(eventType, disposition string) {
	if s.metrics != nil {
		s.metrics.RecordWebhookEvent(eventType, disposition)
	}
}
