package httpapi

import (
	"io"
	"net/http"

	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/httputil"
)

// maxWebhookBody bounds Stripe webhook payloads.
const maxWebhookBody = 1 << 20

type checkoutInput struct {
	Tier string `json:"tier"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var input checkoutInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}

	url, err := s.billing.CreateCheckoutSession(r.Context(), userID, billing.Tier(input.Tier))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	url, err := s.billing.CreatePortalSession(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"portal_url": url})
}

type subscriptionView struct {
	Tier   billing.Tier   `json:"tier"`
	Status string         `json:"status"`
	Limits billing.Limits `json:"limits"`
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	tier, err := s.billing.TierForUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := subscriptionView{Tier: tier, Limits: billing.LimitsFor(tier)}
	if tier != billing.TierFree {
		view.Status = database.SubscriptionStatusActive
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// handleStripeWebhook receives provider deliveries. Signature failures are
// rejected; anything already recorded is acknowledged so the provider stops
// retrying.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "Unreadable payload")
		return
	}

	if err := s.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
