package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danejw/viewbait/internal/app/services/notifications"
	"github.com/Danejw/viewbait/internal/app/services/thumbnails"
	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/logging"
	"github.com/Danejw/viewbait/internal/middleware"
	"github.com/Danejw/viewbait/internal/storage"
)

const (
	testJWTSecret      = "test-jwt-secret"
	testInternalSecret = "test-internal-secret"
	testWebhookSecret  = "whsec_test"

	userA = "11111111-1111-1111-1111-111111111111"
	userB = "22222222-2222-2222-2222-222222222222"
)

// fakeThumbStore covers the read paths the handlers exercise. Unused store
// methods come from the embedded interface and panic if reached.
type fakeThumbStore struct {
	thumbnails.Store

	thumbs map[string]*database.Thumbnail
	lists  atomic.Int32
}

func (f *fakeThumbStore) ListThumbnailsForUser(_ context.Context, userID string, limit, offset int) ([]database.Thumbnail, error) {
	f.lists.Add(1)
	var out []database.Thumbnail
	for _, t := range f.thumbs {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeThumbStore) GetThumbnailForUser(_ context.Context, userID, id string) (*database.Thumbnail, error) {
	t, ok := f.thumbs[id]
	if !ok || t.UserID != userID {
		return nil, database.NewNotFoundError("thumbnail", id)
	}
	copied := *t
	return &copied, nil
}

type fakeObjects struct{}

func (fakeObjects) Upload(context.Context, string, []byte, string) error { return nil }
func (fakeObjects) Download(context.Context, string) ([]byte, string, error) {
	return []byte("image-bytes"), "image/png", nil
}
func (fakeObjects) Sign(_ context.Context, path string) (*storage.SignedObject, error) {
	return &storage.SignedObject{URL: "https://signed.example/" + path, ExpiresAt: time.Now().Add(time.Hour)}, nil
}
func (fakeObjects) SignBatch(_ context.Context, paths []string) ([]storage.SignedObject, error) {
	signed := make([]storage.SignedObject, 0, len(paths))
	for _, path := range paths {
		signed = append(signed, storage.SignedObject{Path: path, URL: "https://signed.example/" + path, ExpiresAt: time.Now().Add(time.Hour)})
	}
	return signed, nil
}
func (fakeObjects) NeedsRefresh(*time.Time) bool         { return false }
func (fakeObjects) Delete(context.Context, string) error { return nil }

type fakeTiers struct{ tier billing.Tier }

func (f fakeTiers) TierForUser(context.Context, string) (billing.Tier, error) { return f.tier, nil }

type fakeNotificationStore struct {
	notifications.Store

	created []database.NotificationCreate
}

func (f *fakeNotificationStore) CreateNotification(_ context.Context, create database.NotificationCreate) (*database.Notification, error) {
	f.created = append(f.created, create)
	return &database.Notification{
		ID:        create.ID,
		UserID:    create.UserID,
		Kind:      create.Kind,
		Title:     create.Title,
		Body:      create.Body,
		CreatedAt: time.Now(),
	}, nil
}

type fakeBillingStore struct {
	billing.Store

	events map[string]bool
}

func (f *fakeBillingStore) RecordWebhookEvent(_ context.Context, eventID, eventType string) (*database.WebhookEvent, error) {
	if f.events[eventID] {
		return nil, database.ErrDuplicateEvent
	}
	f.events[eventID] = true
	return &database.WebhookEvent{EventID: eventID, EventType: eventType}, nil
}

func (f *fakeBillingStore) GetSubscriptionForUser(_ context.Context, userID string) (*database.Subscription, error) {
	return nil, database.NewNotFoundError("subscription", userID)
}

type testEnv struct {
	handler    http.Handler
	thumbStore *fakeThumbStore
	notifStore *fakeNotificationStore
}

func newTestServer(t *testing.T, internalSecret string) *testEnv {
	t.Helper()
	return newTestServerWithRate(t, internalSecret, 1000, 1000)
}

func newTestServerWithRate(t *testing.T, internalSecret string, rateLimit, rateBurst int) *testEnv {
	t.Helper()

	logger := logging.New("httpapi-test", "error", "json")

	thumbStore := &fakeThumbStore{thumbs: map[string]*database.Thumbnail{}}
	notifStore := &fakeNotificationStore{}
	billingStore := &fakeBillingStore{events: map[string]bool{}}

	billingSvc, err := billing.NewService(billing.ServiceConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		PriceProID:    "price_pro",
		PriceStudioID: "price_studio",
		ReturnURL:     "https://app.example",
		Store:         billingStore,
		Logger:        logger,
	})
	require.NoError(t, err)

	server := NewServer(Config{
		Thumbnails:     thumbnails.New(thumbStore, nil, fakeObjects{}, fakeTiers{tier: billing.TierFree}, logger),
		Notifications:  notifications.New(notifStore, logger),
		Billing:        billingSvc,
		Logger:         logger,
		JWTSecret:      testJWTSecret,
		InternalSecret: internalSecret,
		RateLimit:      rateLimit,
		RateBurst:      rateBurst,
	})

	return &testEnv{
		handler:    server.Router(),
		thumbStore: thumbStore,
		notifStore: notifStore,
	}
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func stripeSignature(payload []byte, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestHealthEndpointIsOpen(t *testing.T) {
	env := newTestServer(t, testInternalSecret)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestServer(t, testInternalSecret)

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/thumbnails"},
		{"POST", "/api/thumbnails/generate"},
		{"GET", "/api/studio/dashboard"},
		{"GET", "/api/profile"},
		{"GET", "/api/notifications"},
		{"GET", "/api/youtube/status"},
		{"POST", "/api/billing/checkout"},
	}
	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, httptest.NewRequest(route.method, route.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
	assert.Equal(t, int32(0), env.thumbStore.lists.Load(), "rejected requests must not reach the store")
}

func TestListThumbnailsReturnsOwnRowsOnly(t *testing.T) {
	env := newTestServer(t, testInternalSecret)
	env.thumbStore.thumbs["t1"] = &database.Thumbnail{ID: "t1", UserID: userA, Title: "First"}
	env.thumbStore.thumbs["t2"] = &database.Thumbnail{ID: "t2", UserID: userA, Title: "Second"}
	env.thumbStore.thumbs["t3"] = &database.Thumbnail{ID: "t3", UserID: userB, Title: "Other"}

	req := httptest.NewRequest("GET", "/api/thumbnails", nil)
	req.Header.Set("Authorization", bearerToken(t, userA))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Thumbnails []database.Thumbnail `json:"thumbnails"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Thumbnails, 2)
}

func TestGetThumbnailHidesForeignRowsAsNotFound(t *testing.T) {
	env := newTestServer(t, testInternalSecret)
	env.thumbStore.thumbs["t1"] = &database.Thumbnail{ID: "t1", UserID: userA, Title: "First"}

	req := httptest.NewRequest("GET", "/api/thumbnails/t1", nil)
	req.Header.Set("Authorization", bearerToken(t, userB))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRateLimitAppliesPerUserAcrossConnections(t *testing.T) {
	env := newTestServerWithRate(t, testInternalSecret, 1, 1)

	// Each request arrives on a fresh client port, as separate TCP
	// connections from one user would.
	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/api/thumbnails", nil)
		req.RemoteAddr = fmt.Sprintf("192.0.2.1:%d", 40000+i)
		req.Header.Set("Authorization", bearerToken(t, userA))
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestStripeWebhookSkipsUserAuth(t *testing.T) {
	env := newTestServer(t, testInternalSecret)

	t.Run("bad signature is rejected not unauthorized", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/webhooks/stripe", strings.NewReader(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("signed delivery is acknowledged", func(t *testing.T) {
		payload := []byte(`{"id":"evt_test_1","type":"ping","data":{"object":{}}}`)
		req := httptest.NewRequest("POST", "/api/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", stripeSignature(payload, time.Now()))
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestInternalNotificationEndpoint(t *testing.T) {
	body := func() *bytes.Reader {
		return bytes.NewReader([]byte(`{"kind":"info","title":"Render finished"}`))
	}

	t.Run("missing secret", func(t *testing.T) {
		env := newTestServer(t, testInternalSecret)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/internal/notifications", body()))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		env := newTestServer(t, testInternalSecret)
		req := httptest.NewRequest("POST", "/api/internal/notifications", body())
		req.Header.Set(middleware.InternalSecretHeader, "wrong")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid user id format", func(t *testing.T) {
		env := newTestServer(t, testInternalSecret)
		req := httptest.NewRequest("POST", "/api/internal/notifications", body())
		req.Header.Set(middleware.InternalSecretHeader, testInternalSecret)
		req.Header.Set(middleware.UserIDHeader, "not-a-uuid")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("valid secret creates the notification", func(t *testing.T) {
		env := newTestServer(t, testInternalSecret)
		req := httptest.NewRequest("POST", "/api/internal/notifications", body())
		req.Header.Set(middleware.InternalSecretHeader, testInternalSecret)
		req.Header.Set(middleware.UserIDHeader, userA)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		require.Len(t, env.notifStore.created, 1)
		assert.Equal(t, userA, env.notifStore.created[0].UserID)
		assert.Equal(t, "Render finished", env.notifStore.created[0].Title)
	})

	t.Run("disabled without configured secret", func(t *testing.T) {
		env := newTestServer(t, "")
		req := httptest.NewRequest("POST", "/api/internal/notifications", body())
		req.Header.Set(middleware.InternalSecretHeader, testInternalSecret)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestSubscriptionDefaultsToFreeTier(t *testing.T) {
	env := newTestServer(t, testInternalSecret)

	req := httptest.NewRequest("GET", "/api/billing/subscription", nil)
	req.Header.Set("Authorization", bearerToken(t, userA))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var view subscriptionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, billing.TierFree, view.Tier)
	assert.Empty(t, view.Status)
	assert.Equal(t, billing.LimitsFor(billing.TierFree), view.Limits)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	env := newTestServer(t, testInternalSecret)

	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userA,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/thumbnails", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
