// Package httpapi exposes the REST API over gorilla/mux.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Danejw/viewbait/internal/app/services/assets"
	"github.com/Danejw/viewbait/internal/app/services/notifications"
	"github.com/Danejw/viewbait/internal/app/services/profiles"
	"github.com/Danejw/viewbait/internal/app/services/studio"
	"github.com/Danejw/viewbait/internal/app/services/thumbnails"
	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/httputil"
	"github.com/Danejw/viewbait/internal/logging"
	"github.com/Danejw/viewbait/internal/metrics"
	"github.com/Danejw/viewbait/internal/middleware"
	"github.com/Danejw/viewbait/internal/youtube"
)

const serviceName = "viewbait-api"

// Server bundles the route handlers and middleware configuration.
type Server struct {
	thumbnails    *thumbnails.Service
	assets        *assets.Service
	profiles      *profiles.Service
	notifications *notifications.Service
	studio        *studio.Service
	billing       *billing.Service
	connector     *youtube.Connector
	videos        *youtube.Service

	logger  *logging.Logger
	metrics *metrics.Metrics

	jwtSecret      []byte
	internalSecret string
	allowedOrigins []string
	rateLimit      int
	rateBurst      int
}

// Config wires the server's dependencies.
type Config struct {
	Thumbnails    *thumbnails.Service
	Assets        *assets.Service
	Profiles      *profiles.Service
	Notifications *notifications.Service
	Studio        *studio.Service
	Billing       *billing.Service
	Connector     *youtube.Connector
	Videos        *youtube.Service

	Logger  *logging.Logger
	Metrics *metrics.Metrics

	JWTSecret      string
	InternalSecret string
	AllowedOrigins []string
	RateLimit      int
	RateBurst      int
}

// NewServer creates the API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New(serviceName, "info", "json")
	}
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 20
	}
	rateBurst := cfg.RateBurst
	if rateBurst <= 0 {
		rateBurst = 40
	}

	return &Server{
		thumbnails:     cfg.Thumbnails,
		assets:         cfg.Assets,
		profiles:       cfg.Profiles,
		notifications:  cfg.Notifications,
		studio:         cfg.Studio,
		billing:        cfg.Billing,
		connector:      cfg.Connector,
		videos:         cfg.Videos,
		logger:         logger,
		metrics:        cfg.Metrics,
		jwtSecret:      []byte(cfg.JWTSecret),
		internalSecret: cfg.InternalSecret,
		allowedOrigins: cfg.AllowedOrigins,
		rateLimit:      rateLimit,
		rateBurst:      rateBurst,
	}
}

// authSkipPaths are served without a user JWT: health and metrics scrapes,
// the Stripe webhook (signature-verified instead), and the internal
// notification endpoint (shared-secret instead).
func authSkipPaths() []string {
	return []string{
		"/healthz",
		"/metrics",
		"/api/webhooks/stripe",
		"/api/internal/notifications",
	}
}

// Router builds the full route table with the middleware chain applied.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	router.HandleFunc("/api/webhooks/stripe", s.handleStripeWebhook).Methods("POST")

	internal := middleware.NewInternalAuthMiddleware(s.internalSecret, s.logger)
	router.Handle("/api/internal/notifications",
		internal.Handler(http.HandlerFunc(s.handleInternalCreateNotification))).Methods("POST")

	router.HandleFunc("/api/studio/dashboard", s.handleDashboard).Methods("GET")

	router.HandleFunc("/api/profile", s.handleGetProfile).Methods("GET")
	router.HandleFunc("/api/profile", s.handleUpdateProfile).Methods("PATCH")
	router.HandleFunc("/api/credits", s.handleGetCredits).Methods("GET")

	router.HandleFunc("/api/thumbnails/generate", s.handleGenerate).Methods("POST")
	router.HandleFunc("/api/thumbnails", s.handleListThumbnails).Methods("GET")
	router.HandleFunc("/api/thumbnails/{id}", s.handleGetThumbnail).Methods("GET")
	router.HandleFunc("/api/thumbnails/{id}", s.handleUpdateThumbnail).Methods("PATCH")
	router.HandleFunc("/api/thumbnails/{id}", s.handleDeleteThumbnail).Methods("DELETE")
	router.HandleFunc("/api/thumbnails/{id}/variants", s.handleListVariants).Methods("GET")
	router.HandleFunc("/api/variants/{id}/status", s.handleSetVariantStatus).Methods("POST")
	router.HandleFunc("/api/variants/{id}", s.handleDeleteVariant).Methods("DELETE")

	router.HandleFunc("/api/styles", s.handleListStyles).Methods("GET")
	router.HandleFunc("/api/styles", s.handleCreateStyle).Methods("POST")
	router.HandleFunc("/api/styles/{id}", s.handleUpdateStyle).Methods("PATCH")
	router.HandleFunc("/api/styles/{id}", s.handleDeleteStyle).Methods("DELETE")

	router.HandleFunc("/api/palettes", s.handleListPalettes).Methods("GET")
	router.HandleFunc("/api/palettes", s.handleCreatePalette).Methods("POST")
	router.HandleFunc("/api/palettes/{id}", s.handleUpdatePalette).Methods("PATCH")
	router.HandleFunc("/api/palettes/{id}", s.handleDeletePalette).Methods("DELETE")

	router.HandleFunc("/api/faces", s.handleListFaces).Methods("GET")
	router.HandleFunc("/api/faces", s.handleUploadFace).Methods("POST")
	router.HandleFunc("/api/faces/{id}", s.handleDeleteFace).Methods("DELETE")

	router.HandleFunc("/api/notifications", s.handleListNotifications).Methods("GET")
	router.HandleFunc("/api/notifications/unread", s.handleUnreadCount).Methods("GET")
	router.HandleFunc("/api/notifications/read-all", s.handleMarkAllRead).Methods("POST")
	router.HandleFunc("/api/notifications/{id}/read", s.handleMarkRead).Methods("POST")
	router.HandleFunc("/api/notifications/{id}", s.handleDeleteNotification).Methods("DELETE")

	router.HandleFunc("/api/youtube/connect/authorize", s.handleYouTubeConnect).Methods("GET")
	router.HandleFunc("/api/youtube/connect/callback", s.handleYouTubeCallback).Methods("GET")
	router.HandleFunc("/api/youtube/connect", s.handleYouTubeDisconnect).Methods("DELETE")
	router.HandleFunc("/api/youtube/status", s.handleYouTubeStatus).Methods("GET")
	router.HandleFunc("/api/youtube/channel", s.handleYouTubeChannel).Methods("GET")
	router.HandleFunc("/api/youtube/videos", s.handleYouTubeVideos).Methods("GET")

	router.HandleFunc("/api/billing/checkout", s.handleCheckout).Methods("POST")
	router.HandleFunc("/api/billing/portal", s.handlePortal).Methods("POST")
	router.HandleFunc("/api/billing/subscription", s.handleSubscription).Methods("GET")

	// Middleware runs outermost first: tracing, metrics, CORS, JWT auth,
	// then rate limiting. Auth precedes the limiter so authenticated
	// traffic is limited per user rather than per client address.
	auth := middleware.NewAuthMiddleware(s.jwtSecret, s.logger, authSkipPaths())
	limiter := middleware.NewRateLimiter(s.rateLimit, s.rateBurst, s.logger)
	cors := middleware.NewCORSMiddleware(s.allowedOrigins)
	tracing := middleware.NewTracingMiddleware(s.logger)

	router.Use(tracing.Handler)
	if s.metrics != nil {
		router.Use(middleware.MetricsMiddleware(serviceName, s.metrics))
	}
	router.Use(cors.Handler)
	router.Use(auth.Handler)
	router.Use(limiter.Handler)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
