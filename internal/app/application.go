// Package app assembles the viewbait clients and services into a runnable
// application.
package app

import (
	"fmt"
	"net/http"

	"github.com/Danejw/viewbait/internal/ai"
	"github.com/Danejw/viewbait/internal/app/services/assets"
	"github.com/Danejw/viewbait/internal/app/services/notifications"
	"github.com/Danejw/viewbait/internal/app/services/profiles"
	"github.com/Danejw/viewbait/internal/app/services/studio"
	"github.com/Danejw/viewbait/internal/app/services/thumbnails"
	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/config"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/httpapi"
	"github.com/Danejw/viewbait/internal/logging"
	"github.com/Danejw/viewbait/internal/metrics"
	"github.com/Danejw/viewbait/internal/storage"
	"github.com/Danejw/viewbait/internal/youtube"
)

// Application ties the clients and services together.
type Application struct {
	Repository *database.Repository
	Storage    *storage.Client

	Thumbnails    *thumbnails.Service
	Assets        *assets.Service
	Profiles      *profiles.Service
	Notifications *notifications.Service
	Studio        *studio.Service
	Billing       *billing.Service
	Connector     *youtube.Connector
	Videos        *youtube.Service

	server *httpapi.Server
	log    *logging.Logger
}

// New builds a fully initialised application from configuration.
func New(cfg *config.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("viewbait", cfg.LogLevel, cfg.LogFormat)
	}

	m := metrics.New("viewbait")

	dbClient, err := database.NewClient(database.Config{
		URL:        cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceKey,
	})
	if err != nil {
		return nil, fmt.Errorf("database client: %w", err)
	}
	repo := database.NewRepository(dbClient)

	store, err := storage.NewClient(storage.Config{
		URL:          cfg.SupabaseURL,
		ServiceKey:   cfg.SupabaseServiceKey,
		Bucket:       cfg.StorageBucket,
		SignedURLTTL: cfg.SignedURLTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}

	generator, err := ai.NewClient(ai.Config{
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Timeout: cfg.AITimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ai client: %w", err)
	}

	connector, err := youtube.NewConnector(youtube.ConnectorConfig{
		ClientID:     cfg.YouTubeClientID,
		ClientSecret: cfg.YouTubeClientSecret,
		RedirectURL:  cfg.YouTubeRedirectURL,
		StateSecret:  cfg.StateSecret,
		Store:        repo,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("youtube connector: %w", err)
	}

	videos, err := youtube.NewService(youtube.ServiceConfig{
		Connector:        connector,
		VideoCacheTTL:    cfg.VideoCacheTTL,
		PlaylistCacheTTL: cfg.PlaylistCacheTTL,
		Metrics:          m,
	})
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}

	billingSvc, err := billing.NewService(billing.ServiceConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceProID:    cfg.StripePriceProID,
		PriceStudioID: cfg.StripePriceStudioID,
		ReturnURL:     cfg.BillingReturnURL,
		Store:         repo,
		Logger:        log,
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("billing service: %w", err)
	}

	thumbSvc := thumbnails.New(repo, generator, store, billingSvc, log)
	assetSvc := assets.New(repo, store, billingSvc, log)
	profileSvc := profiles.New(repo, log)
	notificationSvc := notifications.New(repo, log)
	studioSvc := studio.New(repo, thumbSvc, connector, billingSvc, log)

	server := httpapi.NewServer(httpapi.Config{
		Thumbnails:     thumbSvc,
		Assets:         assetSvc,
		Profiles:       profileSvc,
		Notifications:  notificationSvc,
		Studio:         studioSvc,
		Billing:        billingSvc,
		Connector:      connector,
		Videos:         videos,
		Logger:         log,
		Metrics:        m,
		JWTSecret:      cfg.SupabaseJWTSecret,
		InternalSecret: cfg.InternalSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimitPerSec,
		RateBurst:      cfg.RateLimitBurst,
	})

	return &Application{
		Repository:    repo,
		Storage:       store,
		Thumbnails:    thumbSvc,
		Assets:        assetSvc,
		Profiles:      profileSvc,
		Notifications: notificationSvc,
		Studio:        studioSvc,
		Billing:       billingSvc,
		Connector:     connector,
		Videos:        videos,
		server:        server,
		log:           log,
	}, nil
}

// Handler returns the HTTP handler serving the full API.
func (a *Application) Handler() http.Handler {
	return a.server.Router()
}
