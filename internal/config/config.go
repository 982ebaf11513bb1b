// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full service configuration.
type Config struct {
	// Server
	Port            int
	LogLevel        string
	LogFormat       string
	AllowedOrigins  []string
	RateLimitPerSec int
	RateLimitBurst  int
	ShutdownTimeout time.Duration

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	StorageBucket      string
	SignedURLTTL       time.Duration

	// Generative AI
	AIAPIKey  string
	AIBaseURL string
	AITimeout time.Duration

	// YouTube OAuth + Data API
	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeRedirectURL  string
	StateSecret         string
	VideoCacheTTL       time.Duration
	PlaylistCacheTTL    time.Duration

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceProID    string
	StripePriceStudioID string
	BillingReturnURL    string

	// Server-to-server notification creation
	InternalSecret string
}

// Load reads configuration from the environment. A .env file is loaded first
// when present; real environment variables win over file values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            envInt("PORT", 8080),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		AllowedOrigins:  envList("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerSec: envInt("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 30),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseJWTSecret:  os.Getenv("SUPABASE_JWT_SECRET"),
		StorageBucket:      envString("STORAGE_BUCKET", "thumbnails"),
		SignedURLTTL:       envDuration("SIGNED_URL_TTL", time.Hour),

		AIAPIKey:  os.Getenv("AI_API_KEY"),
		AIBaseURL: envString("AI_BASE_URL", "https://generativelanguage.googleapis.com"),
		AITimeout: envDuration("AI_TIMEOUT", 120*time.Second),

		YouTubeClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		YouTubeRedirectURL:  os.Getenv("YOUTUBE_REDIRECT_URL"),
		StateSecret:         os.Getenv("OAUTH_STATE_SECRET"),
		VideoCacheTTL:       envDuration("VIDEO_CACHE_TTL", 5*time.Minute),
		PlaylistCacheTTL:    envDuration("PLAYLIST_CACHE_TTL", 24*time.Hour),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceProID:    os.Getenv("STRIPE_PRICE_PRO"),
		StripePriceStudioID: os.Getenv("STRIPE_PRICE_STUDIO"),
		BillingReturnURL:    envString("BILLING_RETURN_URL", "http://localhost:3000/studio"),

		InternalSecret: os.Getenv("INTERNAL_API_SECRET"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	required := map[string]string{
		"SUPABASE_URL":          c.SupabaseURL,
		"SUPABASE_SERVICE_KEY":  c.SupabaseServiceKey,
		"SUPABASE_JWT_SECRET":   c.SupabaseJWTSecret,
		"AI_API_KEY":            c.AIAPIKey,
		"STRIPE_SECRET_KEY":     c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": c.StripeWebhookSecret,
		"YOUTUBE_CLIENT_ID":     c.YouTubeClientID,
		"YOUTUBE_CLIENT_SECRET": c.YouTubeClientSecret,
		"YOUTUBE_REDIRECT_URL":  c.YouTubeRedirectURL,
		"OAUTH_STATE_SECRET":    c.StateSecret,
		"INTERNAL_API_SECRET":   c.InternalSecret,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.RateLimitPerSec <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %d", c.RateLimitPerSec)
	}
	if !strings.HasPrefix(c.SupabaseURL, "http://") && !strings.HasPrefix(c.SupabaseURL, "https://") {
		return fmt.Errorf("SUPABASE_URL must be an http(s) URL")
	}
	return nil
}

func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(name string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
