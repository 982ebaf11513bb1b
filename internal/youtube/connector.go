// Package youtube implements the YouTube account connection (OAuth
// authorization-code flow) and read access to the Data API.
package youtube

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
	"github.com/Danejw/viewbait/internal/logging"
)

const (
	stateCookieName = "vb_oauth_state"
	stateCookieTTL  = 10 * time.Minute

	// Access tokens within this skew of expiry are refreshed eagerly.
	refreshSkew = time.Minute

	scopeReadonly    = "https://www.googleapis.com/auth/youtube.readonly"
	defaultRevokeURL = "https://oauth2.googleapis.com/revoke"
)

// ConnectionStore is the persistence surface the connector needs.
type ConnectionStore interface {
	GetYouTubeConnection(ctx context.Context, userID string) (*database.YouTubeConnection, error)
	UpsertYouTubeConnection(ctx context.Context, upsert database.YouTubeConnectionUpsert) (*database.YouTubeConnection, error)
	UpdateYouTubeTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error
	DeleteYouTubeConnection(ctx context.Context, userID string) error
}

// Connector runs the OAuth authorization-code flow and hands out live access
// tokens, refreshing lazily before use.
type Connector struct {
	oauth       *oauth2.Config
	store       ConnectionStore
	stateSecret []byte
	logger      *logging.Logger
	httpClient  *http.Client
	apiBaseURL  string
	revokeURL   string
}

// ConnectorConfig configures the connector.
type ConnectorConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
	Store        ConnectionStore
	Logger       *logging.Logger

	// Endpoint, APIBaseURL, and RevokeURL override the provider endpoints,
	// for tests.
	Endpoint   oauth2.Endpoint
	APIBaseURL string
	RevokeURL  string
}

// NewConnector creates a connector.
func NewConnector(cfg ConnectorConfig) (*Connector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oauth client id and secret are required")
	}
	if cfg.StateSecret == "" {
		return nil, fmt.Errorf("oauth state secret is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("connection store is required")
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		}
	}
	revoke := cfg.RevokeURL
	if revoke == "" {
		revoke = defaultRevokeURL
	}

	return &Connector{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{scopeReadonly},
			Endpoint:     endpoint,
		},
		store:       cfg.Store,
		stateSecret: []byte(cfg.StateSecret),
		logger:      cfg.Logger,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiBaseURL:  cfg.APIBaseURL,
		revokeURL:   revoke,
	}, nil
}

// Authorize generates a CSRF state token, stores it in a signed short-lived
// cookie alongside the post-connect return path, and returns the provider
// consent URL to redirect to.
func (c *Connector) Authorize(w http.ResponseWriter, returnTo string) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	if returnTo == "" || !strings.HasPrefix(returnTo, "/") {
		// Only same-site paths are honored to keep the redirect closed.
		returnTo = "/studio"
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    c.signState(state, returnTo),
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	authURL := c.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return authURL, nil
}

// HandleCallback validates the returned state against the cookie, exchanges
// the authorization code, persists tokens plus channel identity, and returns
// the path to redirect the user back to. State mismatches are rejected
// before any token exchange.
func (c *Connector) HandleCallback(w http.ResponseWriter, r *http.Request, userID string) (string, error) {
	clearCookie(w)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		return "", errors.Validation("Provider returned an error: " + errParam)
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return "", errors.Validation("Missing OAuth state cookie")
	}
	cookieState, returnTo, ok := c.verifyState(cookie.Value)
	if !ok {
		return "", errors.Validation("Invalid OAuth state cookie")
	}

	state := r.URL.Query().Get("state")
	if state == "" || !hmac.Equal([]byte(state), []byte(cookieState)) {
		return "", errors.Validation("OAuth state mismatch")
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		return "", errors.Validation("Missing authorization code")
	}

	token, err := c.oauth.Exchange(r.Context(), code)
	if err != nil {
		return "", errors.Upstream("youtube", fmt.Errorf("exchange authorization code: %w", err))
	}

	channelID, channelTitle, err := c.fetchChannelIdentity(r.Context(), token)
	if err != nil {
		// Channel identity is informational; the connection still works.
		if c.logger != nil {
			c.logger.WithContext(r.Context()).WithError(err).Warn("Failed to fetch channel identity")
		}
	}

	_, err = c.store.UpsertYouTubeConnection(r.Context(), database.YouTubeConnectionUpsert{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		ChannelID:    channelID,
		ChannelTitle: channelTitle,
	})
	if err != nil {
		return "", err
	}

	return returnTo, nil
}

// Token returns a valid access token for the user, refreshing it first when
// expired. A failed refresh disconnects the integration and reports that
// re-authorization is required.
func (c *Connector) Token(ctx context.Context, userID string) (string, error) {
	conn, err := c.store.GetYouTubeConnection(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return "", errors.ReauthRequired()
		}
		return "", err
	}

	if time.Until(conn.ExpiresAt) > refreshSkew {
		return conn.AccessToken, nil
	}

	refreshed, err := c.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.ExpiresAt,
	}).Token()
	if err != nil {
		// Revoked consent or a dead refresh token; drop the connection so
		// the client is told to re-authenticate.
		if delErr := c.store.DeleteYouTubeConnection(ctx, userID); delErr != nil && c.logger != nil {
			c.logger.WithContext(ctx).WithError(delErr).Error("Failed to remove dead YouTube connection")
		}
		return "", errors.ReauthRequired()
	}

	if refreshed.AccessToken != conn.AccessToken {
		if err := c.store.UpdateYouTubeTokens(ctx, userID, refreshed.AccessToken, refreshed.RefreshToken, refreshed.Expiry); err != nil {
			return "", err
		}
	}
	return refreshed.AccessToken, nil
}

// Status describes the user's connection state.
type Status struct {
	Connected    bool   `json:"connected"`
	ChannelID    string `json:"channel_id,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`
}

// ConnectionStatus reports whether the user has a stored connection.
func (c *Connector) ConnectionStatus(ctx context.Context, userID string) (*Status, error) {
	conn, err := c.store.GetYouTubeConnection(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return &Status{Connected: false}, nil
		}
		return nil, err
	}
	return &Status{
		Connected:    true,
		ChannelID:    conn.ChannelID,
		ChannelTitle: conn.ChannelTitle,
	}, nil
}

// Disconnect revokes the stored token with the provider (best effort) and
// deletes the connection.
func (c *Connector) Disconnect(ctx context.Context, userID string) error {
	conn, err := c.store.GetYouTubeConnection(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil
		}
		return err
	}

	form := url.Values{"token": {conn.RefreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, strings.NewReader(form.Encode()))
	if err == nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if resp, revokeErr := c.httpClient.Do(req); revokeErr == nil {
			resp.Body.Close()
		} else if c.logger != nil {
			c.logger.WithContext(ctx).WithError(revokeErr).Warn("Token revocation failed")
		}
	}

	return c.store.DeleteYouTubeConnection(ctx, userID)
}

func (c *Connector) fetchChannelIdentity(ctx context.Context, token *oauth2.Token) (string, string, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	api := newAPIClient(client, c.apiBaseURL)
	channel, err := api.OwnChannel(ctx)
	if err != nil {
		return "", "", err
	}
	return channel.ID, channel.Title, nil
}

// signState packs state and returnTo into an HMAC-signed cookie value.
func (c *Connector) signState(state, returnTo string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(state + "|" + returnTo))
	mac := hmac.New(sha256.New, c.stateSecret)
	mac.Write([]byte(payload))
	return payload + "." + hex.EncodeToString(mac.Sum(nil))
}

// verifyState unpacks and authenticates a cookie value.
func (c *Connector) verifyState(value string) (state, returnTo string, ok bool) {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	mac := hmac.New(sha256.New, c.stateSecret)
	mac.Write([]byte(parts[0]))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(parts[1]), []byte(expected)) {
		return "", "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", false
	}
	fields := strings.SplitN(string(decoded), "|", 2)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
