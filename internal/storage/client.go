// Package storage wraps the Supabase Storage REST API for private thumbnail
// objects and their signed URLs.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Danejw/viewbait/internal/httputil"
)

// Client accesses a single private storage bucket.
type Client struct {
	baseURL    string
	serviceKey string
	bucket     string
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// Config configures the storage client.
type Config struct {
	URL        string
	ServiceKey string
	Bucket     string
	// SignedURLTTL is how long issued signed URLs stay valid.
	SignedURLTTL time.Duration
}

// NewClient creates a storage client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("storage URL and service key are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		bucket:     cfg.Bucket,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
	}, nil
}

// SignedObject is a signed URL plus its expiry.
type SignedObject struct {
	Path      string
	URL       string
	ExpiresAt time.Time
}

// Upload stores an object at path within the bucket, overwriting any
// existing object.
func (c *Client) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if path == "" {
		return fmt.Errorf("object path is required")
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, 32<<10)
		if readErr != nil {
			return fmt.Errorf("read upload error: %w", readErr)
		}
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		return fmt.Errorf("storage API error %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// Download fetches an object's bytes and content type.
func (c *Client) Download(ctx context.Context, path string) ([]byte, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("object path is required")
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, 32<<10)
		if readErr != nil {
			return nil, "", fmt.Errorf("read download error: %w", readErr)
		}
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		return nil, "", fmt.Errorf("storage API error %d: %s", resp.StatusCode, msg)
	}

	// Thumbnail objects top out well under this limit.
	data, truncated, err := httputil.ReadAllWithLimit(resp.Body, 32<<20)
	if err != nil {
		return nil, "", fmt.Errorf("read object body: %w", err)
	}
	if truncated {
		return nil, "", fmt.Errorf("object %s exceeds download limit", path)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Sign issues a signed URL for an object path.
func (c *Client) Sign(ctx context.Context, path string) (*SignedObject, error) {
	if path == "" {
		return nil, fmt.Errorf("object path is required")
	}

	expiresIn := int(c.ttl.Seconds())
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	payload, err := json.Marshal(map[string]int{"expiresIn": expiresIn})
	if err != nil {
		return nil, fmt.Errorf("marshal sign payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign object: %w", err)
	}

	var decoded struct {
		SignedURL string `json:"signedURL"`
	}
	if err := httputil.DecodeResponse(resp, &decoded); err != nil {
		return nil, fmt.Errorf("sign object: %w", err)
	}
	if decoded.SignedURL == "" {
		return nil, fmt.Errorf("sign object: empty signed URL for %s", path)
	}

	return &SignedObject{
		Path:      path,
		URL:       c.baseURL + "/storage/v1" + decoded.SignedURL,
		ExpiresAt: c.now().Add(c.ttl),
	}, nil
}

// SignBatch issues signed URLs for several object paths with one API call.
// Paths the API could not sign are omitted from the result.
func (c *Client) SignBatch(ctx context.Context, paths []string) ([]SignedObject, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	expiresIn := int(c.ttl.Seconds())
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s", c.baseURL, c.bucket)
	payload, err := json.Marshal(map[string]any{
		"expiresIn": expiresIn,
		"paths":     paths,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal batch sign payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create batch sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch sign objects: %w", err)
	}

	var decoded []struct {
		Error     string `json:"error"`
		Path      string `json:"path"`
		SignedURL string `json:"signedURL"`
	}
	if err := httputil.DecodeResponse(resp, &decoded); err != nil {
		return nil, fmt.Errorf("batch sign objects: %w", err)
	}

	expiresAt := c.now().Add(c.ttl)
	signed := make([]SignedObject, 0, len(decoded))
	for _, entry := range decoded {
		if entry.Error != "" || entry.SignedURL == "" {
			continue
		}
		signed = append(signed, SignedObject{
			Path:      entry.Path,
			URL:       c.baseURL + "/storage/v1" + entry.SignedURL,
			ExpiresAt: expiresAt,
		})
	}
	return signed, nil
}

// NeedsRefresh reports whether a stored signed URL should be re-issued.
// URLs within the skew of expiry are treated as expired so clients never
// receive one that dies mid-render.
func (c *Client) NeedsRefresh(expiresAt *time.Time) bool {
	const skew = 5 * time.Minute
	if expiresAt == nil {
		return true
	}
	return c.now().Add(skew).After(*expiresAt)
}

// Delete removes an object from the bucket. Missing objects are not an
// error.
func (c *Client) Delete(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("object path is required")
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("storage API error %d deleting %s", resp.StatusCode, path)
	}
	return nil
}
