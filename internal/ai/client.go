// Package ai wraps the generative-image HTTP API used for thumbnail
// generation.
package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/Danejw/viewbait/internal/httputil"
)

const defaultModel = "gemini-2.0-flash-preview-image-generation"

// Client calls the generative-image API.
type Client struct {
	http  *httputil.Client
	model string
}

// Config configures the AI client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient creates an AI client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Headers: map[string]string{"x-goog-api-key": cfg.APIKey},
		}),
		model: model,
	}, nil
}

// GenerateRequest describes one image generation unit.
type GenerateRequest struct {
	Prompt string
	// Optional hints assembled from the user's style, palette, and face
	// selections.
	StyleHint string
	Colors    []string
	// FaceImage carries raw reference image bytes to inline alongside the
	// prompt.
	FaceImage    []byte
	FaceMimeType string
	Width        int
	Height       int
}

// generateContent wire shapes, trimmed to the fields this service uses.
type generatePayload struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateImage produces one image for the request. The returned bytes are
// the decoded image payload.
func (c *Client) GenerateImage(ctx context.Context, req GenerateRequest) ([]byte, string, error) {
	if req.Prompt == "" {
		return nil, "", fmt.Errorf("prompt is required")
	}

	prompt := req.Prompt
	if req.StyleHint != "" {
		prompt += "\nStyle: " + req.StyleHint
	}
	if len(req.Colors) > 0 {
		prompt += "\nColor palette:"
		for _, color := range req.Colors {
			prompt += " " + color
		}
	}
	if req.Width > 0 && req.Height > 0 {
		prompt += fmt.Sprintf("\nTarget dimensions: %dx%d", req.Width, req.Height)
	}

	parts := []part{{Text: prompt}}
	if len(req.FaceImage) > 0 {
		mime := req.FaceMimeType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(req.FaceImage),
		}})
	}

	payload := generatePayload{
		Contents:         []content{{Parts: parts}},
		GenerationConfig: generationConfig{ResponseModalities: []string{"IMAGE"}},
	}

	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
	resp, err := c.http.Do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, "", fmt.Errorf("generate image: %w", err)
	}

	var decoded generateResponse
	if err := httputil.DecodeResponse(resp, &decoded); err != nil {
		return nil, "", fmt.Errorf("generate image: %w", err)
	}

	for _, candidate := range decoded.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, "", fmt.Errorf("decode image payload: %w", err)
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return raw, mime, nil
		}
	}

	return nil, "", fmt.Errorf("generate image: response contained no image data")
}
