package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestGenerateImage_DecodesInlineData(t *testing.T) {
	imageBytes := []byte{0x89, 'P', 'N', 'G'}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		var payload generatePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Contents) != 1 || len(payload.Contents[0].Parts) == 0 {
			t.Fatalf("unexpected payload shape: %+v", payload)
		}
		if !strings.Contains(payload.Contents[0].Parts[0].Text, "mountain biking") {
			t.Errorf("prompt missing from payload: %q", payload.Contents[0].Parts[0].Text)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{{Content: content{Parts: []part{{InlineData: &inlineData{
				MimeType: "image/png",
				Data:     base64.StdEncoding.EncodeToString(imageBytes),
			}}}}}},
		})
	}))

	raw, mime, err := client.GenerateImage(context.Background(), GenerateRequest{
		Prompt:    "Epic mountain biking crash thumbnail",
		StyleHint: "mountain biking, saturated",
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q", mime)
	}
	if string(raw) != string(imageBytes) {
		t.Errorf("decoded bytes mismatch")
	}
}

func TestGenerateImage_InlinesFaceBytesAsBase64(t *testing.T) {
	faceBytes := []byte{0xff, 0xd8, 0xff, 0xe0, 'J', 'F', 'I', 'F'}
	imageBytes := []byte{0x89, 'P', 'N', 'G'}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload generatePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}

		var inline *inlineData
		for _, p := range payload.Contents[0].Parts {
			if p.InlineData != nil {
				inline = p.InlineData
			}
		}
		if inline == nil {
			t.Fatal("payload carries no inline image part")
		}
		if inline.MimeType != "image/jpeg" {
			t.Errorf("mimeType = %q", inline.MimeType)
		}
		decoded, err := base64.StdEncoding.DecodeString(inline.Data)
		if err != nil {
			t.Fatalf("inline data is not base64: %v", err)
		}
		if string(decoded) != string(faceBytes) {
			t.Errorf("inline data does not round-trip to the face bytes")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{
			Candidates: []struct {
				Content content `json:"content"`
			}{{Content: content{Parts: []part{{InlineData: &inlineData{
				MimeType: "image/png",
				Data:     base64.StdEncoding.EncodeToString(imageBytes),
			}}}}}},
		})
	}))

	_, _, err := client.GenerateImage(context.Background(), GenerateRequest{
		Prompt:       "me reacting to the score",
		FaceImage:    faceBytes,
		FaceMimeType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
}

func TestGenerateImage_NoImageInResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"cannot comply"}]}}]}`))
	}))

	_, _, err := client.GenerateImage(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "no image data") {
		t.Fatalf("expected no-image error, got %v", err)
	}
}

func TestGenerateImage_UpstreamErrorPropagates(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))

	_, _, err := client.GenerateImage(context.Background(), GenerateRequest{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGenerateImage_RequiresPrompt(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	if _, _, err := client.GenerateImage(context.Background(), GenerateRequest{}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
