package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		URL:          srv.URL,
		ServiceKey:   "service-key",
		Bucket:       "thumbnails",
		SignedURLTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestUpload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/thumbnails/user-1/thumb.png" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-upsert"); got != "true" {
			t.Errorf("x-upsert = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "png-bytes" {
			t.Errorf("unexpected body %q", body)
		}
		w.WriteHeader(http.StatusOK)
	}))

	err := client.Upload(context.Background(), "user-1/thumb.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func TestSign_ReturnsAbsoluteURLAndExpiry(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/storage/v1/object/sign/thumbnails/") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/thumbnails/user-1/thumb.png?token=abc"}`))
	}))

	before := time.Now()
	signed, err := client.Sign(context.Background(), "user-1/thumb.png")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.Contains(signed.URL, "token=abc") {
		t.Errorf("signed URL missing token: %q", signed.URL)
	}
	if !strings.HasPrefix(signed.URL, "http") {
		t.Errorf("signed URL should be absolute: %q", signed.URL)
	}
	if signed.ExpiresAt.Before(before.Add(time.Hour - time.Minute)) {
		t.Errorf("expiry too soon: %v", signed.ExpiresAt)
	}
}

func TestDownload_ReturnsBytesAndContentType(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/thumbnails/user-1/face.jpg" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))

	data, contentType, err := client.Download(context.Background(), "user-1/face.jpg")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("unexpected bytes %q", data)
	}
	if contentType != "image/jpeg" {
		t.Errorf("content type = %q", contentType)
	}
}

func TestSignBatch_SignsAllPathsWithOneCall(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/storage/v1/object/sign/thumbnails" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"paths"`) {
			t.Errorf("payload missing paths list: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"error":null,"path":"user-1/a.png","signedURL":"/object/sign/thumbnails/user-1/a.png?token=a"},
			{"error":null,"path":"user-1/b.png","signedURL":"/object/sign/thumbnails/user-1/b.png?token=b"},
			{"error":"not found","path":"user-1/gone.png","signedURL":""}
		]`))
	}))

	signed, err := client.SignBatch(context.Background(), []string{"user-1/a.png", "user-1/b.png", "user-1/gone.png"})
	if err != nil {
		t.Fatalf("SignBatch: %v", err)
	}
	if calls != 1 {
		t.Errorf("API calls = %d", calls)
	}
	if len(signed) != 2 {
		t.Fatalf("signed = %d entries", len(signed))
	}
	if signed[0].Path != "user-1/a.png" || !strings.Contains(signed[0].URL, "token=a") {
		t.Errorf("unexpected first entry: %+v", signed[0])
	}
	if !strings.HasPrefix(signed[1].URL, "http") {
		t.Errorf("signed URL should be absolute: %q", signed[1].URL)
	}
}

func TestSignBatch_EmptyInputSkipsTheAPI(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	signed, err := client.SignBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("SignBatch: %v", err)
	}
	if signed != nil {
		t.Errorf("expected no entries, got %v", signed)
	}
}

func TestNeedsRefresh(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if !client.NeedsRefresh(nil) {
		t.Error("nil expiry should need refresh")
	}

	soon := time.Now().Add(time.Minute)
	if !client.NeedsRefresh(&soon) {
		t.Error("expiry inside the skew should need refresh")
	}

	later := time.Now().Add(time.Hour)
	if client.NeedsRefresh(&later) {
		t.Error("distant expiry should not need refresh")
	}
}

func TestDelete_MissingObjectIsNotAnError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if err := client.Delete(context.Background(), "user-1/gone.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
