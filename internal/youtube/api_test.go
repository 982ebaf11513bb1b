package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Danejw/viewbait/internal/database"
)

func newConnectedService(t *testing.T, provider *providerServer, videoTTL time.Duration) (*Service, *apiCounter) {
	t.Helper()

	store := newFakeStore()
	store.conns["user-1"] = &database.YouTubeConnection{
		UserID:       "user-1",
		AccessToken:  "live-token",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	connector := newTestConnector(t, store, provider)

	counter := &apiCounter{}
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		counter.channels++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"chan-1","snippet":{"title":"Test Channel"},"contentDetails":{"relatedPlaylists":{"uploads":"upl-1"}}}]}`))
	})
	mux.HandleFunc("/youtube/v3/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		counter.playlistItems++
		if got := r.URL.Query().Get("playlistId"); got != "upl-1" {
			t.Errorf("playlistId = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"contentDetails":{"videoId":"vid-1"}},{"contentDetails":{"videoId":"vid-2"}}]}`))
	})
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		counter.videos++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":"vid-1","snippet":{"title":"First"},"statistics":{"viewCount":"1200","likeCount":"80"}},
			{"id":"vid-2","snippet":{"title":"Second"},"statistics":{"viewCount":"300","likeCount":"12"}}
		]}`))
	})

	apiSrv := newMuxServer(t, mux)

	service, err := NewService(ServiceConfig{
		Connector:     connector,
		BaseURL:       apiSrv,
		VideoCacheTTL: videoTTL,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, counter
}

type apiCounter struct {
	channels      int
	playlistItems int
	videos        int
}

func newMuxServer(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRecentVideos_FetchesAndParses(t *testing.T) {
	provider := newProviderServer(t, false)
	service, counter := newConnectedService(t, provider, 5*time.Minute)

	videos, err := service.RecentVideos(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecentVideos: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	if videos[0].Views != 1200 || videos[0].Likes != 80 {
		t.Errorf("stats not parsed: %+v", videos[0])
	}
	if counter.playlistItems != 1 || counter.videos != 1 {
		t.Errorf("unexpected call counts: %+v", counter)
	}
}

func TestRecentVideos_SecondCallWithinTTLServedFromCache(t *testing.T) {
	provider := newProviderServer(t, false)
	service, counter := newConnectedService(t, provider, 5*time.Minute)

	first, err := service.RecentVideos(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecentVideos: %v", err)
	}
	second, err := service.RecentVideos(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("RecentVideos: %v", err)
	}

	if counter.playlistItems != 1 {
		t.Errorf("playlistItems calls = %d, want 1 (second call should hit cache)", counter.playlistItems)
	}
	if len(first) != len(second) || first[0].ID != second[0].ID {
		t.Error("cached result differs from original")
	}
}

func TestRecentVideos_InvalidateForcesRefetch(t *testing.T) {
	provider := newProviderServer(t, false)
	service, counter := newConnectedService(t, provider, 5*time.Minute)

	if _, err := service.RecentVideos(context.Background(), "user-1"); err != nil {
		t.Fatalf("RecentVideos: %v", err)
	}
	service.InvalidateUser("user-1")
	if _, err := service.RecentVideos(context.Background(), "user-1"); err != nil {
		t.Fatalf("RecentVideos: %v", err)
	}

	if counter.playlistItems != 2 {
		t.Errorf("playlistItems calls = %d, want 2 after invalidation", counter.playlistItems)
	}
}

func TestChannel_ReturnsIdentity(t *testing.T) {
	provider := newProviderServer(t, false)
	service, _ := newConnectedService(t, provider, time.Minute)

	channel, err := service.Channel(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if channel.ID != "chan-1" || channel.UploadsPlaylistID != "upl-1" {
		t.Errorf("unexpected channel %+v", channel)
	}
}
