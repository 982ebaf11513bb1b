package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Danejw/viewbait/internal/cache"
	"github.com/Danejw/viewbait/internal/httputil"
	"github.com/Danejw/viewbait/internal/metrics"
)

const defaultAPIBaseURL = "https://www.googleapis.com"

// Channel is the caller's YouTube channel identity.
type Channel struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	UploadsPlaylistID string `json:"uploads_playlist_id,omitempty"`
}

// Video is a published video with the stats shown in the studio.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	PublishedAt  time.Time `json:"published_at"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
}

// Service reads the YouTube Data API on behalf of connected users. Video
// lists and uploads-playlist lookups are cached per user for a short TTL to
// avoid re-querying the provider on every page view.
type Service struct {
	connector     *Connector
	baseURL       string
	videoCache    *cache.Cache[[]Video]
	playlistCache *cache.Cache[string]
	metrics       *metrics.Metrics
}

// ServiceConfig configures the Data API service.
type ServiceConfig struct {
	Connector *Connector
	// BaseURL overrides the Data API endpoint, for tests.
	BaseURL          string
	VideoCacheTTL    time.Duration
	PlaylistCacheTTL time.Duration
	Metrics          *metrics.Metrics
}

// NewService creates a Data API service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Connector == nil {
		return nil, fmt.Errorf("connector is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	videoTTL := cfg.VideoCacheTTL
	if videoTTL <= 0 {
		videoTTL = 5 * time.Minute
	}
	playlistTTL := cfg.PlaylistCacheTTL
	if playlistTTL <= 0 {
		playlistTTL = 24 * time.Hour
	}

	return &Service{
		connector:     cfg.Connector,
		baseURL:       baseURL,
		videoCache:    cache.New[[]Video](1024, videoTTL),
		playlistCache: cache.New[string](1024, playlistTTL),
		metrics:       cfg.Metrics,
	}, nil
}

// Channel returns the user's channel identity.
func (s *Service) Channel(ctx context.Context, userID string) (*Channel, error) {
	api, err := s.apiFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	channel, err := api.OwnChannel(ctx)
	s.recordCall(err)
	return channel, err
}

// RecentVideos returns the user's most recent uploads with stats. Results
// are served from the per-user cache within the TTL window.
func (s *Service) RecentVideos(ctx context.Context, userID string) ([]Video, error) {
	if videos, ok := s.videoCache.Get(userID); ok {
		s.recordCache("youtube_videos", true)
		return videos, nil
	}
	s.recordCache("youtube_videos", false)

	api, err := s.apiFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	playlistID, ok := s.playlistCache.Get(userID)
	if !ok {
		channel, err := api.OwnChannel(ctx)
		s.recordCall(err)
		if err != nil {
			return nil, err
		}
		if channel.UploadsPlaylistID == "" {
			return nil, fmt.Errorf("channel has no uploads playlist")
		}
		playlistID = channel.UploadsPlaylistID
		s.playlistCache.Set(userID, playlistID)
	}

	videoIDs, err := api.PlaylistVideoIDs(ctx, playlistID, 25)
	s.recordCall(err)
	if err != nil {
		return nil, err
	}

	videos, err := api.Videos(ctx, videoIDs)
	s.recordCall(err)
	if err != nil {
		return nil, err
	}

	s.videoCache.Set(userID, videos)
	return videos, nil
}

// InvalidateUser drops the user's cached reads, used on disconnect.
func (s *Service) InvalidateUser(userID string) {
	s.videoCache.Delete(userID)
	s.playlistCache.Delete(userID)
}

func (s *Service) apiFor(ctx context.Context, userID string) (*apiClient, error) {
	token, err := s.connector.Token(ctx, userID)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return newAPIClient(client, s.baseURL), nil
}

func (s *Service) recordCall(err error) {
	if s.metrics != nil {
		s.metrics.RecordUpstreamCall("youtube", err)
	}
}

func (s *Service) recordCache(name string, hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(name, hit)
	}
}

// apiClient is the thin Data API wire client. The http.Client carries
// authorization.
type apiClient struct {
	httpClient *http.Client
	baseURL    string
}

func newAPIClient(httpClient *http.Client, baseURL string) *apiClient {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &apiClient{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *apiClient) get(ctx context.Context, path string, query url.Values, target interface{}) error {
	u := a.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("youtube API request: %w", err)
	}
	return httputil.DecodeResponse(resp, target)
}

// OwnChannel fetches the authenticated user's channel.
func (a *apiClient) OwnChannel(ctx context.Context) (*Channel, error) {
	var decoded struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
			ContentDetails struct {
				RelatedPlaylists struct {
					Uploads string `json:"uploads"`
				} `json:"relatedPlaylists"`
			} `json:"contentDetails"`
		} `json:"items"`
	}

	query := url.Values{
		"part": {"snippet,contentDetails"},
		"mine": {"true"},
	}
	if err := a.get(ctx, "/youtube/v3/channels", query, &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Items) == 0 {
		return nil, fmt.Errorf("no channel for authenticated user")
	}

	item := decoded.Items[0]
	return &Channel{
		ID:                item.ID,
		Title:             item.Snippet.Title,
		UploadsPlaylistID: item.ContentDetails.RelatedPlaylists.Uploads,
	}, nil
}

// PlaylistVideoIDs lists video ids from a playlist, newest first.
func (a *apiClient) PlaylistVideoIDs(ctx context.Context, playlistID string, max int) ([]string, error) {
	var decoded struct {
		Items []struct {
			ContentDetails struct {
				VideoID string `json:"videoId"`
			} `json:"contentDetails"`
		} `json:"items"`
	}

	query := url.Values{
		"part":       {"contentDetails"},
		"playlistId": {playlistID},
		"maxResults": {strconv.Itoa(max)},
	}
	if err := a.get(ctx, "/youtube/v3/playlistItems", query, &decoded); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.ContentDetails.VideoID != "" {
			ids = append(ids, item.ContentDetails.VideoID)
		}
	}
	return ids, nil
}

// Videos fetches snippet and statistics for the given video ids.
func (a *apiClient) Videos(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return []Video{}, nil
	}

	var decoded struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title       string    `json:"title"`
				PublishedAt time.Time `json:"publishedAt"`
				Thumbnails  struct {
					High struct {
						URL string `json:"url"`
					} `json:"high"`
				} `json:"thumbnails"`
			} `json:"snippet"`
			Statistics struct {
				ViewCount string `json:"viewCount"`
				LikeCount string `json:"likeCount"`
			} `json:"statistics"`
		} `json:"items"`
	}

	query := url.Values{
		"part": {"snippet,statistics"},
		"id":   {strings.Join(ids, ",")},
	}
	if err := a.get(ctx, "/youtube/v3/videos", query, &decoded); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		views, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
		likes, _ := strconv.ParseInt(item.Statistics.LikeCount, 10, 64)
		videos = append(videos, Video{
			ID:           item.ID,
			Title:        item.Snippet.Title,
			PublishedAt:  item.Snippet.PublishedAt,
			ThumbnailURL: item.Snippet.Thumbnails.High.URL,
			Views:        views,
			Likes:        likes,
		})
	}
	return videos, nil
}
