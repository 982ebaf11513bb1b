// Package studio assembles the dashboard view by fanning out to the other
// services in parallel.
package studio

import (
	"context"
	"sync"

	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/logging"
	"github.com/Danejw/viewbait/internal/youtube"
)

// ProfileStore loads profile and notification data for the dashboard.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, userID string) (*database.Profile, error)
	CountUnreadForUser(ctx context.Context, userID string) (int, error)
	GetSubscriptionForUser(ctx context.Context, userID string) (*database.Subscription, error)
}

// ThumbnailLister returns the user's recent thumbnails with fresh signed
// URLs.
type ThumbnailLister interface {
	List(ctx context.Context, userID string, limit, offset int) ([]database.Thumbnail, error)
}

// ChannelStatus reports the user's YouTube connection state.
type ChannelStatus interface {
	ConnectionStatus(ctx context.Context, userID string) (*youtube.Status, error)
}

// TierResolver reports the user's effective billing tier.
type TierResolver interface {
	TierForUser(ctx context.Context, userID string) (billing.Tier, error)
}

// Service builds dashboard snapshots.
type Service struct {
	store      ProfileStore
	thumbnails ThumbnailLister
	channel    ChannelStatus
	tiers      TierResolver
	log        *logging.Logger
}

// New constructs a studio service.
func New(store ProfileStore, thumbnails ThumbnailLister, channel ChannelStatus, tiers TierResolver, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("studio", "info", "json")
	}
	return &Service{
		store:      store,
		thumbnails: thumbnails,
		channel:    channel,
		tiers:      tiers,
		log:        log,
	}
}

// Dashboard is the studio landing payload. Branches that failed are nil or
// zero valued; Errors lists what went wrong so the client can degrade
// gracefully instead of losing the whole page.
type Dashboard struct {
	Profile     *database.Profile    `json:"profile"`
	Tier        billing.Tier         `json:"tier"`
	Credits     int                  `json:"credits"`
	Thumbnails  []database.Thumbnail `json:"thumbnails"`
	UnreadCount int                  `json:"unread_count"`
	YouTube     *youtube.Status      `json:"youtube"`
	Errors      []string             `json:"errors,omitempty"`
}

const recentThumbnailLimit = 12

// Dashboard fetches all dashboard branches concurrently. Every branch runs
// to completion; a failed branch degrades its section rather than failing
// the snapshot. Only a missing profile is fatal, since everything else hangs
// off it.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	profile, err := s.store.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{
		Profile: profile,
		Tier:    billing.TierFree,
		Credits: profile.Credits,
		YouTube: &youtube.Status{Connected: false},
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fail := func(branch string, err error) {
		mu.Lock()
		dash.Errors = append(dash.Errors, branch)
		mu.Unlock()
		s.log.WithContext(ctx).WithError(err).WithField("branch", branch).Warn("Dashboard branch failed")
	}

	wg.Add(4)

	go func() {
		defer wg.Done()
		thumbnails, err := s.thumbnails.List(ctx, userID, recentThumbnailLimit, 0)
		if err != nil {
			fail("thumbnails", err)
			return
		}
		mu.Lock()
		dash.Thumbnails = thumbnails
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		count, err := s.store.CountUnreadForUser(ctx, userID)
		if err != nil {
			fail("notifications", err)
			return
		}
		mu.Lock()
		dash.UnreadCount = count
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		status, err := s.channel.ConnectionStatus(ctx, userID)
		if err != nil {
			fail("youtube", err)
			return
		}
		mu.Lock()
		dash.YouTube = status
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		tier, err := s.tiers.TierForUser(ctx, userID)
		if err != nil {
			fail("subscription", err)
			return
		}
		mu.Lock()
		dash.Tier = tier
		mu.Unlock()
	}()

	wg.Wait()

	if dash.Thumbnails == nil {
		dash.Thumbnails = []database.Thumbnail{}
	}
	return dash, nil
}
