package studio

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/youtube"
)

type fakeProfileStore struct {
	profile    *database.Profile
	profileErr error
	unread     int
	unreadErr  error
	started    atomic.Int32
}

func (f *fakeProfileStore) EnsureProfile(context.Context, string) (*database.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeProfileStore) CountUnreadForUser(context.Context, string) (int, error) {
	f.started.Add(1)
	if f.unreadErr != nil {
		return 0, f.unreadErr
	}
	return f.unread, nil
}

func (f *fakeProfileStore) GetSubscriptionForUser(context.Context, string) (*database.Subscription, error) {
	return nil, database.NewNotFoundError("subscription", "")
}

type fakeLister struct {
	thumbnails []database.Thumbnail
	err        error
	delay      time.Duration
	started    atomic.Int32
}

func (f *fakeLister) List(ctx context.Context, userID string, limit, offset int) ([]database.Thumbnail, error) {
	f.started.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.thumbnails, nil
}

type fakeChannel struct {
	status  *youtube.Status
	err     error
	started atomic.Int32
}

func (f *fakeChannel) ConnectionStatus(context.Context, string) (*youtube.Status, error) {
	f.started.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

type fakeTiers struct {
	tier    billing.Tier
	err     error
	started atomic.Int32
}

func (f *fakeTiers) TierForUser(context.Context, string) (billing.Tier, error) {
	f.started.Add(1)
	if f.err != nil {
		return billing.TierFree, f.err
	}
	return f.tier, nil
}

func TestDashboardAggregatesAllBranches(t *testing.T) {
	store := &fakeProfileStore{
		profile: &database.Profile{ID: "user-1", DisplayName: "Dane", Credits: 42},
		unread:  3,
	}
	lister := &fakeLister{thumbnails: []database.Thumbnail{{ID: "thumb-1"}, {ID: "thumb-2"}}}
	channel := &fakeChannel{status: &youtube.Status{Connected: true, ChannelTitle: "Dane Codes"}}
	tiers := &fakeTiers{tier: billing.TierPro}

	svc := New(store, lister, channel, tiers, nil)
	dash, err := svc.Dashboard(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Dane", dash.Profile.DisplayName)
	assert.Equal(t, 42, dash.Credits)
	assert.Equal(t, billing.TierPro, dash.Tier)
	assert.Len(t, dash.Thumbnails, 2)
	assert.Equal(t, 3, dash.UnreadCount)
	assert.True(t, dash.YouTube.Connected)
	assert.Empty(t, dash.Errors)
}

func TestDashboardBranchFailureDegradesSection(t *testing.T) {
	store := &fakeProfileStore{
		profile: &database.Profile{ID: "user-1", Credits: 5},
		unread:  1,
	}
	lister := &fakeLister{err: fmt.Errorf("db down")}
	channel := &fakeChannel{status: &youtube.Status{Connected: false}}
	tiers := &fakeTiers{tier: billing.TierFree}

	svc := New(store, lister, channel, tiers, nil)
	dash, err := svc.Dashboard(context.Background(), "user-1")
	require.NoError(t, err, "one failed branch must not fail the snapshot")

	assert.Contains(t, dash.Errors, "thumbnails")
	assert.NotNil(t, dash.Thumbnails)
	assert.Empty(t, dash.Thumbnails)
	assert.Equal(t, 1, dash.UnreadCount, "other branches still populate")
}

func TestDashboardAllBranchesRunDespiteFailures(t *testing.T) {
	store := &fakeProfileStore{
		profile:   &database.Profile{ID: "user-1"},
		unreadErr: fmt.Errorf("unread failed"),
	}
	lister := &fakeLister{err: fmt.Errorf("list failed")}
	channel := &fakeChannel{err: fmt.Errorf("status failed")}
	tiers := &fakeTiers{err: fmt.Errorf("tier failed")}

	svc := New(store, lister, channel, tiers, nil)
	dash, err := svc.Dashboard(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), lister.started.Load())
	assert.Equal(t, int32(1), store.started.Load())
	assert.Equal(t, int32(1), channel.started.Load())
	assert.Equal(t, int32(1), tiers.started.Load())
	assert.Len(t, dash.Errors, 4)
	assert.Equal(t, billing.TierFree, dash.Tier, "tier defaults to free on failure")
}

func TestDashboardMissingProfileIsFatal(t *testing.T) {
	store := &fakeProfileStore{profileErr: fmt.Errorf("profile store down")}
	svc := New(store, &fakeLister{}, &fakeChannel{}, &fakeTiers{}, nil)

	_, err := svc.Dashboard(context.Background(), "user-1")
	require.Error(t, err)
}

func TestDashboardBranchesRunConcurrently(t *testing.T) {
	store := &fakeProfileStore{profile: &database.Profile{ID: "user-1"}}
	lister := &fakeLister{delay: 50 * time.Millisecond}
	channel := &fakeChannel{status: &youtube.Status{}}
	tiers := &fakeTiers{tier: billing.TierFree}

	svc := New(store, lister, channel, tiers, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := svc.Dashboard(context.Background(), "user-1")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// Three sequential snapshots each pay one 50ms branch, never more.
	assert.Less(t, elapsed, 400*time.Millisecond)
}
