package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
)

type fakeStore struct {
	rows map[string]*database.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*database.Notification{}}
}

func (f *fakeStore) CreateNotification(_ context.Context, create database.NotificationCreate) (*database.Notification, error) {
	n := &database.Notification{
		ID:     create.ID,
		UserID: create.UserID,
		Kind:   create.Kind,
		Title:  create.Title,
		Body:   create.Body,
	}
	if n.Kind == "" {
		n.Kind = "info"
	}
	f.rows[n.ID] = n
	return n, nil
}

func (f *fakeStore) ListNotificationsForUser(_ context.Context, userID string, limit int) ([]database.Notification, error) {
	var out []database.Notification
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountUnreadForUser(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range f.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, userID, id string) (*database.Notification, error) {
	n, ok := f.rows[id]
	if !ok || n.UserID != userID {
		return nil, database.NewNotFoundError("notification", id)
	}
	n.Read = true
	copied := *n
	return &copied, nil
}

func (f *fakeStore) MarkAllNotificationsRead(_ context.Context, userID string) error {
	for _, n := range f.rows {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeStore) DeleteNotificationForUser(_ context.Context, userID, id string) error {
	n, ok := f.rows[id]
	if !ok || n.UserID != userID {
		return database.NewNotFoundError("notification", id)
	}
	delete(f.rows, id)
	return nil
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)

	n, err := svc.Create(context.Background(), CreateRequest{
		UserID: "user-1",
		Title:  "Render finished",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "info", n.Kind)
	assert.Equal(t, "user-1", n.UserID)
}

func TestCreateRequiresTitle(t *testing.T) {
	svc := New(newFakeStore(), nil)

	_, err := svc.Create(context.Background(), CreateRequest{UserID: "user-1", Title: "   "})
	require.Error(t, err)
	serviceErr := errors.GetServiceError(err)
	require.NotNil(t, serviceErr)
	assert.Equal(t, 400, serviceErr.HTTPStatus)
}

func TestUnreadCountTracksReads(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateRequest{UserID: "user-1", Title: "One"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{UserID: "user-1", Title: "Two"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{UserID: "user-2", Title: "Other"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	read, err := svc.MarkRead(ctx, "user-1", first.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	count, err = svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.MarkAllRead(ctx, "user-1"))
	count, err = svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMarkReadHidesForeignRows(t *testing.T) {
	store := newFakeStore()
	svc := New(store, nil)
	ctx := context.Background()

	n, err := svc.Create(ctx, CreateRequest{UserID: "user-1", Title: "Mine"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, "user-2", n.ID)
	assert.True(t, database.IsNotFound(err))

	err = svc.Delete(ctx, "user-2", n.ID)
	assert.True(t, database.IsNotFound(err))
}
