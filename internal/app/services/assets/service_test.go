package assets

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
	"github.com/Danejw/viewbait/internal/storage"
)

type fakeStore struct {
	styles   map[string]*database.Style
	palettes map[string]*database.Palette
	faces    map[string]*database.Face
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		styles:   make(map[string]*database.Style),
		palettes: make(map[string]*database.Palette),
		faces:    make(map[string]*database.Face),
	}
}

func (f *fakeStore) CreateStyle(_ context.Context, create database.StyleCreate) (*database.Style, error) {
	s := &database.Style{ID: create.ID, UserID: create.UserID, Name: create.Name, PromptHint: create.PromptHint}
	f.styles[create.ID] = s
	return s, nil
}

func (f *fakeStore) ListStylesForUser(context.Context, string) ([]database.Style, error) {
	var out []database.Style
	for _, s := range f.styles {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) GetStyleForUser(_ context.Context, _, id string) (*database.Style, error) {
	if s, ok := f.styles[id]; ok {
		return s, nil
	}
	return nil, database.NewNotFoundError("style", id)
}

func (f *fakeStore) UpdateStyleForUser(_ context.Context, _, id string, update database.StyleUpdate) (*database.Style, error) {
	s, ok := f.styles[id]
	if !ok {
		return nil, database.NewNotFoundError("style", id)
	}
	if update.Name != nil {
		s.Name = *update.Name
	}
	return s, nil
}

func (f *fakeStore) DeleteStyleForUser(_ context.Context, _, id string) error {
	if _, ok := f.styles[id]; !ok {
		return database.NewNotFoundError("style", id)
	}
	delete(f.styles, id)
	return nil
}

func (f *fakeStore) CreatePalette(_ context.Context, create database.PaletteCreate) (*database.Palette, error) {
	p := &database.Palette{ID: create.ID, UserID: create.UserID, Name: create.Name, Colors: create.Colors}
	f.palettes[create.ID] = p
	return p, nil
}

func (f *fakeStore) ListPalettesForUser(context.Context, string) ([]database.Palette, error) {
	var out []database.Palette
	for _, p := range f.palettes {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) GetPaletteForUser(_ context.Context, _, id string) (*database.Palette, error) {
	if p, ok := f.palettes[id]; ok {
		return p, nil
	}
	return nil, database.NewNotFoundError("palette", id)
}

func (f *fakeStore) UpdatePaletteForUser(_ context.Context, _, id string, update database.PaletteUpdate) (*database.Palette, error) {
	p, ok := f.palettes[id]
	if !ok {
		return nil, database.NewNotFoundError("palette", id)
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	return p, nil
}

func (f *fakeStore) DeletePaletteForUser(_ context.Context, _, id string) error {
	if _, ok := f.palettes[id]; !ok {
		return database.NewNotFoundError("palette", id)
	}
	delete(f.palettes, id)
	return nil
}

func (f *fakeStore) CreateFace(_ context.Context, create database.FaceCreate) (*database.Face, error) {
	face := &database.Face{
		ID:                 create.ID,
		UserID:             create.UserID,
		Label:              create.Label,
		StoragePath:        create.StoragePath,
		SignedURL:          create.SignedURL,
		SignedURLExpiresAt: create.SignedURLExpiresAt,
	}
	f.faces[create.ID] = face
	return face, nil
}

func (f *fakeStore) ListFacesForUser(context.Context, string) ([]database.Face, error) {
	var out []database.Face
	for _, face := range f.faces {
		out = append(out, *face)
	}
	return out, nil
}

func (f *fakeStore) GetFaceForUser(_ context.Context, _, id string) (*database.Face, error) {
	if face, ok := f.faces[id]; ok {
		return face, nil
	}
	return nil, database.NewNotFoundError("face", id)
}

func (f *fakeStore) UpdateFaceSignedURL(_ context.Context, id, signedURL string, expiresAt time.Time) error {
	if face, ok := f.faces[id]; ok {
		face.SignedURL = signedURL
		face.SignedURLExpiresAt = &expiresAt
	}
	return nil
}

func (f *fakeStore) DeleteFaceForUser(_ context.Context, _, id string) (*database.Face, error) {
	face, ok := f.faces[id]
	if !ok {
		return nil, database.NewNotFoundError("face", id)
	}
	delete(f.faces, id)
	return face, nil
}

type fakeObjects struct {
	uploads []string
	deletes []string
}

func (o *fakeObjects) Upload(_ context.Context, path string, data []byte, contentType string) error {
	o.uploads = append(o.uploads, path)
	return nil
}

func (o *fakeObjects) Sign(_ context.Context, path string) (*storage.SignedObject, error) {
	return &storage.SignedObject{
		Path:      path,
		URL:       "https://cdn.example.com/" + path,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (o *fakeObjects) NeedsRefresh(expiresAt *time.Time) bool {
	return expiresAt == nil || time.Now().After(*expiresAt)
}

func (o *fakeObjects) Delete(_ context.Context, path string) error {
	o.deletes = append(o.deletes, path)
	return nil
}

type fakeTiers struct{ tier billing.Tier }

func (t fakeTiers) TierForUser(context.Context, string) (billing.Tier, error) {
	return t.tier, nil
}

func newTestService(store *fakeStore, objects *fakeObjects, tier billing.Tier) *Service {
	return New(store, objects, fakeTiers{tier: tier}, nil)
}

func TestUploadFace(t *testing.T) {
	store := newFakeStore()
	objects := &fakeObjects{}
	svc := newTestService(store, objects, billing.TierPro)

	face, err := svc.UploadFace(context.Background(), "user-1", FaceUpload{
		Label:       "main",
		ContentType: "image/png",
		Data:        base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	})
	require.NoError(t, err)

	assert.Equal(t, "main", face.Label)
	assert.NotEmpty(t, face.SignedURL)
	require.Len(t, objects.uploads, 1)
	assert.Contains(t, objects.uploads[0], "user-1/faces/")
}

func TestUploadFaceRequiresPaidTier(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeObjects{}, billing.TierFree)

	_, err := svc.UploadFace(context.Background(), "user-1", FaceUpload{
		Label: "main",
		Data:  base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	})
	require.Error(t, err)
	svcErr := errors.GetServiceError(err)
	require.NotNil(t, svcErr)
	assert.Equal(t, 403, svcErr.HTTPStatus)
}

func TestUploadFaceValidation(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeObjects{}, billing.TierPro)
	ctx := context.Background()

	tests := []struct {
		name   string
		upload FaceUpload
	}{
		{"missing label", FaceUpload{Data: base64.StdEncoding.EncodeToString([]byte("x"))}},
		{"bad base64", FaceUpload{Label: "main", Data: "not-base64!!!"}},
		{"empty data", FaceUpload{Label: "main", Data: ""}},
		{"non-image content type", FaceUpload{Label: "main", ContentType: "text/html", Data: base64.StdEncoding.EncodeToString([]byte("x"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadFace(ctx, "user-1", tt.upload)
			require.Error(t, err)
			svcErr := errors.GetServiceError(err)
			require.NotNil(t, svcErr)
			assert.Equal(t, 400, svcErr.HTTPStatus)
		})
	}
}

func TestDeleteFaceCleansUpObject(t *testing.T) {
	store := newFakeStore()
	store.faces["face-1"] = &database.Face{ID: "face-1", UserID: "user-1", StoragePath: "user-1/faces/face-1"}
	objects := &fakeObjects{}
	svc := newTestService(store, objects, billing.TierPro)

	require.NoError(t, svc.DeleteFace(context.Background(), "user-1", "face-1"))
	assert.Equal(t, []string{"user-1/faces/face-1"}, objects.deletes)
}

func TestCreateStyleAssignsOwnership(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeObjects{}, billing.TierFree)

	style, err := svc.CreateStyle(context.Background(), "user-1", database.StyleCreate{
		Name:       "MrBeast energy",
		PromptHint: "saturated colors, huge text",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", style.UserID)
	assert.NotEmpty(t, style.ID)
}

func TestCreateStyleRequiresName(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeObjects{}, billing.TierFree)

	_, err := svc.CreateStyle(context.Background(), "user-1", database.StyleCreate{Name: "  "})
	require.Error(t, err)
}

func TestListFacesRefreshesStaleURLs(t *testing.T) {
	store := newFakeStore()
	stale := time.Now().Add(-time.Minute)
	store.faces["face-1"] = &database.Face{
		ID:                 "face-1",
		UserID:             "user-1",
		StoragePath:        "user-1/faces/face-1",
		SignedURL:          "https://cdn.example.com/expired",
		SignedURLExpiresAt: &stale,
	}
	svc := newTestService(store, &fakeObjects{}, billing.TierPro)

	faces, err := svc.ListFaces(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.NotEqual(t, "https://cdn.example.com/expired", faces[0].SignedURL)
}
