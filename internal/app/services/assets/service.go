// Package assets manages the reusable generation inputs: styles, color
// palettes, and uploaded face references.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
	"github.com/Danejw/viewbait/internal/logging"
	"github.com/Danejw/viewbait/internal/storage"
)

// MaxFaceUploadBytes caps decoded face image size.
const MaxFaceUploadBytes = 5 << 20

// Store is the database surface for asset management.
type Store interface {
	CreateStyle(ctx context.Context, create database.StyleCreate) (*database.Style, error)
	ListStylesForUser(ctx context.Context, userID string) ([]database.Style, error)
	GetStyleForUser(ctx context.Context, userID, id string) (*database.Style, error)
	UpdateStyleForUser(ctx context.Context, userID, id string, update database.StyleUpdate) (*database.Style, error)
	DeleteStyleForUser(ctx context.Context, userID, id string) error

	CreatePalette(ctx context.Context, create database.PaletteCreate) (*database.Palette, error)
	ListPalettesForUser(ctx context.Context, userID string) ([]database.Palette, error)
	GetPaletteForUser(ctx context.Context, userID, id string) (*database.Palette, error)
	UpdatePaletteForUser(ctx context.Context, userID, id string, update database.PaletteUpdate) (*database.Palette, error)
	DeletePaletteForUser(ctx context.Context, userID, id string) error

	CreateFace(ctx context.Context, create database.FaceCreate) (*database.Face, error)
	ListFacesForUser(ctx context.Context, userID string) ([]database.Face, error)
	GetFaceForUser(ctx context.Context, userID, id string) (*database.Face, error)
	UpdateFaceSignedURL(ctx context.Context, id, signedURL string, expiresAt time.Time) error
	DeleteFaceForUser(ctx context.Context, userID, id string) (*database.Face, error)
}

// ObjectStore stores face images and signs read URLs.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Sign(ctx context.Context, path string) (*storage.SignedObject, error)
	NeedsRefresh(expiresAt *time.Time) bool
	Delete(ctx context.Context, path string) error
}

// TierResolver reports the user's effective billing tier.
type TierResolver interface {
	TierForUser(ctx context.Context, userID string) (billing.Tier, error)
}

// Service manages styles, palettes, and faces.
type Service struct {
	store   Store
	objects ObjectStore
	tiers   TierResolver
	log     *logging.Logger
}

// New constructs an assets service.
func New(store Store, objects ObjectStore, tiers TierResolver, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("assets", "info", "json")
	}
	return &Service{store: store, objects: objects, tiers: tiers, log: log}
}

// CreateStyle saves a user-defined style.
func (s *Service) CreateStyle(ctx context.Context, userID string, create database.StyleCreate) (*database.Style, error) {
	if strings.TrimSpace(create.Name) == "" {
		return nil, errors.Validation("Style name is required")
	}
	create.ID = uuid.New().String()
	create.UserID = userID
	return s.store.CreateStyle(ctx, create)
}

// ListStyles returns the user's styles plus the built-in set.
func (s *Service) ListStyles(ctx context.Context, userID string) ([]database.Style, error) {
	return s.store.ListStylesForUser(ctx, userID)
}

// UpdateStyle applies a partial update. Built-in styles are immutable and
// surface as not found.
func (s *Service) UpdateStyle(ctx context.Context, userID, id string, update database.StyleUpdate) (*database.Style, error) {
	return s.store.UpdateStyleForUser(ctx, userID, id, update)
}

// DeleteStyle removes a user-owned style.
func (s *Service) DeleteStyle(ctx context.Context, userID, id string) error {
	return s.store.DeleteStyleForUser(ctx, userID, id)
}

// CreatePalette saves a user-defined palette.
func (s *Service) CreatePalette(ctx context.Context, userID string, create database.PaletteCreate) (*database.Palette, error) {
	if strings.TrimSpace(create.Name) == "" {
		return nil, errors.Validation("Palette name is required")
	}
	create.ID = uuid.New().String()
	create.UserID = userID
	return s.store.CreatePalette(ctx, create)
}

// ListPalettes returns the user's palettes plus the built-in set.
func (s *Service) ListPalettes(ctx context.Context, userID string) ([]database.Palette, error) {
	return s.store.ListPalettesForUser(ctx, userID)
}

// UpdatePalette applies a partial update. Built-in palettes are immutable.
func (s *Service) UpdatePalette(ctx context.Context, userID, id string, update database.PaletteUpdate) (*database.Palette, error) {
	return s.store.UpdatePaletteForUser(ctx, userID, id, update)
}

// DeletePalette removes a user-owned palette.
func (s *Service) DeletePalette(ctx context.Context, userID, id string) error {
	return s.store.DeletePaletteForUser(ctx, userID, id)
}

// FaceUpload carries a base64-encoded face image.
type FaceUpload struct {
	Label       string `json:"label"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

// UploadFace stores a face reference image. Face assets are gated on the
// tier's custom asset allowance.
func (s *Service) UploadFace(ctx context.Context, userID string, upload FaceUpload) (*database.Face, error) {
	tier, err := s.tiers.TierForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !billing.LimitsFor(tier).CustomAssets {
		return nil, errors.InsufficientTier("custom face assets")
	}

	if strings.TrimSpace(upload.Label) == "" {
		return nil, errors.Validation("Face label is required")
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errors.Validation("Face uploads must be images")
	}

	data, err := base64.StdEncoding.DecodeString(upload.Data)
	if err != nil {
		return nil, errors.Validation("Face data must be base64 encoded")
	}
	if len(data) == 0 {
		return nil, errors.Validation("Face data is empty")
	}
	if len(data) > MaxFaceUploadBytes {
		return nil, errors.Validation(fmt.Sprintf("Face uploads are limited to %d bytes", MaxFaceUploadBytes))
	}

	id := uuid.New().String()
	path := fmt.Sprintf("%s/faces/%s", userID, id)
	if err := s.objects.Upload(ctx, path, data, contentType); err != nil {
		return nil, err
	}

	signed, err := s.objects.Sign(ctx, path)
	if err != nil {
		return nil, err
	}

	return s.store.CreateFace(ctx, database.FaceCreate{
		ID:                 id,
		UserID:             userID,
		Label:              upload.Label,
		StoragePath:        path,
		SignedURL:          signed.URL,
		SignedURLExpiresAt: &signed.ExpiresAt,
	})
}

// ListFaces returns the user's faces with fresh signed URLs.
func (s *Service) ListFaces(ctx context.Context, userID string) ([]database.Face, error) {
	faces, err := s.store.ListFacesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range faces {
		s.refreshFaceURL(ctx, &faces[i])
	}
	return faces, nil
}

// DeleteFace removes a face row and its storage object.
func (s *Service) DeleteFace(ctx context.Context, userID, id string) error {
	face, err := s.store.DeleteFaceForUser(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, face.StoragePath); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("path", face.StoragePath).Warn("Face object cleanup failed")
	}
	return nil
}

func (s *Service) refreshFaceURL(ctx context.Context, face *database.Face) {
	if !s.objects.NeedsRefresh(face.SignedURLExpiresAt) {
		return
	}
	signed, err := s.objects.Sign(ctx, face.StoragePath)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("path", face.StoragePath).Warn("Signed URL refresh failed")
		return
	}
	face.SignedURL = signed.URL
	face.SignedURLExpiresAt = &signed.ExpiresAt
	if err := s.store.UpdateFaceSignedURL(ctx, face.ID, signed.URL, signed.ExpiresAt); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("Signed URL persist failed")
	}
}
