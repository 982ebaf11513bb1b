// Package thumbnails implements thumbnail generation and management on top
// of the AI image client, object storage, and the database repository.
package thumbnails

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Danejw/viewbait/internal/ai"
	"github.com/Danejw/viewbait/internal/billing"
	"github.com/Danejw/viewbait/internal/database"
	"github.com/Danejw/viewbait/internal/errors"
	"github.com/Danejw/viewbait/internal/logging"
	"github.com/Danejw/viewbait/internal/storage"
)

const (
	// DefaultVariants is how many images a generation produces when the
	// request does not ask for a specific count.
	DefaultVariants = 3
	// MaxVariantsPerRequest caps how many variants a single generation may
	// ask for.
	MaxVariantsPerRequest = 4
)

// Store is the database surface the thumbnail service needs.
type Store interface {
	CreateThumbnail(ctx context.Context, create database.ThumbnailCreate) (*database.Thumbnail, error)
	GetThumbnailForUser(ctx context.Context, userID, id string) (*database.Thumbnail, error)
	ListThumbnailsForUser(ctx context.Context, userID string, limit, offset int) ([]database.Thumbnail, error)
	UpdateThumbnailForUser(ctx context.Context, userID, id string, update database.ThumbnailUpdate) (*database.Thumbnail, error)
	UpdateThumbnailSignedURL(ctx context.Context, id, signedURL string, expiresAt time.Time) error
	DeleteThumbnailForUser(ctx context.Context, userID, id string) (*database.Thumbnail, error)

	CreateVariant(ctx context.Context, create database.VariantCreate) (*database.Variant, error)
	ListVariantsForThumbnail(ctx context.Context, userID, thumbnailID string) ([]database.Variant, error)
	SetVariantStatusForUser(ctx context.Context, userID, id, status string) (*database.Variant, error)
	DeleteVariantForUser(ctx context.Context, userID, id string) (*database.Variant, error)
	UpdateVariantSignedURL(ctx context.Context, id, signedURL string, expiresAt time.Time) error

	GetStyleForUser(ctx context.Context, userID, id string) (*database.Style, error)
	GetPaletteForUser(ctx context.Context, userID, id string) (*database.Palette, error)
	GetFaceForUser(ctx context.Context, userID, id string) (*database.Face, error)

	GetCreditBalance(ctx context.Context, userID string) (int, error)
	DeductCredits(ctx context.Context, userID string, amount int) (int, error)
}

// Generator produces thumbnail images from prompts.
type Generator interface {
	GenerateImage(ctx context.Context, req ai.GenerateRequest) ([]byte, string, error)
}

// ObjectStore is the storage surface for image objects and signed URLs.
type ObjectStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, string, error)
	Sign(ctx context.Context, path string) (*storage.SignedObject, error)
	SignBatch(ctx context.Context, paths []string) ([]storage.SignedObject, error)
	NeedsRefresh(expiresAt *time.Time) bool
	Delete(ctx context.Context, path string) error
}

// TierResolver reports the user's effective billing tier.
type TierResolver interface {
	TierForUser(ctx context.Context, userID string) (billing.Tier, error)
}

// Service orchestrates thumbnail generation and CRUD.
type Service struct {
	store     Store
	generator Generator
	objects   ObjectStore
	tiers     TierResolver
	log       *logging.Logger
}

// New constructs a thumbnail service.
func New(store Store, generator Generator, objects ObjectStore, tiers TierResolver, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("thumbnails", "info", "json")
	}
	return &Service{
		store:     store,
		generator: generator,
		objects:   objects,
		tiers:     tiers,
		log:       log,
	}
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	Title     string
	Prompt    string
	StyleID   string
	PaletteID string
	FaceID    string
	Width     int
	Height    int
	Variants  int
}

// GenerateResult carries the created thumbnail and its variants, along with
// the user's remaining credit balance.
type GenerateResult struct {
	Thumbnail *database.Thumbnail `json:"thumbnail"`
	Variants  []database.Variant  `json:"variants"`
	Requested int                 `json:"requested"`
	Generated int                 `json:"generated"`
	Credits   int                 `json:"credits"`
}

// Generate produces up to req.Variants images for the prompt. Generation is
// best effort per variant: the call succeeds when at least one image lands,
// and credits are deducted only for images that did.
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) (*GenerateResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.Validation("Prompt is required")
	}

	count := req.Variants
	if count <= 0 {
		count = DefaultVariants
	}
	if count > MaxVariantsPerRequest {
		return nil, errors.Validation(fmt.Sprintf("At most %d variants per request", MaxVariantsPerRequest))
	}

	tier, err := s.tiers.TierForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := billing.LimitsFor(tier)

	width, height := clampDimensions(req.Width, req.Height, limits)

	balance, err := s.store.GetCreditBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < count {
		return nil, errors.InsufficientCredits(count, balance)
	}

	genReq := ai.GenerateRequest{
		Prompt: prompt,
		Width:  width,
		Height: height,
	}
	if err := s.applyAssets(ctx, userID, req, limits, &genReq); err != nil {
		return nil, err
	}

	thumbnailID := uuid.New().String()

	type generated struct {
		path   string
		signed *storage.SignedObject
	}
	var images []generated
	var lastErr error

	for i := 0; i < count; i++ {
		data, mime, err := s.generator.GenerateImage(ctx, genReq)
		if err != nil {
			lastErr = err
			s.log.WithContext(ctx).WithError(err).WithField("attempt", i+1).Warn("Variant generation failed")
			continue
		}

		path := objectPath(userID, thumbnailID, uuid.New().String(), mime)
		if err := s.objects.Upload(ctx, path, data, mime); err != nil {
			lastErr = err
			s.log.WithContext(ctx).WithError(err).Warn("Variant upload failed")
			continue
		}

		signed, err := s.objects.Sign(ctx, path)
		if err != nil {
			lastErr = err
			s.log.WithContext(ctx).WithError(err).Warn("Variant signing failed")
			continue
		}

		images = append(images, generated{path: path, signed: signed})
	}

	if len(images) == 0 {
		return nil, errors.Upstream("ai", fmt.Errorf("all %d variants failed: %w", count, lastErr))
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = truncate(prompt, 80)
	}

	first := images[0]
	thumbnail, err := s.store.CreateThumbnail(ctx, database.ThumbnailCreate{
		ID:                 thumbnailID,
		UserID:             userID,
		Title:              title,
		Prompt:             prompt,
		StyleID:            req.StyleID,
		PaletteID:          req.PaletteID,
		FaceID:             req.FaceID,
		StoragePath:        first.path,
		SignedURL:          first.signed.URL,
		SignedURLExpiresAt: &first.signed.ExpiresAt,
		Width:              width,
		Height:             height,
	})
	if err != nil {
		return nil, err
	}

	variants := make([]database.Variant, 0, len(images))
	for _, img := range images {
		variant, err := s.store.CreateVariant(ctx, database.VariantCreate{
			ID:                 uuid.New().String(),
			ThumbnailID:        thumbnailID,
			UserID:             userID,
			Status:             database.VariantStatusCandidate,
			Prompt:             prompt,
			StoragePath:        img.path,
			SignedURL:          img.signed.URL,
			SignedURLExpiresAt: &img.signed.ExpiresAt,
		})
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("Variant insert failed")
			continue
		}
		variants = append(variants, *variant)
	}

	remaining, err := s.store.DeductCredits(ctx, userID, len(images))
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("amount", len(images)).Error("Credit deduction failed after generation")
		remaining = balance
	}

	return &GenerateResult{
		Thumbnail: thumbnail,
		Variants:  variants,
		Requested: count,
		Generated: len(images),
		Credits:   remaining,
	}, nil
}

// applyAssets resolves optional style, palette, and face references into
// generation hints. Custom face uploads are gated on the tier.
func (s *Service) applyAssets(ctx context.Context, userID string, req GenerateRequest, limits billing.Limits, genReq *ai.GenerateRequest) error {
	if req.StyleID != "" {
		style, err := s.store.GetStyleForUser(ctx, userID, req.StyleID)
		if err != nil {
			return err
		}
		genReq.StyleHint = style.PromptHint
		if genReq.StyleHint == "" {
			genReq.StyleHint = style.Description
		}
	}

	if req.PaletteID != "" {
		palette, err := s.store.GetPaletteForUser(ctx, userID, req.PaletteID)
		if err != nil {
			return err
		}
		genReq.Colors = palette.Colors
	}

	if req.FaceID != "" {
		if !limits.CustomAssets {
			return errors.InsufficientTier("custom face assets")
		}
		face, err := s.store.GetFaceForUser(ctx, userID, req.FaceID)
		if err != nil {
			return err
		}
		// The model wants the raw image inlined, not a URL.
		data, mime, err := s.objects.Download(ctx, face.StoragePath)
		if err != nil {
			return errors.Internal("Face image could not be loaded", err)
		}
		genReq.FaceImage = data
		genReq.FaceMimeType = mime
	}

	return nil
}

// Get returns one thumbnail, refreshing its signed URL when close to expiry.
func (s *Service) Get(ctx context.Context, userID, id string) (*database.Thumbnail, error) {
	thumbnail, err := s.store.GetThumbnailForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.refreshThumbnailURL(ctx, thumbnail)
	return thumbnail, nil
}

// List returns the user's thumbnails, newest first. Stale signed URLs are
// re-issued in a single batch sign call.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]database.Thumbnail, error) {
	thumbnails, err := s.store.ListThumbnailsForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	var stale []int
	for i := range thumbnails {
		if s.objects.NeedsRefresh(thumbnails[i].SignedURLExpiresAt) {
			stale = append(stale, i)
		}
	}
	if len(stale) == 0 {
		return thumbnails, nil
	}

	paths := make([]string, 0, len(stale))
	for _, i := range stale {
		paths = append(paths, thumbnails[i].StoragePath)
	}
	signed, err := s.objects.SignBatch(ctx, paths)
	if err != nil {
		// Stale URLs still render for their skew window; serve what we have.
		s.log.WithContext(ctx).WithError(err).Warn("Signed URL batch refresh failed")
		return thumbnails, nil
	}

	byPath := make(map[string]storage.SignedObject, len(signed))
	for _, so := range signed {
		byPath[so.Path] = so
	}
	for _, i := range stale {
		so, ok := byPath[thumbnails[i].StoragePath]
		if !ok {
			continue
		}
		expiresAt := so.ExpiresAt
		thumbnails[i].SignedURL = so.URL
		thumbnails[i].SignedURLExpiresAt = &expiresAt
		if err := s.store.UpdateThumbnailSignedURL(ctx, thumbnails[i].ID, so.URL, so.ExpiresAt); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("Signed URL persist failed")
		}
	}
	return thumbnails, nil
}

// Update applies a partial update to a thumbnail the user owns.
func (s *Service) Update(ctx context.Context, userID, id string, update database.ThumbnailUpdate) (*database.Thumbnail, error) {
	return s.store.UpdateThumbnailForUser(ctx, userID, id, update)
}

// Delete removes a thumbnail row along with its variants' storage objects.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	variants, err := s.store.ListVariantsForThumbnail(ctx, userID, id)
	if err != nil && !database.IsNotFound(err) {
		return err
	}

	thumbnail, err := s.store.DeleteThumbnailForUser(ctx, userID, id)
	if err != nil {
		return err
	}

	// Object cleanup is best effort; orphans are collected out of band.
	if err := s.objects.Delete(ctx, thumbnail.StoragePath); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("path", thumbnail.StoragePath).Warn("Thumbnail object cleanup failed")
	}
	for _, variant := range variants {
		if variant.StoragePath == thumbnail.StoragePath {
			continue
		}
		if err := s.objects.Delete(ctx, variant.StoragePath); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("path", variant.StoragePath).Warn("Variant object cleanup failed")
		}
	}
	return nil
}

// Variants lists a thumbnail's variants, refreshing stale signed URLs.
func (s *Service) Variants(ctx context.Context, userID, thumbnailID string) ([]database.Variant, error) {
	// Ownership check rides on the thumbnail lookup.
	if _, err := s.store.GetThumbnailForUser(ctx, userID, thumbnailID); err != nil {
		return nil, err
	}

	variants, err := s.store.ListVariantsForThumbnail(ctx, userID, thumbnailID)
	if err != nil {
		return nil, err
	}

	var stale []int
	for i := range variants {
		if s.objects.NeedsRefresh(variants[i].SignedURLExpiresAt) {
			stale = append(stale, i)
		}
	}
	if len(stale) == 0 {
		return variants, nil
	}

	paths := make([]string, 0, len(stale))
	for _, i := range stale {
		paths = append(paths, variants[i].StoragePath)
	}
	signed, err := s.objects.SignBatch(ctx, paths)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("Signed URL batch refresh failed")
		return variants, nil
	}

	byPath := make(map[string]storage.SignedObject, len(signed))
	for _, so := range signed {
		byPath[so.Path] = so
	}
	for _, i := range stale {
		so, ok := byPath[variants[i].StoragePath]
		if !ok {
			continue
		}
		expiresAt := so.ExpiresAt
		variants[i].SignedURL = so.URL
		variants[i].SignedURLExpiresAt = &expiresAt
		if err := s.store.UpdateVariantSignedURL(ctx, variants[i].ID, so.URL, so.ExpiresAt); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("Signed URL persist failed")
		}
	}
	return variants, nil
}

// SetVariantStatus updates a variant's status. Promoting a winner demotes
// the previous one.
func (s *Service) SetVariantStatus(ctx context.Context, userID, id, status string) (*database.Variant, error) {
	return s.store.SetVariantStatusForUser(ctx, userID, id, status)
}

// DeleteVariant removes one variant and its storage object.
func (s *Service) DeleteVariant(ctx context.Context, userID, id string) error {
	variant, err := s.store.DeleteVariantForUser(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, variant.StoragePath); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("path", variant.StoragePath).Warn("Variant object cleanup failed")
	}
	return nil
}

func (s *Service) refreshThumbnailURL(ctx context.Context, thumbnail *database.Thumbnail) {
	if !s.objects.NeedsRefresh(thumbnail.SignedURLExpiresAt) {
		return
	}
	signed, err := s.objects.Sign(ctx, thumbnail.StoragePath)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("path", thumbnail.StoragePath).Warn("Signed URL refresh failed")
		return
	}
	thumbnail.SignedURL = signed.URL
	thumbnail.SignedURLExpiresAt = &signed.ExpiresAt
	if err := s.store.UpdateThumbnailSignedURL(ctx, thumbnail.ID, signed.URL, signed.ExpiresAt); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("Signed URL persist failed")
	}
}

func clampDimensions(width, height int, limits billing.Limits) (int, int) {
	if width <= 0 {
		width = limits.MaxWidth
	}
	if height <= 0 {
		height = limits.MaxHeight
	}
	if width > limits.MaxWidth {
		width = limits.MaxWidth
	}
	if height > limits.MaxHeight {
		height = limits.MaxHeight
	}
	return width, height
}

func objectPath(userID, thumbnailID, variantID, mime string) string {
	ext := ".png"
	if strings.Contains(mime, "jpeg") || strings.Contains(mime, "jpg") {
		ext = ".jpg"
	} else if strings.Contains(mime, "webp") {
		ext = ".webp"
	}
	return fmt.Sprintf("%s/thumbnails/%s/%s%s", userID, thumbnailID, variantID, ext)
}

// truncate shortens s to at most n runes without splitting a multi-byte
// character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
