// Package service implements link lifecycle and resolution logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dynalinks/dynalinks/internal/cache"
	"github.com/dynalinks/dynalinks/internal/metrics"
	"github.com/dynalinks/dynalinks/internal/model"
	"github.com/dynalinks/dynalinks/internal/repository"
	"github.com/dynalinks/dynalinks/internal/shortcode"
)

// Service-level errors. Handlers map these to HTTP statuses.
var (
	ErrLinkNotFound       = errors.New("link not found")
	ErrLinkInactive       = errors.New("link is inactive")
	ErrLinkExpired        = errors.New("link is expired")
	ErrCodeTaken          = errors.New("short code already taken")
	ErrInvalidCode        = errors.New("invalid short code")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrExpiresInPast      = errors.New("expiry must be in the future")
	ErrStoreUnavailable   = errors.New("link store unavailable")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique short code")
)

const maxURLLength = 2048

// LinkStore is the persistence interface the service depends on.
type LinkStore interface {
	InsertLink(ctx context.Context, link *model.Link) error
	GetLinkByCode(ctx context.Context, shortCode string) (*model.Link, error)
	UpdateLink(ctx context.Context, link *model.Link) error
	DeactivateLink(ctx context.Context, shortCode string) (*model.Link, error)
	ListLinks(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Link, error)
	CodeExists(ctx context.Context, shortCode string) (bool, error)
}

// LinkCache is the cache interface the service depends on.
type LinkCache interface {
	GetLink(ctx context.Context, shortCode string) (*model.Link, error)
	SetLink(ctx context.Context, link *model.Link, ttl time.Duration) error
	DeleteLink(ctx context.Context, shortCode string) error
	IsNegativelyCached(ctx context.Context, shortCode string) (bool, error)
	SetNegativeCache(ctx context.Context, shortCode string, ttl time.Duration) error
}

// LinkService handles link lifecycle: create, read, update, deactivate.
type LinkService struct {
	store     LinkStore
	cache     LinkCache
	generator *shortcode.Generator
	logger    *slog.Logger
	metrics   metrics.Recorder

	cacheTTL       time.Duration
	negCacheTTL    time.Duration
	resolveTimeout time.Duration
}

// Options tune cache TTLs and the resolution deadline.
type Options struct {
	CacheTTL       time.Duration
	NegCacheTTL    time.Duration
	ResolveTimeout time.Duration
}

// NewLinkService creates a LinkService.
func NewLinkService(store LinkStore, linkCache LinkCache, generator *shortcode.Generator, logger *slog.Logger, recorder metrics.Recorder, opts Options) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultLinkTTL
	}
	if opts.NegCacheTTL <= 0 {
		opts.NegCacheTTL = cache.DefaultNegativeTTL
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 2 * time.Second
	}
	return &LinkService{
		store:          store,
		cache:          linkCache,
		generator:      generator,
		logger:         logger.With("component", "service.link"),
		metrics:        recorder,
		cacheTTL:       opts.CacheTTL,
		negCacheTTL:    opts.NegCacheTTL,
		resolveTimeout: opts.ResolveTimeout,
	}
}

// CreateLinkInput carries the fields for a new link.
type CreateLinkInput struct {
	CustomCode string

	IOSURL      *string
	AndroidURL  *string
	DesktopURL  *string
	FallbackURL string

	Title       *string
	Description *string
	ImageURL    *string

	SocialTitle       *string
	SocialDescription *string
	SocialImageURL    *string

	CustomParams map[string]any
	ExpiresAt    *time.Time
}

// CreateLink validates input, allocates a short code, and persists the
// link. Insert-time unique violations on a generated code are retried
// by regenerating; on a custom code they surface as ErrCodeTaken.
func (s *LinkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	link := &model.Link{
		ID:                uuid.NewString(),
		IOSURL:            normalizeOptionalURL(input.IOSURL),
		AndroidURL:        normalizeOptionalURL(input.AndroidURL),
		DesktopURL:        normalizeOptionalURL(input.DesktopURL),
		FallbackURL:       strings.TrimSpace(input.FallbackURL),
		Title:             input.Title,
		Description:       input.Description,
		ImageURL:          input.ImageURL,
		SocialTitle:       input.SocialTitle,
		SocialDescription: input.SocialDescription,
		SocialImageURL:    input.SocialImageURL,
		CustomParams:      input.CustomParams,
		IsActive:          true,
		ExpiresAt:         input.ExpiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if input.CustomCode != "" {
		if err := s.generator.Claim(ctx, input.CustomCode); err != nil {
			return nil, translateCodeErr(err)
		}
		link.ShortCode = input.CustomCode

		if err := s.store.InsertLink(ctx, link); err != nil {
			if errors.Is(err, repository.ErrCodeExists) {
				return nil, ErrCodeTaken
			}
			return nil, fmt.Errorf("insert link: %w", err)
		}
	} else {
		if err := s.insertWithGeneratedCode(ctx, link); err != nil {
			return nil, err
		}
	}

	s.warmCache(ctx, link)
	s.metrics.IncLinkCreated()
	s.logger.Info("link created", "short_code", link.ShortCode, "link_id", link.ID)

	return link, nil
}

// insertWithGeneratedCode generates codes until the insert wins the
// unique index race or the retry budget runs out.
func (s *LinkService) insertWithGeneratedCode(ctx context.Context, link *model.Link) error {
	const insertAttempts = 3

	for attempt := 0; attempt < insertAttempts; attempt++ {
		code, err := s.generator.Generate(ctx)
		if err != nil {
			if errors.Is(err, shortcode.ErrExhausted) {
				return ErrCodeSpaceExhausted
			}
			return fmt.Errorf("generate code: %w", err)
		}

		link.ShortCode = code
		err = s.store.InsertLink(ctx, link)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrCodeExists) {
			s.logger.Warn("generated code collided on insert, retrying", "short_code", code)
			continue
		}
		return fmt.Errorf("insert link: %w", err)
	}

	return ErrCodeSpaceExhausted
}

// GetLink returns a link by short code, cache first. Inactive and
// expired links are returned as-is; visibility rules belong to
// resolution, not to management reads.
func (s *LinkService) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	if link, err := s.cache.GetLink(ctx, shortCode); err == nil {
		return link, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache read failed", "short_code", shortCode, "error", err)
	}

	link, err := s.store.GetLinkByCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}

	s.warmCache(ctx, link)
	return link, nil
}

// UpdateLinkInput carries partial updates. A field that is not Set is
// left unchanged; a Set field with a nil value clears the column.
type UpdateLinkInput struct {
	IOSURL      model.Optional[string]
	AndroidURL  model.Optional[string]
	DesktopURL  model.Optional[string]
	FallbackURL model.Optional[string]

	Title       model.Optional[string]
	Description model.Optional[string]
	ImageURL    model.Optional[string]

	SocialTitle       model.Optional[string]
	SocialDescription model.Optional[string]
	SocialImageURL    model.Optional[string]

	CustomParams model.Optional[map[string]any]
	IsActive     model.Optional[bool]
	ExpiresAt    model.Optional[time.Time]
}

// UpdateLink applies a partial update and refreshes the cache so the
// change is visible to the next resolution.
func (s *LinkService) UpdateLink(ctx context.Context, shortCode string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.store.GetLinkByCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}

	if err := applyUpdate(link, input); err != nil {
		return nil, err
	}

	if err := s.store.UpdateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("update link: %w", err)
	}

	// Drop before rewrite; a stale entry must never survive a failed set.
	if err := s.cache.DeleteLink(ctx, shortCode); err != nil {
		s.logger.Warn("cache invalidation failed", "short_code", shortCode, "error", err)
	}
	s.warmCache(ctx, link)

	s.metrics.IncLinkUpdated()
	s.logger.Info("link updated", "short_code", shortCode)

	return link, nil
}

// Deactivate marks a link inactive and evicts it from cache.
// Idempotent: deactivating an inactive link succeeds.
func (s *LinkService) Deactivate(ctx context.Context, shortCode string) (*model.Link, error) {
	link, err := s.store.DeactivateLink(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("deactivate link: %w", err)
	}

	if err := s.cache.DeleteLink(ctx, shortCode); err != nil {
		s.logger.Warn("cache invalidation failed", "short_code", shortCode, "error", err)
	}

	s.metrics.IncLinkDeactivated()
	s.logger.Info("link deactivated", "short_code", shortCode)

	return link, nil
}

// ListLinks returns links ordered newest first.
func (s *LinkService) ListLinks(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Link, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	links, err := s.store.ListLinks(ctx, activeOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// warmCache writes through to the cache; failures are logged, never fatal.
func (s *LinkService) warmCache(ctx context.Context, link *model.Link) {
	if err := s.cache.SetLink(ctx, link, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", "short_code", link.ShortCode, "error", err)
	}
}

func applyUpdate(link *model.Link, input UpdateLinkInput) error {
	if input.FallbackURL.Set {
		if input.FallbackURL.Value == nil {
			return fmt.Errorf("%w: fallback_url cannot be cleared", ErrInvalidURL)
		}
		if err := validateWebURL(*input.FallbackURL.Value); err != nil {
			return err
		}
		link.FallbackURL = strings.TrimSpace(*input.FallbackURL.Value)
	}

	for _, f := range []struct {
		in       model.Optional[string]
		out      **string
		deepLink bool
	}{
		{input.IOSURL, &link.IOSURL, true},
		{input.AndroidURL, &link.AndroidURL, true},
		{input.DesktopURL, &link.DesktopURL, false},
	} {
		if !f.in.Set {
			continue
		}
		if f.in.Value == nil || strings.TrimSpace(*f.in.Value) == "" {
			*f.out = nil
			continue
		}
		var err error
		if f.deepLink {
			err = validateDeepLinkURL(*f.in.Value)
		} else {
			err = validateWebURL(*f.in.Value)
		}
		if err != nil {
			return err
		}
		*f.out = normalizeOptionalURL(f.in.Value)
	}

	applyOptionalString(input.Title, &link.Title)
	applyOptionalString(input.Description, &link.Description)
	applyOptionalString(input.ImageURL, &link.ImageURL)
	applyOptionalString(input.SocialTitle, &link.SocialTitle)
	applyOptionalString(input.SocialDescription, &link.SocialDescription)
	applyOptionalString(input.SocialImageURL, &link.SocialImageURL)

	if input.CustomParams.Set {
		if input.CustomParams.Value == nil {
			link.CustomParams = nil
		} else {
			link.CustomParams = *input.CustomParams.Value
		}
	}
	if input.IsActive.Set && input.IsActive.Value != nil {
		link.IsActive = *input.IsActive.Value
	}
	if input.ExpiresAt.Set {
		if input.ExpiresAt.Value == nil {
			link.ExpiresAt = nil
		} else {
			if !input.ExpiresAt.Value.After(time.Now().UTC()) {
				return ErrExpiresInPast
			}
			link.ExpiresAt = input.ExpiresAt.Value
		}
	}

	return nil
}

func applyOptionalString(in model.Optional[string], out **string) {
	if !in.Set {
		return
	}
	if in.Value == nil || strings.TrimSpace(*in.Value) == "" {
		*out = nil
		return
	}
	v := strings.TrimSpace(*in.Value)
	*out = &v
}

func validateCreateInput(input CreateLinkInput) error {
	if err := validateWebURL(input.FallbackURL); err != nil {
		return err
	}
	for _, u := range []*string{input.IOSURL, input.AndroidURL} {
		if u != nil && strings.TrimSpace(*u) != "" {
			if err := validateDeepLinkURL(*u); err != nil {
				return err
			}
		}
	}
	if input.DesktopURL != nil && strings.TrimSpace(*input.DesktopURL) != "" {
		if err := validateWebURL(*input.DesktopURL); err != nil {
			return err
		}
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(time.Now().UTC()) {
		return ErrExpiresInPast
	}
	return nil
}

// validateWebURL requires an absolute http(s) URL with a host.
func validateWebURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("%w: URL exceeds %d characters", ErrInvalidURL, maxURLLength)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

// validateDeepLinkURL accepts any absolute URL, including app schemes
// like myapp:// and store URLs.
func validateDeepLinkURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxURLLength {
		return fmt.Errorf("%w: URL exceeds %d characters", ErrInvalidURL, maxURLLength)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("%w: scheme is required", ErrInvalidURL)
	}
	return nil
}

func normalizeOptionalURL(u *string) *string {
	if u == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*u)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func translateCodeErr(err error) error {
	switch {
	case errors.Is(err, shortcode.ErrInvalidCode):
		return fmt.Errorf("%w: %v", ErrInvalidCode, err)
	case errors.Is(err, shortcode.ErrCodeTaken):
		return ErrCodeTaken
	default:
		return err
	}
}
