package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dynalinks/dynalinks/internal/cache"
	"github.com/dynalinks/dynalinks/internal/model"
	"github.com/dynalinks/dynalinks/internal/platform"
	"github.com/dynalinks/dynalinks/internal/repository"
)

// Resolution is the outcome of resolving a short code for a client.
// Link is populated for inactive and expired outcomes too, so callers
// can record the attempt against the right link.
type Resolution struct {
	Link           *model.Link
	TargetURL      string
	RedirectType   model.RedirectType
	Classification platform.Classification
	CacheHit       bool
}

// Resolve maps a short code and a User-Agent to a redirect target.
//
// Lookup is cache first with negative caching for unknown codes. A
// store outage only fails resolutions that miss the cache; cached
// links keep redirecting. Eligibility (active, not expired) is
// re-evaluated on every call against the current clock.
func (s *LinkService) Resolve(ctx context.Context, shortCode, userAgent string) (*Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		s.metrics.ObserveResolveDuration(time.Since(start))
	}()

	classification := platform.Classify(userAgent)

	link, cacheHit, err := s.lookupLink(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	resolution := &Resolution{
		Link:           link,
		Classification: classification,
		CacheHit:       cacheHit,
	}

	now := time.Now().UTC()
	if !link.IsActive {
		resolution.RedirectType = model.RedirectInactive
		s.metrics.IncRedirect(string(model.RedirectInactive))
		return resolution, ErrLinkInactive
	}
	if link.IsExpired(now) {
		resolution.RedirectType = model.RedirectExpired
		s.metrics.IncRedirect(string(model.RedirectExpired))
		return resolution, ErrLinkExpired
	}

	target, redirectType := platform.ChooseTarget(link, classification.Platform)
	resolution.TargetURL = platform.AppendParams(target, link.CustomParams)
	resolution.RedirectType = redirectType

	s.metrics.IncRedirect(string(redirectType))

	return resolution, nil
}

// lookupLink finds a link by code: negative cache, link cache, then
// the store with cache backfill.
func (s *LinkService) lookupLink(ctx context.Context, shortCode string) (*model.Link, bool, error) {
	negative, err := s.cache.IsNegativelyCached(ctx, shortCode)
	if err != nil {
		s.logger.Warn("negative cache check failed", "short_code", shortCode, "error", err)
	} else if negative {
		s.metrics.IncResolveCacheHit()
		return nil, true, ErrLinkNotFound
	}

	link, err := s.cache.GetLink(ctx, shortCode)
	if err == nil {
		s.metrics.IncResolveCacheHit()
		return link, true, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache read failed", "short_code", shortCode, "error", err)
	}
	s.metrics.IncResolveCacheMiss()

	link, err = s.store.GetLinkByCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			if negErr := s.cache.SetNegativeCache(ctx, shortCode, s.negCacheTTL); negErr != nil {
				s.logger.Warn("negative cache write failed", "short_code", shortCode, "error", negErr)
			}
			return nil, false, ErrLinkNotFound
		}
		s.logger.Error("store lookup failed", "short_code", shortCode, "error", err)
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.warmCache(ctx, link)
	return link, false, nil
}
