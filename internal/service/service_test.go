package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dynalinks/dynalinks/internal/cache"
	"github.com/dynalinks/dynalinks/internal/model"
	"github.com/dynalinks/dynalinks/internal/repository"
	"github.com/dynalinks/dynalinks/internal/shortcode"
)

// fakeStore is an in-memory LinkStore.
type fakeStore struct {
	mu    sync.Mutex
	links map[string]*model.Link

	failReads bool
	getCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string]*model.Link)}
}

var errStoreDown = errors.New("store down")

func (f *fakeStore) InsertLink(ctx context.Context, link *model.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.links[link.ShortCode]; ok {
		return repository.ErrCodeExists
	}
	clone := *link
	f.links[link.ShortCode] = &clone
	return nil
}

func (f *fakeStore) GetLinkByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failReads {
		return nil, errStoreDown
	}
	link, ok := f.links[shortCode]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	clone := *link
	return &clone, nil
}

func (f *fakeStore) UpdateLink(ctx context.Context, link *model.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.links[link.ShortCode]; !ok {
		return repository.ErrLinkNotFound
	}
	link.UpdatedAt = time.Now().UTC()
	clone := *link
	f.links[link.ShortCode] = &clone
	return nil
}

func (f *fakeStore) DeactivateLink(ctx context.Context, shortCode string) (*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[shortCode]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link.IsActive = false
	link.UpdatedAt = time.Now().UTC()
	clone := *link
	return &clone, nil
}

func (f *fakeStore) ListLinks(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Link
	for _, link := range f.links {
		if activeOnly && !link.IsActive {
			continue
		}
		clone := *link
		out = append(out, &clone)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CodeExists(ctx context.Context, shortCode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.links[shortCode]
	return ok, nil
}

// fakeCache is an in-memory LinkCache without TTL expiry.
type fakeCache struct {
	mu       sync.Mutex
	links    map[string]*model.Link
	negative map[string]bool
	disabled bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		links:    make(map[string]*model.Link),
		negative: make(map[string]bool),
	}
}

var errCacheDown = errors.New("cache down")

func (f *fakeCache) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return nil, errCacheDown
	}
	link, ok := f.links[shortCode]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	clone := *link
	return &clone, nil
}

func (f *fakeCache) SetLink(ctx context.Context, link *model.Link, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return errCacheDown
	}
	clone := *link
	f.links[link.ShortCode] = &clone
	delete(f.negative, link.ShortCode)
	return nil
}

func (f *fakeCache) DeleteLink(ctx context.Context, shortCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return errCacheDown
	}
	delete(f.links, shortCode)
	delete(f.negative, shortCode)
	return nil
}

func (f *fakeCache) IsNegativelyCached(ctx context.Context, shortCode string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return false, errCacheDown
	}
	return f.negative[shortCode], nil
}

func (f *fakeCache) SetNegativeCache(ctx context.Context, shortCode string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disabled {
		return errCacheDown
	}
	f.negative[shortCode] = true
	return nil
}

func newTestService(store *fakeStore, c *fakeCache) *LinkService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLinkService(store, c, shortcode.NewGenerator(store), logger, nil, Options{})
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
