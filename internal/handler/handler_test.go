package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dynalinks/dynalinks/internal/analytics"
	"github.com/dynalinks/dynalinks/internal/cache"
	"github.com/dynalinks/dynalinks/internal/model"
	"github.com/dynalinks/dynalinks/internal/repository"
)

// fakePublisher records published click events synchronously.
type fakePublisher struct {
	mu     sync.Mutex
	events []analytics.ClickEventPayload
}

func (p *fakePublisher) PublishAsync(event analytics.ClickEventPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) all() []analytics.ClickEventPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]analytics.ClickEventPayload, len(p.events))
	copy(out, p.events)
	return out
}

// fakeStore is an in-memory LinkStore for handler tests.
type fakeStore struct {
	mu        sync.Mutex
	links     map[string]*model.Link
	failReads bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string]*model.Link)}
}

var errStoreDown = errors.New("store down")

func (s *fakeStore) InsertLink(ctx context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ShortCode]; ok {
		return repository.ErrCodeExists
	}
	cp := *link
	s.links[link.ShortCode] = &cp
	return nil
}

func (s *fakeStore) GetLinkByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, errStoreDown
	}
	link, ok := s.links[shortCode]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *fakeStore) UpdateLink(ctx context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ShortCode]; !ok {
		return repository.ErrLinkNotFound
	}
	cp := *link
	cp.UpdatedAt = time.Now().UTC()
	s.links[link.ShortCode] = &cp
	*link = cp
	return nil
}

func (s *fakeStore) DeactivateLink(ctx context.Context, shortCode string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[shortCode]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	link.IsActive = false
	link.UpdatedAt = time.Now().UTC()
	cp := *link
	return &cp, nil
}

func (s *fakeStore) ListLinks(ctx context.Context, activeOnly bool, limit, offset int) ([]*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*model.Link, 0, len(s.links))
	for _, link := range s.links {
		if activeOnly && !link.IsActive {
			continue
		}
		cp := *link
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *fakeStore) CodeExists(ctx context.Context, shortCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return false, errStoreDown
	}
	_, ok := s.links[shortCode]
	return ok, nil
}

// fakeCache is an in-memory LinkCache for handler tests.
type fakeCache struct {
	mu       sync.Mutex
	links    map[string]*model.Link
	negative map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		links:    make(map[string]*model.Link),
		negative: make(map[string]bool),
	}
}

func (c *fakeCache) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	link, ok := c.links[shortCode]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := *link
	return &cp, nil
}

func (c *fakeCache) SetLink(ctx context.Context, link *model.Link, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *link
	c.links[link.ShortCode] = &cp
	delete(c.negative, link.ShortCode)
	return nil
}

func (c *fakeCache) DeleteLink(ctx context.Context, shortCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, shortCode)
	delete(c.negative, shortCode)
	return nil
}

func (c *fakeCache) IsNegativelyCached(ctx context.Context, shortCode string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negative[shortCode], nil
}

func (c *fakeCache) SetNegativeCache(ctx context.Context, shortCode string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negative[shortCode] = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// jsonBody builds a request body reader from a JSON literal.
func jsonBody(s string) *strings.Reader {
	return strings.NewReader(s)
}
