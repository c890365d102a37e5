// Package testutil provides helpers for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/dynalinks/dynalinks/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731731

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetLinksSchema drops and recreates the dynamic_links schema for tests.
func ResetLinksSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return applyMigrationPair(ctx, pool, "000001_dynamic_links")
}

// ResetClickEventsSchema drops and recreates the click_events schema for tests.
func ResetClickEventsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return applyMigrationPair(ctx, pool, "000002_click_events")
}

func applyMigrationPair(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".down.sql"))
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", name+".up.sql"))
	if err != nil {
		return fmt.Errorf("read up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration: %w", err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// NewTestLink creates a test link with sensible defaults.
func NewTestLink(t testing.TB, shortCode string) *model.Link {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Link{
		ID:          uuid.NewString(),
		ShortCode:   shortCode,
		FallbackURL: "https://example.com/" + shortCode,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestLinkWithExpiry creates a test link with an expiry time.
func NewTestLinkWithExpiry(t testing.TB, shortCode string, expiresAt time.Time) *model.Link {
	t.Helper()
	link := NewTestLink(t, shortCode)
	link.ExpiresAt = &expiresAt
	return link
}

// NewTestClickEvent creates a test click event for a link.
func NewTestClickEvent(t testing.TB, link *model.Link) *model.ClickEvent {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.ClickEvent{
		ID:           ulid.Make().String(),
		EventID:      uuid.NewString(),
		LinkID:       link.ID,
		ShortCode:    link.ShortCode,
		IPHash:       "0123456789abcdef",
		UserAgent:    "test-agent",
		Platform:     "desktop",
		RedirectedTo: link.FallbackURL,
		RedirectType: model.RedirectFallback,
		ClickedAt:    now,
		CreatedAt:    now,
	}
}

// UniqueShortCode generates a unique short code for tests.
func UniqueShortCode(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano()%1e9)
}
