package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dynalinks/dynalinks/internal/model"
	"github.com/dynalinks/dynalinks/internal/shortcode"
)

func TestCreateLink_GeneratedCode(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{
		FallbackURL: "https://example.com/landing",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if len(link.ShortCode) != shortcode.GeneratedLength {
		t.Errorf("ShortCode = %q, want %d chars", link.ShortCode, shortcode.GeneratedLength)
	}
	if link.ID == "" {
		t.Error("ID should be assigned")
	}
	if !link.IsActive {
		t.Error("new links should be active")
	}
}

func TestCreateLink_CustomCode(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, newFakeCache())
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, CreateLinkInput{
		CustomCode:  "promo24",
		FallbackURL: "https://example.com",
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link.ShortCode != "promo24" {
		t.Errorf("ShortCode = %q, want promo24", link.ShortCode)
	}

	// Same code again collides.
	_, err = svc.CreateLink(ctx, CreateLinkInput{
		CustomCode:  "promo24",
		FallbackURL: "https://example.com",
	})
	if !errors.Is(err, ErrCodeTaken) {
		t.Errorf("err = %v, want ErrCodeTaken", err)
	}
}

func TestCreateLink_InvalidCustomCode(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())

	for _, code := range []string{"ab", "has space", "api"} {
		_, err := svc.CreateLink(context.Background(), CreateLinkInput{
			CustomCode:  code,
			FallbackURL: "https://example.com",
		})
		if !errors.Is(err, ErrInvalidCode) {
			t.Errorf("CreateLink(code=%q) err = %v, want ErrInvalidCode", code, err)
		}
	}
}

func TestCreateLink_URLValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateLinkInput
		wantErr error
	}{
		{
			"missing_fallback",
			CreateLinkInput{},
			ErrInvalidURL,
		},
		{
			"fallback_bad_scheme",
			CreateLinkInput{FallbackURL: "ftp://example.com/file"},
			ErrInvalidURL,
		},
		{
			"fallback_no_host",
			CreateLinkInput{FallbackURL: "https://"},
			ErrInvalidURL,
		},
		{
			"desktop_must_be_web",
			CreateLinkInput{
				FallbackURL: "https://example.com",
				DesktopURL:  strPtr("myapp://desktop"),
			},
			ErrInvalidURL,
		},
		{
			"ios_deep_link_allowed",
			CreateLinkInput{
				FallbackURL: "https://example.com",
				IOSURL:      strPtr("myapp://section/42"),
			},
			nil,
		},
		{
			"android_intent_allowed",
			CreateLinkInput{
				FallbackURL: "https://example.com",
				AndroidURL:  strPtr("intent://view#Intent;package=com.example;end"),
			},
			nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.CreateLink(ctx, tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateLink_ExpiresInPast(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())

	past := time.Now().UTC().Add(-time.Minute)
	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		FallbackURL: "https://example.com",
		ExpiresAt:   &past,
	})
	if !errors.Is(err, ErrExpiresInPast) {
		t.Errorf("err = %v, want ErrExpiresInPast", err)
	}
}

func TestGetLink_CacheFirst(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fc := newFakeCache()
	svc := newTestService(store, fc)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, CreateLinkInput{FallbackURL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	storeReadsBefore := store.getCalls
	got, err := svc.GetLink(ctx, link.ShortCode)
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.ID != link.ID {
		t.Errorf("ID = %q, want %q", got.ID, link.ID)
	}
	if store.getCalls != storeReadsBefore {
		t.Error("GetLink should be served from cache after create")
	}
}

func TestGetLink_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())

	if _, err := svc.GetLink(context.Background(), "nothere"); !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("err = %v, want ErrLinkNotFound", err)
	}
}

func TestUpdateLink_PartialSemantics(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())
	ctx := context.Background()

	title := "Original"
	desc := "Keep me"
	link, err := svc.CreateLink(ctx, CreateLinkInput{
		FallbackURL: "https://example.com",
		Title:       &title,
		Description: &desc,
		IOSURL:      strPtr("myapp://home"),
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	// Title set to a new value, IOSURL explicitly cleared,
	// Description absent (unchanged).
	updated, err := svc.UpdateLink(ctx, link.ShortCode, UpdateLinkInput{
		Title:  model.NewOptional("Renamed"),
		IOSURL: model.NullOptional[string](),
	})
	if err != nil {
		t.Fatalf("UpdateLink: %v", err)
	}

	if updated.Title == nil || *updated.Title != "Renamed" {
		t.Errorf("Title = %v, want Renamed", updated.Title)
	}
	if updated.IOSURL != nil {
		t.Errorf("IOSURL = %v, want cleared", updated.IOSURL)
	}
	if updated.Description == nil || *updated.Description != desc {
		t.Errorf("Description = %v, want unchanged", updated.Description)
	}
}

func TestUpdateLink_FallbackCannotBeCleared(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, CreateLinkInput{FallbackURL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	_, err = svc.UpdateLink(ctx, link.ShortCode, UpdateLinkInput{
		FallbackURL: model.NullOptional[string](),
	})
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("err = %v, want ErrInvalidURL", err)
	}
}

func TestUpdateLink_ExpiryRules(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())
	ctx := context.Background()

	future := time.Now().UTC().Add(time.Hour)
	link, err := svc.CreateLink(ctx, CreateLinkInput{
		FallbackURL: "https://example.com",
		ExpiresAt:   &future,
	})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	// Past expiry rejected.
	_, err = svc.UpdateLink(ctx, link.ShortCode, UpdateLinkInput{
		ExpiresAt: model.NewOptional(time.Now().UTC().Add(-time.Second)),
	})
	if !errors.Is(err, ErrExpiresInPast) {
		t.Errorf("err = %v, want ErrExpiresInPast", err)
	}

	// Explicit null removes the expiry.
	updated, err := svc.UpdateLink(ctx, link.ShortCode, UpdateLinkInput{
		ExpiresAt: model.NullOptional[time.Time](),
	})
	if err != nil {
		t.Fatalf("UpdateLink: %v", err)
	}
	if updated.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", updated.ExpiresAt)
	}
}

func TestUpdateLink_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeStore(), newFakeCache())

	_, err := svc.UpdateLink(context.Background(), "nothere", UpdateLinkInput{
		Title: model.NewOptional("x"),
	})
	if !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("err = %v, want ErrLinkNotFound", err)
	}
}

func TestDeactivate_EvictsCacheAndIsIdempotent(t *testing.T) {
	t.Parallel()

	fc := newFakeCache()
	svc := newTestService(newFakeStore(), fc)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, CreateLinkInput{FallbackURL: "https://example.com"})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	got, err := svc.Deactivate(ctx, link.ShortCode)
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if got.IsActive {
		t.Error("link should be inactive")
	}
	if _, ok := fc.links[link.ShortCode]; ok {
		t.Error("cache entry should be evicted")
	}

	if _, err := svc.Deactivate(ctx, link.ShortCode); err != nil {
		t.Errorf("second Deactivate = %v, want nil", err)
	}
}

func TestListLinks_ClampsLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(store, newFakeCache())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateLink(ctx, CreateLinkInput{FallbackURL: "https://example.com"}); err != nil {
			t.Fatalf("CreateLink: %v", err)
		}
	}

	links, err := svc.ListLinks(ctx, false, -5, -1)
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(links) != 3 {
		t.Errorf("len = %d, want 3", len(links))
	}
}
