package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dynalinks/dynalinks/internal/model"
)

const (
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148 Safari/604.1"
	uaAndroid = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36"
	uaDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
)

func (e *testEnv) redirect(t *testing.T, shortCode, userAgent string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/"+shortCode, nil)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRedirect_PlatformDispatch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/links", `{
		"short_code":"appLink",
		"ios_url":"https://apps.apple.com/app/id123",
		"android_url":"https://play.google.com/store/apps/details?id=com.example",
		"desktop_url":"https://example.com/desktop",
		"fallback_url":"https://example.com/landing"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body: %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name       string
		userAgent  string
		wantTarget string
	}{
		{"iphone", uaIPhone, "https://apps.apple.com/app/id123"},
		{"android", uaAndroid, "https://play.google.com/store/apps/details?id=com.example"},
		{"desktop", uaDesktop, "https://example.com/desktop"},
		{"unknown ua", "", "https://example.com/desktop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.redirect(t, "appLink", tt.userAgent)
			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tt.wantTarget {
				t.Errorf("location = %q, want %q", got, tt.wantTarget)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "private, max-age=0" {
				t.Errorf("cache-control = %q", cc)
			}
		})
	}
}

func TestRedirect_FallbackWhenPlatformURLMissing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/links",
		`{"short_code":"webonly1","fallback_url":"https://example.com/landing"}`)

	for _, ua := range []string{uaIPhone, uaAndroid, uaDesktop} {
		rec := env.redirect(t, "webonly1", ua)
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if got := rec.Header().Get("Location"); got != "https://example.com/landing" {
			t.Errorf("location = %q, want fallback", got)
		}
	}
}

func TestRedirect_CustomParamsAppended(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/links", `{
		"short_code":"tagged1",
		"fallback_url":"https://example.com/landing?ref=old",
		"custom_parameters":{"utm_source":"qr","ref":"new"}
	}`)

	rec := env.redirect(t, "tagged1", uaDesktop)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	loc := rec.Header().Get("Location")
	parsed, err := http.NewRequest(http.MethodGet, loc, nil)
	if err != nil {
		t.Fatalf("parse location %q: %v", loc, err)
	}
	q := parsed.URL.Query()
	if q.Get("utm_source") != "qr" {
		t.Errorf("utm_source = %q, want qr", q.Get("utm_source"))
	}
	// Existing query parameters win over custom parameters.
	if q.Get("ref") != "old" {
		t.Errorf("ref = %q, want old", q.Get("ref"))
	}
}

func TestRedirect_NotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.redirect(t, "ghost123", uaDesktop)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != "LINK_NOT_FOUND" {
		t.Errorf("error code = %q, want LINK_NOT_FOUND", got)
	}
}

func TestRedirect_InactiveReturnsGone(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/links",
		`{"short_code":"gone1","fallback_url":"https://example.com"}`)
	env.do(t, http.MethodDelete, "/api/v1/links/gone1", "")

	rec := env.redirect(t, "gone1", uaDesktop)
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != "LINK_INACTIVE" {
		t.Errorf("error code = %q, want LINK_INACTIVE", got)
	}
}

func TestRedirect_ExpiredReturnsGone(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	expiry := time.Now().UTC().Add(40 * time.Millisecond).Format(time.RFC3339Nano)
	rec := env.do(t, http.MethodPost, "/api/v1/links",
		`{"short_code":"fleeting","fallback_url":"https://example.com","expires_at":"`+expiry+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d; body: %s", rec.Code, rec.Body.String())
	}

	time.Sleep(60 * time.Millisecond)

	rec = env.redirect(t, "fleeting", uaDesktop)
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != "LINK_EXPIRED" {
		t.Errorf("error code = %q, want LINK_EXPIRED", got)
	}
}

func TestRedirect_ReadYourWrites(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/links",
		`{"short_code":"freshry1","fallback_url":"https://example.com/v1"}`)

	rec := env.do(t, http.MethodPatch, "/api/v1/links/freshry1",
		`{"fallback_url":"https://example.com/v2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}

	rec = env.redirect(t, "freshry1", uaDesktop)
	if got := rec.Header().Get("Location"); got != "https://example.com/v2" {
		t.Errorf("location = %q, update not visible to resolution", got)
	}
}

func TestRedirect_PublishesClickEvent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/links", `{
		"short_code":"clicked1",
		"ios_url":"https://apps.apple.com/app/id123",
		"fallback_url":"https://example.com/landing"
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decodeLink(t, rec)

	req := httptest.NewRequest(http.MethodGet, "/clicked1", nil)
	req.Header.Set("User-Agent", uaIPhone)
	req.Header.Set("Referer", "https://social.example.com/post/42?session=abc")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}

	events := env.published.all()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.ShortCode != "clicked1" || ev.LinkID != created.ID {
		t.Errorf("event identifies %q/%q, want clicked1/%q", ev.ShortCode, ev.LinkID, created.ID)
	}
	if ev.RedirectType != string(model.RedirectIOS) {
		t.Errorf("redirect type = %q, want ios", ev.RedirectType)
	}
	if ev.RedirectedTo != "https://apps.apple.com/app/id123" {
		t.Errorf("redirected_to = %q", ev.RedirectedTo)
	}
	if ev.Platform != "ios" {
		t.Errorf("platform = %q, want ios", ev.Platform)
	}
	if len(ev.IPHash) != 16 {
		t.Errorf("ip hash = %q, want 16 hex chars, never a raw address", ev.IPHash)
	}
	// Referrer query string stripped before publishing.
	if ev.Referer != "https://social.example.com/post/42" {
		t.Errorf("referer = %q, query must be stripped", ev.Referer)
	}
	if ev.ClickedAt <= 0 {
		t.Errorf("clicked_at = %d, want unix milliseconds", ev.ClickedAt)
	}
}

func TestRedirect_GoneOutcomesStillPublish(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/links",
		`{"short_code":"deadclik","fallback_url":"https://example.com"}`)
	env.do(t, http.MethodDelete, "/api/v1/links/deadclik", "")

	expiry := time.Now().UTC().Add(40 * time.Millisecond).Format(time.RFC3339Nano)
	env.do(t, http.MethodPost, "/api/v1/links",
		`{"short_code":"staleclk","fallback_url":"https://example.com","expires_at":"`+expiry+`"}`)
	time.Sleep(60 * time.Millisecond)

	if rec := env.redirect(t, "deadclik", uaDesktop); rec.Code != http.StatusGone {
		t.Fatalf("inactive status = %d, want 410", rec.Code)
	}
	if rec := env.redirect(t, "staleclk", uaDesktop); rec.Code != http.StatusGone {
		t.Fatalf("expired status = %d, want 410", rec.Code)
	}

	events := env.published.all()
	if len(events) != 2 {
		t.Fatalf("published %d events, want 2", len(events))
	}
	types := map[string]string{}
	for _, ev := range events {
		types[ev.ShortCode] = ev.RedirectType
		if ev.RedirectedTo != "" {
			t.Errorf("%s redirected_to = %q, want empty on a Gone outcome", ev.ShortCode, ev.RedirectedTo)
		}
	}
	if types["deadclik"] != string(model.RedirectInactive) {
		t.Errorf("deadclik type = %q, want inactive", types["deadclik"])
	}
	if types["staleclk"] != string(model.RedirectExpired) {
		t.Errorf("staleclk type = %q, want expired", types["staleclk"])
	}
}

func TestRedirect_UnknownCodePublishesNothing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if rec := env.redirect(t, "ghost123", uaDesktop); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := len(env.published.all()); got != 0 {
		t.Errorf("published %d events for an unknown code, want 0", got)
	}
}

func TestRedirect_StoreDownCachedLinkStillServes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/v1/links",
		`{"short_code":"survivor","fallback_url":"https://example.com"}`)

	env.store.mu.Lock()
	env.store.failReads = true
	env.store.mu.Unlock()

	// Created link was written through to the cache.
	rec := env.redirect(t, "survivor", uaDesktop)
	if rec.Code != http.StatusFound {
		t.Fatalf("cached status = %d, want 302", rec.Code)
	}

	// A cold code cannot be resolved while the store is down.
	rec = env.redirect(t, "coldcode", uaDesktop)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("cold status = %d, want 503", rec.Code)
	}
}
