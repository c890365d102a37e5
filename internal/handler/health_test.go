package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dynalinks/dynalinks/internal/metrics"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(nil, nil, "test", "dev")
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		db, cache  error
		wantStatus int
	}{
		{"all healthy", nil, nil, http.StatusOK},
		{"db down", errors.New("conn refused"), nil, http.StatusServiceUnavailable},
		{"redis down", nil, errors.New("conn refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakePinger{tt.db}, fakePinger{tt.cache}, "test", "dev")
			rec := httptest.NewRecorder()
			h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Checks) != 2 {
				t.Errorf("checks = %v, want postgres and redis entries", resp.Checks)
			}
		})
	}
}

func TestHealth_IncludesEnvironment(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler(nil, nil, "production", "1.4.2")
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Environment != "production" || resp.Version != "1.4.2" {
		t.Errorf("got env=%q version=%q", resp.Environment, resp.Version)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := metrics.NewInMemory()
	rec.IncResolveCacheHit()
	rec.IncRedirect("ios")
	rec.IncRedirect("ios")
	rec.IncRedirect("fallback")
	rec.IncRateLimited()
	rec.IncAnalyticsEventProcessed("success")

	h := NewMetricsHandler(rec)
	w := httptest.NewRecorder()
	h.Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content-type = %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{
		"dynalinks_resolve_cache_hits_total 1",
		`dynalinks_redirects_total{type="ios"} 2`,
		`dynalinks_redirects_total{type="fallback"} 1`,
		"dynalinks_rate_limited_total 1",
		`dynalinks_analytics_events_processed_total{status="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
