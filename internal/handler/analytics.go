package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dynalinks/dynalinks/internal/handler/dto"
	"github.com/dynalinks/dynalinks/internal/model"
	"github.com/dynalinks/dynalinks/internal/service"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
)

// AnalyticsStore reads aggregated click data.
type AnalyticsStore interface {
	GetLinkAnalytics(ctx context.Context, linkID string, days int) (*model.LinkAnalytics, error)
}

// AnalyticsHandler serves per-link click analytics.
type AnalyticsHandler struct {
	svc    *service.LinkService
	store  AnalyticsStore
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc *service.LinkService, store AnalyticsStore, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		svc:    svc,
		store:  store,
		logger: logger.With("component", "handler.analytics"),
	}
}

// LinkAnalytics handles GET /api/v1/links/{shortCode}/analytics.
// The days query parameter bounds the reporting window and is clamped
// to [1, 365], defaulting to 30.
func (h *AnalyticsHandler) LinkAnalytics(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	days := defaultAnalyticsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DAYS", "days must be an integer")
			return
		}
		days = parsed
	}
	if days < 1 {
		days = 1
	}
	if days > maxAnalyticsDays {
		days = maxAnalyticsDays
	}

	link, err := h.svc.GetLink(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "link not found")
			return
		}
		h.logger.Error("analytics link lookup failed", "short_code", shortCode, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
		return
	}

	stats, err := h.store.GetLinkAnalytics(r.Context(), link.ID, days)
	if err != nil {
		h.logger.Error("analytics query failed", "short_code", shortCode, "link_id", link.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAnalyticsResponse(shortCode, days, stats))
}
