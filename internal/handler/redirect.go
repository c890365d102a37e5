package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dynalinks/dynalinks/internal/analytics"
	"github.com/dynalinks/dynalinks/internal/geoip"
	"github.com/dynalinks/dynalinks/internal/middleware"
	"github.com/dynalinks/dynalinks/internal/service"
)

// ClickPublisher enqueues click events without blocking the caller.
// *analytics.Publisher is the production implementation.
type ClickPublisher interface {
	PublishAsync(event analytics.ClickEventPayload)
}

// RedirectHandler resolves short codes and issues redirects.
type RedirectHandler struct {
	svc        *service.LinkService
	publisher  ClickPublisher
	geo        geoip.Resolver
	hashSecret string
	logger     *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler. The publisher may
// be nil when analytics is disabled.
func NewRedirectHandler(svc *service.LinkService, publisher ClickPublisher, geo geoip.Resolver, hashSecret string, logger *slog.Logger) *RedirectHandler {
	if geo == nil {
		geo = geoip.NoopResolver{}
	}
	return &RedirectHandler{
		svc:        svc,
		publisher:  publisher,
		geo:        geo,
		hashSecret: hashSecret,
		logger:     logger.With("component", "handler.redirect"),
	}
}

// Redirect handles GET /{shortCode}.
//
// Inactive and expired links return 410 Gone. Both outcomes still
// record a click event, tagged with the redirect type, so operators
// can see traffic arriving at dead links.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	userAgent := r.UserAgent()

	resolution, err := h.svc.Resolve(r.Context(), shortCode, userAgent)
	if err != nil {
		h.handleResolveError(w, r, resolution, err)
		return
	}

	h.recordClick(r, resolution)

	// Redirect targets are per-device; shared caches must not reuse them.
	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, resolution.TargetURL, http.StatusFound)
}

// handleResolveError maps resolution failures to HTTP responses.
func (h *RedirectHandler) handleResolveError(w http.ResponseWriter, r *http.Request, resolution *service.Resolution, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "link not found")
	case errors.Is(err, service.ErrLinkInactive):
		h.recordClick(r, resolution)
		writeError(w, http.StatusGone, "LINK_INACTIVE", "link has been deactivated")
	case errors.Is(err, service.ErrLinkExpired):
		h.recordClick(r, resolution)
		writeError(w, http.StatusGone, "LINK_EXPIRED", "link has expired")
	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Error("resolution unavailable", "short_code", chi.URLParam(r, "shortCode"), "error", err)
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "link resolution temporarily unavailable")
	default:
		h.logger.Error("redirect failed", "short_code", chi.URLParam(r, "shortCode"), "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
	}
}

// recordClick publishes a click event for the resolution, if analytics
// is enabled and the link is known. Never blocks the response.
func (h *RedirectHandler) recordClick(r *http.Request, resolution *service.Resolution) {
	if h.publisher == nil || resolution == nil || resolution.Link == nil {
		return
	}

	location, _ := h.geo.Lookup(middleware.ClientIP(r))

	h.publisher.PublishAsync(analytics.ClickEventPayload{
		ShortCode:    resolution.Link.ShortCode,
		LinkID:       resolution.Link.ID,
		IPHash:       analytics.HashIP(middleware.ClientIP(r), h.hashSecret),
		UserAgent:    analytics.TruncateUserAgent(r.UserAgent()),
		Referer:      analytics.SanitizeReferrer(r.Referer()),
		Platform:     string(resolution.Classification.Platform),
		DeviceType:   resolution.Classification.DeviceType,
		Browser:      resolution.Classification.Browser,
		OS:           resolution.Classification.OS,
		Country:      location.Country,
		Region:       location.Region,
		City:         location.City,
		RedirectedTo: resolution.TargetURL,
		RedirectType: string(resolution.RedirectType),
		ClickedAt:    time.Now().UTC().UnixMilli(),
	})
}
