package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dynalinks/dynalinks/internal/handler/dto"
	"github.com/dynalinks/dynalinks/internal/service"
)

// LinkHandler handles link management endpoints.
type LinkHandler struct {
	svc     *service.LinkService
	baseURL string
	logger  *slog.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc *service.LinkService, baseURL string, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger.With("component", "handler.link"),
	}
}

// Create handles POST /api/v1/links.
// A custom code may come from the body or the custom_code query
// parameter; the query parameter wins when both are present.
func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}

	customCode := req.ShortCode
	if qc := r.URL.Query().Get("custom_code"); qc != "" {
		customCode = qc
	}

	link, err := h.svc.CreateLink(r.Context(), service.CreateLinkInput{
		CustomCode:        customCode,
		IOSURL:            req.IOSURL,
		AndroidURL:        req.AndroidURL,
		DesktopURL:        req.DesktopURL,
		FallbackURL:       req.FallbackURL,
		Title:             req.Title,
		Description:       req.Description,
		ImageURL:          req.ImageURL,
		SocialTitle:       req.SocialTitle,
		SocialDescription: req.SocialDescription,
		SocialImageURL:    req.SocialImageURL,
		CustomParams:      req.CustomParams,
		ExpiresAt:         req.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToLinkResponse(link, h.baseURL))
}

// List handles GET /api/v1/links.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	activeOnly := query.Get("active_only") == "true"
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	links, err := h.svc.ListLinks(r.Context(), activeOnly, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkListResponse(links, h.baseURL, limit, offset))
}

// Get handles GET /api/v1/links/{shortCode}.
func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.svc.GetLink(r.Context(), shortCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.baseURL))
}

// Update handles PATCH /api/v1/links/{shortCode}.
func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	var req dto.UpdateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return
	}

	link, err := h.svc.UpdateLink(r.Context(), shortCode, service.UpdateLinkInput{
		IOSURL:            req.IOSURL,
		AndroidURL:        req.AndroidURL,
		DesktopURL:        req.DesktopURL,
		FallbackURL:       req.FallbackURL,
		Title:             req.Title,
		Description:       req.Description,
		ImageURL:          req.ImageURL,
		SocialTitle:       req.SocialTitle,
		SocialDescription: req.SocialDescription,
		SocialImageURL:    req.SocialImageURL,
		CustomParams:      req.CustomParams,
		IsActive:          req.IsActive,
		ExpiresAt:         req.ExpiresAt,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.baseURL))
}

// Deactivate handles DELETE /api/v1/links/{shortCode}.
// Returns the now-inactive link rather than 204, so callers can
// confirm the final state.
func (h *LinkHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	link, err := h.svc.Deactivate(r.Context(), shortCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.baseURL))
}

// writeServiceError maps service errors to HTTP responses.
func (h *LinkHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "link not found")
	case errors.Is(err, service.ErrCodeTaken):
		writeError(w, http.StatusConflict, "CODE_TAKEN", "short code already in use")
	case errors.Is(err, service.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "INVALID_CODE", err.Error())
	case errors.Is(err, service.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
	case errors.Is(err, service.ErrExpiresInPast):
		writeError(w, http.StatusBadRequest, "INVALID_EXPIRY", "expiry must be in the future")
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		h.logger.Error("code generation exhausted", "error", err)
		writeError(w, http.StatusServiceUnavailable, "CODE_GENERATION_FAILED", "could not allocate a short code")
	default:
		h.logger.Error("link operation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
	}
}
