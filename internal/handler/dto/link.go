// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/dynalinks/dynalinks/internal/model"
)

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	ShortCode string `json:"short_code,omitempty"`

	IOSURL      *string `json:"ios_url,omitempty"`
	AndroidURL  *string `json:"android_url,omitempty"`
	DesktopURL  *string `json:"desktop_url,omitempty"`
	FallbackURL string  `json:"fallback_url"`

	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`

	SocialTitle       *string `json:"social_title,omitempty"`
	SocialDescription *string `json:"social_description,omitempty"`
	SocialImageURL    *string `json:"social_image_url,omitempty"`

	CustomParams map[string]any `json:"custom_parameters,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
}

// UpdateLinkRequest represents a partial update. Absent fields are
// left unchanged; explicit nulls clear the field.
type UpdateLinkRequest struct {
	IOSURL      model.Optional[string] `json:"ios_url"`
	AndroidURL  model.Optional[string] `json:"android_url"`
	DesktopURL  model.Optional[string] `json:"desktop_url"`
	FallbackURL model.Optional[string] `json:"fallback_url"`

	Title       model.Optional[string] `json:"title"`
	Description model.Optional[string] `json:"description"`
	ImageURL    model.Optional[string] `json:"image_url"`

	SocialTitle       model.Optional[string] `json:"social_title"`
	SocialDescription model.Optional[string] `json:"social_description"`
	SocialImageURL    model.Optional[string] `json:"social_image_url"`

	CustomParams model.Optional[map[string]any] `json:"custom_parameters"`
	IsActive     model.Optional[bool]           `json:"is_active"`
	ExpiresAt    model.Optional[time.Time]      `json:"expires_at"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	ID        string `json:"id"`
	ShortCode string `json:"short_code"`
	ShortURL  string `json:"short_url"`

	IOSURL      *string `json:"ios_url,omitempty"`
	AndroidURL  *string `json:"android_url,omitempty"`
	DesktopURL  *string `json:"desktop_url,omitempty"`
	FallbackURL string  `json:"fallback_url"`

	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`

	SocialTitle       *string `json:"social_title,omitempty"`
	SocialDescription *string `json:"social_description,omitempty"`
	SocialImageURL    *string `json:"social_image_url,omitempty"`

	CustomParams map[string]any `json:"custom_parameters,omitempty"`
	IsActive     bool           `json:"is_active"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// LinkListResponse represents a page of links.
type LinkListResponse struct {
	Data   []LinkResponse `json:"data"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// AnalyticsResponse represents aggregated click analytics for a link.
type AnalyticsResponse struct {
	ShortCode        string           `json:"short_code"`
	Days             int              `json:"days"`
	TotalClicks      int64            `json:"total_clicks"`
	UniqueClicks     int64            `json:"unique_clicks"`
	ClicksByPlatform map[string]int64 `json:"clicks_by_platform"`
	ClicksByCountry  map[string]int64 `json:"clicks_by_country"`
	ClicksByDate     map[string]int64 `json:"clicks_by_date"`
	TopReferrers     map[string]int64 `json:"top_referrers"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToLinkResponse converts a Link model to LinkResponse DTO.
func ToLinkResponse(link *model.Link, baseURL string) *LinkResponse {
	return &LinkResponse{
		ID:                link.ID,
		ShortCode:         link.ShortCode,
		ShortURL:          baseURL + "/" + link.ShortCode,
		IOSURL:            link.IOSURL,
		AndroidURL:        link.AndroidURL,
		DesktopURL:        link.DesktopURL,
		FallbackURL:       link.FallbackURL,
		Title:             link.Title,
		Description:       link.Description,
		ImageURL:          link.ImageURL,
		SocialTitle:       link.SocialTitle,
		SocialDescription: link.SocialDescription,
		SocialImageURL:    link.SocialImageURL,
		CustomParams:      link.CustomParams,
		IsActive:          link.IsActive,
		ExpiresAt:         link.ExpiresAt,
		CreatedAt:         link.CreatedAt,
		UpdatedAt:         link.UpdatedAt,
	}
}

// ToLinkListResponse converts a slice of links to a list response.
func ToLinkListResponse(links []*model.Link, baseURL string, limit, offset int) *LinkListResponse {
	responses := make([]LinkResponse, len(links))
	for i, link := range links {
		responses[i] = *ToLinkResponse(link, baseURL)
	}
	return &LinkListResponse{
		Data:   responses,
		Limit:  limit,
		Offset: offset,
	}
}

// ToAnalyticsResponse converts aggregated analytics to a response.
func ToAnalyticsResponse(shortCode string, days int, a *model.LinkAnalytics) *AnalyticsResponse {
	return &AnalyticsResponse{
		ShortCode:        shortCode,
		Days:             days,
		TotalClicks:      a.TotalClicks,
		UniqueClicks:     a.UniqueClicks,
		ClicksByPlatform: a.ClicksByPlatform,
		ClicksByCountry:  a.ClicksByCountry,
		ClicksByDate:     a.ClicksByDate,
		TopReferrers:     a.TopReferrers,
	}
}
