// Package model defines domain entities for the application.
package model

import "time"

// Link represents a dynamic link with platform-specific redirect targets.
// FallbackURL is mandatory and is the terminal dispatch branch; the
// platform-specific targets are optional.
type Link struct {
	ID        string `json:"id"`
	ShortCode string `json:"short_code"`

	// Redirect targets. iOS and Android URLs may be deep links
	// (custom schemes); desktop and fallback must be web URLs.
	IOSURL      *string `json:"ios_url,omitempty"`
	AndroidURL  *string `json:"android_url,omitempty"`
	DesktopURL  *string `json:"desktop_url,omitempty"`
	FallbackURL string  `json:"fallback_url"`

	// Presentation metadata.
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`

	// Social preview metadata, independent of the primary metadata.
	// Consumed by external link-preview rendering only.
	SocialTitle       *string `json:"social_title,omitempty"`
	SocialDescription *string `json:"social_description,omitempty"`
	SocialImageURL    *string `json:"social_image_url,omitempty"`

	// Caller-defined key-value payload, opaque to the engine.
	// Appended as query parameters to the chosen redirect target.
	CustomParams map[string]any `json:"custom_parameters,omitempty"`

	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsExpired reports whether the link has expired at the given instant.
// The boundary is inclusive: a link whose expires_at equals now is expired.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// IsResolvable reports whether the link can serve a redirect at the given
// instant. Re-evaluated on every lookup, never cached as a boolean.
func (l *Link) IsResolvable(now time.Time) bool {
	return l.IsActive && !l.IsExpired(now)
}
