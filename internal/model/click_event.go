package model

import "time"

// RedirectType identifies which dispatch branch fired for a resolution.
type RedirectType string

const (
	RedirectIOS      RedirectType = "ios"
	RedirectAndroid  RedirectType = "android"
	RedirectDesktop  RedirectType = "desktop"
	RedirectFallback RedirectType = "fallback"

	// Terminal non-redirect outcomes, recorded for observability.
	RedirectInactive RedirectType = "inactive"
	RedirectExpired  RedirectType = "expired"
)

// IsValid checks if the redirect type is one of the known branches.
func (r RedirectType) IsValid() bool {
	switch r {
	case RedirectIOS, RedirectAndroid, RedirectDesktop, RedirectFallback,
		RedirectInactive, RedirectExpired:
		return true
	}
	return false
}

// ClickEvent represents a single resolution attempt against a link.
// Events are append-only; the engine never updates or deletes them.
type ClickEvent struct {
	ID      string `json:"id"`       // ULID (time-sortable)
	EventID string `json:"event_id"` // Idempotency key (Redis stream ID)

	// Link reference, short code denormalized so events survive
	// link deactivation.
	LinkID    string `json:"link_id"`
	ShortCode string `json:"short_code"`

	// Request metadata. IPHash is a salted one-way hash; the raw
	// address is never stored.
	IPHash    string `json:"ip_hash"`
	UserAgent string `json:"user_agent,omitempty"`
	Referer   string `json:"referer,omitempty"`

	// Derived classification (analytics only, never redirect choice).
	Platform   string `json:"platform,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`

	// Derived geolocation; empty when no resolver is configured.
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`

	RedirectedTo string       `json:"redirected_to,omitempty"`
	RedirectType RedirectType `json:"redirect_type"`

	ClickedAt time.Time `json:"clicked_at"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkAnalytics aggregates the click event stream for one short code.
type LinkAnalytics struct {
	TotalClicks      int64            `json:"total_clicks"`
	UniqueClicks     int64            `json:"unique_clicks"`
	ClicksByPlatform map[string]int64 `json:"clicks_by_platform"`
	ClicksByCountry  map[string]int64 `json:"clicks_by_country"`
	ClicksByDate     map[string]int64 `json:"clicks_by_date"`
	TopReferrers     map[string]int64 `json:"top_referrers"`
}
