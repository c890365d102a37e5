package analytics

import (
	"fmt"

	"github.com/dynalinks/dynalinks/internal/model"
)

const (
	minShortCodeLength = 3
	maxShortCodeLength = 32
)

// ValidateClickEventPayload validates click event payload fields
// before they reach the database.
func ValidateClickEventPayload(payload ClickEventPayload) error {
	if payload.ShortCode == "" {
		return fmt.Errorf("short_code is required")
	}
	if len(payload.ShortCode) < minShortCodeLength || len(payload.ShortCode) > maxShortCodeLength {
		return fmt.Errorf("short_code length out of bounds")
	}
	if payload.LinkID == "" {
		return fmt.Errorf("link_id is required")
	}
	if payload.IPHash == "" {
		return fmt.Errorf("ip_hash is required")
	}
	if len(payload.IPHash) != ipHashLength || !isHex(payload.IPHash) {
		return fmt.Errorf("ip_hash must be %d hex chars", ipHashLength)
	}
	if !model.RedirectType(payload.RedirectType).IsValid() {
		return fmt.Errorf("unknown redirect_type %q", payload.RedirectType)
	}
	if payload.ClickedAt <= 0 {
		return fmt.Errorf("clicked_at must be set")
	}
	if len(payload.Referer) > maxMetaLength {
		return fmt.Errorf("referer too long")
	}
	if len(payload.UserAgent) > maxMetaLength {
		return fmt.Errorf("user_agent too long")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
