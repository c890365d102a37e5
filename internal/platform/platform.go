// Package platform classifies clients from their User-Agent and picks
// the redirect target for a resolved link.
package platform

import (
	"net/url"
	"strings"

	"github.com/dynalinks/dynalinks/internal/model"
)

// Platform is the coarse client platform used for target dispatch.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformDesktop Platform = "desktop"
)

// Classification is the full client fingerprint derived from the
// User-Agent header. Platform drives redirect dispatch; the remaining
// fields only enrich click events.
type Classification struct {
	Platform   Platform
	DeviceType string // mobile, tablet, desktop, bot
	Browser    string
	OS         string
}

// Classify inspects a raw User-Agent string and returns the client
// classification. An empty or unrecognized UA classifies as desktop.
func Classify(userAgent string) Classification {
	ua := strings.ToLower(userAgent)

	c := Classification{
		Platform:   PlatformDesktop,
		DeviceType: "desktop",
		Browser:    detectBrowser(ua),
		OS:         detectOS(ua),
	}

	switch {
	case strings.Contains(ua, "ipad"):
		c.Platform = PlatformIOS
		c.DeviceType = "tablet"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipod"):
		c.Platform = PlatformIOS
		c.DeviceType = "mobile"
	case strings.Contains(ua, "android"):
		c.Platform = PlatformAndroid
		if strings.Contains(ua, "mobile") {
			c.DeviceType = "mobile"
		} else {
			c.DeviceType = "tablet"
		}
	case isBot(ua):
		c.DeviceType = "bot"
	}

	return c
}

func isBot(ua string) bool {
	for _, marker := range []string{"bot", "crawler", "spider", "curl/", "wget/"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

func detectBrowser(ua string) string {
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "edg/"):
		return "edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "samsungbrowser"):
		return "samsung"
	case strings.Contains(ua, "firefox/"):
		return "firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "chrome"
	case strings.Contains(ua, "safari/"):
		return "safari"
	default:
		return "unknown"
	}
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return "ios"
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "windows"):
		return "windows"
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macintosh"):
		return "macos"
	case strings.Contains(ua, "linux"):
		return "linux"
	default:
		return "unknown"
	}
}

// ChooseTarget picks the redirect destination for a link given the
// client platform. Platform targets fall through to the fallback URL
// when the link has no URL for that platform. Desktop clients prefer
// the desktop URL over the fallback.
func ChooseTarget(link *model.Link, p Platform) (string, model.RedirectType) {
	switch p {
	case PlatformIOS:
		if link.IOSURL != nil && *link.IOSURL != "" {
			return *link.IOSURL, model.RedirectIOS
		}
	case PlatformAndroid:
		if link.AndroidURL != nil && *link.AndroidURL != "" {
			return *link.AndroidURL, model.RedirectAndroid
		}
	case PlatformDesktop:
		if link.DesktopURL != nil && *link.DesktopURL != "" {
			return *link.DesktopURL, model.RedirectDesktop
		}
	}
	return link.FallbackURL, model.RedirectFallback
}

// AppendParams merges a link's custom parameters into the target URL's
// query string. Existing query keys on the target are preserved; custom
// parameters never overwrite them. Non-string values are skipped. If
// target does not parse as a URL it is returned unchanged.
func AppendParams(target string, params map[string]any) string {
	if len(params) == 0 {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}

	q := u.Query()
	for key, value := range params {
		if q.Has(key) {
			continue
		}
		if s, ok := value.(string); ok {
			q.Set(key, s)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}
