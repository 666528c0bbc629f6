package internal

import "strings"

// DeviceLabelFromUserAgent derives a coarse human-readable label from a
// User-Agent header for session listings and audit trails. It is purely
// cosmetic and never used in authorization decisions.
func DeviceLabelFromUserAgent(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "unknown"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "ios"
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "windows"):
		return "windows"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		return "macos"
	case strings.Contains(ua, "linux"):
		return "linux"
	case strings.Contains(ua, "curl"), strings.Contains(ua, "wget"), strings.Contains(ua, "httpie"):
		return "cli"
	case strings.Contains(ua, "bot"), strings.Contains(ua, "spider"), strings.Contains(ua, "crawler"):
		return "bot"
	default:
		return "other"
	}
}
