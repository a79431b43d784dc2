package services

import "strings"

// Device buckets reported by analytics
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

var botMarkers = []string{"bot", "crawler", "spider", "slurp", "curl/", "wget/", "python-requests", "headless"}

// deviceType classifies a user agent string
func deviceType(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return DeviceUnknown
	}
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			return DeviceBot
		}
	}
	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"),
		strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return DeviceTablet
	case strings.Contains(ua, "mobi"), strings.Contains(ua, "iphone"), strings.Contains(ua, "android"):
		return DeviceMobile
	case strings.Contains(ua, "windows"), strings.Contains(ua, "macintosh"),
		strings.Contains(ua, "x11"), strings.Contains(ua, "cros"), strings.Contains(ua, "linux"):
		return DeviceDesktop
	}
	return DeviceUnknown
}

// isPWAAccess guesses whether a request came from an installed web app:
// Android webviews carry "wv", standalone iOS apps drop "Safari".
func isPWAAccess(userAgent string) bool {
	if strings.Contains(userAgent, "wv") {
		return true
	}
	return strings.Contains(userAgent, "Mobile") && !strings.Contains(userAgent, "Safari")
}
