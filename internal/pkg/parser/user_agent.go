package parser

import "strings"

// ParseUserAgent extracts a coarse operating system and browser from a
// User-Agent header. Unrecognized values come back as "Unknown".
func ParseUserAgent(ua string) (os, browser string) {
	uaLower := strings.ToLower(ua)

	switch {
	case strings.Contains(uaLower, "iphone"), strings.Contains(uaLower, "ipad"):
		os = "iOS"
	case strings.Contains(uaLower, "android"):
		os = "Android"
	case strings.Contains(uaLower, "windows"):
		os = "Windows"
	case strings.Contains(uaLower, "mac os"):
		os = "macOS"
	case strings.Contains(uaLower, "linux"):
		os = "Linux"
	default:
		os = "Unknown"
	}

	// Order matters: Edge and Chrome both claim Safari, Edge also claims Chrome.
	switch {
	case strings.Contains(uaLower, "edg"):
		browser = "Edge"
	case strings.Contains(uaLower, "firefox"):
		browser = "Firefox"
	case strings.Contains(uaLower, "chrome"):
		browser = "Chrome"
	case strings.Contains(uaLower, "safari"):
		browser = "Safari"
	case strings.Contains(uaLower, "curl"), strings.Contains(uaLower, "go-http-client"):
		browser = "CLI"
	default:
		browser = "Unknown"
	}

	return os, browser
}

// Describe renders a User-Agent as "Browser on OS" for audit entries.
func Describe(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return ""
	}
	os, browser := ParseUserAgent(ua)
	if os == "Unknown" {
		return browser
	}
	return browser + " on " + os
}
