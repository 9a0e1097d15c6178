package common

import (
	"regexp"
	"strings"
)

var (
	slugInvalidPattern = regexp.MustCompile(`[^a-z0-9]+`)
	schemePattern      = regexp.MustCompile(`(?i)^https?://`)
)

// Slugify derives a stable, URL-safe identifier from a display name.
// Lowercase, runs of non-alphanumerics collapse to a single hyphen,
// leading/trailing hyphens are trimmed. Idempotent.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalidPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// EnforceHTTPS normalizes a URL to the https scheme regardless of what the
// generator returned. Idempotent.
func EnforceHTTPS(rawURL string) string {
	cleaned := schemePattern.ReplaceAllString(strings.TrimSpace(rawURL), "")
	return "https://" + cleaned
}
