// Package images locates a representative image for an article page.
package images

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
)

const minImageURLLength = 10

// invalidImagePatterns mark site chrome rather than article images.
var invalidImagePatterns = []string{
	"default-thumb",
	"placeholder",
	"logo",
	"avatar",
	"icon",
	"banner",
	"no-image",
	"missing",
}

var imageExtension = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif)(\?.*)?$`)

// cdnPathShapes are accepted without a file extension.
var cdnPathShapes = []string{
	"cloudinary.com",
	"wp-content/uploads",
	"googleusercontent.com",
	"/sites/default/files/",
}

// Check returns nil when raw is an acceptable article image URL, and an error wrapping
// domain.ErrValidationRejected describing the reason otherwise.
func Check(raw string) error {
	raw = strings.TrimSpace(raw)
	if len(raw) < minImageURLLength {
		return fmt.Errorf("%w: url too short", domain.ErrValidationRejected)
	}

	lower := strings.ToLower(raw)
	for _, pattern := range invalidImagePatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: matches %q", domain.ErrValidationRejected, pattern)
		}
	}

	if imageExtension.MatchString(raw) {
		return nil
	}
	for _, shape := range cdnPathShapes {
		if strings.Contains(lower, shape) {
			return nil
		}
	}
	return fmt.Errorf("%w: no image extension or known cdn path", domain.ErrValidationRejected)
}

// IsValidImageURL reports whether raw passes the validity filter.
func IsValidImageURL(raw string) bool {
	return Check(raw) == nil
}

// ResolveURL resolves a possibly relative URL against a base URL.
func ResolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return parsed.String()
	}

	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil || !baseURL.IsAbs() {
		return raw
	}

	return baseURL.ResolveReference(parsed).String()
}
