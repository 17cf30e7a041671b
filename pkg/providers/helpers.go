package providers

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	excerptRunes  = 150
	excerptSuffix = "..."
)

// responseSnippet returns a truncated snippet of the response body for logging.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.ToValidUTF8(strings.TrimSpace(string(body)), "\uFFFD")
	if s == "" {
		return "<empty>"
	}
	if len(s) > maxLen {
		s = s[:maxLen]
		// Only the rune split by the cut can be invalid here.
		for len(s) > 0 && !utf8.ValidString(s) {
			s = s[:len(s)-1]
		}
		return s + "..."
	}
	return s
}

// plainText strips markup from an HTML fragment and collapses whitespace.
func plainText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	text := fragment
	if strings.ContainsAny(fragment, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// buildExcerpt keeps the first excerptRunes characters of the plain-text snippet and
// marks the cut with an ellipsis.
func buildExcerpt(fragment string) string {
	text := plainText(fragment)
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) > excerptRunes {
		text = strings.TrimSpace(string(runes[:excerptRunes]))
	}
	return text + excerptSuffix
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
