// Package dedupe drops articles whose titles repeat one already accepted in the same run.
package dedupe

import (
	"strings"
	"unicode"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
)

// Normalize lowercases title and keeps only letters and digits, so punctuation, spacing
// and case never distinguish two headlines. Arabic and other scripts keep their letters.
func Normalize(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsDuplicate reports whether either normalized title contains the other. Titles that
// normalize to nothing never match.
func IsDuplicate(a, b string) bool {
	return containsEither(Normalize(a), Normalize(b))
}

func containsEither(na, nb string) bool {
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// Set accumulates accepted articles. It is not safe for concurrent use; the orchestrator
// funnels every source through a single Set.
type Set struct {
	kept       []domain.Article
	normalized []string
}

// NewSet returns an empty set sized for n articles.
func NewSet(n int) *Set {
	return &Set{
		kept:       make([]domain.Article, 0, n),
		normalized: make([]string, 0, n),
	}
}

// Add keeps a when its title does not duplicate an accepted one. The first article seen
// wins.
func (s *Set) Add(a domain.Article) bool {
	na := Normalize(a.Title)
	for _, seen := range s.normalized {
		if containsEither(na, seen) {
			return false
		}
	}
	s.kept = append(s.kept, a)
	s.normalized = append(s.normalized, na)
	return true
}

// Len returns the number of accepted articles.
func (s *Set) Len() int { return len(s.kept) }

// Articles returns the accepted articles in acceptance order.
func (s *Set) Articles() []domain.Article {
	return append([]domain.Article(nil), s.kept...)
}

// Filter returns articles with duplicates removed, preserving order.
func Filter(articles []domain.Article) []domain.Article {
	s := NewSet(len(articles))
	for _, a := range articles {
		s.Add(a)
	}
	return s.Articles()
}
