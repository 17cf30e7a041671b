package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"strings"
	"time"
)

// Language is the editorial language of an article.
type Language string

const (
	LanguageFR Language = "fr"
	LanguageAR Language = "ar"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == LanguageFR || l == LanguageAR
}

// ParseLanguage normalizes raw into a Language, defaulting to French.
func ParseLanguage(raw string) Language {
	if l := Language(strings.ToLower(strings.TrimSpace(raw))); l.Valid() {
		return l
	}
	return LanguageFR
}

// UntitledPlaceholder returns the localized title used when a source omits one.
func (l Language) UntitledPlaceholder() string {
	if l == LanguageAR {
		return "بدون عنوان"
	}
	return "Sans titre"
}

// Article is the canonical record produced by one ingestion run.
type Article struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"provider_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Language    Language  `json:"language"`
	PublishedAt time.Time `json:"published_at"`
	Excerpt     string    `json:"excerpt,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    string    `json:"category,omitempty"`
}

// WithImage returns a copy of the article carrying imageURL.
func (a Article) WithImage(imageURL string) Article {
	a.ImageURL = imageURL
	return a
}

// HasImage reports whether an image URL has already been resolved.
func (a Article) HasImage() bool {
	return strings.TrimSpace(a.ImageURL) != ""
}

// ArticleStub is a listing entry before it is turned into an Article.
type ArticleStub struct {
	Title string
	Link  string
}

// RunSummary is what a scheduled trigger reports back.
type RunSummary struct {
	Scraped int `json:"scraped"`
	Saved   int `json:"saved"`
}

// ArticleID derives the stable article id from its link.
func ArticleID(link string) string {
	sum := sha1.Sum([]byte(link))
	return hex.EncodeToString(sum[:])
}
