package providers

import (
	"context"
	"strings"
	"time"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/pkg/httpclient"
)

// Supported provider transport types.
const (
	ProviderTypeFeed        = "feed"
	ProviderTypeHTMLListing = "html-listing"
)

// DefaultUserAgent is sent to every outlet unless a provider overrides it; several of
// them reject empty or library user agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// HTTPClient is the client contract used by provider fetchers.
type HTTPClient = httpclient.Client

// Provider describes one news outlet.
type Provider struct {
	ID        string            `json:"id" yaml:"id"`
	Name      string            `json:"name" yaml:"name"`
	Type      string            `json:"type" yaml:"type"`
	SourceURL string            `json:"source_url" yaml:"source_url"`
	Language  domain.Language   `json:"language" yaml:"language"`
	Encoding  string            `json:"encoding" yaml:"encoding"`
	UserAgent string            `json:"user_agent" yaml:"user_agent"`
	Headers   map[string]string `json:"headers" yaml:"headers"`

	// ResolveImages sends articles without a usable feed image to the HTML image resolver.
	ResolveImages bool `json:"resolve_images" yaml:"resolve_images"`
	// Excerpt replaces the per-item excerpt when set.
	Excerpt string `json:"excerpt" yaml:"excerpt"`

	Listing *ListingConfig `json:"listing" yaml:"listing"`

	RequestDelayMS int `json:"request_delay_ms" yaml:"request_delay_ms"`
}

// ListingConfig describes the fixed heading-and-link layout of an HTML listing page.
type ListingConfig struct {
	ItemSelector string `json:"item_selector" yaml:"item_selector"`
	LinkSelector string `json:"link_selector" yaml:"link_selector"`
	Limit        int    `json:"limit" yaml:"limit"`
}

// RequestDelay returns the minimum spacing between image resolutions for this provider.
// Zero means the enricher default applies.
func (p Provider) RequestDelay() time.Duration {
	if p.RequestDelayMS <= 0 {
		return 0
	}
	return time.Duration(p.RequestDelayMS) * time.Millisecond
}

// IsFeed reports whether the provider exposes a syndication feed.
func (p Provider) IsFeed() bool {
	return strings.EqualFold(p.Type, ProviderTypeFeed)
}

// Headers builds the request headers for a provider.
func Headers(p Provider) map[string]string {
	headers := map[string]string{
		"User-Agent": DefaultUserAgent,
	}
	if ua := strings.TrimSpace(p.UserAgent); ua != "" {
		headers["User-Agent"] = ua
	}
	for k, v := range p.Headers {
		headers[k] = v
	}
	return headers
}

// Fetcher turns one provider into articles.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, cfg Provider) ([]domain.Article, error)
}

// FetcherRegistry selects the fetcher for a provider.
type FetcherRegistry interface {
	FetcherFor(cfg Provider) (Fetcher, error)
}
