package images

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/pkg/httpclient"
)

// DefaultMaxBodyBytes caps how much of an article page is parsed.
const DefaultMaxBodyBytes = 1 << 20

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var pageHeaders = map[string]string{
	"User-Agent":      browserUserAgent,
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7,ar;q=0.6",
}

// Resolver fetches article pages and runs the rule table against them.
type Resolver struct {
	client       httpclient.Client
	rules        *RuleSet
	log          logger.Logger
	maxBodyBytes int
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBodyBytes = n
		}
	}
}

// WithRuleSet overrides DefaultRuleSet.
func WithRuleSet(rs *RuleSet) ResolverOption {
	return func(r *Resolver) {
		if rs != nil {
			r.rules = rs
		}
	}
}

// NewResolver builds a resolver on top of client.
func NewResolver(client httpclient.Client, log logger.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:       client,
		rules:        DefaultRuleSet(),
		log:          logger.Ensure(log),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches articleURL and returns the first image the rules locate. Every failure
// (bad URL, transport, non-200, unparsable markup) yields MethodNone.
func (r *Resolver) Resolve(ctx context.Context, articleURL string) ExtractionResult {
	pageURL, err := url.Parse(strings.TrimSpace(articleURL))
	if err != nil || !pageURL.IsAbs() || pageURL.Host == "" {
		r.log.Debug("image resolve skipped: invalid url", zap.String("url", articleURL))
		return none()
	}

	resp, err := r.client.Get(ctx, pageURL.String(), pageHeaders)
	if err != nil {
		r.log.Debug("image resolve fetch failed", zap.String("url", articleURL), zap.Error(err))
		return none()
	}
	if resp.StatusCode() != http.StatusOK {
		r.log.Debug("image resolve non-200", zap.String("url", articleURL), zap.Int("status", resp.StatusCode()))
		return none()
	}

	body := resp.Body()
	if len(body) > r.maxBodyBytes {
		body = body[:r.maxBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		r.log.Debug("image resolve parse failed", zap.String("url", articleURL), zap.Error(err))
		return none()
	}

	res := r.rules.Extract(doc, pageURL)
	r.log.DebugObj("image resolved", "image_resolution", map[string]any{
		"url":    articleURL,
		"method": string(res.Method),
		"image":  res.ImageURL,
	})
	return res
}
