package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/pkg/httpclient"
)

// DefaultFeedMinBytes is the shortest body still treated as a feed document.
const DefaultFeedMinBytes = 50

// FetchErrorKind classifies feed fetch failures.
type FetchErrorKind int

const (
	FetchTransport FetchErrorKind = iota + 1
	FetchTimeout
	FetchEmptyOrInvalid
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTransport:
		return "transport"
	case FetchTimeout:
		return "timeout"
	case FetchEmptyOrInvalid:
		return "empty-or-invalid"
	default:
		return "unknown"
	}
}

// FetchError reports why a feed body could not be obtained. It matches domain.ErrTransport.
type FetchError struct {
	ProviderID string
	Kind       FetchErrorKind
	Status     int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch feed %s: %s", e.ProviderID, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrTransport}
	}
	return []error{domain.ErrTransport, e.Err}
}

// ParseError reports a feed body that did not parse. It matches domain.ErrFormat.
type ParseError struct {
	ProviderID string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %s: %v", e.ProviderID, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{domain.ErrFormat, e.Err}
}

// FeedFetcher downloads syndication feeds and hands them to the normalizer.
type FeedFetcher struct {
	client     HTTPClient
	minBytes   int
	normalizer *FeedNormalizer
	log        logger.Logger
}

// NewFeedFetcher builds the fetcher registered for ProviderTypeFeed.
func NewFeedFetcher(client HTTPClient, opts Options) *FeedFetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	minBytes := opts.FeedMinBytes
	if minBytes <= 0 {
		minBytes = DefaultFeedMinBytes
	}
	return &FeedFetcher{
		client:     client,
		minBytes:   minBytes,
		normalizer: NewFeedNormalizer(opts.Clock),
		log:        logger.Ensure(opts.Log),
	}
}

func (f *FeedFetcher) ID() string { return ProviderTypeFeed }

// Fetch downloads and normalizes one feed.
func (f *FeedFetcher) Fetch(ctx context.Context, cfg Provider) ([]domain.Article, error) {
	raw, err := f.FetchRaw(ctx, cfg)
	if err != nil {
		return nil, err
	}
	articles, err := f.normalizer.Normalize(raw, cfg)
	if err != nil {
		return nil, err
	}
	f.log.Debug("feed normalized", zap.String("provider", cfg.ID), zap.Int("articles", len(articles)))
	return articles, nil
}

// FetchRaw downloads the feed body and returns it as UTF-8 text, decoding the provider's
// declared legacy encoding when one is set.
func (f *FeedFetcher) FetchRaw(ctx context.Context, cfg Provider) (string, error) {
	resp, err := f.client.Get(ctx, cfg.SourceURL, f.headers(cfg))
	if err != nil {
		kind := FetchTransport
		if httpclient.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = FetchTimeout
		}
		return "", &FetchError{ProviderID: cfg.ID, Kind: kind, Err: err}
	}

	body := resp.Body()
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return "", &FetchError{
			ProviderID: cfg.ID,
			Kind:       FetchEmptyOrInvalid,
			Status:     resp.StatusCode(),
			Err:        fmt.Errorf("body: %s", responseSnippet(body)),
		}
	}

	text, err := decodeBody(body, cfg.Encoding)
	if err != nil {
		return "", &FetchError{ProviderID: cfg.ID, Kind: FetchEmptyOrInvalid, Status: resp.StatusCode(), Err: err}
	}
	if len(text) < f.minBytes {
		return "", &FetchError{
			ProviderID: cfg.ID,
			Kind:       FetchEmptyOrInvalid,
			Status:     resp.StatusCode(),
			Err:        fmt.Errorf("body has %d bytes, want at least %d", len(text), f.minBytes),
		}
	}
	return text, nil
}

func (f *FeedFetcher) headers(cfg Provider) map[string]string {
	h := Headers(cfg)
	if _, ok := h["Accept"]; !ok {
		h["Accept"] = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	}
	return h
}

var xmlDeclEncoding = regexp.MustCompile(`(?i)(<\?xml[^>]*?encoding\s*=\s*["'])([^"']+)(["'])`)

func decodeBody(body []byte, label string) (string, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" {
		return string(body), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}

	// The text is UTF-8 now; a stale declaration would make the parser decode it twice.
	return xmlDeclEncoding.ReplaceAllString(string(decoded), "${1}UTF-8${3}"), nil
}
