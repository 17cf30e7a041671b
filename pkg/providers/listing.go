package providers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/pkg/images"
)

// ListingFetcher scrapes outlets that publish no feed, only an HTML listing page.
type ListingFetcher struct {
	client HTTPClient
	limit  int
	clock  func() time.Time
	log    logger.Logger
}

// NewListingFetcher builds the fetcher registered for ProviderTypeHTMLListing.
func NewListingFetcher(client HTTPClient, opts Options) *ListingFetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	limit := opts.ListingLimit
	if limit <= 0 {
		limit = defaultListingLimit
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ListingFetcher{
		client: client,
		limit:  limit,
		clock:  clock,
		log:    logger.Ensure(opts.Log),
	}
}

func (f *ListingFetcher) ID() string { return ProviderTypeHTMLListing }

// Fetch turns the listing stubs into articles. Listings carry no dates, so every article
// is stamped with the current time. A failed listing yields no articles and no error.
func (f *ListingFetcher) Fetch(ctx context.Context, cfg Provider) ([]domain.Article, error) {
	stubs := f.ListArticles(ctx, cfg)
	now := f.clock()
	lang := domain.ParseLanguage(string(cfg.Language))

	articles := make([]domain.Article, 0, len(stubs))
	for _, stub := range stubs {
		title := stub.Title
		if title == "" {
			title = lang.UntitledPlaceholder()
		}
		articles = append(articles, domain.Article{
			ID:          domain.ArticleID(stub.Link),
			ProviderID:  cfg.ID,
			Title:       title,
			Link:        stub.Link,
			Source:      cfg.Name,
			Language:    lang,
			PublishedAt: now,
			Excerpt:     cfg.Excerpt,
		})
	}
	return articles, nil
}

// ListArticles returns up to the configured limit of title/link pairs in page order.
func (f *ListingFetcher) ListArticles(ctx context.Context, cfg Provider) []domain.ArticleStub {
	listing := ListingConfig{ItemSelector: ".item-inner", LinkSelector: "h2 a"}
	if cfg.Listing != nil {
		listing = *cfg.Listing
	}
	limit := listing.Limit
	if limit <= 0 {
		limit = f.limit
	}

	resp, err := f.client.Get(ctx, cfg.SourceURL, Headers(cfg))
	if err != nil {
		f.log.Warn("listing fetch failed", zap.String("provider", cfg.ID), zap.Error(err))
		return nil
	}
	if resp.StatusCode() != http.StatusOK {
		f.log.Warn("listing returned non-200",
			zap.String("provider", cfg.ID),
			zap.Int("status", resp.StatusCode()),
			zap.String("body", responseSnippet(resp.Body())),
		)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		f.log.Warn("listing parse failed", zap.String("provider", cfg.ID), zap.Error(err))
		return nil
	}

	var stubs []domain.ArticleStub
	doc.Find(listing.ItemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		anchor := item.Find(listing.LinkSelector).First()
		href, _ := anchor.Attr("href")
		link := images.ResolveURL(href, cfg.SourceURL)
		title := plainText(anchor.Text())
		if link == "" || title == "" {
			return true
		}
		stubs = append(stubs, domain.ArticleStub{Title: title, Link: link})
		return len(stubs) < limit
	})
	return stubs
}
