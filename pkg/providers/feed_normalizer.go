package providers

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/pkg/images"
)

var inlineImage = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"'>]+)["']`)

// FeedNormalizer turns raw feed text into articles.
type FeedNormalizer struct {
	clock func() time.Time
}

// NewFeedNormalizer builds a normalizer; clock supplies the fallback publication time
// and defaults to time.Now.
func NewFeedNormalizer(clock func() time.Time) *FeedNormalizer {
	if clock == nil {
		clock = time.Now
	}
	return &FeedNormalizer{clock: clock}
}

// Normalize parses raw as RSS, Atom or JSON Feed and maps each item to an article
// attributed to cfg. Items without a link are dropped.
func (n *FeedNormalizer) Normalize(raw string, cfg Provider) ([]domain.Article, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{ProviderID: cfg.ID, Err: errors.New("empty document")}
	}

	feed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		return nil, &ParseError{ProviderID: cfg.ID, Err: err}
	}

	now := n.clock()
	lang := domain.ParseLanguage(string(cfg.Language))
	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := itemLink(item)
		if link == "" {
			continue
		}

		title := plainText(item.Title)
		if title == "" {
			title = lang.UntitledPlaceholder()
		}

		published := now
		switch {
		case item.PublishedParsed != nil:
			published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = *item.UpdatedParsed
		}

		excerpt := cfg.Excerpt
		if excerpt == "" {
			excerpt = buildExcerpt(firstNonEmpty(item.Description, item.Content))
		}

		var category string
		if len(item.Categories) > 0 {
			category = strings.TrimSpace(item.Categories[0])
		}

		articles = append(articles, domain.Article{
			ID:          domain.ArticleID(link),
			ProviderID:  cfg.ID,
			Title:       title,
			Link:        link,
			Source:      cfg.Name,
			Language:    lang,
			PublishedAt: published,
			Excerpt:     excerpt,
			ImageURL:    FeedImage(item, link),
			Category:    category,
		})
	}
	return articles, nil
}

func itemLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	for _, l := range item.Links {
		if link := strings.TrimSpace(l); link != "" {
			return link
		}
	}
	if guid := strings.TrimSpace(item.GUID); strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
		return guid
	}
	return ""
}

// FeedImage returns the first valid image carried by the item itself: an enclosure,
// then media content, then the first inline image in the content and the description.
// Media thumbnails and the feed's item image are last resorts.
func FeedImage(item *gofeed.Item, link string) string {
	if item == nil {
		return ""
	}
	for _, candidate := range feedImageCandidates(item) {
		if abs := images.ResolveURL(candidate, link); images.IsValidImageURL(abs) {
			return abs
		}
	}
	return ""
}

func feedImageCandidates(item *gofeed.Item) []string {
	var out []string
	for _, enc := range item.Enclosures {
		if enc != nil {
			out = append(out, enc.URL)
		}
	}
	out = append(out, mediaContentURLs(item.Extensions)...)
	for _, html := range []string{item.Content, item.Description} {
		if m := inlineImage.FindStringSubmatch(html); len(m) == 2 {
			out = append(out, m[1])
		}
	}
	// Thumbnails are small renditions; only used when nothing full size is present.
	out = append(out, mediaExtensionURLs(item.Extensions, "thumbnail")...)
	if item.Image != nil {
		out = append(out, item.Image.URL)
	}
	return out
}

func mediaContentURLs(exts ext.Extensions) []string {
	return mediaExtensionURLs(exts, "content")
}

// mediaExtensionURLs collects the url attribute of media:<name> elements, direct or
// nested in media:group.
func mediaExtensionURLs(exts ext.Extensions, name string) []string {
	media, ok := exts["media"]
	if !ok {
		return nil
	}
	var out []string
	collect := func(list []ext.Extension) {
		for _, e := range list {
			if u := e.Attrs["url"]; u != "" {
				out = append(out, u)
			}
		}
	}
	collect(media[name])
	for _, group := range media["group"] {
		collect(group.Children[name])
	}
	return out
}
