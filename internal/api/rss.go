package api

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
)

var feedTitles = map[domain.Language]string{
	domain.LanguageFR: "Actualités de Mauritanie",
	domain.LanguageAR: "أخبار موريتانيا",
}

func (s *Server) rss(c *gin.Context) {
	lang := domain.ParseLanguage(c.Param("lang"))
	items, err := s.news.Query(c.Request.Context(), lang, s.opts.PageSize)
	if err != nil {
		c.String(http.StatusInternalServerError, "feed unavailable")
		return
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	self := fmt.Sprintf("%s://%s/rss/%s", scheme, c.Request.Host, lang)

	out, err := GenerateRSSFeed(items, lang, self, time.Now())
	if err != nil {
		c.String(http.StatusInternalServerError, "feed unavailable")
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(out))
}

// GenerateRSSFeed renders articles as an RSS 2.0 document.
func GenerateRSSFeed(articles []domain.Article, lang domain.Language, link string, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       feedTitles[lang],
		Link:        &feeds.Link{Href: link},
		Description: feedTitles[lang],
		Created:     now,
	}

	feed.Items = make([]*feeds.Item, 0, len(articles))
	for _, a := range articles {
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.Link},
			Id:          a.Link,
			Description: a.Excerpt,
			Author:      &feeds.Author{Name: a.Source},
			Created:     a.PublishedAt,
		}
		if a.HasImage() {
			item.Enclosure = &feeds.Enclosure{Url: a.ImageURL, Length: "0", Type: imageType(a.ImageURL)}
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("generate rss: %w", err)
	}
	return rss, nil
}

func imageType(imageURL string) string {
	if t := mime.TypeByExtension(path.Ext(stripQuery(imageURL))); t != "" {
		return t
	}
	return "image/jpeg"
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
