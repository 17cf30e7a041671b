// Package storage persists articles keyed by link and serves the newest ones per language.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
)

// Supported drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// Store persists articles.
type Store interface {
	// Upsert inserts a or replaces the stored article with the same link. A previously
	// stored image survives when a carries none. It returns the article as stored.
	Upsert(ctx context.Context, a domain.Article) (domain.Article, error)
	// Query returns up to limit articles in lang, newest first.
	Query(ctx context.Context, lang domain.Language, limit int) ([]domain.Article, error)
	Close() error
}

// Options selects and configures a store.
type Options struct {
	Driver      string
	BoltPath    string
	PostgresDSN string
	RedisAddr   string
	CacheTTL    time.Duration
}

// Open builds the configured store, wrapped in a Redis read cache when an address is set.
func Open(ctx context.Context, opts Options, log logger.Logger) (Store, error) {
	log = logger.Ensure(log)

	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case "", DriverBolt:
		s, err = OpenBolt(opts.BoltPath)
	case DriverPostgres:
		s, err = OpenPostgres(opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("store driver %q not supported", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.RedisAddr == "" {
		return s, nil
	}
	return NewCachedStore(ctx, s, newRedisCache(opts.RedisAddr), opts.CacheTTL, log), nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	return min(limit, maxQueryLimit)
}

func validateArticle(a domain.Article) error {
	if a.Link == "" {
		return errors.New("article link is required")
	}
	return nil
}

// merge applies the upsert rule: incoming fields win, except that an empty image keeps
// the stored one.
func merge(existing, incoming domain.Article) domain.Article {
	if !incoming.HasImage() && existing.HasImage() {
		incoming.ImageURL = existing.ImageURL
	}
	if incoming.ID == "" {
		incoming.ID = domain.ArticleID(incoming.Link)
	}
	return incoming
}
