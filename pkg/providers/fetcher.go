package providers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/pkg/httpclient"
)

const defaultHTTPTimeout = 10 * time.Second

type fetcherRegistry struct {
	fetchers map[string]Fetcher
	mu       sync.RWMutex
}

// NewFetcherRegistry builds a registry keyed by the fetchers' transport type.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchers: make(map[string]Fetcher, len(fetchers)),
	}

	for _, f := range fetchers {
		if f == nil {
			continue
		}
		reg.fetchers[strings.ToLower(strings.TrimSpace(f.ID()))] = f
	}

	return reg
}

// FetcherFor selects the fetcher for the given provider based on its transport type.
func (r *fetcherRegistry) FetcherFor(cfg Provider) (Fetcher, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("provider %q has no type", cfg.ID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(cfg.Type)
	if f, ok := r.fetchers[key]; ok {
		return f, nil
	}

	return nil, fmt.Errorf("no fetcher registered for provider type %q", cfg.Type)
}

// DefaultHTTPClient returns the resty-backed client used by provider fetchers.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(defaultHTTPTimeout) }

// Options tunes the default fetchers.
type Options struct {
	FeedMinBytes int
	ListingLimit int
	Clock        func() time.Time
	Log          logger.Logger
}

// DefaultFetcherRegistry wires the feed and HTML listing fetchers.
func DefaultFetcherRegistry(client HTTPClient, opts Options) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}

	return NewFetcherRegistry(
		NewFeedFetcher(client, opts),
		NewListingFetcher(client, opts),
	)
}
