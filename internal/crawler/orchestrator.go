// Package crawler drives one ingestion run across every configured outlet.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/dedupe"
	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/pkg/providers"
	"github.com/akhbar-mr/akhbar-harvester/pkg/publishers"
)

const maxSourceWorkers = 16

// ArticleStore persists articles keyed by link.
type ArticleStore interface {
	Upsert(ctx context.Context, a domain.Article) (domain.Article, error)
}

// EventPublisher announces stored articles.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) error
}

// Orchestrator runs the fetch, enrich, dedupe and sort pipeline over a catalog.
type Orchestrator struct {
	catalog   providers.Catalog
	registry  providers.FetcherRegistry
	enricher  *Enricher
	store     ArticleStore
	publisher EventPublisher
	workers   int
	clock     func() time.Time
	log       logger.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithStore sets the persistence collaborator used by Ingest.
func WithStore(s ArticleStore) Option { return func(o *Orchestrator) { o.store = s } }

// WithPublisher sets the sink notified for every saved article.
func WithPublisher(p EventPublisher) Option { return func(o *Orchestrator) { o.publisher = p } }

// WithSourceWorkers sets how many sources are processed concurrently.
func WithSourceWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = max(1, min(n, maxSourceWorkers)) }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewOrchestrator builds an orchestrator over catalog.
func NewOrchestrator(catalog providers.Catalog, registry providers.FetcherRegistry, enricher *Enricher, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		catalog:  catalog,
		registry: registry,
		enricher: enricher,
		workers:  1,
		clock:    time.Now,
		log:      logger.Ensure(log),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run ingests every source and returns the de-duplicated articles, newest first. A source
// that fails contributes nothing; Run itself only stops early when ctx is done.
func (o *Orchestrator) Run(ctx context.Context) []domain.Article {
	runID := uuid.NewString()
	log := o.log.With(zap.String("run_id", runID))
	sources := o.catalog.List()
	started := time.Now()

	slots := make([][]domain.Article, len(sources))
	jobCh := make(chan int)
	var wg sync.WaitGroup
	for range min(o.workers, max(1, len(sources))) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				slots[idx] = o.runSource(ctx, log, sources[idx])
			}
		}()
	}
	for idx := range sources {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	total := 0
	for _, s := range slots {
		total += len(s)
	}
	set := dedupe.NewSet(total)
	for _, s := range slots {
		for _, a := range s {
			set.Add(a)
		}
	}

	out := set.Articles()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})

	log.InfoObj("ingestion run finished", "run", map[string]any{
		"sources":    len(sources),
		"collected":  total,
		"unique":     len(out),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
	return out
}

func (o *Orchestrator) runSource(ctx context.Context, log logger.Logger, cfg providers.Provider) (articles []domain.Article) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorObj("source panicked", "source_panic", map[string]any{
				"provider_id": cfg.ID,
				"panic":       fmt.Sprint(r),
			})
			articles = nil
		}
	}()

	fetched, err := o.fetch(ctx, cfg)
	if err != nil {
		log.WarnObj("source failed", "source_error", map[string]any{
			"provider_id": cfg.ID,
			"kind":        failureKind(err),
			"error":       err.Error(),
		})
		return nil
	}

	enriched := o.enricher.Enrich(ctx, cfg, fetched)
	log.Info("source ingested", zap.String("provider_id", cfg.ID), zap.Int("articles", len(enriched)))
	return enriched
}

func (o *Orchestrator) fetch(ctx context.Context, cfg providers.Provider) ([]domain.Article, error) {
	if o.registry == nil {
		return nil, errors.New("no fetcher registry configured")
	}
	f, err := o.registry.FetcherFor(cfg)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, cfg)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrFormat):
		return "format"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}

// Ingest runs the pipeline, upserts every article and publishes an event per saved one.
// Store and publisher failures are logged per article and never abort the run.
func (o *Orchestrator) Ingest(ctx context.Context) domain.RunSummary {
	articles := o.Run(ctx)
	summary := domain.RunSummary{Scraped: len(articles)}
	if o.store == nil {
		o.log.Warn("ingest without store: articles not persisted", zap.Int("scraped", summary.Scraped))
		return summary
	}

	for _, a := range articles {
		saved, err := o.store.Upsert(ctx, a)
		if err != nil {
			o.log.WarnObj("article upsert failed", "store_error", map[string]any{
				"provider_id": a.ProviderID,
				"link":        a.Link,
				"error":       err.Error(),
			})
			continue
		}
		summary.Saved++

		if o.publisher == nil {
			continue
		}
		if err := o.publisher.Publish(ctx, publishers.NewArticleEvent(saved, o.clock())); err != nil {
			o.log.Warn("article event not fully delivered", zap.String("link", saved.Link), zap.Error(err))
		}
	}

	o.log.InfoObj("ingest finished", "ingest", summary)
	return summary
}
