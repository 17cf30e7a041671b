// Package app wires configuration into a ready ingestion pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/config"
	"github.com/akhbar-mr/akhbar-harvester/internal/crawler"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/internal/storage"
	"github.com/akhbar-mr/akhbar-harvester/pkg/httpclient"
	"github.com/akhbar-mr/akhbar-harvester/pkg/images"
	"github.com/akhbar-mr/akhbar-harvester/pkg/providers"
	"github.com/akhbar-mr/akhbar-harvester/pkg/publishers"
)

// App holds the long-lived collaborators of a harvester process.
type App struct {
	Catalog      providers.Catalog
	Store        storage.Store
	Dispatcher   *publishers.Dispatcher
	Orchestrator *crawler.Orchestrator
	Log          logger.Logger
}

// Build assembles the pipeline described by cfg.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	log = logger.Ensure(log)

	catalog, err := loadCatalog(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	log.Info("catalog loaded", zap.Int("sources", catalog.Len()), zap.String("file", cfg.SourcesFile))

	client := httpclient.NewRestyClient(cfg.HTTPTimeout)
	registry := providers.DefaultFetcherRegistry(client, providers.Options{
		FeedMinBytes: cfg.FeedMinBytes,
		ListingLimit: cfg.ListingLimit,
		Log:          log,
	})
	resolver := images.NewResolver(client, log, images.WithMaxBodyBytes(cfg.MaxHTMLBytes))
	enricher := crawler.NewEnricher(resolver, images.NewGate(cfg.ImageDelay), cfg.ImageWorkers, log)

	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.StoreDriver,
		BoltPath:    cfg.BoltPath,
		PostgresDSN: cfg.PostgresDSN,
		RedisAddr:   cfg.RedisAddr,
		CacheTTL:    cfg.CacheTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dispatcher, err := publishers.LoadDispatcher(ctx, cfg.PublishersFile, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load publishers: %w", err)
	}

	orch := crawler.NewOrchestrator(catalog, registry, enricher, log,
		crawler.WithStore(store),
		crawler.WithPublisher(dispatcher),
		crawler.WithSourceWorkers(cfg.SourceWorkers),
	)

	return &App{
		Catalog:      catalog,
		Store:        store,
		Dispatcher:   dispatcher,
		Orchestrator: orch,
		Log:          log,
	}, nil
}

// Close releases the store and every publisher.
func (a *App) Close() error {
	return errors.Join(a.Dispatcher.Close(), a.Store.Close())
}

func loadCatalog(path string) (providers.Catalog, error) {
	if path == "" {
		return providers.DefaultCatalog(), nil
	}
	catalog, err := providers.LoadCatalog(path)
	if err != nil {
		return providers.Catalog{}, fmt.Errorf("load sources: %w", err)
	}
	return catalog, nil
}
