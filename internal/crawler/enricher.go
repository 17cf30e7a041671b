package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
	"github.com/akhbar-mr/akhbar-harvester/pkg/images"
	"github.com/akhbar-mr/akhbar-harvester/pkg/providers"
)

const maxImageWorkers = 10

type delayedGate struct {
	delay time.Duration
	gate  *images.Gate
}

// ImageResolver locates an image on an article page.
type ImageResolver interface {
	Resolve(ctx context.Context, articleURL string) images.ExtractionResult
}

// Enricher fills missing article images by resolving their pages. Every resolution
// passes through one shared gate, so concurrent sources still respect the interval. A
// provider with its own request delay is additionally held to a per-source gate that
// persists across runs.
type Enricher struct {
	resolver ImageResolver
	gate     *images.Gate

	mu          sync.Mutex
	sourceGates map[string]delayedGate
	workers  int
	log      logger.Logger
}

// NewEnricher builds an enricher. workers is clamped to [1, 10].
func NewEnricher(resolver ImageResolver, gate *images.Gate, workers int, log logger.Logger) *Enricher {
	if gate == nil {
		gate = images.NewGate(0)
	}
	workers = max(1, min(workers, maxImageWorkers))
	return &Enricher{
		resolver: resolver,
		gate:     gate,
		workers:  workers,
		log:      logger.Ensure(log),
	}
}

// Enrich returns articles with images resolved for those that lack one. Input articles
// are never modified; on failure or cancellation the original is kept.
func (e *Enricher) Enrich(ctx context.Context, cfg providers.Provider, articles []domain.Article) []domain.Article {
	out := make([]domain.Article, len(articles))
	copy(out, articles)

	if e == nil || e.resolver == nil || !cfg.ResolveImages {
		return out
	}

	var pending []int
	for i, a := range articles {
		if !a.HasImage() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out
	}

	perSource := e.sourceGate(cfg)

	jobCh := make(chan int)
	var wg sync.WaitGroup
	for workerID := range min(e.workers, len(pending)) {
		wg.Add(1)
		go e.imageWorker(ctx, cfg, perSource, articles, jobCh, out, &wg, workerID)
	}

	for _, idx := range pending {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()

	return out
}

// sourceGate returns the provider's own gate, or nil when it declares no delay.
func (e *Enricher) sourceGate(cfg providers.Provider) *images.Gate {
	d := cfg.RequestDelay()
	if d <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if sg, ok := e.sourceGates[cfg.ID]; ok && sg.delay == d {
		return sg.gate
	}
	if e.sourceGates == nil {
		e.sourceGates = make(map[string]delayedGate)
	}
	g := images.NewGate(d)
	e.sourceGates[cfg.ID] = delayedGate{delay: d, gate: g}
	return g
}

func (e *Enricher) imageWorker(
	ctx context.Context,
	cfg providers.Provider,
	perSource *images.Gate,
	articles []domain.Article,
	jobCh <-chan int,
	out []domain.Article,
	wg *sync.WaitGroup,
	workerID int,
) {
	defer wg.Done()

	for idx := range jobCh {
		if err := e.gate.Wait(ctx); err != nil {
			continue
		}
		if perSource != nil {
			if err := perSource.Wait(ctx); err != nil {
				continue
			}
		}

		art := articles[idx]
		res := e.resolver.Resolve(ctx, art.Link)
		e.log.DebugObj("article image resolution", "image_resolution", map[string]any{
			"worker_id":   workerID,
			"provider_id": cfg.ID,
			"url":         art.Link,
			"method":      string(res.Method),
			"image":       res.ImageURL,
		})
		if res.Found() {
			out[idx] = art.WithImage(res.ImageURL)
		}
	}
}
