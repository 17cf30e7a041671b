package publishers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	PublisherFor(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)
}

type registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{builders: make(map[string]Builder, len(builders))}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register associates a builder with a publisher type. Later registrations win.
func (r *registry) Register(typ string, builder Builder) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" || builder == nil {
		return
	}
	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// PublisherFor builds the publisher for cfg.
func (r *registry) PublisherFor(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("publisher %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires the HTTP and queue publishers.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP:  newHTTPPublisher,
		TypeQueue: newQueuePublisher,
	})
}

// BuildAll instantiates publishers for cfgs. Publishers built before a failure are
// closed.
func BuildAll(ctx context.Context, reg Registry, cfgs []PublisherConfig, log Logger) ([]Publisher, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log = ensureLogger(log)

	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := reg.PublisherFor(ctx, cfg, log)
		if err != nil {
			for _, p := range pubs {
				err = errors.Join(err, p.Close())
			}
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// LoadDispatcher builds a dispatcher for the enabled entries of the publishers file at
// path. An empty path yields a dispatcher with no publishers.
func LoadDispatcher(ctx context.Context, path string, log Logger) (*Dispatcher, error) {
	log = ensureLogger(log)
	if strings.TrimSpace(path) == "" {
		return NewDispatcher(nil, log), nil
	}

	cfgReg, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	pubs, err := BuildAll(ctx, DefaultRegistry(), cfgReg.Enabled(), log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	log.InfoObj("publishers ready", "publishers", map[string]any{"count": len(pubs)})
	return NewDispatcher(pubs, log), nil
}
