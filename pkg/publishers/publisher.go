// Package publishers announces freshly stored articles to downstream sinks.
package publishers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
)

// EventArticleIngested is emitted once per article saved by an ingestion run.
const EventArticleIngested = "article.ingested"

// Logger is the logging contract used by publishers.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger { return logger.Ensure(log) }

// Event is the payload delivered to every sink.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	ProviderID string         `json:"provider_id"`
	Language   string         `json:"language"`
	Article    domain.Article `json:"article"`
}

// NewArticleEvent wraps a stored article in an ingestion event.
func NewArticleEvent(a domain.Article, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventArticleIngested,
		OccurredAt: at.UTC(),
		ProviderID: a.ProviderID,
		Language:   string(a.Language),
		Article:    a,
	}
}

// attributes are attached to queue messages so consumers can filter without decoding.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type":  e.Type,
		"provider_id": e.ProviderID,
		"language":    e.Language,
	}
}

// Publisher delivers events to one sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Dispatcher fans an event out to every configured publisher.
type Dispatcher struct {
	pubs []Publisher
	log  Logger
}

// NewDispatcher wraps pubs. A dispatcher with no publishers is a no-op.
func NewDispatcher(pubs []Publisher, log Logger) *Dispatcher {
	return &Dispatcher{pubs: pubs, log: ensureLogger(log)}
}

// Len returns the number of publishers.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.pubs)
}

// Publish sends evt to every publisher. A failing publisher does not stop the others;
// failures are logged and returned joined.
func (d *Dispatcher) Publish(ctx context.Context, evt Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, p := range d.pubs {
		if err := p.Publish(ctx, evt); err != nil {
			d.log.WarnObj("publisher delivery failed", "publish_error", map[string]any{
				"publisher_id": p.ID(),
				"type":         p.Type(),
				"event_id":     evt.ID,
				"error":        err.Error(),
			})
			errs = append(errs, fmt.Errorf("publisher %s: %w", p.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every publisher.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, p := range d.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher %s: %w", p.ID(), err))
		}
	}
	return errors.Join(errs...)
}
