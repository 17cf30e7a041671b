package publishers

import (
	"context"
	"fmt"
)

// queueSender abstracts provider-specific queue clients.
type queueSender interface {
	Send(ctx context.Context, evt Event) error
	Close() error
}

type queuePublisher struct {
	id       string
	provider string
	sender   queueSender
	log      Logger
}

func newQueuePublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("publisher %q missing queue configuration", cfg.ID)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		sender queueSender
		err    error
	)
	switch cfg.Queue.Provider {
	case QueueProviderAWSSQS:
		sender, err = newAWSSQSSender(ctx, cfg.Queue.SQS, log)
	case QueueProviderAWSSNS:
		sender, err = newAWSSNSSender(ctx, cfg.Queue.SNS, log)
	case QueueProviderGCP:
		sender, err = newGCPPubSubSender(ctx, cfg.Queue.GCP, log)
	default:
		err = fmt.Errorf("queue provider %q is not supported", cfg.Queue.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("publisher %q: %w", cfg.ID, err)
	}

	return &queuePublisher{
		id:       cfg.ID,
		provider: cfg.Queue.Provider,
		sender:   sender,
		log:      ensureLogger(log),
	}, nil
}

func (p *queuePublisher) ID() string   { return p.id }
func (p *queuePublisher) Type() string { return TypeQueue }

// Publish forwards the event to the queue provider.
func (p *queuePublisher) Publish(ctx context.Context, evt Event) error {
	if err := p.sender.Send(ctx, evt); err != nil {
		return fmt.Errorf("queue provider %s send failed for %s: %w", p.provider, evt.Article.Link, err)
	}
	p.log.DebugObj("event queued", "event", map[string]any{
		"publisher": p.id,
		"provider":  p.provider,
		"type":      evt.Type,
		"source":    evt.ProviderID,
		"link":      evt.Article.Link,
	})
	return nil
}

func (p *queuePublisher) Close() error { return p.sender.Close() }
