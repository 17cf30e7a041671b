package publishers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type httpPublisher struct {
	id      string
	url     string
	method  string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = httpDefaultTimeoutSeconds * time.Second
	}
	method := cfg.HTTP.Method
	if method == "" {
		method = httpDefaultMethod
	}

	return &httpPublisher{
		id:      cfg.ID,
		url:     cfg.HTTP.URL,
		method:  method,
		headers: cfg.HTTP.Headers,
		client:  resty.New().SetTimeout(timeout),
		log:     ensureLogger(log),
	}, nil
}

func (p *httpPublisher) ID() string   { return p.id }
func (p *httpPublisher) Type() string { return TypeHTTP }

// Publish sends the event as a JSON body. Any non-2xx status is a failure.
func (p *httpPublisher) Publish(ctx context.Context, evt Event) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Event-Type", evt.Type).
		SetHeaders(p.headers).
		SetBody(evt).
		Execute(p.method, p.url)
	if err != nil {
		return fmt.Errorf("http publisher %s: %w", p.id, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("http publisher %s: unexpected status %d", p.id, resp.StatusCode())
	}

	p.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"event_id": evt.ID,
		"status":   resp.StatusCode(),
	})
	return nil
}

func (p *httpPublisher) Close() error { return nil }
