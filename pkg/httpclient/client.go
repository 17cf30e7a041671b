// Package httpclient provides the small GET client the fetchers and resolvers share.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is the part of an HTTP response the harvester reads.
type Response interface {
	StatusCode() int
	Body() []byte
	Header() http.Header
}

// Client performs context-bound GET requests with per-call headers.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

type restyClient struct {
	rc *resty.Client
}

// NewRestyClient returns a Client backed by resty with the given overall request timeout.
func NewRestyClient(timeout time.Duration) Client {
	rc := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &restyClient{rc: rc}
}

// Get issues a GET request. Non-2xx statuses are not errors; callers inspect StatusCode.
func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}

// IsTimeout reports whether err came from a deadline or client timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
