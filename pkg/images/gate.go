package images

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate spaces consecutive image resolutions. It is safe for concurrent use, so a single
// gate enforces the interval across every worker sharing it.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate returns a gate admitting one caller per interval. A non-positive interval
// disables spacing.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next resolution may start or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
