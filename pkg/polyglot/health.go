package polyglot

import (
	"context"
	"time"
)

// Pinger is the probe surface a store exposes for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IsHealthy probes p within the given timeout. It never returns an error;
// any failure, including a slow response, reports unhealthy. A probe must
// not take down the caller that asked.
func IsHealthy(ctx context.Context, p Pinger, timeout time.Duration) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			// A panicking probe counts as unhealthy.
			if r := recover(); r != nil {
				done <- context.Canceled
			}
		}()
		done <- p.Ping(ctx)
	}()

	select {
	case err := <-done:
		return err == nil
	case <-ctx.Done():
		return false
	}
}
