package execution

import (
	"context"
	"math/rand"
	"time"
)

// jitter delays submission by a random duration inside the configured
// window, so the gap between quote and submission is not a stable signal
// observers can key on.
func (c *Coordinator) jitter(ctx context.Context) error {
	span := c.jitterMax - c.jitterMin
	delay := c.jitterMin
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return nil
	}

	JitterDelaySeconds.Observe(delay.Seconds())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
