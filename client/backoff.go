package client

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff is an exponential retry policy: the delay starts at MinDelay,
// doubles after every failed attempt up to MaxDelay, and is stretched by up
// to 50% random jitter.
type Backoff struct {
	MinDelay time.Duration
	MaxDelay time.Duration

	// MaxRetries is the number of attempts after the first one.
	// Zero disables retries.
	MaxRetries int
}

// DefaultBackoff is used when Options.Retry is the zero value.
var DefaultBackoff = Backoff{
	MinDelay:   500 * time.Millisecond,
	MaxDelay:   8 * time.Second,
	MaxRetries: 3,
}

// Retry calls operation until it succeeds, returns a non-retryable error,
// exhausts MaxRetries, or ctx is done. operation reports whether its error
// may be retried.
func (b Backoff) Retry(ctx context.Context, operation func(attempt int) (retryable bool, err error)) error {
	delay := b.MinDelay

	var err error
	for n := 0; ; n++ {
		var retryable bool
		retryable, err = operation(n)
		if err == nil || !retryable || n >= b.MaxRetries {
			return err
		}

		t := time.NewTimer(jitter(delay))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}

		delay *= 2
		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Float64()*float64(d)*0.5)
}
