package worker

import (
	"math"
	"time"
)

// Backoff computes the wait before re-establishing a notification stream.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Delay calculates InitialDelay * 2^attempt, capped at MaxDelay.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.InitialDelay) * math.Pow(2, float64(attempt))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}
