package stats

import (
	"math"
	"time"
)

// RetryPolicy is an exponential backoff for reopening the pinned map.
type RetryPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// MaxAttempts bounds the number of failed attempts; zero retries
	// forever.
	MaxAttempts int
}

// DefaultRetryPolicy retries forever, starting at 250ms and capping
// at 2s.
var DefaultRetryPolicy = RetryPolicy{
	Initial:    250 * time.Millisecond,
	Max:        2 * time.Second,
	Multiplier: 2,
}

// Next returns the delay to wait after failed attempt number attempt
// (counting from 1), and false once the attempts are exhausted. With
// no Max the delay saturates at the largest time.Duration.
func (p RetryPolicy) Next(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return 0, false
	}
	if attempt < 1 {
		attempt = 1
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	limit := p.Max
	if limit <= 0 {
		limit = math.MaxInt64
	}
	d := float64(p.Initial) * math.Pow(mult, float64(attempt-1))
	if d >= float64(limit) {
		return limit, true
	}
	return time.Duration(d), true
}
