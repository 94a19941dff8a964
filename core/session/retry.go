package session

import "time"

// RetryPolicy bounds the save loop: MaxAttempts writes, waiting
// InitialBackoff before the second and multiplying the wait each time.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns 10 attempts starting at 50ms, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    10,
		InitialBackoff: 50 * time.Millisecond,
		Multiplier:     2,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.Multiplier <= 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// MaxBackoff caps a single wait of the save loop.
const MaxBackoff = time.Minute

// Backoff returns the wait after the given failed attempt (1-based),
// never more than MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := min(p.InitialBackoff, MaxBackoff)
	for range attempt - 1 {
		next := float64(d) * p.Multiplier
		if next >= float64(MaxBackoff) {
			return MaxBackoff
		}
		d = time.Duration(next)
	}
	return d
}
