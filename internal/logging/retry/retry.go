package retry

import (
	"math"
	"time"
)

// Policy is truncated exponential backoff: the delay after the nth failed
// attempt is min(Initial * Multiplier^(n-1), Max).
type Policy struct {
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	MaxAttempts int
}

// Delay returns the wait before retrying after failed attempt n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}

	delay := float64(p.Initial) * math.Pow(p.Multiplier, float64(n-1))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay >= float64(p.Max) {
		return p.Max
	}
	return time.Duration(delay)
}

// Delays returns the first n delays of the policy.
func (p Policy) Delays(n int) []time.Duration {
	n = max(n, 0)
	delays := make([]time.Duration, 0, n)
	for i := 1; i <= n; i++ {
		delays = append(delays, p.Delay(i))
	}
	return delays
}

// ShouldRetry reports whether another attempt may follow failed attempt n.
// A non-positive MaxAttempts means a single attempt.
func (p Policy) ShouldRetry(n int) bool {
	return n < p.MaxAttempts
}
