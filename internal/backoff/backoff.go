// Package backoff computes retry delays for failed phases and contention
// delays for the document lock.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy selects how the delay grows with the attempt index.
type Strategy string

const (
	// Fixed always waits the initial delay.
	Fixed Strategy = "fixed"
	// Exponential doubles the delay each attempt, capped at the maximum.
	Exponential Strategy = "exponential"
	// ExponentialJitter is Exponential with up to ±15% uniform jitter.
	ExponentialJitter Strategy = "exponential-jitter"
)

// RetryJitter is the jitter fraction applied by ExponentialJitter.
const RetryJitter = 0.15

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Fixed, Exponential, ExponentialJitter:
		return true
	}
	return false
}

// Source returns a uniform float in [0, 1).
type Source func() float64

// Calculator computes retry delays. The zero value uses math/rand/v2.
type Calculator struct {
	Rand Source
}

func (c Calculator) rand() float64 {
	if c.Rand != nil {
		return c.Rand()
	}
	return rand.Float64()
}

// Delay returns the delay in milliseconds before retry attempt n (0-based).
//
// Fixed returns initialMs. Exponential returns min(initialMs·2ⁿ, maxMs).
// ExponentialJitter moves the exponential value by up to ±15%, floors the
// result and clamps it to [0, maxMs]. Unknown strategies behave like Fixed.
func (c Calculator) Delay(n int, strategy Strategy, initialMs, maxMs int64) int64 {
	if n < 0 {
		n = 0
	}
	switch strategy {
	case Exponential:
		return exponential(n, initialMs, maxMs)
	case ExponentialJitter:
		base := float64(exponential(n, initialMs, maxMs))
		jittered := int64(math.Floor(base + (c.rand()-0.5)*2*RetryJitter*base))
		return clamp(jittered, 0, maxMs)
	default:
		return initialMs
	}
}

// Delay is Calculator{}.Delay.
func Delay(n int, strategy Strategy, initialMs, maxMs int64) int64 {
	return Calculator{}.Delay(n, strategy, initialMs, maxMs)
}

func exponential(n int, initialMs, maxMs int64) int64 {
	// 2^62 already exceeds any sane cap; avoid overflow on large n.
	if n >= 62 {
		return maxMs
	}
	v := float64(initialMs) * math.Pow(2, float64(n))
	if v >= float64(maxMs) {
		return maxMs
	}
	return int64(v)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Schedule produces successive waits for a polling loop: the base doubles
// from Initial up to Max and each wait is spread by ±Jitter.
type Schedule struct {
	Initial time.Duration
	Max     time.Duration
	// Jitter is the fraction of the base a wait may deviate by.
	Jitter float64
	Rand   Source

	attempt int
}

// Next returns the wait for the current attempt and advances the schedule.
func (s *Schedule) Next() time.Duration {
	base := s.Initial
	for i := 0; i < s.attempt && base < s.Max; i++ {
		base *= 2
	}
	if base > s.Max {
		base = s.Max
	}
	s.attempt++

	r := rand.Float64
	if s.Rand != nil {
		r = s.Rand
	}
	d := time.Duration(float64(base) * (1 + (r()-0.5)*2*s.Jitter))
	if d < 0 {
		return 0
	}
	return d
}

// Reset restarts the schedule at Initial.
func (s *Schedule) Reset() {
	s.attempt = 0
}
