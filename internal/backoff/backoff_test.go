package backoff

import (
	"math/rand/v2"
	"testing"
	"time"
)

func fixedRand(v float64) Source { return func() float64 { return v } }

func TestDelay(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		strategy Strategy
		want     int64
	}{
		{"fixed first", 0, Fixed, 1000},
		{"fixed later", 5, Fixed, 1000},
		{"exponential 0", 0, Exponential, 1000},
		{"exponential 1", 1, Exponential, 2000},
		{"exponential 3", 3, Exponential, 8000},
		{"exponential capped", 10, Exponential, 30000},
		{"exponential huge n", 500, Exponential, 30000},
		{"negative n", -3, Exponential, 1000},
		{"unknown strategy", 4, Strategy("linear"), 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Delay(tt.n, tt.strategy, 1000, 30000); got != tt.want {
				t.Errorf("Delay(%d, %s) = %d, want %d", tt.n, tt.strategy, got, tt.want)
			}
		})
	}
}

func TestDelayJitterBounds(t *testing.T) {
	tests := []struct {
		name string
		r    float64
		n    int
		want int64
	}{
		{"midpoint is unjittered", 0.5, 1, 2000},
		{"low end", 0, 1, 1700},
		{"high end", 0.999999, 0, 1149},
		{"capped base cannot exceed max", 0.999999, 10, 30000},
		{"capped base jitters down", 0, 10, 25500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Calculator{Rand: fixedRand(tt.r)}
			if got := c.Delay(tt.n, ExponentialJitter, 1000, 30000); got != tt.want {
				t.Errorf("Delay() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDelayJitterProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	c := Calculator{Rand: rng.Float64}

	for n := 0; n < 12; n++ {
		base := Delay(n, Exponential, 1000, 30000)
		for i := 0; i < 200; i++ {
			got := c.Delay(n, ExponentialJitter, 1000, 30000)
			if got > 30000 {
				t.Fatalf("Delay(%d) = %d exceeds max", n, got)
			}
			lo := int64(float64(base) * 0.85)
			hi := int64(float64(base) * 1.15)
			if got < lo-1 || got > hi {
				t.Fatalf("Delay(%d) = %d outside [%d, %d]", n, got, lo, hi)
			}
		}
	}
}

func TestStrategyValid(t *testing.T) {
	for _, s := range []Strategy{Fixed, Exponential, ExponentialJitter} {
		if !s.Valid() {
			t.Errorf("%s.Valid() = false, want true", s)
		}
	}
	if Strategy("linear").Valid() {
		t.Error("linear.Valid() = true, want false")
	}
}

func TestSchedule(t *testing.T) {
	s := &Schedule{
		Initial: 50 * time.Millisecond,
		Max:     2 * time.Second,
		Jitter:  0.25,
		Rand:    fixedRand(0.5),
	}

	want := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		2 * time.Second,
		2 * time.Second,
	}
	for i, w := range want {
		if got := s.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}

	s.Reset()
	if got := s.Next(); got != 50*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want 50ms", got)
	}
}

func TestScheduleJitter(t *testing.T) {
	lo := &Schedule{Initial: 100 * time.Millisecond, Max: time.Second, Jitter: 0.25, Rand: fixedRand(0)}
	if got := lo.Next(); got != 75*time.Millisecond {
		t.Errorf("low jitter Next() = %v, want 75ms", got)
	}

	hi := &Schedule{Initial: 100 * time.Millisecond, Max: time.Second, Jitter: 0.25, Rand: fixedRand(1)}
	if got := hi.Next(); got != 125*time.Millisecond {
		t.Errorf("high jitter Next() = %v, want 125ms", got)
	}
}
