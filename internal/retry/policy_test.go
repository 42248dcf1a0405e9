package retry

import (
	"math"
	"testing"
	"time"
)

func TestPolicy_Backoff_WithinCap(t *testing.T) {
	p := Policy{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}

	// Full jitter: задержка всегда в [0, min(initial*2^(n-1), max)]
	for attempt := 1; attempt <= 10; attempt++ {
		ceiling := time.Duration(math.Min(
			float64(time.Second)*math.Pow(2, float64(attempt-1)),
			float64(10*time.Second),
		))

		for i := 0; i < 50; i++ {
			got := p.Backoff(attempt)
			if got < 0 {
				t.Fatalf("attempt %d: negative backoff %v", attempt, got)
			}
			if got > ceiling {
				t.Fatalf("attempt %d: backoff %v exceeds ceiling %v", attempt, got, ceiling)
			}
		}
	}
}

func TestPolicy_Backoff_InvalidAttempt(t *testing.T) {
	p := Default()

	// attempt < 1 трактуется как первый retry
	got := p.Backoff(0)
	if got < 0 || got > p.InitialDelay {
		t.Errorf("backoff(0) = %v, want within [0, %v]", got, p.InitialDelay)
	}
}

func TestPolicy_Backoff_ZeroValues(t *testing.T) {
	p := Policy{}

	got := p.Backoff(1)
	if got < 0 || got > DefaultInitialDelay {
		t.Errorf("zero policy backoff = %v, want within [0, %v]", got, DefaultInitialDelay)
	}
}

func TestPolicy_Exhausted(t *testing.T) {
	p := Policy{MaxRetries: 3}

	tests := []struct {
		attempts int
		want     bool
	}{
		{0, false},
		{1, false},
		{2, false},
		{3, true},
		{4, true},
	}

	for _, tt := range tests {
		if got := p.Exhausted(tt.attempts); got != tt.want {
			t.Errorf("Exhausted(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestPolicy_Exhausted_DefaultMax(t *testing.T) {
	p := Policy{}

	if p.Exhausted(DefaultMaxRetries - 1) {
		t.Error("should not be exhausted before default max")
	}
	if !p.Exhausted(DefaultMaxRetries) {
		t.Error("should be exhausted at default max")
	}
}
