package backoff

import (
	"testing"
	"time"
)

func TestComputeDeterministic(t *testing.T) {
	tests := []struct {
		name    string
		baseMs  int64
		attempt int
		rand01  float64
		want    time.Duration
	}{
		{"attempt 1, rand 0", 100, 1, 0, 0},
		{"attempt 1, rand 0.5", 100, 1, 0.5, 100 * time.Millisecond},
		{"attempt 1, rand max", 100, 1, 0.999999, 199 * time.Millisecond},
		{"attempt 2 doubles base", 100, 2, 0.5, 200 * time.Millisecond},
		{"attempt 3 doubles again", 100, 3, 0.5, 400 * time.Millisecond},
		{"attempt 0 clamps to 1", 100, 0, 0.5, 100 * time.Millisecond},
		{"negative attempt clamps to 1", 100, -5, 0.5, 100 * time.Millisecond},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.baseMs, tc.attempt, tc.rand01)
			if got != tc.want {
				t.Errorf("Compute(%d, %d, %v) = %v, want %v", tc.baseMs, tc.attempt, tc.rand01, got, tc.want)
			}
		})
	}
}

func TestComputeBounds(t *testing.T) {
	baseMs := int64(50)
	for attempt := 1; attempt <= 5; attempt++ {
		base := baseMs
		for i := 1; i < attempt; i++ {
			base *= 2
		}
		max := time.Duration(2*base) * time.Millisecond
		for _, r := range []float64{0, 0.25, 0.5, 0.75, 0.999} {
			got := Compute(baseMs, attempt, r)
			if got < 0 || got > max {
				t.Errorf("Compute(%d, %d, %v) = %v, want within [0, %v]", baseMs, attempt, r, got, max)
			}
		}
	}
}
