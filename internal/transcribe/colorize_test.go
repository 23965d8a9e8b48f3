package transcribe

import (
	"math"
	"testing"
)

func TestBucket(t *testing.T) {
	tests := []struct {
		p    float64
		want int
	}{
		{0, 0},
		{0.3, 0},
		{0.5, 1},  // 0.125 → 1
		{0.8, 5},  // 0.512 → 5
		{0.9, 7},  // 0.729 → 7
		{0.95, 8}, // 0.857 → 8
		{0.99, 9}, // 0.970 → 9
		{1, 9},
		{-0.5, 0},
		{1.7, 9},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Bucket(tt.p); got != tt.want {
			t.Errorf("Bucket(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestBucketMatchesCubicRule(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		p := float64(i) / 1000
		want := int(math.Floor(p * p * p * 10))
		if want > 9 {
			want = 9
		}
		if got := Bucket(p); got != want {
			t.Fatalf("Bucket(%v) = %d, want %d", p, got, want)
		}
	}
}

func TestColorize(t *testing.T) {
	t.Run("wraps_each_word", func(t *testing.T) {
		got := Colorize([]Word{
			{Word: " low", Probability: 0.1},
			{Word: " high", Probability: 1},
		})
		want := "\033[38;5;196m low\033[0m" + "\033[38;5;82m high\033[0m"
		if got != want {
			t.Errorf("Colorize = %q, want %q", got, want)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := Colorize(nil); got != "" {
			t.Errorf("Colorize(nil) = %q, want empty", got)
		}
	})
}
