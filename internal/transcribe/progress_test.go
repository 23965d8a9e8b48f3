package transcribe

import (
	"math"
	"testing"
)

func TestProgressTracker(t *testing.T) {
	t.Run("idle_suppresses_progress", func(t *testing.T) {
		var tr ProgressTracker
		if tr.State() != TrackerIdle {
			t.Fatalf("State = %v, want idle", tr.State())
		}
		if inc, ok := tr.Advance(5); ok || inc != 0 {
			t.Errorf("Advance while idle = (%v, %v), want (0, false)", inc, ok)
		}
		if tr.Accumulated() != 0 {
			t.Errorf("Accumulated = %v, want 0", tr.Accumulated())
		}
	})

	t.Run("state_transitions", func(t *testing.T) {
		var tr ProgressTracker
		tr.Observe(Info{Duration: 10})
		if tr.State() != TrackerInfoKnown {
			t.Fatalf("State = %v, want info-known", tr.State())
		}
		tr.Advance(1)
		if tr.State() != TrackerAccumulating {
			t.Fatalf("State = %v, want accumulating", tr.State())
		}
	})

	t.Run("hello_world_increments", func(t *testing.T) {
		var tr ProgressTracker
		tr.Observe(Info{Language: "en", Duration: 10})
		var got []float64
		for _, end := range []float64{4, 10} {
			inc, ok := tr.Advance(end)
			if !ok {
				t.Fatal("Advance suppressed after Observe")
			}
			got = append(got, inc)
		}
		if got[0] != 4 || got[1] != 6 {
			t.Errorf("increments = %v, want [4 6]", got)
		}
		if tr.Accumulated() != 10 {
			t.Errorf("Accumulated = %v, want 10", tr.Accumulated())
		}
	})

	t.Run("clamps_overrun", func(t *testing.T) {
		var tr ProgressTracker
		tr.Observe(Info{Duration: 10})
		tr.Advance(7)
		inc, _ := tr.Advance(12.5)
		if inc != 3 {
			t.Errorf("increment = %v, want 3", inc)
		}
		inc, _ = tr.Advance(14)
		if inc != 0 {
			t.Errorf("increment after total reached = %v, want 0", inc)
		}
		if tr.Accumulated() != 10 {
			t.Errorf("Accumulated = %v, want 10", tr.Accumulated())
		}
	})

	t.Run("gaps_use_previous_end_as_baseline", func(t *testing.T) {
		var tr ProgressTracker
		tr.Observe(Info{Duration: 30})
		tr.Advance(5)
		// Segment [8, 12]: the 5→8 gap counts as progress.
		inc, _ := tr.Advance(12)
		if inc != 7 {
			t.Errorf("increment = %v, want 7", inc)
		}
	})

	t.Run("never_exceeds_total", func(t *testing.T) {
		ends := []float64{0.4, 2.2, 2.1, 5, 9.9, 11, 11.5, 30}
		var tr ProgressTracker
		tr.Observe(Info{Duration: 10})
		var sum float64
		for _, e := range ends {
			inc, _ := tr.Advance(e)
			sum += inc
			if sum > 10+1e-9 {
				t.Fatalf("cumulative progress %v exceeds total after end=%v", sum, e)
			}
		}
		if math.Abs(sum-10) > 1e-9 {
			t.Errorf("cumulative progress = %v, want 10 once final end >= total", sum)
		}
	})
}
