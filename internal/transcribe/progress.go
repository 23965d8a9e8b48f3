package transcribe

// TrackerState is the lifecycle state of a ProgressTracker.
type TrackerState int

const (
	// TrackerIdle means no Info has been observed; progress is suppressed.
	TrackerIdle TrackerState = iota
	// TrackerInfoKnown means the total duration is known but no segment has arrived.
	TrackerInfoKnown
	// TrackerAccumulating means at least one increment has been emitted.
	TrackerAccumulating
)

func (s TrackerState) String() string {
	switch s {
	case TrackerIdle:
		return "idle"
	case TrackerInfoKnown:
		return "info-known"
	case TrackerAccumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// ProgressTracker converts segment end times into progress increments
// relative to the declared total duration. The accumulated progress never
// exceeds the total, even when segment end estimates overrun it.
//
// The baseline for each increment is the previous segment's end, so gaps
// and overlaps between segments are counted literally.
type ProgressTracker struct {
	state        TrackerState
	total        float64
	lastPosition float64
	accumulated  float64
}

// Observe records the total duration from the stream header.
func (t *ProgressTracker) Observe(info Info) {
	t.total = info.Duration
	if t.state == TrackerIdle {
		t.state = TrackerInfoKnown
	}
}

// Advance consumes a segment end time and returns the increment to report.
// ok is false while no Info has been observed.
func (t *ProgressTracker) Advance(end float64) (increment float64, ok bool) {
	if t.state == TrackerIdle {
		return 0, false
	}

	raw := end - t.lastPosition
	if t.accumulated+raw < t.total {
		increment = raw
	} else {
		increment = t.total - t.accumulated
	}
	t.accumulated += increment
	t.lastPosition = end
	t.state = TrackerAccumulating
	return increment, true
}

// State returns the current lifecycle state.
func (t *ProgressTracker) State() TrackerState { return t.state }

// Total returns the declared total duration, 0 while idle.
func (t *ProgressTracker) Total() float64 { return t.total }

// Accumulated returns the progress reported so far.
func (t *ProgressTracker) Accumulated() float64 { return t.accumulated }
