package transcribe

import (
	"fmt"
	"io"
	"math"
)

// Display prints human-readable progress of a transcription. It is the
// only place text is sanitized for the output encoding.
type Display struct {
	out      io.Writer
	sanitize Sanitizer
}

// NewDisplay writes to out, passing every line through sanitize.
// A nil sanitize means Identity.
func NewDisplay(out io.Writer, sanitize Sanitizer) *Display {
	if sanitize == nil {
		sanitize = Identity
	}
	return &Display{out: out, sanitize: sanitize}
}

// Language prints the detected-language line.
func (d *Display) Language(name string, probability float64) {
	d.println(fmt.Sprintf("Detected language '%s' with probability %f", name, probability))
}

// Segment prints one timestamped segment line.
func (d *Display) Segment(start, end float64, text string) {
	d.println(fmt.Sprintf("[%s --> %s] %s", FormatTimestamp(start, false, "."), FormatTimestamp(end, false, "."), text))
}

func (d *Display) println(line string) {
	fmt.Fprintln(d.out, d.sanitize(line))
}

// FormatTimestamp renders seconds as [HH:]MM:SS<marker>mmm. Hours are shown
// when non-zero or when alwaysHours is set. Negative input renders as zero.
func FormatTimestamp(seconds float64, alwaysHours bool, decimalMarker string) string {
	ms := int64(math.Round(seconds * 1000))
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	secs := ms / 1000
	ms -= secs * 1000

	hoursMarker := ""
	if alwaysHours || hours > 0 {
		hoursMarker = fmt.Sprintf("%02d:", hours)
	}
	return fmt.Sprintf("%s%02d:%02d%s%03d", hoursMarker, minutes, secs, decimalMarker, ms)
}

// ProgressSink receives progress scaled to the declared total duration.
// Rendering is up to the implementation.
type ProgressSink interface {
	Start(total float64)
	Add(increment float64)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Start(float64) {}
func (nopProgress) Add(float64)   {}
func (nopProgress) Finish()       {}

// NopProgress discards all progress.
var NopProgress ProgressSink = nopProgress{}
