package transcribe

import (
	"math"
	"strings"
)

// Palette holds the ten ANSI 256-color markers used to emphasize words,
// ordered from lowest confidence (red) to highest (green).
var Palette = [10]string{
	"\033[38;5;196m",
	"\033[38;5;202m",
	"\033[38;5;208m",
	"\033[38;5;214m",
	"\033[38;5;220m",
	"\033[38;5;226m",
	"\033[38;5;190m",
	"\033[38;5;154m",
	"\033[38;5;118m",
	"\033[38;5;82m",
}

// ColorReset ends a colored run.
const ColorReset = "\033[0m"

// Bucket maps a word probability to a palette index. The cube spreads the
// high-confidence range, where most words sit, across more colors.
func Bucket(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	idx := int(math.Floor(math.Pow(p, 3) * float64(len(Palette))))
	return max(0, min(len(Palette)-1, idx))
}

// Colorize renders words as one line, each word wrapped in its confidence
// color and a reset marker.
func Colorize(words []Word) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(Palette[Bucket(w.Probability)])
		b.WriteString(w.Word)
		b.WriteString(ColorReset)
	}
	return b.String()
}
