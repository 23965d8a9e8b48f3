package main

import (
	"fmt"
	"io"
	"strings"
)

// barProgress renders audio-seconds progress as a single redrawn line.
type barProgress struct {
	out     io.Writer
	width   int
	total   float64
	current float64
	active  bool
}

func newBarProgress(out io.Writer, width int) *barProgress {
	return &barProgress{out: out, width: width}
}

func (b *barProgress) Start(total float64) {
	b.total = total
	b.current = 0
	b.active = true
	b.draw()
}

func (b *barProgress) Add(inc float64) {
	if !b.active {
		return
	}
	b.current += inc
	b.draw()
}

func (b *barProgress) Finish() {
	if !b.active {
		return
	}
	b.active = false
	fmt.Fprintln(b.out)
}

func (b *barProgress) draw() {
	frac := 0.0
	if b.total > 0 {
		frac = b.current / b.total
	}
	// Overlapping segments yield negative increments, so the sum can drop below 0.
	frac = min(max(frac, 0), 1)
	filled := int(frac * float64(b.width))
	fmt.Fprintf(b.out, "\r|%s%s| %3.0f%% %.2f/%.2f",
		strings.Repeat("█", filled), strings.Repeat(" ", b.width-filled),
		frac*100, b.current, b.total)
}
