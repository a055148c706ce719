package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 30

// renderBar draws percent (0-100) as a fixed-width block bar.
func renderBar(percent float64) string {
	percent = min(max(percent, 0), 100)
	filled := int(percent / 100 * barWidth)
	return fmt.Sprintf("[%s%s] %5.1f%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", barWidth-filled),
		percent)
}

// barSink redraws a progress bar in place on every report.
type barSink struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	last  float64
	drawn bool
}

func newBarSink(out io.Writer, label string) *barSink {
	return &barSink{out: out, label: label}
}

func (b *barSink) Report(percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = percent
	b.drawn = true
	fmt.Fprintf(b.out, "\r%s %s", b.label, renderBar(percent))
}

// Done ends the bar line.
func (b *barSink) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawn {
		fmt.Fprintln(b.out)
		b.drawn = false
	}
}
