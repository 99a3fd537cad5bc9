// Package progress reports pixel progress of a render.
//
// Ranks count computed pixels locally. In distributed runs each rank
// publishes its count to NATS KV and the coordinator's Tracker sums them.
// A Printer renders the running total as a single console line that is
// overwritten in place.
package progress

import (
	"fmt"
	"io"
	"sync"
)

// Printer writes "\r<label> Pixel Progress: P% Pixel Count: N" lines.
//
// A line is printed each time the count crosses a multiple of the step and
// once more, newline-terminated, when the total is reached. A nil *Printer is valid and prints nothing.
type Printer struct {
	w     io.Writer
	label string
	total int64
	step  int64

	mu       sync.Mutex
	done     int64
	lastStep int64
	printed  bool
	final    bool
}

// NewPrinter creates a printer.
//
// Parameters:
//   - w: Destination (stdout in the CLI)
//   - label: Phase label, e.g. "Mandelbrot" or "PNG"
//   - total: Pixel count at 100%
//   - step: Print granularity in pixels; values < 1 print every update
func NewPrinter(w io.Writer, label string, total, step int64) *Printer {
	if step < 1 {
		step = 1
	}

	return &Printer{w: w, label: label, total: total, step: step}
}

// Add advances the count by n pixels.
func (p *Printer) Add(n int) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.setLocked(p.done + int64(n))
}

// Set moves the count to done. Counts never go backwards.
func (p *Printer) Set(done int64) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.setLocked(done)
}

func (p *Printer) setLocked(done int64) {
	if done <= p.done {
		return
	}
	p.done = done

	step := done / p.step
	switch {
	case done >= p.total && !p.final:
		p.final = true
	case step > p.lastStep && done < p.total:
	default:
		return
	}
	p.lastStep = step

	percent := 0.0
	if p.total > 0 {
		percent = float64(done) / float64(p.total) * 100
	}
	p.printed = true
	_, _ = fmt.Fprintf(p.w, "\r%s Pixel Progress: %.2f%% Pixel Count: %d", p.label, percent, done)
	if p.final {
		_, _ = fmt.Fprintln(p.w)
	}
}

// Done returns the current count.
func (p *Printer) Done() int64 {
	if p == nil {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.done
}

// Finish ends a progress line that stopped short of the total.
// The line of a completed phase already ends with a newline.
func (p *Printer) Finish() {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.printed && !p.final {
		p.final = true
		_, _ = fmt.Fprintln(p.w)
	}
}
