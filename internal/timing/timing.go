// Package timing measures elapsed run time and the wall clock's resolution.
package timing

import "time"

// resolutionSamples bounds how many clock deltas Resolution inspects.
const resolutionSamples = 64

// Resolution returns the smallest positive difference observed between
// consecutive wall-clock readings, in seconds.
//
// It plays the role of a parallel environment's timer tick: the finest
// interval the elapsed times in the report can distinguish.
func Resolution() float64 {
	return resolution(time.Now, resolutionSamples)
}

func resolution(now func() time.Time, samples int) float64 {
	smallest := time.Duration(0)
	for range samples {
		start := now()
		next := now()
		// Spin until the clock ticks.
		for spins := 0; !next.After(start) && spins < 1_000_000; spins++ {
			next = now()
		}

		d := next.Sub(start)
		if d > 0 && (smallest == 0 || d < smallest) {
			smallest = d
		}
	}

	if smallest == 0 {
		smallest = time.Nanosecond
	}

	return smallest.Seconds()
}

// Stopwatch measures elapsed wall time from Start.
type Stopwatch struct {
	start time.Time
}

// Start returns a running stopwatch.
func Start() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// Elapsed returns the time since Start.
func (s Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Seconds returns the time since Start in seconds.
func (s Stopwatch) Seconds() float64 {
	return s.Elapsed().Seconds()
}
