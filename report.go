package fractal

import (
	"fmt"
	"io"
	"time"
)

// Report summarizes a finished render. Only the coordinator produces one.
type Report struct {
	// Width and Height of the image.
	Width  int
	Height int

	// Workers is the number of ranks that took part.
	Workers int

	// Elapsed is measured from the start barrier to the end barrier.
	Elapsed time.Duration

	// Resolution is the smallest clock interval the timings can resolve, in seconds.
	Resolution float64

	// Output is the path of the written PNG.
	Output string
}

// PerWorker returns Elapsed divided by the worker count.
func (r *Report) PerWorker() time.Duration {
	if r.Workers <= 0 {
		return r.Elapsed
	}

	return r.Elapsed / time.Duration(r.Workers)
}

// CSV returns the one-line summary W,H,workers,elapsed,perWorker,resolution
// with times in seconds.
func (r *Report) CSV() string {
	return fmt.Sprintf("%d,%d,%d,%e,%e,%e",
		r.Width, r.Height, r.Workers, r.Elapsed.Seconds(), r.PerWorker().Seconds(), r.Resolution)
}

// WriteTo prints the human-readable report followed by the CSV line.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"PNG image created successfully: %s\n"+
			"\n********** PNG Creation Time **********\n"+
			"Total processes: %d\n"+
			"Total computation time: %e seconds\n"+
			"Computation time per process: %e seconds\n"+
			"Resolution of timer: %e seconds\n"+
			"%s\n",
		r.Output, r.Workers, r.Elapsed.Seconds(), r.PerWorker().Seconds(), r.Resolution, r.CSV())

	return int64(n), err
}
