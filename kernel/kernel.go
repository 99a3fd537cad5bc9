// Package kernel evaluates escape-time fractals.
//
// The kernel is pure: every pixel depends only on the canvas and its own
// coordinates, so rows can be computed in any order and on any worker.
package kernel

import "github.com/Brandon-Parker9/fractal/types"

// EscapeRadiusSquared is the squared magnitude beyond which an orbit escapes.
const EscapeRadiusSquared = 4.0

// Interior is reported for points whose orbit never escapes within the
// iteration cap.
//
// The value is shared with "escaped before the first iteration". Mandelbrot
// orbits start at zero and always iterate at least once, but a Julia pixel
// with |z0| > 2 reports 0 and cannot be told apart from an interior point.
// Palettes paint both black.
const Interior int32 = 0

// Iterate runs z <- z*z + c from z0 until |z| > 2 or maxIter iterations.
//
// Parameters:
//   - zr, zi: Starting value of z
//   - cr, ci: The constant c
//   - maxIter: Iteration cap
//
// Returns:
//   - int32: Number of iterations performed, or Interior if the cap was reached
func Iterate(zr, zi, cr, ci float64, maxIter int) int32 {
	xx, yy := zr, zi
	n := 0
	for xx*xx+yy*yy <= EscapeRadiusSquared && n < maxIter {
		xtemp := xx*xx - yy*yy + cr
		yy = 2*xx*yy + ci
		xx = xtemp
		n++
	}

	if n == maxIter {
		return Interior
	}

	return int32(n) //nolint:gosec // n <= maxIter <= MaxInt32, enforced by Canvas.Validate
}

// Kernel maps canvas pixels onto the complex plane and evaluates the fractal.
type Kernel struct {
	canvas types.Canvas
	xStep  float64
	yStep  float64
}

// New creates a kernel for the given canvas.
//
// Parameters:
//   - canvas: Canvas geometry, bounds and mode (validated by the caller)
//
// Returns:
//   - *Kernel: Kernel bound to the canvas
func New(canvas types.Canvas) *Kernel {
	return &Kernel{
		canvas: canvas,
		xStep:  (canvas.Bounds.XMax - canvas.Bounds.XMin) / float64(canvas.Width),
		yStep:  (canvas.Bounds.YMax - canvas.Bounds.YMin) / float64(canvas.Height),
	}
}

// Canvas returns the canvas the kernel was built for.
func (k *Kernel) Canvas() types.Canvas {
	return k.canvas
}

// Point maps pixel (x, y) to the complex plane.
//
// Row 0 maps to YMin; rows are not flipped.
func (k *Kernel) Point(x, y int) (float64, float64) {
	return k.canvas.Bounds.XMin + float64(x)*k.xStep, k.canvas.Bounds.YMin + float64(y)*k.yStep
}

// Escape returns the iteration count of pixel (x, y).
func (k *Kernel) Escape(x, y int) int32 {
	px, py := k.Point(x, y)
	if k.canvas.Mode == types.ModeJulia {
		return Iterate(px, py, k.canvas.JuliaC.Real, k.canvas.JuliaC.Imag, k.canvas.MaxIteration)
	}

	return Iterate(0, 0, px, py, k.canvas.MaxIteration)
}

// ComputeRows evaluates rows [start, end) into a new row buffer.
//
// progress, when not nil, is called after each row with the number of pixels
// just computed.
//
// Parameters:
//   - start: First row (inclusive)
//   - end: Last row (exclusive); start == end yields an empty buffer
//   - progress: Optional per-row callback
//
// Returns:
//   - types.RowBuffer: (end-start)*width iteration counts, row-major
func (k *Kernel) ComputeRows(start, end int, progress func(pixels int)) types.RowBuffer {
	width := k.canvas.Width
	if end <= start {
		return types.RowBuffer{}
	}

	buf := make(types.RowBuffer, (end-start)*width)
	for y := start; y < end; y++ {
		row := buf[(y-start)*width : (y-start+1)*width]
		for x := range row {
			row[x] = k.Escape(x, y)
		}
		if progress != nil {
			progress(width)
		}
	}

	return buf
}

// Compute evaluates the rows of an assignment.
func (k *Kernel) Compute(a types.WorkerAssignment, progress func(pixels int)) types.RowBuffer {
	return k.ComputeRows(a.StartRow, a.EndRow, progress)
}
