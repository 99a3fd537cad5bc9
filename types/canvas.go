package types

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects which escape-time fractal a kernel evaluates.
type Mode int

const (
	// ModeMandelbrot iterates z from zero with c taken from the pixel.
	ModeMandelbrot Mode = iota
	// ModeJulia iterates z from the pixel with a fixed constant c.
	ModeJulia
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMandelbrot:
		return "mandelbrot"
	case ModeJulia:
		return "julia"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a configuration string into a Mode.
//
// Parameters:
//   - s: Mode name, case-insensitive ("mandelbrot" or "julia")
//
// Returns:
//   - Mode: Parsed mode
//   - error: ErrUnknownMode if the name is not recognized
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mandelbrot":
		return ModeMandelbrot, nil
	case "julia":
		return ModeJulia, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Complex is a point in the complex plane.
type Complex struct {
	Real float64 `yaml:"real"`
	Imag float64 `yaml:"imag"`
}

// Bounds is the rectangle of the complex plane mapped onto the canvas.
type Bounds struct {
	XMin float64 `yaml:"xMin"`
	XMax float64 `yaml:"xMax"`
	YMin float64 `yaml:"yMin"`
	YMax float64 `yaml:"yMax"`
}

// IsZero reports whether no bound has been set.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Canvas describes the raster being rendered.
//
// A Canvas is fixed for the duration of a run and passed by value to every
// component that needs the image geometry.
type Canvas struct {
	Width        int
	Height       int
	MaxIteration int
	Bounds       Bounds
	Mode         Mode

	// JuliaC is the constant added on every iteration in ModeJulia.
	JuliaC Complex
}

// Pixels returns the total number of pixels on the canvas.
func (c Canvas) Pixels() int {
	return c.Width * c.Height
}

// Validate checks that the canvas can be rendered.
//
// Returns:
//   - error: ErrInvalidCanvas wrapped with the offending field, nil if valid
func (c Canvas) Validate() error {
	switch {
	case c.Width <= 0:
		return fmt.Errorf("%w: width must be > 0, got %d", ErrInvalidCanvas, c.Width)
	case c.Height <= 0:
		return fmt.Errorf("%w: height must be > 0, got %d", ErrInvalidCanvas, c.Height)
	case c.MaxIteration <= 0:
		return fmt.Errorf("%w: max iteration must be > 0, got %d", ErrInvalidCanvas, c.MaxIteration)
	case c.MaxIteration > math.MaxInt32:
		return fmt.Errorf("%w: max iteration must fit in int32, got %d", ErrInvalidCanvas, c.MaxIteration)
	case c.Bounds.XMax <= c.Bounds.XMin:
		return fmt.Errorf("%w: xMax (%v) must be > xMin (%v)", ErrInvalidCanvas, c.Bounds.XMax, c.Bounds.XMin)
	case c.Bounds.YMax <= c.Bounds.YMin:
		return fmt.Errorf("%w: yMax (%v) must be > yMin (%v)", ErrInvalidCanvas, c.Bounds.YMax, c.Bounds.YMin)
	case c.Mode != ModeMandelbrot && c.Mode != ModeJulia:
		return fmt.Errorf("%w: %s", ErrUnknownMode, c.Mode)
	}

	return nil
}
