package palette

import (
	"fmt"
	"image/color"

	"github.com/Brandon-Parker9/fractal/types"
)

// Black is the color of interior points.
var Black = color.RGBA{A: 255}

// Mapper converts iteration counts to opaque RGBA colors.
type Mapper struct {
	palette      Palette
	maxIteration int
}

// NewMapper creates a mapper for a palette and iteration cap.
//
// Parameters:
//   - choice: Palette identifier
//   - maxIteration: Iteration cap used to normalize counts
//
// Returns:
//   - *Mapper: Ready-to-use mapper
//   - error: types.ErrUnknownPalette or types.ErrInvalidCanvas for a non-positive cap
//
// Example:
//
//	m, err := palette.NewMapper(palette.PolynomialGradient, 1000)
//	c := m.Map(250)
func NewMapper(choice Choice, maxIteration int) (*Mapper, error) {
	p, err := Lookup(choice)
	if err != nil {
		return nil, err
	}
	if maxIteration <= 0 {
		return nil, fmt.Errorf("%w: max iteration must be > 0, got %d", types.ErrInvalidCanvas, maxIteration)
	}

	return &Mapper{palette: p, maxIteration: maxIteration}, nil
}

// Palette returns the palette used by the mapper.
func (m *Mapper) Palette() Palette {
	return m.palette
}

// Map returns the color of an iteration count.
//
// Zero and the iteration cap are painted black regardless of palette.
func (m *Mapper) Map(iteration int32) color.RGBA {
	if iteration == 0 || int(iteration) == m.maxIteration {
		return Black
	}

	t := float64(iteration) / float64(m.maxIteration)
	r, g, b := m.palette.RGB(t)

	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// AppendRow appends the RGBA bytes of a row of iteration counts to dst.
//
// Parameters:
//   - dst: Destination slice, reused by callers to avoid per-row allocation
//   - row: Iteration counts of one canvas row
//
// Returns:
//   - []byte: dst extended by len(row)*4 bytes
func (m *Mapper) AppendRow(dst []byte, row []int32) []byte {
	for _, it := range row {
		c := m.Map(it)
		dst = append(dst, c.R, c.G, c.B, c.A)
	}

	return dst
}
