package types

import "fmt"

// RowBuffer holds the iteration counts of consecutive canvas rows, row-major.
//
// Its length is always a whole number of rows for the canvas width it was
// produced for. A buffer is produced once, transmitted once and released after
// the collector has handed it to the encoder.
type RowBuffer []int32

// Rows returns how many rows of the given width the buffer holds.
//
// Parameters:
//   - width: Canvas width in pixels
//
// Returns:
//   - int: Number of complete rows
//   - error: ErrMisalignedBuffer if the length is not a multiple of width
func (b RowBuffer) Rows(width int) (int, error) {
	if width <= 0 {
		return 0, fmt.Errorf("%w: width must be > 0, got %d", ErrMisalignedBuffer, width)
	}
	if len(b)%width != 0 {
		return 0, fmt.Errorf("%w: %d elements is not a multiple of width %d", ErrMisalignedBuffer, len(b), width)
	}

	return len(b) / width, nil
}

// Row returns row i of the buffer without copying.
//
// The caller must have validated the buffer with Rows first.
func (b RowBuffer) Row(width, i int) []int32 {
	return b[i*width : (i+1)*width]
}
