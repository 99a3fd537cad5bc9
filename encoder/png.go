// Package encoder writes rendered rows to an image stream.
//
// The PNG encoder accepts one row at a time and emits compressed data as it
// goes, so the full canvas never has to be held in memory. image/png only
// encodes complete images, which is why the chunk layout is written here.
package encoder

import (
	"bufio"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/Brandon-Parker9/fractal/types"
)

// Encoder errors.
var (
	// ErrRowWidth is returned when a row does not hold exactly width*4 bytes.
	ErrRowWidth = errors.New("row byte length does not match image width")

	// ErrRowCount is returned when more than height rows are written, or the
	// stream is closed before height rows were written.
	ErrRowCount = errors.New("row count does not match image height")

	// ErrClosed is returned when writing to a closed encoder.
	ErrClosed = errors.New("encoder closed")
)

const (
	bytesPerPixel = 4

	colorTypeRGBA = 6
	bitDepth      = 8
	filterNone    = 0

	defaultChunkSize = 64 * 1024
)

var pngSignature = [8]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// RowMapper converts iteration counts into RGBA bytes.
//
// *palette.Mapper satisfies this interface.
type RowMapper interface {
	AppendRow(dst []byte, row []int32) []byte
}

// Option configures a PNG encoder.
type Option func(*options)

type options struct {
	level     int
	chunkSize int
	onRow     func(rows int)
}

// WithCompressionLevel sets the zlib compression level (default zlib.DefaultCompression).
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithChunkSize sets the maximum payload of each IDAT chunk (default 64 KiB).
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithRowCallback registers a function called after every written row with
// the number of rows written so far.
func WithRowCallback(fn func(rows int)) Option {
	return func(o *options) {
		o.onRow = fn
	}
}

// PNG streams an 8-bit RGBA, non-interlaced PNG image.
//
// Rows must be written top to bottom. The encoder is not safe for concurrent use.
type PNG struct {
	bw     *bufio.Writer
	idat   *chunkWriter
	zw     *zlib.Writer
	width  int
	height int
	rows   int
	onRow  func(rows int)

	scanline []byte
	rgba     []byte
	closed   bool
	err      error
}

// NewPNG writes the PNG header to w and returns an encoder for the image rows.
//
// Parameters:
//   - w: Destination stream
//   - width: Image width in pixels (> 0)
//   - height: Image height in pixels (> 0)
//   - opts: Optional encoder settings
//
// Returns:
//   - *PNG: Encoder ready for WriteRow
//   - error: types.ErrInvalidCanvas for bad dimensions, or the write error
//
// Example:
//
//	enc, err := encoder.NewPNG(f, 100, 100)
//	for _, buf := range buffers {
//	    if err := enc.WriteRows(buf, mapper); err != nil { ... }
//	}
//	err = enc.Close()
func NewPNG(w io.Writer, width, height int, opts ...Option) (*PNG, error) {
	if width <= 0 || height <= 0 || width > 1<<31-1 || height > 1<<31-1 {
		return nil, fmt.Errorf("%w: PNG dimensions %dx%d out of range", types.ErrInvalidCanvas, width, height)
	}

	o := options{level: zlib.DefaultCompression, chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}

	bw := bufio.NewWriter(w)
	e := &PNG{
		bw:       bw,
		width:    width,
		height:   height,
		onRow:    o.onRow,
		scanline: make([]byte, 0, 1+width*bytesPerPixel),
		rgba:     make([]byte, 0, width*bytesPerPixel),
	}

	if _, err := bw.Write(pngSignature[:]); err != nil {
		return nil, fmt.Errorf("%w: failed to write PNG signature: %w", types.ErrOutputFailed, err)
	}

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(width))  //nolint:gosec // bounded above
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(height)) //nolint:gosec // bounded above
	ihdr[8] = bitDepth
	ihdr[9] = colorTypeRGBA
	// compression method, filter method and interlace method are all 0
	if err := writeChunk(bw, "IHDR", ihdr[:]); err != nil {
		return nil, err
	}

	e.idat = &chunkWriter{w: bw, buf: make([]byte, 0, o.chunkSize)}
	zw, err := zlib.NewWriterLevel(e.idat, o.level)
	if err != nil {
		return nil, fmt.Errorf("invalid compression level %d: %w", o.level, err)
	}
	e.zw = zw

	return e, nil
}

// Width returns the image width in pixels.
func (e *PNG) Width() int { return e.width }

// Height returns the image height in pixels.
func (e *PNG) Height() int { return e.height }

// Rows returns the number of rows written so far.
func (e *PNG) Rows() int { return e.rows }

// WriteRow appends one row of RGBA bytes.
//
// Parameters:
//   - rgba: Exactly width*4 bytes
//
// Returns:
//   - error: ErrRowWidth, ErrRowCount when the image is already complete,
//     ErrClosed, or the underlying write error
func (e *PNG) WriteRow(rgba []byte) error {
	if err := e.check(); err != nil {
		return err
	}
	if len(rgba) != e.width*bytesPerPixel {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrRowWidth, len(rgba), e.width*bytesPerPixel)
	}
	if e.rows >= e.height {
		return fmt.Errorf("%w: image already has %d rows", ErrRowCount, e.height)
	}

	e.scanline = append(e.scanline[:0], filterNone)
	e.scanline = append(e.scanline, rgba...)
	if _, err := e.zw.Write(e.scanline); err != nil {
		e.err = fmt.Errorf("failed to write row %d: %w", e.rows, err)
		return e.err
	}

	e.rows++
	if e.onRow != nil {
		e.onRow(e.rows)
	}

	return nil
}

// WriteRows maps and writes every row of a row buffer.
//
// Parameters:
//   - buf: Iteration counts; its length must be a multiple of width
//   - m: Mapper converting counts to RGBA
//
// Returns:
//   - error: types.ErrMisalignedBuffer, ErrRowCount, or a write error
func (e *PNG) WriteRows(buf types.RowBuffer, m RowMapper) error {
	if err := e.check(); err != nil {
		return err
	}

	n, err := buf.Rows(e.width)
	if err != nil {
		return err
	}
	if e.rows+n > e.height {
		return fmt.Errorf("%w: %d rows would exceed height %d (already wrote %d)", ErrRowCount, n, e.height, e.rows)
	}

	for i := range n {
		e.rgba = m.AppendRow(e.rgba[:0], buf.Row(e.width, i))
		if err := e.WriteRow(e.rgba); err != nil {
			return err
		}
	}

	return nil
}

// Close finishes the compressed stream and writes the trailing chunks.
//
// Close fails with ErrRowCount if fewer than height rows were written; the
// output is then not a valid image. Calling Close twice returns ErrClosed.
func (e *PNG) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true

	if e.err != nil {
		return e.err
	}
	if e.rows != e.height {
		return fmt.Errorf("%w: wrote %d of %d rows", ErrRowCount, e.rows, e.height)
	}

	if err := e.zw.Close(); err != nil {
		return fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	if err := e.idat.flush(); err != nil {
		return err
	}
	if err := writeChunk(e.bw, "IEND", nil); err != nil {
		return err
	}
	if err := e.bw.Flush(); err != nil {
		return fmt.Errorf("%w: failed to flush PNG stream: %w", types.ErrOutputFailed, err)
	}

	return nil
}

func (e *PNG) check() error {
	if e.closed {
		return ErrClosed
	}

	return e.err
}

// chunkWriter collects compressed bytes and emits them as IDAT chunks.
type chunkWriter struct {
	w   io.Writer
	buf []byte
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(cap(c.buf)-len(c.buf), len(p))
		c.buf = append(c.buf, p[:n]...)
		p = p[n:]
		written += n

		if len(c.buf) == cap(c.buf) {
			if err := c.flush(); err != nil {
				return written, err
			}
		}
	}

	return written, nil
}

func (c *chunkWriter) flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	if err := writeChunk(c.w, "IDAT", c.buf); err != nil {
		return err
	}
	c.buf = c.buf[:0]

	return nil
}

func writeChunk(w io.Writer, name string, data []byte) error {
	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data))) //nolint:gosec // chunk payloads are bounded by chunkSize
	copy(header[4:], name)

	crc := crc32.NewIEEE()
	_, _ = crc.Write(header[4:])
	_, _ = crc.Write(data)

	var footer [4]byte
	binary.BigEndian.PutUint32(footer[:], crc.Sum32())

	for _, part := range [][]byte{header[:], data, footer[:]} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("%w: failed to write %s chunk: %w", types.ErrOutputFailed, name, err)
		}
	}

	return nil
}
