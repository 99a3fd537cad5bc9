// Package transport holds what the worker-to-coordinator transports share:
// the frame tags of the two-frame protocol, receive-buffer allocation, and
// common options.
//
// A contribution is always sent as a length frame (element count) followed
// by a payload frame. Receivers reject a payload that arrives first or whose
// size disagrees with the announced length.
package transport

import (
	"fmt"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/internal/metrics"
	"github.com/Brandon-Parker9/fractal/types"
)

// Tag identifies the kind of a frame.
type Tag uint8

const (
	// TagLength marks the frame announcing a contribution's element count.
	TagLength Tag = 1
	// TagPayload marks the frame carrying the iteration counts.
	TagPayload Tag = 2
)

// String returns the tag name used in subjects and headers.
func (t Tag) String() string {
	switch t {
	case TagLength:
		return "length"
	case TagPayload:
		return "payload"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Metric directions passed to RecordTransfer.
const (
	DirectionSend    = "send"
	DirectionReceive = "receive"
)

// BytesPerElement is the wire size of one iteration count.
const BytesPerElement = 4

// Options are the settings common to every transport.
type Options struct {
	// MaxElements bounds the announced length a receiver will allocate for.
	// Zero means no bound beyond what the runtime can allocate.
	MaxElements int
	Logger      types.Logger
	Metrics     types.MetricsCollector
}

// Option configures a transport.
type Option func(*Options)

// WithMaxElements bounds receive allocations, normally to the canvas pixel count.
func WithMaxElements(n int) Option {
	return func(o *Options) { o.MaxElements = n }
}

// WithLogger sets the transport logger.
func WithLogger(l types.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics sets the transport metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *Options) { o.Metrics = m }
}

// Apply builds Options from opts with no-op logger and metrics defaults.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	o.Logger = logger.OrNop(o.Logger)
	o.Metrics = metrics.OrNop(o.Metrics)

	return o
}

// Alloc prepares a receive buffer for an announced length.
//
// Returns:
//   - types.RowBuffer: Zeroed buffer of n elements
//   - error: types.ErrProtocol for a negative length, types.ErrAllocation when
//     n exceeds maxElements or the runtime refuses the allocation
func Alloc(n, maxElements int) (buf types.RowBuffer, err error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", types.ErrProtocol, n)
	}
	if maxElements > 0 && n > maxElements {
		return nil, fmt.Errorf("%w: announced %d elements exceeds bound %d", types.ErrAllocation, n, maxElements)
	}

	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %d elements: %v", types.ErrAllocation, n, r)
		}
	}()

	return make(types.RowBuffer, n), nil
}

// CheckRank returns types.ErrInvalidRank unless 0 <= rank < size.
func CheckRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, rank, size)
	}

	return nil
}
