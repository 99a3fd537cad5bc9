// Package memory implements types.Transport over in-process channels.
//
// It serves local runs that do not need NATS and is the reference behavior
// the JetStream transport is tested against.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Brandon-Parker9/fractal/transport"
	"github.com/Brandon-Parker9/fractal/types"
)

type frame struct {
	tag     transport.Tag
	length  int
	payload types.RowBuffer
}

// Transport delivers contributions between goroutines of one process.
//
// Each rank has its own buffered channel holding both frames of a send, so a
// worker never blocks on a coordinator that is still receiving lower ranks.
type Transport struct {
	size  int
	chans []chan frame
	opts  transport.Options

	closeOnce sync.Once
	closed    chan struct{}
}

// Compile-time assertion that Transport implements types.Transport.
var _ types.Transport = (*Transport)(nil)

// New creates a transport for size ranks.
func New(size int, opts ...transport.Option) *Transport {
	t := &Transport{
		size:   size,
		chans:  make([]chan frame, size),
		opts:   transport.Apply(opts...),
		closed: make(chan struct{}),
	}
	for i := range t.chans {
		t.chans[i] = make(chan frame, 2)
	}

	return t
}

// Send queues the length frame and then the payload frame for rank.
//
// The payload is handed over, not copied; the caller must not modify buf afterwards.
func (t *Transport) Send(ctx context.Context, rank int, buf types.RowBuffer) error {
	if err := transport.CheckRank(rank, t.size); err != nil {
		return err
	}

	frames := []frame{
		{tag: transport.TagLength, length: len(buf)},
		{tag: transport.TagPayload, payload: buf},
	}
	for _, f := range frames {
		if err := t.put(ctx, rank, f); err != nil {
			t.opts.Metrics.RecordTransfer(transport.DirectionSend, 0, false)
			return err
		}
	}

	t.opts.Metrics.RecordTransfer(transport.DirectionSend, len(buf)*transport.BytesPerElement, true)
	t.opts.Logger.Debug("contribution sent", "rank", rank, "elements", len(buf))

	return nil
}

// Receive waits for the length frame and payload frame of rank.
func (t *Transport) Receive(ctx context.Context, rank int) (types.RowBuffer, error) {
	if err := transport.CheckRank(rank, t.size); err != nil {
		return nil, err
	}

	buf, err := t.receive(ctx, rank)
	if err != nil {
		t.opts.Metrics.RecordTransfer(transport.DirectionReceive, 0, false)
		return nil, err
	}

	t.opts.Metrics.RecordTransfer(transport.DirectionReceive, len(buf)*transport.BytesPerElement, true)

	return buf, nil
}

func (t *Transport) receive(ctx context.Context, rank int) (types.RowBuffer, error) {
	first, err := t.take(ctx, rank)
	if err != nil {
		return nil, err
	}
	if first.tag != transport.TagLength {
		return nil, fmt.Errorf("%w: rank %d sent %s before length", types.ErrProtocol, rank, first.tag)
	}

	buf, err := transport.Alloc(first.length, t.opts.MaxElements)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", rank, err)
	}

	second, err := t.take(ctx, rank)
	if err != nil {
		return nil, err
	}
	if second.tag != transport.TagPayload {
		return nil, fmt.Errorf("%w: rank %d sent %s, want payload", types.ErrProtocol, rank, second.tag)
	}
	if len(second.payload) != first.length {
		return nil, fmt.Errorf("%w: rank %d announced %d elements, sent %d",
			types.ErrProtocol, rank, first.length, len(second.payload))
	}
	copy(buf, second.payload)

	return buf, nil
}

func (t *Transport) put(ctx context.Context, rank int, f frame) error {
	select {
	case <-t.closed:
		return types.ErrTransportClosed
	default:
	}

	select {
	case t.chans[rank] <- f:
		return nil
	case <-t.closed:
		return types.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) take(ctx context.Context, rank int) (frame, error) {
	select {
	case f := <-t.chans[rank]:
		return f, nil
	case <-t.closed:
		return frame{}, types.ErrTransportClosed
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

// Close unblocks pending sends and receives with types.ErrTransportClosed.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })

	return nil
}
