package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/Brandon-Parker9/fractal/types"
)

// Gather receives all remote contributions concurrently and releases them to
// the sink in rank order.
//
// A contribution that arrives early is parked until every lower rank has been
// delivered, so peak memory can reach the whole canvas.
type Gather struct {
	receiver types.Receiver
	size     int
	opts     options
}

// Compile-time assertion that Gather implements Collector.
var _ types.Collector = (*Gather)(nil)

type received struct {
	buf  types.RowBuffer
	err  error
	wait time.Duration
}

// NewGather creates a concurrent collector for size ranks reading from receiver.
func NewGather(receiver types.Receiver, size int, opts ...Option) *Gather {
	return &Gather{receiver: receiver, size: size, opts: apply(opts)}
}

// Collect hands local to the sink as rank 0, then each remote rank as soon as
// it and all lower ranks have arrived. The first receive or sink error stops
// outstanding receives and is returned.
func (g *Gather) Collect(ctx context.Context, local types.RowBuffer, sink types.RowSink) error {
	if err := deliver(sink, 0, local, 0, g.opts); err != nil {
		return err
	}
	if g.size <= 1 {
		return nil
	}

	// Cancel before waiting so early returns unblock outstanding receives.
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := xsync.NewMap[int, received]()
	ready := make([]chan struct{}, g.size)
	for rank := 1; rank < g.size; rank++ {
		ready[rank] = make(chan struct{})
	}

	limit := g.opts.concurrency
	if limit < 1 || limit > g.size-1 {
		limit = g.size - 1
	}
	sem := make(chan struct{}, limit)

	// Launch in rank order so a bounded pool serves the ranks the sink needs first.
	wg.Go(func() {
		for rank := 1; rank < g.size; rank++ {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			wg.Go(func() {
				defer func() { <-sem }()

				start := time.Now()
				buf, err := g.receiver.Receive(ctx, rank)
				pending.Store(rank, received{buf: buf, err: err, wait: time.Since(start)})
				close(ready[rank])
			})
		}
	})

	for rank := 1; rank < g.size; rank++ {
		select {
		case <-ready[rank]:
		case <-ctx.Done():
			return fmt.Errorf("collect rank %d: %w", rank, ctx.Err())
		}

		r, _ := pending.LoadAndDelete(rank)
		if r.err != nil {
			return fmt.Errorf("collect rank %d: %w", rank, r.err)
		}

		if err := deliver(sink, rank, r.buf, r.wait, g.opts); err != nil {
			return err
		}
	}

	return nil
}
