package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/Brandon-Parker9/fractal/types"
)

// Sequential receives remote contributions one rank at a time, in rank order.
type Sequential struct {
	receiver types.Receiver
	size     int
	opts     options
}

// Compile-time assertion that Sequential implements Collector.
var _ types.Collector = (*Sequential)(nil)

// NewSequential creates a collector for size ranks reading from receiver.
func NewSequential(receiver types.Receiver, size int, opts ...Option) *Sequential {
	return &Sequential{receiver: receiver, size: size, opts: apply(opts)}
}

// Collect hands local to the sink as rank 0, then blocks on each remote rank in turn.
func (s *Sequential) Collect(ctx context.Context, local types.RowBuffer, sink types.RowSink) error {
	if err := deliver(sink, 0, local, 0, s.opts); err != nil {
		return err
	}

	for rank := 1; rank < s.size; rank++ {
		start := time.Now()
		buf, err := s.receiver.Receive(ctx, rank)
		if err != nil {
			return fmt.Errorf("collect rank %d: %w", rank, err)
		}

		if err := deliver(sink, rank, buf, time.Since(start), s.opts); err != nil {
			return err
		}
	}

	return nil
}

func deliver(sink types.RowSink, rank int, buf types.RowBuffer, wait time.Duration, o options) error {
	o.metrics.RecordContribution(rank, len(buf), wait.Seconds())
	o.logger.Debug("contribution collected", "rank", rank, "elements", len(buf), "wait", wait)

	if err := sink(rank, buf); err != nil {
		return fmt.Errorf("sink rank %d: %w", rank, err)
	}

	return nil
}
