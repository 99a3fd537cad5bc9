package types

import "context"

// RowSink consumes row buffers in canvas order.
//
// The collector calls the sink exactly once per rank, in ascending rank order,
// starting with the coordinator's own buffer as rank 0.
type RowSink func(rank int, buf RowBuffer) error

// Collector reassembles worker results on the coordinator.
//
// Implementations may receive contributions in any order internally, but they
// must hand buffers to the sink strictly in ascending rank order so the rows
// reach the encoder top to bottom.
type Collector interface {
	// Collect delivers the local buffer followed by every remote contribution.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - local: The coordinator's own rows (rank 0)
	//   - sink: Consumer invoked once per rank in rank order
	//
	// Returns:
	//   - error: First receive or sink error; collection stops immediately
	Collect(ctx context.Context, local RowBuffer, sink RowSink) error
}

// Sender transmits one worker's rows to the coordinator.
//
// A send consists of two ordered, tagged transmissions: the element count,
// then the payload.
type Sender interface {
	// Send transmits buf on behalf of rank.
	Send(ctx context.Context, rank int, buf RowBuffer) error
}

// Receiver accepts contributions on the coordinator.
type Receiver interface {
	// Receive blocks until the contribution of rank has fully arrived.
	//
	// Returns:
	//   - RowBuffer: The rank's rows
	//   - error: ErrProtocol for out-of-order or mismatched frames,
	//     ErrAllocation if the announced length cannot be buffered
	Receive(ctx context.Context, rank int) (RowBuffer, error)
}

// Transport is the point-to-point channel between workers and the coordinator.
type Transport interface {
	Sender
	Receiver

	// Close releases transport resources. It does not close borrowed connections.
	Close() error
}

// Barrier blocks until every rank of a run has reached the same named point.
type Barrier interface {
	// Wait registers the caller's arrival at name and blocks until all ranks arrived.
	Wait(ctx context.Context, name string) error
}
