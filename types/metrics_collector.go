package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Methods are called from worker goroutines and must be thread-safe.
//
// This interface composes smaller, stage-focused interfaces.
type MetricsCollector interface {
	KernelMetrics
	CollectorMetrics
	EncoderMetrics
	TransportMetrics
	RunMetrics
}

// KernelMetrics defines metrics for the escape-time computation.
type KernelMetrics interface {
	// RecordRowsComputed records rows computed by one rank.
	//
	// Parameters:
	//   - rank: Worker rank
	//   - rows: Number of rows computed
	//   - duration: Compute time in seconds
	RecordRowsComputed(rank int, rows int, duration float64)
}

// CollectorMetrics defines metrics for result collection on the coordinator.
type CollectorMetrics interface {
	// RecordContribution records a contribution handed to the sink.
	//
	// Parameters:
	//   - rank: Contributing rank
	//   - elements: Number of iteration counts in the contribution
	//   - wait: Seconds the coordinator waited for it
	RecordContribution(rank int, elements int, wait float64)
}

// EncoderMetrics defines metrics for the image encoder.
type EncoderMetrics interface {
	// RecordRowsEncoded records rows written to the image stream.
	RecordRowsEncoded(rows int)
}

// TransportMetrics defines metrics for worker-to-coordinator transmissions.
type TransportMetrics interface {
	// RecordTransfer records a transmission.
	//
	// Parameters:
	//   - direction: "send" or "receive"
	//   - bytes: Payload bytes transferred
	//   - success: false if the transfer failed
	RecordTransfer(direction string, bytes int, success bool)
}

// RunMetrics defines metrics for whole runs.
type RunMetrics interface {
	// RecordRun records a completed run.
	//
	// Parameters:
	//   - workers: Number of ranks in the run
	//   - duration: Elapsed seconds between the start and end barriers
	RecordRun(workers int, duration float64)
}
