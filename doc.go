// Package fractal renders Mandelbrot and Julia sets to PNG with the work
// split across ranks.
//
// Rows of the image are partitioned into contiguous ranges, one per rank.
// Every rank computes escape-time iteration counts for its rows; rank 0, the
// coordinator, collects the rows in rank order, maps them through one of
// fourteen palettes and streams them into an RGBA PNG, one row at a time.
//
// # Quick Start
//
// All-in-one render with four worker goroutines:
//
//	cfg := fractal.DefaultConfig()
//	cfg.Width, cfg.Height = 1000, 1000
//	cfg.Palette = 3
//
//	r, err := fractal.NewRenderer(&cfg, fractal.WithConsole(os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := r.RunLocal(ctx, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report.WriteTo(os.Stdout)
//
// # Run Modes
//
//   - RunSerial: one rank, no transport
//   - RunLocal: N goroutines in one process over an embedded NATS server
//     (or the in-memory transport when transport.kind is "memory")
//   - RunWorker: one rank of a distributed run; ranks share a NATS server
//     with JetStream and either get their rank from the launcher environment
//     or claim one from a KV bucket
//
// # Architecture
//
// Each rank goes through:
//
//	start barrier → compute rows → send (or collect + encode) → end barrier
//
// The elapsed time in the Report is measured between the two barriers.
// Rows travel as a length frame followed by the payload, chunked and
// checksummed on the JetStream transport. The run ID scopes subjects and KV
// keys so concurrent runs do not mix.
//
// See the examples/ directory for complete working examples.
package fractal
