package fractal

import (
	"io"

	"github.com/nats-io/nats.go"
)

// Option configures a Renderer with optional dependencies.
type Option func(*rendererOptions)

// rendererOptions holds optional Renderer configuration.
type rendererOptions struct {
	logger    Logger
	metrics   MetricsCollector
	console   io.Writer
	transport Transport
	barrier   Barrier
	planner   PartitionPlanner
	conn      *nats.Conn
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation
//
// Returns:
//   - Option: Functional option for NewRenderer
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	r, err := fractal.NewRenderer(&cfg, fractal.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *rendererOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewRenderer
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *rendererOptions) {
		o.metrics = metrics
	}
}

// WithConsole sets the writer receiving progress lines. Without it a render
// prints nothing.
func WithConsole(w io.Writer) Option {
	return func(o *rendererOptions) {
		o.console = w
	}
}

// WithTransport replaces the transport the renderer would build from the
// configuration. The caller keeps ownership and closes it.
//
// Example:
//
//	tr := memory.New(4)
//	defer tr.Close()
//	r, err := fractal.NewRenderer(&cfg, fractal.WithTransport(tr))
//	report, err := r.RunLocal(ctx, 4)
func WithTransport(t Transport) Option {
	return func(o *rendererOptions) {
		o.transport = t
	}
}

// WithBarrier replaces the barrier the renderer would build. It must be
// shared by every rank of the run.
func WithBarrier(b Barrier) Option {
	return func(o *rendererOptions) {
		o.barrier = b
	}
}

// WithPlanner replaces the contiguous row planner. Every rank of a run must
// use the same planner.
func WithPlanner(p PartitionPlanner) Option {
	return func(o *rendererOptions) {
		o.planner = p
	}
}

// WithNATSConn lets local runs use an existing NATS connection instead of
// starting an embedded server or dialing nats.url. The connection is
// borrowed and never closed by the renderer.
func WithNATSConn(nc *nats.Conn) Option {
	return func(o *rendererOptions) {
		o.conn = nc
	}
}
