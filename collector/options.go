package collector

import (
	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/internal/metrics"
	"github.com/Brandon-Parker9/fractal/types"
)

type options struct {
	logger      types.Logger
	metrics     types.MetricsCollector
	concurrency int
}

// Option configures a collector.
type Option func(*options)

// WithLogger sets the collector logger.
func WithLogger(l types.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the collector metrics.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *options) { o.metrics = m }
}

// WithConcurrency bounds how many ranks Gather receives at once.
// Values < 1 mean all remote ranks. Sequential ignores it.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func apply(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logger.OrNop(o.logger)
	o.metrics = metrics.OrNop(o.metrics)

	return o
}

// New returns the collector named by kind: "sequential" or "gather".
func New(kind string, receiver types.Receiver, size int, opts ...Option) (types.Collector, error) {
	switch kind {
	case KindSequential, "":
		return NewSequential(receiver, size, opts...), nil
	case KindGather:
		return NewGather(receiver, size, opts...), nil
	default:
		return nil, &UnknownKindError{Kind: kind}
	}
}

// Collector kinds accepted by New.
const (
	KindSequential = "sequential"
	KindGather     = "gather"
)

// UnknownKindError is returned by New for an unrecognized kind.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return "unknown collector kind " + e.Kind
}

// Unwrap makes UnknownKindError match types.ErrInvalidConfig.
func (e *UnknownKindError) Unwrap() error {
	return types.ErrInvalidConfig
}
