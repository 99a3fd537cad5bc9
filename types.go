package fractal

import "github.com/Brandon-Parker9/fractal/types"

// Re-export types from the types package.
//
// Internal packages depend on types rather than on this package, which keeps
// the import graph acyclic while callers still write fractal.Canvas or
// fractal.Logger.
type (
	Canvas           = types.Canvas
	Bounds           = types.Bounds
	Complex          = types.Complex
	Mode             = types.Mode
	WorkerAssignment = types.WorkerAssignment
	RowBuffer        = types.RowBuffer
	RowSink          = types.RowSink
)

// Re-export interfaces from the types package for convenience.
type (
	PartitionPlanner = types.PartitionPlanner
	Collector        = types.Collector
	Transport        = types.Transport
	Barrier          = types.Barrier
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
)

// Re-export Mode constants from the types package.
const (
	ModeMandelbrot = types.ModeMandelbrot
	ModeJulia      = types.ModeJulia
)
