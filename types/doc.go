// Package types provides core type definitions and interfaces for the fractal renderer.
//
// This package contains shared types that are used across multiple packages.
// By keeping these types in a separate package, we avoid import cycles
// between the root fractal package and its internal implementations.
//
// Key types:
//   - Canvas: Image dimensions, iteration cap and complex-plane bounds of a run
//   - WorkerAssignment: Half-open row range owned by one worker rank
//   - RowBuffer: Iteration counts produced by one worker for its rows
//   - Collector, Sender, Receiver: Rank-ordered result collection
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
