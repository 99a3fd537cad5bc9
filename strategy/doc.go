// Package strategy provides row partitioning strategies.
//
// A strategy decides which canvas rows each worker rank computes. Every rank
// evaluates the same pure function locally, so no assignment is ever
// transmitted between processes.
//
// The package currently ships one strategy:
//
//   - Contiguous: Each rank owns one contiguous block of rows. The remainder of
//     rows / workers is spread one row each over the lowest ranks, so block sizes
//     differ by at most one and ranks beyond the row count get empty blocks.
//
// Contiguous blocks are what the collector relies on: concatenating the
// buffers in rank order yields the rows top to bottom.
//
// Custom strategies can be implemented by satisfying the types.PartitionPlanner interface.
package strategy
