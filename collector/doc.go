// Package collector reassembles worker contributions on the coordinator.
//
// Both implementations hand buffers to the sink strictly in ascending rank
// order, starting with the coordinator's own rows as rank 0, so rows reach the
// encoder top to bottom:
//
//   - Sequential receives one rank at a time, blocking on each in turn.
//   - Gather receives all ranks concurrently and releases them in order as
//     the next expected rank becomes available.
//
// Either can be swapped in without changing the workers that send.
package collector
