package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the fractal renderer.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// Components wrap them with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Renderer, Planner, Collector, etc.)

// Renderer errors - Public API errors returned by the root package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when a NATS-backed component gets a nil connection.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrInvalidCanvas is returned when canvas geometry cannot be rendered.
	ErrInvalidCanvas = errors.New("invalid canvas")

	// ErrUnknownMode is returned for an unrecognized fractal mode.
	ErrUnknownMode = errors.New("unknown fractal mode")

	// ErrUnknownPalette is returned for a palette identifier outside the closed set.
	ErrUnknownPalette = errors.New("unknown palette")

	// ErrRankClaimFailed is returned when a worker cannot obtain a rank.
	ErrRankClaimFailed = errors.New("failed to claim worker rank")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	ErrConnectivity = errors.New("connectivity issue")

	// ErrRunAborted is returned on every rank once one rank of the run has failed.
	ErrRunAborted = errors.New("run aborted")
)

// Planner errors - Row partitioning errors.
var (
	// ErrInvalidPartition is returned for negative row or worker counts.
	ErrInvalidPartition = errors.New("invalid partition request")

	// ErrInvalidRank is returned when a rank is outside [0, workers).
	ErrInvalidRank = errors.New("invalid worker rank")
)

// Collector errors - Result collection and transport errors.
var (
	// ErrProtocol is returned when frames arrive out of order or disagree with
	// the announced length.
	ErrProtocol = errors.New("collection protocol violation")

	// ErrAllocation is returned when a receive buffer cannot be prepared.
	// It is fatal for the run.
	ErrAllocation = errors.New("receive buffer allocation failed")

	// ErrChecksumMismatch is returned when a payload does not match its checksum.
	ErrChecksumMismatch = errors.New("payload checksum mismatch")

	// ErrTransportClosed is returned when sending or receiving on a closed transport.
	ErrTransportClosed = errors.New("transport closed")
)

// Encoder errors - Image stream errors.
var (
	// ErrMisalignedBuffer is returned when a row buffer is not a whole number of rows.
	ErrMisalignedBuffer = errors.New("row buffer length is not a multiple of canvas width")

	// ErrOutputFailed is returned when the output sink cannot be opened or written.
	ErrOutputFailed = errors.New("output sink failed")
)

// Common errors - Shared errors used across multiple components.
var (
	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// NATS reports this both directly ("nats: no keys found") and wrapped by callers.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}
