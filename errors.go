package fractal

import "github.com/Brandon-Parker9/fractal/types"

// Sentinel errors re-exported from the types package so callers can match
// them with errors.Is without importing types.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrNATSConnectionRequired is returned when a distributed run has no NATS connection.
	ErrNATSConnectionRequired = types.ErrNATSConnectionRequired

	// ErrInvalidCanvas is returned for non-positive dimensions or empty bounds.
	ErrInvalidCanvas = types.ErrInvalidCanvas

	// ErrUnknownMode is returned for a fractal mode other than mandelbrot or julia.
	ErrUnknownMode = types.ErrUnknownMode

	// ErrUnknownPalette is returned for a palette identifier outside 1..14.
	ErrUnknownPalette = types.ErrUnknownPalette

	// ErrRankClaimFailed is returned when every rank of a run is already claimed.
	ErrRankClaimFailed = types.ErrRankClaimFailed

	// ErrInvalidRank is returned when a rank is outside [0, size).
	ErrInvalidRank = types.ErrInvalidRank

	// ErrProtocol is returned when a contribution arrives out of protocol order.
	ErrProtocol = types.ErrProtocol

	// ErrAllocation is returned when a receive buffer cannot be allocated.
	ErrAllocation = types.ErrAllocation

	// ErrChecksumMismatch is returned when a received payload fails verification.
	ErrChecksumMismatch = types.ErrChecksumMismatch

	// ErrOutputFailed is returned when the image sink rejects a write.
	ErrOutputFailed = types.ErrOutputFailed

	// ErrRunAborted is returned by every rank of a distributed run after one
	// rank has failed.
	ErrRunAborted = types.ErrRunAborted
)
