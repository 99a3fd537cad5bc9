package fractal

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// Environment variables naming the world size, checked in order.
var worldSizeEnv = []string{"FRACTAL_WORLD_SIZE", "OMPI_COMM_WORLD_SIZE", "PMI_SIZE"}

// Environment variables naming this process's rank, checked in order.
var rankEnvVars = []string{"FRACTAL_RANK", "OMPI_COMM_WORLD_RANK", "PMI_RANK"}

// WorldSize returns the configured worker count, else the first world size
// found in the environment, else 0.
//
// Returns:
//   - int: Worker count, 0 if unknown
//   - error: Malformed environment value
func WorldSize(configured int) (int, error) {
	if configured > 0 {
		return configured, nil
	}

	n, ok, err := lookupInt(worldSizeEnv)
	if err != nil || !ok {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: world size must be > 0, got %d", ErrInvalidConfig, n)
	}

	return n, nil
}

// DiscoverWorkers is WorldSize with runtime.NumCPU as the last resort.
// All-in-one runs use it.
func DiscoverWorkers(configured int) (int, error) {
	n, err := WorldSize(configured)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		n = runtime.NumCPU()
	}

	return n, nil
}

// DiscoverRank returns the rank assigned by a launcher through the environment.
//
// Returns:
//   - int: Rank
//   - bool: false when no launcher set a rank; the worker should claim one
//   - error: Malformed or negative value
func DiscoverRank() (int, bool, error) {
	rank, ok, err := lookupInt(rankEnvVars)
	if err != nil || !ok {
		return -1, false, err
	}
	if rank < 0 {
		return -1, false, fmt.Errorf("%w: rank must be >= 0, got %d", ErrInvalidRank, rank)
	}

	return rank, true, nil
}

func lookupInt(names []string) (int, bool, error) {
	for _, name := range names {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, name, v)
		}

		return n, true, nil
	}

	return 0, false, nil
}
