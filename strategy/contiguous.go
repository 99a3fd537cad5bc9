package strategy

import (
	"fmt"

	"github.com/Brandon-Parker9/fractal/types"
)

// Contiguous assigns each rank one contiguous block of rows.
type Contiguous struct{}

var _ types.PartitionPlanner = (*Contiguous)(nil)

// NewContiguous creates a new contiguous row planner.
//
// Returns:
//   - *Contiguous: Initialized planner
//
// Example:
//
//	planner := strategy.NewContiguous()
//	asg, err := planner.Assign(canvas.Height, size, rank)
func NewContiguous() *Contiguous {
	return &Contiguous{}
}

// Plan splits totalRows over workers.
//
// The algorithm:
//  1. base = totalRows / workers, rem = totalRows % workers
//  2. Ranks below rem get base+1 rows, the rest get base
//  3. Blocks are laid out in rank order with no gaps
//
// A zero worker count yields an empty plan. When workers exceed totalRows the
// trailing ranks get empty blocks positioned at totalRows.
//
// Parameters:
//   - totalRows: Number of rows on the canvas
//   - workers: Number of cooperating workers
//
// Returns:
//   - []types.WorkerAssignment: One assignment per rank, ordered by rank
//   - error: types.ErrInvalidPartition for negative inputs
//
// Example:
//
//	plan, _ := strategy.NewContiguous().Plan(10, 3)
//	// [{0 0 4} {1 4 7} {2 7 10}]
func (c *Contiguous) Plan(totalRows, workers int) ([]types.WorkerAssignment, error) {
	if err := validate(totalRows, workers); err != nil {
		return nil, err
	}

	plan := make([]types.WorkerAssignment, workers)
	for rank := range workers {
		plan[rank] = block(totalRows, workers, rank)
	}

	return plan, nil
}

// Assign returns the block of a single rank without materializing the plan.
//
// Parameters:
//   - totalRows: Number of rows on the canvas
//   - workers: Number of cooperating workers
//   - rank: Worker rank in [0, workers)
//
// Returns:
//   - types.WorkerAssignment: The rank's block
//   - error: types.ErrInvalidPartition or types.ErrInvalidRank
func (c *Contiguous) Assign(totalRows, workers, rank int) (types.WorkerAssignment, error) {
	if err := validate(totalRows, workers); err != nil {
		return types.WorkerAssignment{}, err
	}
	if rank < 0 || rank >= workers {
		return types.WorkerAssignment{}, fmt.Errorf("%w: rank %d not in [0, %d)", types.ErrInvalidRank, rank, workers)
	}

	return block(totalRows, workers, rank), nil
}

func validate(totalRows, workers int) error {
	if totalRows < 0 {
		return fmt.Errorf("%w: total rows must be >= 0, got %d", types.ErrInvalidPartition, totalRows)
	}
	if workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", types.ErrInvalidPartition, workers)
	}

	return nil
}

// block computes the closed-form start of a rank: every rank below it
// contributed base rows, plus one extra for each of them below rem.
func block(totalRows, workers, rank int) types.WorkerAssignment {
	base := totalRows / workers
	rem := totalRows % workers

	start := rank*base + min(rank, rem)
	rows := base
	if rank < rem {
		rows++
	}

	return types.WorkerAssignment{Rank: rank, StartRow: start, EndRow: start + rows}
}
