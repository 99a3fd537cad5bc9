package types

// WorkerAssignment is the half-open row range [StartRow, EndRow) owned by one rank.
//
// An empty assignment has StartRow == EndRow. Assignments produced by a
// PartitionPlanner are sorted by rank, contiguous and non-overlapping.
type WorkerAssignment struct {
	Rank     int `json:"rank"`
	StartRow int `json:"startRow"`
	EndRow   int `json:"endRow"`
}

// Rows returns the number of rows in the assignment.
func (a WorkerAssignment) Rows() int {
	return a.EndRow - a.StartRow
}

// IsEmpty reports whether the assignment owns no rows.
func (a WorkerAssignment) IsEmpty() bool {
	return a.EndRow <= a.StartRow
}

// Elements returns the number of iteration counts the assignment produces
// on a canvas of the given width.
func (a WorkerAssignment) Elements(width int) int {
	return a.Rows() * width
}

// PartitionPlanner splits the rows of a canvas across a fixed number of workers.
//
// Implementations must be pure: the same inputs always produce the same plan,
// so every worker can compute its own range without communication.
type PartitionPlanner interface {
	// Plan returns one assignment per worker, ordered by rank.
	//
	// Parameters:
	//   - totalRows: Number of rows on the canvas
	//   - workers: Number of cooperating workers
	//
	// Returns:
	//   - []WorkerAssignment: Assignments covering [0, totalRows) exactly once
	//   - error: ErrInvalidPartition for negative inputs
	Plan(totalRows, workers int) ([]WorkerAssignment, error)

	// Assign returns the assignment of a single rank.
	//
	// Parameters:
	//   - totalRows: Number of rows on the canvas
	//   - workers: Number of cooperating workers
	//   - rank: Worker rank in [0, workers)
	//
	// Returns:
	//   - WorkerAssignment: The rank's row range
	//   - error: ErrInvalidPartition or ErrInvalidRank
	Assign(totalRows, workers, rank int) (WorkerAssignment, error)
}
