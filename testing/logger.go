package testing

import (
	"testing"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/types"
)

// NewTestLogger creates a logger that writes to tb.Logf, so log output shows
// up next to failing assertions when running with -v.
func NewTestLogger(tb testing.TB) types.Logger {
	return logger.NewTest(tb)
}
