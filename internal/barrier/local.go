package barrier

import (
	"context"
	"fmt"
	"sync"

	"github.com/Brandon-Parker9/fractal/types"
)

// Local is an in-process barrier shared by the goroutines of a local run.
//
// One Local serves all ranks; each rank calls Wait with the same name.
type Local struct {
	size int

	mu     sync.Mutex
	rounds map[string]*round
}

type round struct {
	arrived int
	release chan struct{}
}

// Compile-time assertion that Local implements Barrier.
var _ types.Barrier = (*Local)(nil)

// NewLocal creates a barrier for size ranks.
func NewLocal(size int) *Local {
	return &Local{size: size, rounds: make(map[string]*round)}
}

// Wait blocks until size callers have waited on name.
//
// Each name is a single-use round: once released, later waits on the same name
// return immediately.
func (b *Local) Wait(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("barrier %s: %w", name, err)
	}

	b.mu.Lock()
	r, ok := b.rounds[name]
	if !ok {
		r = &round{release: make(chan struct{})}
		b.rounds[name] = r
	}
	r.arrived++
	if r.arrived == b.size {
		close(r.release)
	}
	b.mu.Unlock()

	select {
	case <-r.release:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("barrier %s: %w", name, ctx.Err())
	}
}
