package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/types"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"
)

// Tracker watches the progress keys of a run and keeps the latest count per rank.
type Tracker struct {
	kv       jetstream.KeyValue
	runID    string
	counts   *xsync.Map[int, int64]
	onChange func(total int64)
	logger   types.Logger
}

// NewTracker creates a tracker. onChange, if non-nil, receives the summed
// count after every update.
func NewTracker(kv jetstream.KeyValue, runID string, onChange func(total int64), log types.Logger) *Tracker {
	return &Tracker{
		kv:       kv,
		runID:    runID,
		counts:   xsync.NewMap[int, int64](),
		onChange: onChange,
		logger:   logger.OrNop(log),
	}
}

// Run consumes progress updates until ctx is cancelled.
//
// Returns:
//   - error: Watcher setup failure; nil after cancellation
func (t *Tracker) Run(ctx context.Context) error {
	prefix := t.runID + ".progress."

	watcher, err := t.kv.Watch(ctx, prefix+"*", jetstream.IgnoreDeletes())
	if err != nil {
		return fmt.Errorf("failed to watch progress: %w", err)
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			t.logger.Debug("failed to stop progress watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil
			}
			if entry == nil {
				continue
			}

			rank, err := strconv.Atoi(strings.TrimPrefix(entry.Key(), prefix))
			if err != nil {
				t.logger.Debug("skipping malformed progress key", "key", entry.Key())
				continue
			}
			count, err := strconv.ParseInt(string(entry.Value()), 10, 64)
			if err != nil {
				t.logger.Debug("skipping malformed progress value", "key", entry.Key())
				continue
			}

			t.counts.Store(rank, count)
			if t.onChange != nil {
				t.onChange(t.Total())
			}
		}
	}
}

// Total returns the sum of the latest counts of all ranks.
func (t *Tracker) Total() int64 {
	var total int64
	t.counts.Range(func(_ int, count int64) bool {
		total += count
		return true
	})

	return total
}

// Rank returns the latest count of one rank.
func (t *Tracker) Rank(rank int) (int64, bool) {
	return t.counts.Load(rank)
}

// Purge removes the progress keys of ranks [0, size) of a run.
// Keys that were never written are skipped.
func Purge(ctx context.Context, kv jetstream.KeyValue, runID string, size int) error {
	for rank := range size {
		err := kv.Purge(ctx, Key(runID, rank))
		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("failed to purge progress of rank %d: %w", rank, err)
		}
	}

	return nil
}
