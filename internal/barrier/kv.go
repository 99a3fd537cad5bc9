// Package barrier implements types.Barrier over NATS KV and in process.
package barrier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/types"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrInvalidName is returned for a run ID or barrier name that is not a valid KV key token.
var ErrInvalidName = errors.New("invalid barrier name")

// KV is a barrier where each rank announces its arrival as a KV key and
// watches the bucket until all ranks have announced.
//
// Keys have the form "<runID>.<name>.<rank>".
type KV struct {
	kv     jetstream.KeyValue
	runID  string
	rank   int
	size   int
	logger types.Logger
}

// Compile-time assertion that KV implements Barrier.
var _ types.Barrier = (*KV)(nil)

// NewKV creates a KV barrier for one rank of a run.
//
// Parameters:
//   - kv: Shared barrier bucket
//   - runID: Run identifier, a single KV key token
//   - rank: This worker's rank
//   - size: Number of ranks in the run
//   - log: Logger (no-op if nil)
//
// Returns:
//   - *KV: Barrier handle
//   - error: ErrInvalidName for a bad run ID, types.ErrInvalidRank for a bad rank
func NewKV(kv jetstream.KeyValue, runID string, rank, size int, log types.Logger) (*KV, error) {
	if !validToken(runID) {
		return nil, fmt.Errorf("%w: run ID %q", ErrInvalidName, runID)
	}
	if size <= 0 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d of %d", types.ErrInvalidRank, rank, size)
	}

	return &KV{kv: kv, runID: runID, rank: rank, size: size, logger: logger.OrNop(log)}, nil
}

// Wait announces this rank at name and blocks until all ranks have announced.
//
// It returns an error wrapping types.ErrRunAborted as soon as any rank has
// aborted the run, including before this rank arrived.
func (b *KV) Wait(ctx context.Context, name string) error {
	if !validToken(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	prefix := b.runID + "." + name + "."

	// Watch before announcing so our own put is observed too.
	watcher, err := b.kv.Watch(ctx, b.runID+".>")
	if err != nil {
		return fmt.Errorf("barrier %s: failed to start watcher: %w", name, err)
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			b.logger.Debug("failed to stop barrier watcher", "barrier", name, "error", err)
		}
	}()

	if err := b.announce(ctx, name); err != nil {
		return err
	}

	arrived := make(map[string]struct{}, b.size)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("barrier %s: %d of %d ranks arrived: %w", name, len(arrived), b.size, ctx.Err())
		case entry, ok := <-watcher.Updates():
			if !ok {
				return fmt.Errorf("barrier %s: watcher closed: %w", name, types.ErrConnectivity)
			}
			if entry == nil {
				// End of initial replay.
				continue
			}
			if entry.Operation() != jetstream.KeyValuePut {
				continue
			}

			key := entry.Key()
			if key == b.abortKey() {
				return fmt.Errorf("barrier %s: %w", name, abortError(entry))
			}
			if !strings.HasPrefix(key, prefix) {
				continue
			}

			arrived[key] = struct{}{}
			if len(arrived) >= b.size {
				b.logger.Debug("barrier released", "barrier", name, "rank", b.rank)
				return nil
			}
		}
	}
}

// Abort marks the run as failed so that every rank waiting at a barrier, or
// watching with Aborted, stops.
func (b *KV) Abort(ctx context.Context, reason string) error {
	value := []byte(fmt.Sprintf("rank %d: %s", b.rank, reason))
	if _, err := b.kv.Put(ctx, b.abortKey(), value); err != nil {
		return fmt.Errorf("failed to abort run %s: %w", b.runID, err)
	}

	b.logger.Warn("run aborted", "run", b.runID, "rank", b.rank, "reason", reason)

	return nil
}

// Aborted blocks until some rank aborts the run or ctx ends.
//
// Returns:
//   - error: types.ErrRunAborted wrapped with the aborting rank's reason, or
//     the context or watcher error
func (b *KV) Aborted(ctx context.Context) error {
	watcher, err := b.kv.Watch(ctx, b.abortKey())
	if err != nil {
		return fmt.Errorf("failed to watch abort key: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-watcher.Updates():
			if !ok {
				return fmt.Errorf("abort watcher closed: %w", types.ErrConnectivity)
			}
			if entry == nil || entry.Operation() != jetstream.KeyValuePut {
				continue
			}

			return abortError(entry)
		}
	}
}

func (b *KV) abortKey() string {
	return b.runID + ".abort"
}

func abortError(entry jetstream.KeyValueEntry) error {
	return fmt.Errorf("%w: %s", types.ErrRunAborted, entry.Value())
}

// Arrive announces this rank at name without waiting for the others.
//
// Ranks that leave a run use it for the last barrier, so only the rank that
// cleans up has to watch for it.
func (b *KV) Arrive(ctx context.Context, name string) error {
	if !validToken(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return b.announce(ctx, name)
}

func (b *KV) announce(ctx context.Context, name string) error {
	key := b.runID + "." + name + "." + strconv.Itoa(b.rank)
	value := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := b.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("barrier %s: failed to announce rank %d: %w", name, b.rank, err)
	}

	b.logger.Debug("barrier announced", "barrier", name, "rank", b.rank, "size", b.size)

	return nil
}

// Cleanup deletes every key of this run from the bucket. The coordinator
// calls it once all ranks have passed the final barrier.
func (b *KV) Cleanup(ctx context.Context) error {
	keys, err := b.kv.Keys(ctx)
	if err != nil {
		if types.IsNoKeysFoundError(err) {
			return nil
		}

		return fmt.Errorf("failed to list barrier keys: %w", err)
	}

	prefix := b.runID + "."
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := b.kv.Purge(ctx, key); err != nil {
			return fmt.Errorf("failed to purge barrier key %s: %w", key, err)
		}
	}

	return nil
}

// validToken reports whether s is a non-empty KV key token without dots or wildcards.
func validToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_':
		default:
			return false
		}
	}

	return true
}
