package barrier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nuid"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/types"
)

// GenerationKey returns the key under which the coordinator of runID
// publishes the generation of the current attempt.
func GenerationKey(runID string) string {
	return runID + ".generation"
}

// Announcer publishes the generation of one attempt of a run.
//
// Ranks learn the generation by watching for new writes only, so a value left
// behind by a crashed attempt is never picked up. The announcer rewrites the
// value every interval for ranks that start watching late.
type Announcer struct {
	kv         jetstream.KeyValue
	runID      string
	generation string
	interval   time.Duration
	logger     types.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// StartAnnouncer writes a fresh generation for runID and keeps rewriting it
// until Stop is called or ctx ends.
//
// Parameters:
//   - ctx: Context bounding the announcer
//   - kv: Barrier bucket shared by the run
//   - runID: Run identifier, a single KV key token
//   - interval: Rewrite period
//   - log: Logger (no-op if nil)
//
// Returns:
//   - *Announcer: Running announcer; Generation returns its value
//   - error: ErrInvalidName for a bad run ID, or the first write's error
func StartAnnouncer(ctx context.Context, kv jetstream.KeyValue, runID string, interval time.Duration, log types.Logger) (*Announcer, error) {
	if !validToken(runID) {
		return nil, fmt.Errorf("%w: run ID %q", ErrInvalidName, runID)
	}
	if interval <= 0 {
		interval = time.Second
	}

	a := &Announcer{
		kv:         kv,
		runID:      runID,
		generation: nuid.Next(),
		interval:   interval,
		logger:     logger.OrNop(log),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	if err := a.publish(ctx); err != nil {
		return nil, err
	}
	a.logger.Debug("generation announced", "run", runID, "generation", a.generation)

	go a.loop(ctx)

	return a, nil
}

// Generation returns the announced generation.
func (a *Announcer) Generation() string {
	return a.generation
}

// Stop ends the rewrites and purges the generation key.
func (a *Announcer) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	<-a.doneCh

	if err := a.kv.Purge(ctx, GenerationKey(a.runID)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to purge generation of run %s: %w", a.runID, err)
	}

	return nil
}

func (a *Announcer) loop(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case <-ticker.C:
			if err := a.publish(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("failed to announce generation", "run", a.runID, "error", err)
			}
		}
	}
}

func (a *Announcer) publish(ctx context.Context) error {
	if _, err := a.kv.PutString(ctx, GenerationKey(a.runID), a.generation); err != nil {
		return fmt.Errorf("failed to announce generation of run %s: %w", a.runID, err)
	}

	return nil
}

// AwaitGeneration blocks until the coordinator of runID announces a
// generation after this call started watching.
//
// Returns:
//   - string: Generation of the live attempt
//   - error: ErrInvalidName, context or watcher error
func AwaitGeneration(ctx context.Context, kv jetstream.KeyValue, runID string) (string, error) {
	if !validToken(runID) {
		return "", fmt.Errorf("%w: run ID %q", ErrInvalidName, runID)
	}

	watcher, err := kv.Watch(ctx, GenerationKey(runID), jetstream.UpdatesOnly())
	if err != nil {
		return "", fmt.Errorf("failed to watch generation of run %s: %w", runID, err)
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for the coordinator of run %s: %w", runID, ctx.Err())
		case entry, ok := <-watcher.Updates():
			if !ok {
				return "", fmt.Errorf("generation watcher closed: %w", types.ErrConnectivity)
			}
			if entry == nil || entry.Operation() != jetstream.KeyValuePut || len(entry.Value()) == 0 {
				continue
			}

			return string(entry.Value()), nil
		}
	}
}
