// Package rankid assigns worker ranks through atomic NATS KV claims.
//
// Launchers such as mpirun export a rank per process. When none is set, each
// worker claims the lowest free rank of its run instead, and the worker that
// claims rank 0 becomes the coordinator.
package rankid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/types"
	"github.com/nats-io/nats.go/jetstream"
)

// Errors returned by the claimer.
var (
	ErrNotClaimed    = errors.New("rank not claimed")
	ErrAlreadyClosed = errors.New("claimer already released")
)

// Claimer claims one rank of a run and keeps the claim alive until released.
type Claimer struct {
	kv    jetstream.KeyValue
	runID string
	size  int
	ttl   time.Duration

	mu       sync.Mutex
	rank     int
	claimed  bool
	renewing bool
	closed   bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	logger types.Logger
}

// NewClaimer creates a rank claimer.
//
// Parameters:
//   - kv: KV bucket holding rank claims (its TTL should match ttl)
//   - runID: Run identifier; claims of different runs never collide
//   - size: Number of ranks in the run
//   - ttl: Lease duration; the claim is renewed every ttl/3
//   - log: Logger (no-op if nil)
//
// Returns:
//   - *Claimer: New claimer instance
//
// Example:
//
//	claimer := rankid.NewClaimer(kv, "run-42", 4, 30*time.Second, logger)
//	rank, err := claimer.Claim(ctx)
func NewClaimer(kv jetstream.KeyValue, runID string, size int, ttl time.Duration, log types.Logger) *Claimer {
	return &Claimer{
		kv:     kv,
		runID:  runID,
		size:   size,
		ttl:    ttl,
		rank:   -1,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger.OrNop(log),
	}
}

// Claim takes the lowest unclaimed rank in [0, size).
//
// Each rank is tried with a KV create, which fails if the key exists, so two
// workers never hold the same rank.
//
// Returns:
//   - int: Claimed rank
//   - error: types.ErrRankClaimFailed when all ranks are taken, context or NATS error
func (c *Claimer) Claim(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return -1, ErrAlreadyClosed
	}
	if c.claimed {
		return c.rank, nil
	}

	for rank := range c.size {
		if err := ctx.Err(); err != nil {
			return -1, err
		}

		key := c.key(rank)
		value := []byte(time.Now().UTC().Format(time.RFC3339))

		revision, err := c.kv.Create(ctx, key, value)
		if err == nil {
			c.rank = rank
			c.claimed = true
			c.logger.Info("rank claimed", "run", c.runID, "rank", rank, "revision", revision)

			return rank, nil
		}

		if !errors.Is(err, jetstream.ErrKeyExists) {
			return -1, fmt.Errorf("failed to claim rank %d: %w", rank, err)
		}

		c.logger.Debug("rank already claimed, trying next", "run", c.runID, "rank", rank)
	}

	return -1, fmt.Errorf("%w: all %d ranks of run %s are taken", types.ErrRankClaimFailed, c.size, c.runID)
}

// StartRenewal renews the claim every ttl/3 until Release is called or ctx ends.
func (c *Claimer) StartRenewal(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	if !c.claimed {
		return ErrNotClaimed
	}

	if c.renewing {
		return nil
	}
	c.renewing = true
	go c.renewalLoop(ctx, c.key(c.rank))

	return nil
}

func (c *Claimer) renewalLoop(ctx context.Context, key string) {
	defer close(c.doneCh)

	interval := c.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			// Put refreshes the key's TTL regardless of revision.
			value := []byte(time.Now().UTC().Format(time.RFC3339))
			if _, err := c.kv.Put(ctx, key, value); err != nil {
				c.logger.Warn("rank renewal failed", "key", key, "error", err)
			}
		}
	}
}

// Release stops renewal and deletes the claim so the rank can be reused.
//
// Returns:
//   - error: ErrNotClaimed if nothing was claimed, ErrAlreadyClosed on a second call
func (c *Claimer) Release(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if !c.claimed {
		c.mu.Unlock()
		return ErrNotClaimed
	}
	c.closed = true
	rank := c.rank
	renewing := c.renewing
	close(c.stopCh)
	c.mu.Unlock()

	if renewing {
		select {
		case <-c.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			// Renewal is stuck on NATS; delete anyway.
		}
	}

	if err := c.kv.Delete(ctx, c.key(rank)); err != nil {
		return fmt.Errorf("failed to release rank %d: %w", rank, err)
	}

	c.logger.Debug("rank released", "run", c.runID, "rank", rank)

	return nil
}

// Rank returns the claimed rank, or -1.
func (c *Claimer) Rank() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rank
}

func (c *Claimer) key(rank int) string {
	return fmt.Sprintf("%s.rank-%d", c.runID, rank)
}
