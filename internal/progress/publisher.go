package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/types"
	"github.com/nats-io/nats.go/jetstream"
)

// Errors for publisher lifecycle misuse.
var (
	ErrNotStarted     = errors.New("publisher not started")
	ErrAlreadyStarted = errors.New("publisher already started")
)

// Publisher periodically writes one rank's pixel count to NATS KV.
//
// The key is "<runID>.progress.<rank>" and the value is the decimal count.
// Add is safe to call from the compute loop; it only touches an atomic.
type Publisher struct {
	kv       jetstream.KeyValue
	key      string
	interval time.Duration
	logger   types.Logger

	count atomic.Int64

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPublisher creates a progress publisher for one rank.
//
// Parameters:
//   - kv: Progress bucket shared by the run
//   - runID: Run identifier
//   - rank: Publishing rank
//   - interval: Publish period
//   - log: Logger (no-op if nil)
func NewPublisher(kv jetstream.KeyValue, runID string, rank int, interval time.Duration, log types.Logger) *Publisher {
	return &Publisher{
		kv:       kv,
		key:      Key(runID, rank),
		interval: interval,
		logger:   logger.OrNop(log),
	}
}

// Key returns the progress key of a rank.
func Key(runID string, rank int) string {
	return runID + ".progress." + strconv.Itoa(rank)
}

// Add counts n more computed pixels. It matches the kernel's progress callback.
func (p *Publisher) Add(n int) {
	p.count.Add(int64(n))
}

// Count returns the pixels counted so far.
func (p *Publisher) Count() int64 {
	return p.count.Load()
}

// Start publishes the current count immediately and then every interval.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}

	if err := p.publish(ctx); err != nil {
		return fmt.Errorf("failed to publish initial progress: %w", err)
	}

	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.publishLoop(p.stopCh, p.doneCh)

	return nil
}

// Stop ends the periodic loop and publishes the final count, so the
// coordinator always observes the rank's complete total.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.started = false
	close(p.stopCh)
	doneCh := p.doneCh
	p.mu.Unlock()

	<-doneCh

	if err := p.publish(ctx); err != nil {
		return fmt.Errorf("failed to publish final progress: %w", err)
	}

	return nil
}

func (p *Publisher) publishLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last int64 = -1
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if n := p.count.Load(); n == last {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.publish(ctx)
			cancel()
			if err != nil {
				p.logger.Warn("progress publish failed", "key", p.key, "error", err)
				continue
			}
			last = p.count.Load()
		}
	}
}

func (p *Publisher) publish(ctx context.Context) error {
	value := strconv.FormatInt(p.count.Load(), 10)
	if _, err := p.kv.Put(ctx, p.key, []byte(value)); err != nil {
		return fmt.Errorf("failed to publish progress %s: %w", p.key, err)
	}

	return nil
}
