package fractal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nuid"

	"github.com/Brandon-Parker9/fractal/collector"
	"github.com/Brandon-Parker9/fractal/encoder"
	"github.com/Brandon-Parker9/fractal/internal/barrier"
	"github.com/Brandon-Parker9/fractal/internal/kvutil"
	"github.com/Brandon-Parker9/fractal/internal/logger"
	"github.com/Brandon-Parker9/fractal/internal/metrics"
	"github.com/Brandon-Parker9/fractal/internal/natsutil"
	"github.com/Brandon-Parker9/fractal/internal/progress"
	"github.com/Brandon-Parker9/fractal/internal/rankid"
	"github.com/Brandon-Parker9/fractal/internal/timing"
	"github.com/Brandon-Parker9/fractal/kernel"
	"github.com/Brandon-Parker9/fractal/palette"
	"github.com/Brandon-Parker9/fractal/strategy"
	"github.com/Brandon-Parker9/fractal/transport"
	jstransport "github.com/Brandon-Parker9/fractal/transport/jetstream"
	"github.com/Brandon-Parker9/fractal/transport/memory"
	"github.com/Brandon-Parker9/fractal/types"
)

// CoordinatorRank is the rank that collects every contribution and writes the image.
const CoordinatorRank = 0

// Barrier names.
const (
	barrierStart = "start"
	barrierEnd   = "end"
	barrierDone  = "done"
)

// Renderer renders one image across one or more ranks.
//
// Every rank plans the same row partition, computes its own rows and sends
// them to the coordinator, which streams all rows in rank order through the
// palette into a PNG file. The full canvas is never held in memory.
type Renderer struct {
	cfg     Config
	canvas  types.Canvas
	kernel  *kernel.Kernel
	mapper  *palette.Mapper
	planner types.PartitionPlanner
	opts    rendererOptions
	logger  Logger
	metrics MetricsCollector
}

// rankEnv is what one rank needs to take part in a render.
type rankEnv struct {
	rank      int
	size      int
	transport types.Transport
	barrier   types.Barrier
	onPixels  func(pixels int)
}

// NewRenderer creates a renderer.
//
// Parameters:
//   - cfg: Render configuration; zero fields are filled with defaults
//   - opts: Optional logger, metrics, console, transport, barrier or planner
//
// Returns:
//   - *Renderer: Renderer ready to run
//   - error: ErrInvalidConfig (wrapping the specific cause) for a bad configuration
//
// Example:
//
//	cfg := fractal.DefaultConfig()
//	r, err := fractal.NewRenderer(&cfg, fractal.WithConsole(os.Stdout))
//	if err != nil {
//	    return err
//	}
//	report, err := r.RunLocal(ctx, 0)
func NewRenderer(cfg *Config, opts ...Option) (*Renderer, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := rendererOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	loggerInstance := logger.OrNop(options.logger)
	cfg.ValidateWithWarnings(loggerInstance)

	canvas, err := cfg.Canvas()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	mapper, err := palette.NewMapper(palette.Choice(cfg.Palette), cfg.MaxIteration)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	planner := options.planner
	if planner == nil {
		planner = strategy.NewContiguous()
	}
	if options.console != nil {
		// Compute and PNG progress are printed from different goroutines.
		options.console = &lockedWriter{w: options.console}
	}

	return &Renderer{
		cfg:     *cfg,
		canvas:  canvas,
		kernel:  kernel.New(canvas),
		mapper:  mapper,
		planner: planner,
		opts:    options,
		logger:  loggerInstance,
		metrics: metrics.OrNop(options.metrics),
	}, nil
}

// Config returns the effective configuration.
func (r *Renderer) Config() Config {
	return r.cfg
}

// Canvas returns the canvas being rendered.
func (r *Renderer) Canvas() types.Canvas {
	return r.canvas
}

// RunSerial renders the whole image on the calling goroutine, without any
// transport.
func (r *Renderer) RunSerial(ctx context.Context) (*Report, error) {
	compute := r.printer(r.modeLabel())
	defer compute.Finish()

	return r.runRank(ctx, rankEnv{
		rank:     CoordinatorRank,
		size:     1,
		barrier:  barrier.NewLocal(1),
		onPixels: compute.Add,
	})
}

// RunLocal renders with size ranks running as goroutines of this process.
//
// Contributions flow through the configured transport: the memory transport,
// or JetStream on an embedded server (nats.mode "embedded"), the server at
// nats.url ("external"), or the connection passed with WithNATSConn.
//
// Parameters:
//   - ctx: Cancelling it aborts every rank
//   - size: Number of ranks; values < 1 use DiscoverWorkers
//
// Returns:
//   - *Report: The coordinator's report
//   - error: The first rank failure
func (r *Renderer) RunLocal(ctx context.Context, size int) (*Report, error) {
	if size < 1 {
		n, err := DiscoverWorkers(r.cfg.Workers)
		if err != nil {
			return nil, err
		}
		size = n
	}

	tr, release, err := r.localTransport(ctx, size)
	if err != nil {
		return nil, err
	}
	defer release()

	b := r.opts.barrier
	if b == nil {
		b = barrier.NewLocal(size)
	}

	compute := r.printer(r.modeLabel())
	defer compute.Finish()

	r.logger.Info("render started", "mode", r.canvas.Mode, "width", r.canvas.Width,
		"height", r.canvas.Height, "workers", size, "transport", r.transportKind())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		report   *Report
	)
	for rank := range size {
		wg.Go(func() {
			rep, err := r.runRank(ctx, rankEnv{
				rank:      rank,
				size:      size,
				transport: tr,
				barrier:   b,
				onPixels:  compute.Add,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}

				return
			}
			if rep != nil {
				report = rep
			}
		})
	}
	wg.Wait()

	if firstErr != nil {
		r.logger.Error("render failed", "error", firstErr)
		return nil, firstErr
	}

	return report, nil
}

// RunWorker takes part in a distributed render as one rank.
//
// Ranks coordinate through JetStream KV barriers on nc; contributions flow
// through the run's JetStream subjects. A negative rank claims the lowest free
// rank of the run. The coordinator announces a fresh generation that scopes
// every subject and key of this attempt, so leftovers of an earlier attempt
// with the same run ID are never read. A rank that fails aborts the run for
// every other rank. After the image is written the coordinator purges the
// attempt's subjects and keys.
//
// Parameters:
//   - ctx: Cancelling it aborts this rank and, through the abort key, the run
//   - nc: Connection shared by every rank of the run; it is borrowed
//   - rank: This worker's rank, or -1 to claim one
//   - size: Number of ranks; values < 1 use WorldSize
//
// Returns:
//   - *Report: The report on the coordinator, nil on other ranks
//   - error: Setup, barrier, transport or output failure; ErrRunAborted when
//     another rank failed
func (r *Renderer) RunWorker(ctx context.Context, nc *nats.Conn, rank, size int) (*Report, error) {
	if nc == nil {
		return nil, ErrNATSConnectionRequired
	}
	if size < 1 {
		n, err := WorldSize(r.cfg.Workers)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: worker mode needs a world size", ErrInvalidConfig)
		}
		size = n
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	barrierKV, err := r.ensureBucket(ctx, js, r.cfg.KVBuckets.BarrierBucket, "Fractal barrier arrivals", r.cfg.KVBuckets.TTL)
	if err != nil {
		return nil, err
	}
	progressKV, err := r.ensureBucket(ctx, js, r.cfg.KVBuckets.ProgressBucket, "Fractal pixel progress", r.cfg.KVBuckets.TTL)
	if err != nil {
		return nil, err
	}

	if rank < 0 {
		claimer, claimed, err := r.claimRank(ctx, js, size)
		if err != nil {
			return nil, err
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.OperationTimeout)
			defer cancel()
			if err := claimer.Release(releaseCtx); err != nil {
				r.logger.Warn("failed to release rank", "rank", claimed, "error", err)
			}
		}()
		rank = claimed
	}
	if err := transport.CheckRank(rank, size); err != nil {
		return nil, err
	}

	scope, stopAnnouncer, err := r.joinAttempt(ctx, barrierKV, rank)
	if err != nil {
		return nil, err
	}
	defer stopAnnouncer()

	tr := r.opts.transport
	var jsTransport *jstransport.Transport
	if tr == nil {
		setupCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
		jsTransport, err = jstransport.New(setupCtx, nc, r.streamConfig(scope, size), r.transportOptions()...)
		cancel()
		if err != nil {
			return nil, err
		}
		defer func() { _ = jsTransport.Close() }()
		tr = jsTransport
	}

	kvBarrier, err := barrier.NewKV(barrierKV, scope, rank, size, r.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	var b types.Barrier = kvBarrier
	if r.opts.barrier != nil {
		b = r.opts.barrier
	}

	// Another rank's failure cancels this rank's work, including a blocked receive.
	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	stopAbortWatch := r.watchAbort(runCtx, kvBarrier, cancelRun)
	defer stopAbortWatch()

	publisher := progress.NewPublisher(progressKV, scope, rank, r.cfg.ProgressInterval, r.logger)
	if err := publisher.Start(runCtx); err != nil {
		return nil, err
	}

	// The coordinator shows the run-wide compute progress.
	var compute *progress.Printer
	stopTracker := func() {}
	if rank == CoordinatorRank {
		compute = r.printer(r.modeLabel())
		stopTracker = r.startTracker(runCtx, progressKV, scope, compute)
	}

	r.logger.Info("worker started", "run", r.cfg.RunID, "attempt", scope, "rank", rank, "size", size)

	report, runErr := r.runRank(runCtx, rankEnv{
		rank:      rank,
		size:      size,
		transport: tr,
		barrier:   b,
		onPixels:  publisher.Add,
	})

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.OperationTimeout)
	defer cancel()
	if err := publisher.Stop(stopCtx); err != nil {
		r.logger.Warn("failed to publish final progress", "rank", rank, "error", err)
	}

	if runErr != nil {
		stopTracker()
		compute.Finish()

		if cause := context.Cause(runCtx); errors.Is(cause, ErrRunAborted) && !errors.Is(runErr, ErrRunAborted) {
			runErr = fmt.Errorf("rank %d: %w", rank, cause)
		}
		if !errors.Is(runErr, ErrRunAborted) {
			if err := kvBarrier.Abort(stopCtx, runErr.Error()); err != nil {
				r.logger.Warn("failed to abort run", "rank", rank, "error", err)
			}
		}
		r.logger.Error("worker failed", "rank", rank, "error", runErr)

		return nil, runErr
	}

	if r.opts.barrier != nil {
		stopTracker()
		compute.Finish()

		return report, nil
	}

	// Ranks leave through the done barrier so the coordinator only cleans up
	// once nobody reads the attempt's keys any more.
	if rank != CoordinatorRank {
		if err := kvBarrier.Arrive(ctx, barrierDone); err != nil {
			return nil, err
		}

		return nil, nil
	}

	err = kvBarrier.Wait(runCtx, barrierDone)
	stopTracker()
	compute.Finish()
	if err != nil {
		return nil, err
	}

	r.cleanupRun(stopCtx, jsTransport, kvBarrier, progressKV, scope, size)

	return report, nil
}

// joinAttempt returns the scope of the live attempt of the run. The
// coordinator creates it and announces it until the returned function is
// called; the other ranks wait for the announcement.
func (r *Renderer) joinAttempt(ctx context.Context, kv jetstream.KeyValue, rank int) (string, func(), error) {
	if rank != CoordinatorRank {
		generation, err := barrier.AwaitGeneration(ctx, kv, r.cfg.RunID)
		if err != nil {
			return "", nil, err
		}

		return attemptScope(r.cfg.RunID, generation), func() {}, nil
	}

	announcer, err := barrier.StartAnnouncer(ctx, kv, r.cfg.RunID, r.cfg.ProgressInterval, r.logger)
	if err != nil {
		return "", nil, err
	}
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.OperationTimeout)
		defer cancel()
		if err := announcer.Stop(stopCtx); err != nil {
			r.logger.Warn("failed to stop generation announcer", "run", r.cfg.RunID, "error", err)
		}
	}

	return attemptScope(r.cfg.RunID, announcer.Generation()), stop, nil
}

// watchAbort cancels the run with the abort error once any rank aborts it.
func (r *Renderer) watchAbort(ctx context.Context, b *barrier.KV, cancel context.CancelCauseFunc) func() {
	watchCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Aborted(watchCtx); errors.Is(err, ErrRunAborted) {
			cancel(err)
		}
	}()

	return func() {
		stop()
		<-done
	}
}

// attemptScope is the run ID used for the subjects and keys of one attempt.
func attemptScope(runID, generation string) string {
	return runID + "-" + generation
}

// runRank is one rank's part of a render: wait for everyone, compute the
// assigned rows, then send them or, on the coordinator, collect and encode.
func (r *Renderer) runRank(ctx context.Context, env rankEnv) (*Report, error) {
	if err := env.barrier.Wait(ctx, barrierStart); err != nil {
		return nil, fmt.Errorf("rank %d: %w", env.rank, err)
	}
	stopwatch := timing.Start()

	assignment, err := r.planner.Assign(r.canvas.Height, env.size, env.rank)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", env.rank, err)
	}

	computeTime := timing.Start()
	rows := r.kernel.Compute(assignment, env.onPixels)
	r.metrics.RecordRowsComputed(env.rank, assignment.Rows(), computeTime.Seconds())
	r.logger.Debug("rows computed", "rank", env.rank, "startRow", assignment.StartRow,
		"endRow", assignment.EndRow, "elapsed", computeTime.Elapsed())

	if env.rank != CoordinatorRank {
		if err := env.transport.Send(ctx, env.rank, rows); err != nil {
			return nil, fmt.Errorf("rank %d: failed to send rows: %w", env.rank, err)
		}
		if err := env.barrier.Wait(ctx, barrierEnd); err != nil {
			return nil, fmt.Errorf("rank %d: %w", env.rank, err)
		}

		return nil, nil
	}

	output, err := r.collectAndEncode(ctx, env, rows)
	if err != nil {
		return nil, err
	}

	if err := env.barrier.Wait(ctx, barrierEnd); err != nil {
		return nil, fmt.Errorf("rank %d: %w", env.rank, err)
	}
	elapsed := stopwatch.Elapsed()
	r.metrics.RecordRun(env.size, elapsed.Seconds())

	report := &Report{
		Width:      r.canvas.Width,
		Height:     r.canvas.Height,
		Workers:    env.size,
		Elapsed:    elapsed,
		Resolution: timing.Resolution(),
		Output:     output,
	}
	r.logger.Info("render finished", "output", output, "workers", env.size, "elapsed", elapsed)

	return report, nil
}

// collectAndEncode streams every contribution, in rank order, into the output file.
// A partially written file is removed.
func (r *Renderer) collectAndEncode(ctx context.Context, env rankEnv, local types.RowBuffer) (path string, err error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: failed to create output directory: %w", ErrOutputFailed, err)
	}

	path = OutputPath(&r.cfg)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %w", ErrOutputFailed, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close %s: %w", ErrOutputFailed, path, cerr)
		}
		if err != nil {
			if rerr := os.Remove(path); rerr != nil {
				r.logger.Warn("failed to remove partial output", "path", path, "error", rerr)
			}
		}
	}()

	width := r.canvas.Width
	written := r.printer("PNG")
	defer written.Finish()

	enc, err := encoder.NewPNG(f, width, r.canvas.Height, encoder.WithRowCallback(func(rows int) {
		written.Set(int64(rows) * int64(width))
	}))
	if err != nil {
		return "", err
	}

	coll, err := collector.New(r.cfg.Collector, env.transport, env.size,
		collector.WithLogger(r.logger),
		collector.WithMetrics(r.metrics),
		collector.WithConcurrency(r.cfg.Concurrency),
	)
	if err != nil {
		return "", err
	}

	sink := func(_ int, buf types.RowBuffer) error {
		before := enc.Rows()
		if err := enc.WriteRows(buf, r.mapper); err != nil {
			return err
		}
		r.metrics.RecordRowsEncoded(enc.Rows() - before)

		return nil
	}
	if err := coll.Collect(ctx, local, sink); err != nil {
		return "", err
	}

	if err := enc.Close(); err != nil {
		return "", err
	}

	return path, nil
}

// localTransport returns the transport shared by the goroutine ranks of
// RunLocal and a function releasing it.
func (r *Renderer) localTransport(ctx context.Context, size int) (types.Transport, func(), error) {
	if r.opts.transport != nil {
		return r.opts.transport, func() {}, nil
	}

	if r.cfg.Transport.Kind == TransportMemory {
		t := memory.New(size, r.transportOptions()...)
		return t, func() { _ = t.Close() }, nil
	}

	nc, closeConn, err := r.localConn()
	if err != nil {
		return nil, nil, err
	}

	setupCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()
	scope := attemptScope(r.cfg.RunID, nuid.Next())
	t, err := jstransport.New(setupCtx, nc, r.streamConfig(scope, size), r.transportOptions()...)
	if err != nil {
		closeConn()
		return nil, nil, err
	}

	release := func() {
		purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.OperationTimeout)
		defer cancel()
		if err := t.Purge(purgeCtx); err != nil {
			r.logger.Warn("failed to purge run subjects", "run", scope, "error", err)
		}
		_ = t.Close()
		closeConn()
	}

	return t, release, nil
}

// localConn returns the NATS connection of a local JetStream run.
func (r *Renderer) localConn() (*nats.Conn, func(), error) {
	if r.opts.conn != nil {
		return r.opts.conn, func() {}, nil
	}

	if r.cfg.NATS.Mode == NATSExternal {
		nc, err := nats.Connect(r.cfg.NATS.URL, nats.Name("fractal-local"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", r.cfg.NATS.URL, err)
		}

		return nc, nc.Close, nil
	}

	embedded, err := natsutil.StartEmbedded(natsutil.EmbeddedOptions{StoreDir: r.cfg.NATS.StoreDir})
	if err != nil {
		return nil, nil, err
	}
	r.logger.Debug("embedded NATS server started", "url", embedded.Server.ClientURL())

	return embedded.Conn, embedded.Shutdown, nil
}

func (r *Renderer) ensureBucket(ctx context.Context, js jetstream.JetStream, bucket, description string, ttl time.Duration) (jetstream.KeyValue, error) {
	setupCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	return kvutil.EnsureKVBucketWithRetry(setupCtx, js, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: description,
		TTL:         ttl,
	}, 3)
}

// claimRank claims a rank and keeps it renewed until the claimer is released.
// Claims live in a bucket whose TTL is the rank lease, so the rank of a
// crashed worker frees up after RankTTL.
func (r *Renderer) claimRank(ctx context.Context, js jetstream.JetStream, size int) (*rankid.Claimer, int, error) {
	rankKV, err := r.ensureBucket(ctx, js, r.cfg.KVBuckets.RankBucket, "Fractal rank claims", r.cfg.RankTTL)
	if err != nil {
		return nil, -1, err
	}

	claimer := rankid.NewClaimer(rankKV, r.cfg.RunID, size, r.cfg.RankTTL, r.logger)
	rank, err := claimer.Claim(ctx)
	if err != nil {
		return nil, -1, err
	}
	if err := claimer.StartRenewal(ctx); err != nil {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.OperationTimeout)
		defer cancel()

		return nil, -1, errors.Join(err, claimer.Release(releaseCtx))
	}

	return claimer, rank, nil
}

// startTracker feeds the run-wide pixel count into p until the returned
// function is called.
func (r *Renderer) startTracker(ctx context.Context, kv jetstream.KeyValue, scope string, p *progress.Printer) func() {
	if p == nil {
		return func() {}
	}

	trackCtx, cancel := context.WithCancel(ctx)
	tracker := progress.NewTracker(kv, scope, p.Set, r.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := tracker.Run(trackCtx); err != nil {
			r.logger.Warn("progress tracker stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// cleanupRun removes what a finished attempt left in NATS. Failures are
// logged only: the image is already written and bucket TTLs expire leftovers.
func (r *Renderer) cleanupRun(ctx context.Context, t *jstransport.Transport, b *barrier.KV, progressKV jetstream.KeyValue, scope string, size int) {
	if t != nil {
		if err := t.Purge(ctx); err != nil {
			r.logger.Warn("failed to purge run subjects", "run", scope, "error", err)
		}
	}
	if err := b.Cleanup(ctx); err != nil {
		r.logger.Warn("failed to clean barrier keys", "run", scope, "error", err)
	}
	if err := progress.Purge(ctx, progressKV, scope, size); err != nil {
		r.logger.Warn("failed to clean progress keys", "run", scope, "error", err)
	}
}

func (r *Renderer) streamConfig(scope string, size int) jstransport.Config {
	storage := jetstream.FileStorage
	if r.cfg.Transport.Storage == "memory" {
		storage = jetstream.MemoryStorage
	}

	return jstransport.Config{
		Stream:        r.cfg.Transport.Stream,
		SubjectPrefix: r.cfg.Transport.SubjectPrefix,
		RunID:         scope,
		Size:          size,
		ChunkSize:     r.cfg.Transport.ChunkSize,
		Storage:       storage,
		MaxAge:        r.cfg.KVBuckets.TTL,
	}
}

func (r *Renderer) transportOptions() []transport.Option {
	maxElements := r.cfg.Transport.MaxElements
	if maxElements == 0 {
		maxElements = r.canvas.Pixels()
	}

	return []transport.Option{
		transport.WithMaxElements(maxElements),
		transport.WithLogger(r.logger),
		transport.WithMetrics(r.metrics),
	}
}

func (r *Renderer) transportKind() string {
	if r.opts.transport != nil {
		return "custom"
	}

	return r.cfg.Transport.Kind
}

// printer returns a progress printer on the console, or nil without one.
// A line is printed every tenth of a row.
func (r *Renderer) printer(label string) *progress.Printer {
	if r.opts.console == nil {
		return nil
	}

	return progress.NewPrinter(r.opts.console, label, int64(r.canvas.Pixels()), int64(r.canvas.Width/10))
}

func (r *Renderer) modeLabel() string {
	if r.canvas.Mode == types.ModeJulia {
		return "Julia"
	}

	return "Mandelbrot"
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}
