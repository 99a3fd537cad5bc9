package fractal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brandon-Parker9/fractal/internal/barrier"
	"github.com/Brandon-Parker9/fractal/internal/metrics"
	"github.com/Brandon-Parker9/fractal/internal/progress"
	fractaltest "github.com/Brandon-Parker9/fractal/testing"
	jstransport "github.com/Brandon-Parker9/fractal/transport/jetstream"
	"github.com/Brandon-Parker9/fractal/transport/memory"
)

// renderConfig is the 100x100, 1000-iteration, palette 1 reference render.
func renderConfig(t *testing.T) Config {
	t.Helper()

	cfg := TestConfig()
	cfg.Width = 100
	cfg.Height = 100
	cfg.MaxIteration = 1000
	cfg.OutputDir = t.TempDir()

	return cfg
}

func renderSerial(t *testing.T, cfg Config) []byte {
	t.Helper()

	cfg.OutputDir = t.TempDir()
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	report, err := r.RunSerial(t.Context())
	require.NoError(t, err)

	data, err := os.ReadFile(report.Output)
	require.NoError(t, err)

	return data
}

func readOutput(t *testing.T, report *Report) []byte {
	t.Helper()
	require.NotNil(t, report)

	data, err := os.ReadFile(report.Output)
	require.NoError(t, err)

	return data
}

func TestRunLocal_MemoryTransport(t *testing.T) {
	cfg := renderConfig(t)
	r, err := NewRenderer(&cfg, WithLogger(fractaltest.NewTestLogger(t)))
	require.NoError(t, err)

	report, err := r.RunLocal(t.Context(), 4)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(cfg.OutputDir, "output_100x100_color-1_iterations-1000.png"), report.Output)
	require.Equal(t, 4, report.Workers)
	require.Equal(t, 100, report.Width)
	require.Equal(t, 100, report.Height)
	require.Positive(t, report.Elapsed)
	require.Positive(t, report.Resolution)

	img := fractaltest.DecodePNG(t, readOutput(t, report))
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())
	for y := range 100 {
		for x := range 100 {
			require.Equal(t, uint8(255), img.NRGBAAt(x, y).A, "pixel (%d,%d)", x, y)
		}
	}

	// (50, 50) maps to c = 0, which never escapes.
	center := img.NRGBAAt(50, 50)
	require.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{center.R, center.G, center.B})

	colored := 0
	for y := range 100 {
		for x := range 100 {
			if p := img.NRGBAAt(x, y); p.R != 0 || p.G != 0 || p.B != 0 {
				colored++
			}
		}
	}
	require.Positive(t, colored, "points near the set boundary are colored")
}

func TestRunLocal_MatchesSerial(t *testing.T) {
	cfg := renderConfig(t)
	want := renderSerial(t, cfg)

	for _, workers := range []int{1, 2, 3, 4, 7} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			c := cfg
			c.OutputDir = t.TempDir()
			r, err := NewRenderer(&c)
			require.NoError(t, err)

			report, err := r.RunLocal(t.Context(), workers)
			require.NoError(t, err)
			require.Equal(t, want, readOutput(t, report), "%d workers", workers)
		})
	}
}

func TestRunLocal_GatherCollector(t *testing.T) {
	cfg := renderConfig(t)
	want := renderSerial(t, cfg)

	cfg.Collector = "gather"
	cfg.Concurrency = 2
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	report, err := r.RunLocal(t.Context(), 5)
	require.NoError(t, err)
	require.Equal(t, want, readOutput(t, report))
}

func TestRunLocal_EmbeddedJetStream(t *testing.T) {
	cfg := renderConfig(t)
	want := renderSerial(t, cfg)

	cfg.Transport.Kind = TransportJetStream
	cfg.NATS.Mode = NATSEmbedded
	cfg.NATS.StoreDir = t.TempDir()
	cfg.Transport.ChunkSize = 4096
	r, err := NewRenderer(&cfg, WithLogger(fractaltest.NewTestLogger(t)))
	require.NoError(t, err)

	report, err := r.RunLocal(t.Context(), 4)
	require.NoError(t, err)
	require.Equal(t, want, readOutput(t, report))
}

func TestRunLocal_SharedConnectionPurgesRun(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)

	cfg := renderConfig(t)
	cfg.Transport.Kind = TransportJetStream
	cfg.RunID = "shared"
	r, err := NewRenderer(&cfg, WithNATSConn(nc))
	require.NoError(t, err)

	_, err = r.RunLocal(t.Context(), 3)
	require.NoError(t, err)
	require.False(t, nc.IsClosed(), "borrowed connection stays open")

	stream, err := fractaltest.JetStream(t, nc).Stream(t.Context(), cfg.Transport.Stream)
	require.NoError(t, err)
	info, err := stream.Info(t.Context())
	require.NoError(t, err)
	require.Zero(t, info.State.Msgs, "run subjects are purged after collection")
}

func TestRunLocal_Julia(t *testing.T) {
	cfg := TestConfig()
	cfg.Mode = "julia"
	cfg.Bounds = Bounds{}
	cfg.OutputDir = t.TempDir()
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	require.Equal(t, DefaultJuliaBounds, r.Config().Bounds)
	require.Equal(t, DefaultJuliaC, r.Config().JuliaC)

	report, err := r.RunLocal(t.Context(), 3)
	require.NoError(t, err)
	require.Equal(t, "julia-set_40x30_color-1_iterations-100_real--0.800000_imaginary--0.089000.png",
		filepath.Base(report.Output))

	img := fractaltest.DecodePNG(t, readOutput(t, report))
	require.Equal(t, 40, img.Bounds().Dx())
	require.Equal(t, 30, img.Bounds().Dy())
}

func TestRunLocal_MoreWorkersThanRows(t *testing.T) {
	cfg := TestConfig()
	cfg.Height = 3
	cfg.OutputDir = t.TempDir()
	want := renderSerial(t, cfg)

	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	report, err := r.RunLocal(t.Context(), 8)
	require.NoError(t, err)
	require.Equal(t, want, readOutput(t, report))
}

func TestRunLocal_ProgressOutput(t *testing.T) {
	cfg := renderConfig(t)
	var console bytes.Buffer
	r, err := NewRenderer(&cfg, WithConsole(&console))
	require.NoError(t, err)

	_, err = r.RunLocal(t.Context(), 4)
	require.NoError(t, err)

	out := console.String()
	require.Contains(t, out, "\rMandelbrot Pixel Progress: 100.00% Pixel Count: 10000\n")
	require.Contains(t, out, "\rPNG Pixel Progress: 100.00% Pixel Count: 10000\n")
	require.Contains(t, out, "PNG Pixel Progress: 1.00% Pixel Count: 100")
}

func TestRunLocal_OutputFailure(t *testing.T) {
	cfg := renderConfig(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.OutputDir = blocker

	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	_, err = r.RunLocal(ctx, 4)
	require.ErrorIs(t, err, ErrOutputFailed)
}

func TestRunLocal_Cancelled(t *testing.T) {
	cfg := renderConfig(t)
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = r.RunLocal(ctx, 4)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunLocal_CustomTransport(t *testing.T) {
	cfg := renderConfig(t)
	tr := memory.New(2)
	defer func() { _ = tr.Close() }()

	r, err := NewRenderer(&cfg, WithTransport(tr))
	require.NoError(t, err)

	_, err = r.RunLocal(t.Context(), 2)
	require.NoError(t, err)

	// The caller still owns the transport.
	require.NoError(t, tr.Send(t.Context(), 1, RowBuffer{1}))
}

func TestRunLocal_Metrics(t *testing.T) {
	cfg := renderConfig(t)
	reg := prometheus.NewRegistry()
	r, err := NewRenderer(&cfg, WithMetrics(metrics.NewPrometheus(reg, "test")))
	require.NoError(t, err)

	_, err = r.RunLocal(t.Context(), 4)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	require.InDelta(t, 100, values["test_kernel_rows_computed_total"], 0)
	require.InDelta(t, 100, values["test_encoder_rows_encoded_total"], 0)
	require.InDelta(t, 100*100, values["test_collector_contribution_elements_total"], 0,
		"every pixel passes the collector once")
}

func TestRunSerial(t *testing.T) {
	cfg := TestConfig()
	cfg.OutputDir = t.TempDir()
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	report, err := r.RunSerial(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, report.Workers)
	require.Equal(t, report.Elapsed, report.PerWorker())

	img := fractaltest.DecodePNG(t, readOutput(t, report))
	require.Equal(t, 40, img.Bounds().Dx())
}

func TestNewRenderer_Invalid(t *testing.T) {
	_, err := NewRenderer(nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	cfg := TestConfig()
	cfg.Palette = 15
	_, err = NewRenderer(&cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, ErrUnknownPalette)

	cfg = TestConfig()
	cfg.Mode = "burning-ship"
	_, err = NewRenderer(&cfg)
	require.ErrorIs(t, err, ErrUnknownMode)
}

// startWorkers runs one renderer per rank against a shared server and
// returns the reports by rank order of completion.
func startWorkers(t *testing.T, url string, cfg Config, ranks []int, size int) ([]*Report, []error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	reports := make([]*Report, len(ranks))
	errs := make([]error, len(ranks))
	var wg sync.WaitGroup
	for i, rank := range ranks {
		nc, err := nats.Connect(url)
		require.NoError(t, err)
		t.Cleanup(nc.Close)

		c := cfg
		r, err := NewRenderer(&c, WithLogger(fractaltest.NewTestLogger(t)))
		require.NoError(t, err)

		wg.Go(func() {
			reports[i], errs[i] = r.RunWorker(ctx, nc, rank, size)
		})
	}
	wg.Wait()

	return reports, errs
}

func TestRunWorker_Distributed(t *testing.T) {
	srv, nc := fractaltest.StartEmbeddedNATS(t)

	cfg := renderConfig(t)
	want := renderSerial(t, cfg)
	cfg.Transport.Kind = TransportJetStream
	cfg.NATS.Mode = NATSExternal
	cfg.RunID = "dist"

	reports, errs := startWorkers(t, srv.ClientURL(), cfg, []int{2, 0, 1}, 3)
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	require.Nil(t, reports[0])
	require.Nil(t, reports[2])
	require.NotNil(t, reports[1])
	require.Equal(t, 3, reports[1].Workers)
	require.Equal(t, want, readOutput(t, reports[1]))

	// The coordinator cleaned up the attempt and its generation.
	js := fractaltest.JetStream(t, nc)
	for _, bucket := range []string{cfg.KVBuckets.BarrierBucket, cfg.KVBuckets.ProgressBucket} {
		kv, err := js.KeyValue(t.Context(), bucket)
		require.NoError(t, err)
		keys, err := kv.Keys(t.Context())
		if err == nil {
			for _, key := range keys {
				assert.False(t, strings.HasPrefix(key, "dist"), "leftover key %s in %s", key, bucket)
			}
		}
	}
}

func TestRunWorker_IgnoresEarlierAttempt(t *testing.T) {
	srv, nc := fractaltest.StartEmbeddedNATS(t)

	cfg := renderConfig(t)
	want := renderSerial(t, cfg)
	cfg.Transport.Kind = TransportJetStream
	cfg.NATS.Mode = NATSExternal
	cfg.RunID = "rerun"

	r, err := NewRenderer(&cfg)
	require.NoError(t, err)
	js := fractaltest.JetStream(t, nc)
	ctx := t.Context()

	// Leftovers of a crashed attempt with the same run ID: its generation,
	// start arrivals of both ranks, progress and a full-size rank 1
	// contribution that was never collected.
	barrierKV, err := r.ensureBucket(ctx, js, cfg.KVBuckets.BarrierBucket, "Fractal barrier arrivals", cfg.KVBuckets.TTL)
	require.NoError(t, err)
	progressKV, err := r.ensureBucket(ctx, js, cfg.KVBuckets.ProgressBucket, "Fractal pixel progress", cfg.KVBuckets.TTL)
	require.NoError(t, err)

	_, err = barrierKV.PutString(ctx, barrier.GenerationKey("rerun"), "crashed")
	require.NoError(t, err)

	stale := make(RowBuffer, 50*cfg.Width)
	for i := range stale {
		stale[i] = 7
	}
	for _, scope := range []string{"rerun", attemptScope("rerun", "crashed")} {
		for rank := range 2 {
			_, err = barrierKV.PutString(ctx, fmt.Sprintf("%s.start.%d", scope, rank), "stale")
			require.NoError(t, err)
		}
		_, err = progressKV.PutString(ctx, progress.Key(scope, 1), "5000")
		require.NoError(t, err)

		old, err := jstransport.New(ctx, nc, r.streamConfig(scope, 2))
		require.NoError(t, err)
		require.NoError(t, old.Send(ctx, 1, stale))
	}

	reports, errs := startWorkers(t, srv.ClientURL(), cfg, []int{0, 1}, 2)
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	require.NotNil(t, reports[0])
	require.Equal(t, want, readOutput(t, reports[0]))
}

func TestRunWorker_CoordinatorFailureAbortsRun(t *testing.T) {
	srv, _ := fractaltest.StartEmbeddedNATS(t)

	cfg := renderConfig(t)
	cfg.Transport.Kind = TransportJetStream
	cfg.NATS.Mode = NATSExternal
	cfg.RunID = "aborted"

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg.OutputDir = filepath.Join(blocker, "out")

	start := time.Now()
	reports, errs := startWorkers(t, srv.ClientURL(), cfg, []int{0, 1}, 2)

	// Well within the workers' 30s deadline.
	require.Less(t, time.Since(start), 15*time.Second)
	require.ErrorIs(t, errs[0], ErrOutputFailed)
	require.ErrorIs(t, errs[1], ErrRunAborted)
	require.Nil(t, reports[0])
	require.Nil(t, reports[1])
}

func TestRunWorker_WorkerFailureAbortsCoordinator(t *testing.T) {
	srv, nc := fractaltest.StartEmbeddedNATS(t)

	cfg := renderConfig(t)
	cfg.Transport.Kind = TransportJetStream
	cfg.NATS.Mode = NATSExternal
	cfg.RunID = "worker-lost"

	r, err := NewRenderer(&cfg)
	require.NoError(t, err)
	js := fractaltest.JetStream(t, nc)
	barrierKV, err := r.ensureBucket(t.Context(), js, cfg.KVBuckets.BarrierBucket, "Fractal barrier arrivals", cfg.KVBuckets.TTL)
	require.NoError(t, err)

	// Rank 1 joins the attempt, passes the start barrier and then fails
	// before sending its rows.
	failing := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
		defer cancel()

		generation, err := barrier.AwaitGeneration(ctx, barrierKV, cfg.RunID)
		if err != nil {
			failing <- err
			return
		}
		b, err := barrier.NewKV(barrierKV, attemptScope(cfg.RunID, generation), 1, 2, nil)
		if err != nil {
			failing <- err
			return
		}
		if err := b.Wait(ctx, barrierStart); err != nil {
			failing <- err
			return
		}
		failing <- b.Abort(ctx, "lost its rows")
	}()

	start := time.Now()
	reports, errs := startWorkers(t, srv.ClientURL(), cfg, []int{0}, 2)

	require.NoError(t, <-failing)
	require.Less(t, time.Since(start), 15*time.Second)
	require.ErrorIs(t, errs[0], ErrRunAborted)
	require.ErrorContains(t, errs[0], "rank 1: lost its rows")
	require.Nil(t, reports[0])

	// No partial image is left behind.
	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRunWorker_ClaimsRanks(t *testing.T) {
	srv, _ := fractaltest.StartEmbeddedNATS(t)

	cfg := renderConfig(t)
	want := renderSerial(t, cfg)
	cfg.Transport.Kind = TransportJetStream
	cfg.NATS.Mode = NATSExternal
	cfg.RunID = "claimed"

	reports, errs := startWorkers(t, srv.ClientURL(), cfg, []int{-1, -1, -1}, 3)

	coordinators := 0
	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
		if reports[i] != nil {
			coordinators++
			require.Equal(t, want, readOutput(t, reports[i]))
		}
	}
	require.Equal(t, 1, coordinators)
}

func TestRunWorker_AbandonedRankIsReclaimed(t *testing.T) {
	_, nc := fractaltest.StartEmbeddedNATS(t)

	cfg := TestConfig()
	cfg.OutputDir = t.TempDir()
	cfg.RunID = "lease"
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)
	js := fractaltest.JetStream(t, nc)

	// The worker holding rank 0 dies: renewal stops and it never releases.
	claimCtx, abandon := context.WithCancel(t.Context())
	_, rank, err := r.claimRank(claimCtx, js, 2)
	require.NoError(t, err)
	require.Equal(t, 0, rank)
	abandon()

	rankKV, err := js.KeyValue(t.Context(), cfg.KVBuckets.RankBucket)
	require.NoError(t, err)
	status, err := rankKV.Status(t.Context())
	require.NoError(t, err)
	require.Equal(t, cfg.RankTTL, status.TTL())

	require.Eventually(t, func() bool {
		claimer, rank, err := r.claimRank(t.Context(), js, 2)
		if err != nil {
			return false
		}
		_ = claimer.Release(t.Context())

		return rank == 0
	}, 3*cfg.RankTTL+5*time.Second, 250*time.Millisecond, "rank 0 was not freed after the lease expired")
}

func TestRunWorker_Validation(t *testing.T) {
	cfg := TestConfig()
	cfg.OutputDir = t.TempDir()
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)

	_, err = r.RunWorker(t.Context(), nil, 0, 2)
	require.ErrorIs(t, err, ErrNATSConnectionRequired)

	_, nc := fractaltest.StartEmbeddedNATS(t)
	_, err = r.RunWorker(t.Context(), nc, 2, 2)
	require.ErrorIs(t, err, ErrInvalidRank)

	t.Setenv("FRACTAL_WORLD_SIZE", "")
	t.Setenv("OMPI_COMM_WORLD_SIZE", "")
	t.Setenv("PMI_SIZE", "")
	_, err = r.RunWorker(t.Context(), nc, 0, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func BenchmarkRunLocal(b *testing.B) {
	cfg := TestConfig()
	cfg.Width = 200
	cfg.Height = 200
	cfg.OutputDir = b.TempDir()
	r, err := NewRenderer(&cfg)
	require.NoError(b, err)

	for b.Loop() {
		if _, err := r.RunLocal(b.Context(), 4); err != nil {
			b.Fatal(err)
		}
	}
}
