// Command fractal renders a Mandelbrot or Julia set to PNG, either in one
// process or as one rank of a distributed run coordinated over NATS.
//
// Usage:
//
//	fractal -width 1000 -height 1000 -iterations 5000 -palette 3 -workers 8
//	fractal -run worker -config render.yaml -nats-url nats://nats:4222
//	fractal -run serial -fractal julia -real 0.285 -imag 0.01
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Brandon-Parker9/fractal"
	"github.com/Brandon-Parker9/fractal/internal/logging"
	"github.com/Brandon-Parker9/fractal/internal/metrics"
	"github.com/Brandon-Parker9/fractal/internal/natsutil"
	"github.com/Brandon-Parker9/fractal/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "fractal: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("fractal", flag.ContinueOnError)
	opts, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		return err
	}

	log, err := logging.NewText(os.Stderr, cfg.Log.Level)
	if err != nil {
		return err
	}
	log = log.With("run", cfg.RunID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rendererOpts := []fractal.Option{
		fractal.WithLogger(log),
		fractal.WithConsole(os.Stdout),
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		srv := metrics.NewServer(cfg.Metrics.Addr, reg, log)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = srv.Shutdown() }()

		rendererOpts = append(rendererOpts, fractal.WithMetrics(metrics.NewPrometheus(reg, cfg.Metrics.Namespace)))
	}

	r, err := fractal.NewRenderer(&cfg, rendererOpts...)
	if err != nil {
		return err
	}

	var report *fractal.Report
	switch opts.run {
	case "serial":
		report, err = r.RunSerial(ctx)
	case "local":
		report, err = r.RunLocal(ctx, cfg.Workers)
	case "worker":
		report, err = runWorker(ctx, r, &cfg, opts.rank, log)
	}

	if err != nil {
		log.Error("render failed", "error", err)
		if natsutil.IsConnectivityError(err) {
			log.Error("NATS is unreachable; check nats.url and that JetStream is enabled", "url", cfg.NATS.URL)
		}

		return err
	}

	// Only the coordinator has a report.
	if report != nil {
		if _, err := report.WriteTo(os.Stdout); err != nil {
			return fmt.Errorf("%w: %w", fractal.ErrOutputFailed, err)
		}
	}

	return nil
}

func runWorker(ctx context.Context, r *fractal.Renderer, cfg *fractal.Config, rank int, log types.Logger) (*fractal.Report, error) {
	if rank < 0 {
		discovered, ok, err := fractal.DiscoverRank()
		if err != nil {
			return nil, err
		}
		if ok {
			rank = discovered
		}
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name(fmt.Sprintf("fractal-%s", cfg.RunID)),
		nats.Timeout(cfg.OperationTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	log.Info("worker connected", "url", nc.ConnectedUrl(), "rank", rank, "workers", cfg.Workers)

	return r.RunWorker(ctx, nc, rank, cfg.Workers)
}
