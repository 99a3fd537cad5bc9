package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brandon-Parker9/fractal"
)

// options holds the command line. Render settings only override the
// configuration file when given explicitly.
type options struct {
	configPath string
	run        string
	rank       int

	width        int
	height       int
	iterations   int
	palette      int
	mode         string
	real         float64
	imag         float64
	workers      int
	collector    string
	output       string
	runID        string
	transport    string
	natsURL      string
	logLevel     string
	metricsAddr  string
	progressTick time.Duration
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{}

	fs.StringVar(&o.configPath, "config", "", "Path to YAML configuration file")
	fs.StringVar(&o.run, "run", "local", "Run mode: local, worker or serial")
	fs.IntVar(&o.rank, "rank", -1, "Worker rank; -1 reads the launcher environment or claims one")

	fs.IntVar(&o.width, "width", 0, "Image width in pixels")
	fs.IntVar(&o.height, "height", 0, "Image height in pixels")
	fs.IntVar(&o.iterations, "iterations", 0, "Maximum escape-time iterations")
	fs.IntVar(&o.palette, "palette", 0, "Palette number (1-14)")
	fs.StringVar(&o.mode, "fractal", "", "Fractal: mandelbrot or julia")
	fs.Float64Var(&o.real, "real", 0, "Real part of the Julia constant")
	fs.Float64Var(&o.imag, "imag", 0, "Imaginary part of the Julia constant")
	fs.IntVar(&o.workers, "workers", 0, "Worker count; 0 reads the launcher environment")
	fs.StringVar(&o.collector, "collector", "", "Collector: sequential or gather")
	fs.StringVar(&o.output, "output", "", "Output directory")
	fs.StringVar(&o.runID, "run-id", "", "Run ID scoping subjects and KV keys")
	fs.StringVar(&o.transport, "transport", "", "Local transport: jetstream or memory")
	fs.StringVar(&o.natsURL, "nats-url", "", "External NATS URL")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.DurationVar(&o.progressTick, "progress-interval", 0, "Progress publish interval")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch o.run {
	case "local", "worker", "serial":
	default:
		return nil, fmt.Errorf("unknown run mode %q", o.run)
	}

	return o, nil
}

// buildConfig reads the configuration file, applies explicit flags and then
// the defaults, so mode-dependent defaults follow a -fractal override.
func buildConfig(fs *flag.FlagSet, o *options) (fractal.Config, error) {
	var cfg fractal.Config

	if o.configPath != "" {
		data, err := os.ReadFile(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = o.width
		case "height":
			cfg.Height = o.height
		case "iterations":
			cfg.MaxIteration = o.iterations
		case "palette":
			cfg.Palette = o.palette
		case "fractal":
			cfg.Mode = o.mode
		case "real":
			cfg.JuliaC.Real = o.real
		case "imag":
			cfg.JuliaC.Imag = o.imag
		case "workers":
			cfg.Workers = o.workers
		case "collector":
			cfg.Collector = o.collector
		case "output":
			cfg.OutputDir = o.output
		case "run-id":
			cfg.RunID = o.runID
		case "transport":
			cfg.Transport.Kind = o.transport
		case "nats-url":
			cfg.NATS.URL = o.natsURL
			cfg.NATS.Mode = fractal.NATSExternal
		case "log-level":
			cfg.Log.Level = o.logLevel
		case "metrics-addr":
			cfg.Metrics.Addr = o.metricsAddr
		case "progress-interval":
			cfg.ProgressInterval = o.progressTick
		}
	})

	fractal.SetDefaults(&cfg)

	return cfg, cfg.Validate()
}
