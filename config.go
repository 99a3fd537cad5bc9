package fractal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brandon-Parker9/fractal/collector"
	"github.com/Brandon-Parker9/fractal/palette"
	"github.com/Brandon-Parker9/fractal/types"
)

// Transport kinds.
const (
	TransportJetStream = "jetstream"
	TransportMemory    = "memory"
)

// NATS connection modes.
const (
	NATSEmbedded = "embedded"
	NATSExternal = "external"
)

// TransportConfig selects how contributions travel from workers to the coordinator.
type TransportConfig struct {
	// Kind is "jetstream" (default) or "memory". Memory only works when every
	// rank runs in the same process.
	Kind string `yaml:"kind"`

	// Stream is the JetStream stream holding contributions.
	Stream string `yaml:"stream"`

	// SubjectPrefix is the subject root captured by Stream.
	SubjectPrefix string `yaml:"subjectPrefix"`

	// ChunkSize is the maximum payload bytes per message.
	// Must stay below the server's max_payload (1 MiB by default).
	ChunkSize int `yaml:"chunkSize"`

	// Storage is "file" (default) or "memory" for a newly created stream.
	Storage string `yaml:"storage"`

	// MaxElements bounds a single contribution. 0 means width*height, which
	// no honest worker can exceed.
	MaxElements int `yaml:"maxElements"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// Mode is "embedded" (start an in-process server) or "external".
	Mode string `yaml:"mode"`

	// URL of the external server. Ignored in embedded mode.
	URL string `yaml:"url"`

	// StoreDir holds embedded JetStream data. Empty uses a temporary directory.
	StoreDir string `yaml:"storeDir"`
}

// KVBucketConfig configures NATS JetStream KV bucket names and TTLs.
type KVBucketConfig struct {
	// BarrierBucket holds barrier arrivals.
	BarrierBucket string `yaml:"barrierBucket"`

	// RankBucket holds rank claims of workers started without a rank.
	RankBucket string `yaml:"rankBucket"`

	// ProgressBucket holds per-rank pixel counts.
	ProgressBucket string `yaml:"progressBucket"`

	// TTL expires keys left behind by crashed runs.
	TTL time.Duration `yaml:"ttl"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	// Addr is the listen address of the /metrics server. Empty disables it.
	Addr string `yaml:"addr"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Config is the configuration of a render.
//
// All duration fields accept standard Go duration strings like "500ms", "30s".
type Config struct {
	// Width and Height of the image in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// MaxIteration caps every orbit.
	MaxIteration int `yaml:"maxIteration"`

	// Palette selects one of the palettes 1..14.
	Palette int `yaml:"palette"`

	// Mode is "mandelbrot" or "julia".
	Mode string `yaml:"mode"`

	// Bounds is the viewport on the complex plane. Zero bounds take the
	// mode's default.
	Bounds types.Bounds `yaml:"bounds"`

	// JuliaC is the Julia constant. Ignored for Mandelbrot. A zero value
	// takes the default constant.
	JuliaC types.Complex `yaml:"juliaC"`

	// Workers is the number of ranks. 0 discovers it from the environment.
	Workers int `yaml:"workers"`

	// Collector is "sequential" (default) or "gather".
	Collector string `yaml:"collector"`

	// Concurrency bounds in-flight receives of the gather collector.
	Concurrency int `yaml:"concurrency"`

	// OutputDir receives the PNG file.
	OutputDir string `yaml:"outputDir"`

	// RunID scopes subjects and KV keys of one run. Every worker of a run
	// must use the same value.
	RunID string `yaml:"runId"`

	// ProgressInterval is how often workers publish their pixel count.
	ProgressInterval time.Duration `yaml:"progressInterval"`

	// RankTTL is how long a claimed rank survives without renewal.
	RankTTL time.Duration `yaml:"rankTtl"`

	// OperationTimeout bounds setup operations such as creating buckets and
	// streams. Receives are never timed out.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	Transport TransportConfig `yaml:"transport"`
	NATS      NATSConfig      `yaml:"nats"`
	KVBuckets KVBucketConfig  `yaml:"kvBuckets"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// Default viewports and Julia constant.
var (
	DefaultMandelbrotBounds = types.Bounds{XMin: -2, XMax: 2, YMin: -2, YMax: 2}
	DefaultJuliaBounds      = types.Bounds{XMin: -1.75, XMax: 1.75, YMin: -1.75, YMax: 1.75}
	DefaultJuliaC           = types.Complex{Real: -0.8, Imag: -0.089}
)

// DefaultConfig returns the default render: a 100x100 Mandelbrot image with
// 1000 iterations and palette 1.
//
// Returns:
//   - Config: Configuration with every field set
func DefaultConfig() Config {
	return Config{
		Width:            100,
		Height:           100,
		MaxIteration:     1000,
		Palette:          int(palette.PolynomialGradient),
		Mode:             types.ModeMandelbrot.String(),
		Bounds:           DefaultMandelbrotBounds,
		Collector:        collector.KindSequential,
		Concurrency:      4,
		OutputDir:        ".",
		RunID:            "default",
		ProgressInterval: time.Second,
		RankTTL:          30 * time.Second,
		OperationTimeout: 10 * time.Second,
		Transport: TransportConfig{
			Kind:          TransportJetStream,
			Stream:        "FRACTAL_ROWS",
			SubjectPrefix: "fractal.rows",
			ChunkSize:     512 * 1024,
			Storage:       "file",
		},
		NATS: NATSConfig{
			Mode: NATSEmbedded,
			URL:  "nats://127.0.0.1:4222",
		},
		KVBuckets: KVBucketConfig{
			BarrierBucket:  "fractal-barrier",
			RankBucket:     "fractal-rank",
			ProgressBucket: "fractal-progress",
			TTL:            time.Hour,
		},
		Metrics: MetricsConfig{
			Namespace: "fractal",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults fills zero-valued fields of cfg with defaults.
//
// Bounds and the Julia constant depend on the mode: Julia renders default to
// ±1.75 with c = -0.8 - 0.089i, Mandelbrot renders to ±2.
// Workers stays 0 so it can be discovered at run time.
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Width == 0 {
		cfg.Width = defaults.Width
	}
	if cfg.Height == 0 {
		cfg.Height = defaults.Height
	}
	if cfg.MaxIteration == 0 {
		cfg.MaxIteration = defaults.MaxIteration
	}
	if cfg.Palette == 0 {
		cfg.Palette = defaults.Palette
	}
	if cfg.Mode == "" {
		cfg.Mode = defaults.Mode
	}
	if mode, err := types.ParseMode(cfg.Mode); err == nil && mode == types.ModeJulia {
		if cfg.Bounds.IsZero() {
			cfg.Bounds = DefaultJuliaBounds
		}
		if cfg.JuliaC == (types.Complex{}) {
			cfg.JuliaC = DefaultJuliaC
		}
	} else if cfg.Bounds.IsZero() {
		cfg.Bounds = defaults.Bounds
	}
	if cfg.Collector == "" {
		cfg.Collector = defaults.Collector
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}
	if cfg.RunID == "" {
		cfg.RunID = defaults.RunID
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
	if cfg.RankTTL == 0 {
		cfg.RankTTL = defaults.RankTTL
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = defaults.Transport.Kind
	}
	if cfg.Transport.Stream == "" {
		cfg.Transport.Stream = defaults.Transport.Stream
	}
	if cfg.Transport.SubjectPrefix == "" {
		cfg.Transport.SubjectPrefix = defaults.Transport.SubjectPrefix
	}
	if cfg.Transport.ChunkSize == 0 {
		cfg.Transport.ChunkSize = defaults.Transport.ChunkSize
	}
	if cfg.Transport.Storage == "" {
		cfg.Transport.Storage = defaults.Transport.Storage
	}
	if cfg.NATS.Mode == "" {
		cfg.NATS.Mode = defaults.NATS.Mode
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = defaults.NATS.URL
	}
	if cfg.KVBuckets.BarrierBucket == "" {
		cfg.KVBuckets.BarrierBucket = defaults.KVBuckets.BarrierBucket
	}
	if cfg.KVBuckets.RankBucket == "" {
		cfg.KVBuckets.RankBucket = defaults.KVBuckets.RankBucket
	}
	if cfg.KVBuckets.ProgressBucket == "" {
		cfg.KVBuckets.ProgressBucket = defaults.KVBuckets.ProgressBucket
	}
	if cfg.KVBuckets.TTL == 0 {
		cfg.KVBuckets.TTL = defaults.KVBuckets.TTL
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// Validate checks the configuration for consistency.
//
// Every returned error wraps ErrInvalidConfig; canvas problems additionally
// wrap ErrInvalidCanvas or ErrUnknownMode, and a bad palette ErrUnknownPalette.
//
// Returns:
//   - error: Validation error, or nil if valid
func (cfg *Config) Validate() error {
	canvas, err := cfg.Canvas()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := canvas.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := palette.ParseChoice(cfg.Palette); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, cfg.Workers)
	}
	switch cfg.Collector {
	case "", collector.KindSequential, collector.KindGather:
	default:
		return fmt.Errorf("%w: unknown collector %q", ErrInvalidConfig, cfg.Collector)
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0, got %d", ErrInvalidConfig, cfg.Concurrency)
	}
	if cfg.RunID == "" || strings.ContainsAny(cfg.RunID, ".*> \t") {
		return fmt.Errorf("%w: run ID %q must be a single subject token", ErrInvalidConfig, cfg.RunID)
	}

	switch cfg.Transport.Kind {
	case TransportJetStream, TransportMemory:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, cfg.Transport.Kind)
	}
	switch cfg.Transport.Storage {
	case "file", "memory":
	default:
		return fmt.Errorf("%w: unknown stream storage %q", ErrInvalidConfig, cfg.Transport.Storage)
	}
	if cfg.Transport.ChunkSize < 4 {
		return fmt.Errorf("%w: chunk size must be >= 4 bytes, got %d", ErrInvalidConfig, cfg.Transport.ChunkSize)
	}
	if cfg.Transport.MaxElements < 0 {
		return fmt.Errorf("%w: max elements must be >= 0, got %d", ErrInvalidConfig, cfg.Transport.MaxElements)
	}

	switch cfg.NATS.Mode {
	case NATSEmbedded, NATSExternal:
	default:
		return fmt.Errorf("%w: unknown NATS mode %q", ErrInvalidConfig, cfg.NATS.Mode)
	}

	if cfg.ProgressInterval <= 0 {
		return fmt.Errorf("%w: progress interval must be > 0, got %v", ErrInvalidConfig, cfg.ProgressInterval)
	}
	if cfg.RankTTL < time.Second {
		return fmt.Errorf("%w: rank TTL must be >= 1s, got %v", ErrInvalidConfig, cfg.RankTTL)
	}
	if cfg.RankTTL < 3*cfg.ProgressInterval {
		return fmt.Errorf(
			"%w: rank TTL (%v) must be >= 3*ProgressInterval (%v) so claims outlive progress updates",
			ErrInvalidConfig, cfg.RankTTL, cfg.ProgressInterval,
		)
	}

	return nil
}

// ValidateWithWarnings logs settings that are legal but likely unintended.
//
// Parameters:
//   - logger: Logger for warning messages
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Workers > cfg.Height {
		logger.Warn(
			"more workers than rows, some workers will compute nothing",
			"workers", cfg.Workers,
			"height", cfg.Height,
		)
	}

	if cfg.Transport.ChunkSize > 1024*1024 {
		logger.Warn(
			"chunk size exceeds the default NATS max_payload",
			"chunkSize", cfg.Transport.ChunkSize,
			"recommended", "1MiB or less",
		)
	}

	if cfg.Collector == collector.KindGather && cfg.Width*cfg.Height > 64*1024*1024 {
		logger.Warn(
			"gather collector may hold most of the canvas in memory",
			"pixels", cfg.Width*cfg.Height,
			"recommended", collector.KindSequential,
		)
	}

	if mode, err := types.ParseMode(cfg.Mode); err == nil && mode == types.ModeMandelbrot &&
		cfg.JuliaC != (types.Complex{}) {
		logger.Warn("juliaC is ignored for mandelbrot renders", "juliaC", cfg.JuliaC)
	}
}

// Canvas converts the render settings into a types.Canvas.
//
// Returns:
//   - types.Canvas: Canvas for kernels and planners (not yet validated)
//   - error: types.ErrUnknownMode for a bad mode name
func (cfg *Config) Canvas() (types.Canvas, error) {
	mode, err := types.ParseMode(cfg.Mode)
	if err != nil {
		return types.Canvas{}, err
	}

	return types.Canvas{
		Width:        cfg.Width,
		Height:       cfg.Height,
		MaxIteration: cfg.MaxIteration,
		Bounds:       cfg.Bounds,
		Mode:         mode,
		JuliaC:       cfg.JuliaC,
	}, nil
}

// LoadConfig reads a YAML configuration file, applies defaults and validates it.
//
// Parameters:
//   - path: YAML file path
//
// Returns:
//   - *Config: Complete, validated configuration
//   - error: Read, parse or validation error
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// TestConfig returns a configuration tuned for fast tests.
//
// WARNING: Only use in tests. The canvas is tiny and intervals are short.
//
// Returns:
//   - Config: A 40x30 render with 100 iterations over the memory transport
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Width = 40
	cfg.Height = 30
	cfg.MaxIteration = 100
	cfg.Transport.Kind = TransportMemory
	cfg.Transport.Storage = "memory"
	cfg.Transport.ChunkSize = 1024
	cfg.ProgressInterval = 50 * time.Millisecond
	cfg.RankTTL = 2 * time.Second
	cfg.OperationTimeout = 5 * time.Second
	cfg.KVBuckets.TTL = time.Minute

	return cfg
}
