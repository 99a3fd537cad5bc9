package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Brandon-Parker9/fractal"
)

func parse(t *testing.T, args ...string) (fractal.Config, error) {
	t.Helper()

	fs := flag.NewFlagSet("fractal", flag.ContinueOnError)
	opts, err := parseFlags(fs, args)
	require.NoError(t, err)

	return buildConfig(fs, opts)
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)
	require.Equal(t, fractal.DefaultConfig(), cfg)
}

func TestBuildConfig_JuliaFlags(t *testing.T) {
	cfg, err := parse(t, "-fractal", "julia", "-real", "0.285", "-imag", "0.01", "-palette", "7")
	require.NoError(t, err)

	require.Equal(t, "julia", cfg.Mode)
	require.Equal(t, fractal.DefaultJuliaBounds, cfg.Bounds)
	require.Equal(t, fractal.Complex{Real: 0.285, Imag: 0.01}, cfg.JuliaC)
	require.Equal(t, 7, cfg.Palette)
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 640\nheight: 480\ncollector: gather\n"), 0o600))

	cfg, err := parse(t, "-config", path, "-height", "200", "-nats-url", "nats://nats:4222")
	require.NoError(t, err)

	require.Equal(t, 640, cfg.Width)
	require.Equal(t, 200, cfg.Height)
	require.Equal(t, "gather", cfg.Collector)
	require.Equal(t, fractal.NATSExternal, cfg.NATS.Mode)
	require.Equal(t, "nats://nats:4222", cfg.NATS.URL)
}

func TestBuildConfig_Invalid(t *testing.T) {
	_, err := parse(t, "-palette", "15")
	require.ErrorIs(t, err, fractal.ErrInvalidConfig)
}

func TestParseFlags_UnknownRunMode(t *testing.T) {
	fs := flag.NewFlagSet("fractal", flag.ContinueOnError)
	_, err := parseFlags(fs, []string{"-run", "cluster"})
	require.Error(t, err)
}
