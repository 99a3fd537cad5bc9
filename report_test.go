package fractal

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	r := &Report{
		Width:      100,
		Height:     100,
		Workers:    4,
		Elapsed:    2 * time.Second,
		Resolution: 1e-9,
		Output:     "out/output_100x100_color-1_iterations-1000.png",
	}

	require.Equal(t, 500*time.Millisecond, r.PerWorker())
	require.Equal(t, "100,100,4,2.000000e+00,5.000000e-01,1.000000e-09", r.CSV())

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)

	out := buf.String()
	require.Contains(t, out, "PNG image created successfully: out/output_100x100_color-1_iterations-1000.png\n")
	require.Contains(t, out, "Total processes: 4\n")
	require.Contains(t, out, "Total computation time: 2.000000e+00 seconds\n")
	require.Contains(t, out, "Computation time per process: 5.000000e-01 seconds\n")
	require.Contains(t, out, "Resolution of timer: 1.000000e-09 seconds\n")
	require.Contains(t, out, r.CSV()+"\n")
}

func TestReport_PerWorkerWithoutWorkers(t *testing.T) {
	r := &Report{Elapsed: time.Second}
	require.Equal(t, time.Second, r.PerWorker())
}

func TestOutputName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 1000, 800
	cfg.Palette = 3
	cfg.MaxIteration = 5000
	require.Equal(t, "output_1000x800_color-3_iterations-5000.png", OutputName(&cfg))

	cfg.Mode = "julia"
	cfg.JuliaC = Complex{Real: 0.285, Imag: 0.01}
	require.Equal(t, "julia-set_1000x800_color-3_iterations-5000_real-0.285000_imaginary-0.010000.png",
		OutputName(&cfg))

	cfg.OutputDir = "renders"
	require.Equal(t, "renders/julia-set_1000x800_color-3_iterations-5000_real-0.285000_imaginary-0.010000.png",
		OutputPath(&cfg))
}
