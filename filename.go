package fractal

import (
	"fmt"
	"path/filepath"
)

// OutputName returns the PNG file name of a render.
//
// Mandelbrot renders are named output_<W>x<H>_color-<P>_iterations-<N>.png.
// Julia renders add the constant:
// julia-set_<W>x<H>_color-<P>_iterations-<N>_real-<re>_imaginary-<im>.png,
// with both parts printed to six decimals.
func OutputName(cfg *Config) string {
	canvas, err := cfg.Canvas()
	if err == nil && canvas.Mode == ModeJulia {
		return fmt.Sprintf("julia-set_%dx%d_color-%d_iterations-%d_real-%f_imaginary-%f.png",
			cfg.Width, cfg.Height, cfg.Palette, cfg.MaxIteration, cfg.JuliaC.Real, cfg.JuliaC.Imag)
	}

	return fmt.Sprintf("output_%dx%d_color-%d_iterations-%d.png",
		cfg.Width, cfg.Height, cfg.Palette, cfg.MaxIteration)
}

// OutputPath joins the output directory and OutputName.
func OutputPath(cfg *Config) string {
	return filepath.Join(cfg.OutputDir, OutputName(cfg))
}
