// Package palette maps iteration counts to colors.
//
// Palettes form a closed set selected by Choice. Each palette is a pure
// function of the normalized iteration count t in (0, 1); the Mapper handles
// normalization and paints interior points black.
//
// Channel values are truncated toward zero and then wrapped to 8 bits, so
// formulas whose range exceeds [0, 255] produce the same banding as the
// reference renderer instead of saturating.
package palette

import (
	"fmt"
	"math"

	"github.com/Brandon-Parker9/fractal/types"
)

// Choice identifies a palette.
type Choice int

// Palette identifiers. The numeric values are part of the output file name.
const (
	PolynomialGradient Choice = iota + 1
	HueBand
	Fire
	Autumn
	Ocean
	Rainbow
	Desert
	Pastel
	NightSky
	HSLRotation
	Twilight
	Sunset
	BandedRainbow
	DualGradient
)

// Palette converts a normalized iteration count to an RGB triple.
type Palette interface {
	// Choice returns the identifier of the palette.
	Choice() Choice

	// Name returns a short human-readable name.
	Name() string

	// RGB returns the color for t in (0, 1).
	RGB(t float64) (r, g, b uint8)
}

type formula struct {
	choice Choice
	name   string
	fn     func(t float64) (r, g, b float64)
}

var _ Palette = formula{}

func (f formula) Choice() Choice { return f.choice }

func (f formula) Name() string { return f.name }

func (f formula) RGB(t float64) (uint8, uint8, uint8) {
	r, g, b := f.fn(t)
	return channel(r), channel(g), channel(b)
}

// channel truncates toward zero and keeps the low 8 bits.
func channel(v float64) uint8 {
	return uint8(int(v)) //nolint:gosec // wraparound is the documented behavior
}

var palettes = [...]formula{
	{PolynomialGradient, "polynomial-gradient", polynomialGradient},
	{HueBand, "hue-band", hueBand},
	{Fire, "fire", fire},
	{Autumn, "autumn", autumn},
	{Ocean, "ocean", ocean},
	{Rainbow, "rainbow", rainbow},
	{Desert, "desert", desert},
	{Pastel, "pastel", pastel},
	{NightSky, "night-sky", nightSky},
	{HSLRotation, "hsl-rotation", hslRotation},
	{Twilight, "twilight", twilight},
	{Sunset, "sunset", sunset},
	{BandedRainbow, "banded-rainbow", bandedRainbow},
	{DualGradient, "dual-gradient", dualGradient},
}

// Lookup returns the palette for a choice.
//
// Parameters:
//   - choice: Palette identifier
//
// Returns:
//   - Palette: The selected palette
//   - error: types.ErrUnknownPalette for identifiers outside the closed set
func Lookup(choice Choice) (Palette, error) {
	if choice < PolynomialGradient || int(choice) > len(palettes) {
		return nil, fmt.Errorf("%w: %d (valid: 1-%d)", types.ErrUnknownPalette, int(choice), len(palettes))
	}

	return palettes[choice-1], nil
}

// ParseChoice validates a numeric palette identifier from configuration.
func ParseChoice(n int) (Choice, error) {
	c := Choice(n)
	if _, err := Lookup(c); err != nil {
		return 0, err
	}

	return c, nil
}

// All returns every palette in identifier order.
func All() []Palette {
	out := make([]Palette, len(palettes))
	for i, p := range palettes {
		out[i] = p
	}

	return out
}

// String returns the palette name, or the number for unknown identifiers.
func (c Choice) String() string {
	p, err := Lookup(c)
	if err != nil {
		return fmt.Sprintf("palette(%d)", int(c))
	}

	return p.Name()
}

// HueToRGB returns one channel of an HSL color.
//
// Callers obtain the three channels by shifting hue by 0, -1/3 and -2/3.
// The hue is scaled to six sectors; chroma and the intermediate component
// are placed according to the sector and lifted by the lightness offset.
//
// Explicit float64 conversions pin the rounding of each product so the
// result does not depend on fused multiply-add availability.
func HueToRGB(hue, saturation, lightness float64) float64 {
	chroma := (1 - math.Abs(float64(2*lightness)-1)) * saturation
	hm := float64(hue * 6)
	x := chroma * (1 - math.Abs(math.Mod(hm, 2)-1))

	var r float64
	switch {
	case hm < 1:
		r = chroma
	case hm < 2:
		r = x
	case hm < 4:
		r = 0
	case hm < 5:
		r = x
	default:
		r = chroma
	}

	m := lightness - float64(0.5*chroma)

	return r + m
}

func polynomialGradient(t float64) (float64, float64, float64) {
	return 9 * (1 - t) * t * t * t * 255,
		15 * (1 - t) * (1 - t) * t * t * 255,
		8.5 * (1 - t) * (1 - t) * (1 - t) * t * 255
}

func hueBand(t float64) (float64, float64, float64) {
	hue := float64(0.66*t) + 0.16
	h4 := float64(4 * hue)

	return 96 * (1 - math.Abs(h4-2)) * 255,
		144 * (math.Abs(h4-3) - math.Abs(h4-1)) * 255,
		85 * (1 - math.Abs(float64(2*hue)-1)) * 255
}

func fire(t float64) (float64, float64, float64) {
	s := math.Sqrt(t)
	return 255 * s, 185 * s, 85 * s
}

func autumn(t float64) (float64, float64, float64) {
	a := float64(2 * math.Pi * t)
	return 255 * (0.5 + float64(0.5*math.Cos(a))),
		255 * (0.2 + float64(0.3*math.Cos(a+2*math.Pi/3))),
		255 * (0.1 + float64(0.1*math.Cos(a+4*math.Pi/3)))
}

func ocean(t float64) (float64, float64, float64) {
	return 50 + float64(205*t), 100 + float64(155*t), 150 + float64(105*t)
}

func rainbow(t float64) (float64, float64, float64) {
	return 255 * (1 - t), 255 * math.Abs(0.5-t), 255 * t
}

func desert(t float64) (float64, float64, float64) {
	return 220 * (1 - t), 180 * (1 - t), 130 * (1 - t)
}

func pastel(t float64) (float64, float64, float64) {
	a := float64(2 * math.Pi * t)
	return 220 * (0.5 + float64(0.5*math.Sin(a))),
		205 * (0.5 + float64(0.5*math.Sin(a+2*math.Pi/3))),
		255 * (0.5 + float64(0.5*math.Sin(a+4*math.Pi/3)))
}

func nightSky(t float64) (float64, float64, float64) {
	a := float64(2 * math.Pi * t)
	return 20 + float64(100*math.Sin(a)),
		10 + float64(50*math.Sin(a+math.Pi/2)),
		50 + float64(100*math.Sin(a+math.Pi))
}

func hslRotation(t float64) (float64, float64, float64) {
	hue := 0.5 + float64(t*0.5)
	return hsl(hue, 0.8, 0.5)
}

func twilight(t float64) (float64, float64, float64) {
	return 30 * t, 0, 128
}

func sunset(t float64) (float64, float64, float64) {
	return 255 * (1 - t), float64(69*(1-t)) + float64(128*t), 128 * t
}

var rainbowBands = [6][3]float64{
	{255, 0, 0},
	{255, 127, 0},
	{255, 255, 0},
	{0, 255, 0},
	{0, 0, 255},
	{139, 0, 255},
}

// bandedRainbow quantizes t into six flat color sectors.
func bandedRainbow(t float64) (float64, float64, float64) {
	band := rainbowBands[min(int(t*6), len(rainbowBands)-1)]
	return band[0], band[1], band[2]
}

// dualGradient mixes an ocean gradient into an ember gradient as t grows.
func dualGradient(t float64) (float64, float64, float64) {
	ar, ag, ab := 20.0, 40+float64(180*t), 120+float64(135*t)
	br, bg, bb := 255*math.Sqrt(t), 140*t, 60*(1-t)

	return float64((1-t)*ar) + float64(t*br),
		float64((1-t)*ag) + float64(t*bg),
		float64((1-t)*ab) + float64(t*bb)
}

func hsl(hue, saturation, lightness float64) (float64, float64, float64) {
	return 255 * HueToRGB(hue, saturation, lightness),
		255 * HueToRGB(hue-1.0/3, saturation, lightness),
		255 * HueToRGB(hue-2.0/3, saturation, lightness)
}
