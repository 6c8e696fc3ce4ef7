// Package colorcheck implements the Color Checker (C8): dominant-color
// conformity against an expected RGB value, reported as pass/fail by
// comparing the L2 (Euclidean) distance of each pixel to expected_color
// against color_tolerance, and the fraction of conforming pixels against
// min_pixel_percentage. Grounded on internal/tools/image's plain
// numeric-options style (teacher). The optional histogram-stretch
// pre-normalization is computed in this package (stretchHistogram);
// github.com/disintegration/imaging is only used to clone its output.
package colorcheck

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// RGB is an 8-bit-per-channel color expectation.
type RGB struct {
	R, G, B uint8
}

// Result reports the share of conforming pixels and the pass/fail verdict.
// ConformingFraction is expressed as a percentage (0-100), on the same
// scale as minPixelPercentage.
type Result struct {
	ConformingFraction float64
	Passed             bool
}

// Check compares every pixel of img against expected, passing when the
// fraction of pixels within tolerance of expected meets minPixelPercentage
// (0-100). stretch applies a contrast-stretch normalization before
// comparison, useful when lighting varies between captures.
func Check(img *image.NRGBA, expected RGB, tolerance float64, minPixelPercentage float64, stretch bool) Result {
	src := img
	if stretch {
		src = imaging.Clone(stretchHistogram(img))
	}

	b := src.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return Result{ConformingFraction: 0, Passed: false}
	}

	conforming := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if within(src.NRGBAAt(x, y), expected, tolerance) {
				conforming++
			}
		}
	}

	fraction := float64(conforming) / float64(total) * 100
	return Result{
		ConformingFraction: fraction,
		Passed:             fraction >= minPixelPercentage,
	}
}

func within(px color.NRGBA, expected RGB, tolerance float64) bool {
	dr := float64(px.R) - float64(expected.R)
	dg := float64(px.G) - float64(expected.G)
	db := float64(px.B) - float64(expected.B)
	dist := math.Sqrt(dr*dr + dg*dg + db*db)
	return dist <= tolerance
}

// stretchHistogram linearly stretches each channel's observed min-max range
// to the full 0-255 range, compensating for over/under-exposed captures
// before color comparison.
func stretchHistogram(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	var minR, minG, minB uint8 = 255, 255, 255
	var maxR, maxG, maxB uint8

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := img.NRGBAAt(x, y)
			if p.R < minR {
				minR = p.R
			}
			if p.G < minG {
				minG = p.G
			}
			if p.B < minB {
				minB = p.B
			}
			if p.R > maxR {
				maxR = p.R
			}
			if p.G > maxG {
				maxG = p.G
			}
			if p.B > maxB {
				maxB = p.B
			}
		}
	}

	stretch := func(v, lo, hi uint8) uint8 {
		if hi <= lo {
			return v
		}
		scaled := (float64(v) - float64(lo)) / (float64(hi) - float64(lo)) * 255
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 255 {
			scaled = 255
		}
		return uint8(scaled)
	}

	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := img.NRGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: stretch(p.R, minR, maxR),
				G: stretch(p.G, minG, maxG),
				B: stretch(p.B, minB, maxB),
				A: p.A,
			})
		}
	}
	return out
}
