package colorcheck

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCheckPassesOnExactMatch(t *testing.T) {
	img := solid(20, 20, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	res := Check(img, RGB{R: 10, G: 20, B: 30}, 5, 90, false)
	if !res.Passed {
		t.Fatalf("expected pass, got %+v", res)
	}
	if res.ConformingFraction != 100 {
		t.Fatalf("expected 100%% conforming, got %f", res.ConformingFraction)
	}
}

func TestCheckFailsOutsideTolerance(t *testing.T) {
	img := solid(20, 20, color.NRGBA{R: 200, G: 20, B: 30, A: 255})
	res := Check(img, RGB{R: 10, G: 20, B: 30}, 5, 90, false)
	if res.Passed {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.ConformingFraction != 0 {
		t.Fatalf("expected 0%% conforming, got %f", res.ConformingFraction)
	}
}

func TestCheckPartialConformanceBelowThresholdFails(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 4 {
				img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
			}
		}
	}
	res := Check(img, RGB{R: 10, G: 20, B: 30}, 5, 70, false)
	if res.Passed {
		t.Fatalf("expected failure at 40%% conformance below 70%% threshold, got %+v", res)
	}
	if res.ConformingFraction != 40 {
		t.Fatalf("ConformingFraction = %f, want 40", res.ConformingFraction)
	}
}

func TestCheckWithStretchStillPassesOnSolidColor(t *testing.T) {
	img := solid(10, 10, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	res := Check(img, RGB{R: 100, G: 100, B: 100}, 2, 90, true)
	if !res.Passed {
		t.Fatalf("expected pass with stretch enabled on a uniform image, got %+v", res)
	}
}
