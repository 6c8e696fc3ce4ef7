package feature

import (
	"context"
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func checkerImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}
	return img
}

func TestMobilenetIdenticalImagesScoreNearOne(t *testing.T) {
	b := &mobilenetBackend{}
	img := checkerImage(64, 64)
	score, err := b.Similarity(context.Background(), img, img)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if score < 0.99 {
		t.Fatalf("identical images scored %f, want ~1", score)
	}
}

func TestMobilenetDissimilarImagesScoreLower(t *testing.T) {
	b := &mobilenetBackend{}
	a := solidImage(64, 64, color.NRGBA{R: 255, A: 255})
	other := checkerImage(64, 64)
	score, err := b.Similarity(context.Background(), a, other)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	identical, _ := b.Similarity(context.Background(), other, other)
	if score >= identical {
		t.Fatalf("dissimilar score %f should be lower than identical score %f", score, identical)
	}
}

func TestExtractorCompareUnknownMethod(t *testing.T) {
	e := New()
	img := solidImage(8, 8, color.NRGBA{A: 255})
	if _, err := e.Compare(context.Background(), "unknown-method", img, img); err == nil {
		t.Fatal("expected validation error for unknown feature method")
	}
}

func TestExtractorCompareMobilenet(t *testing.T) {
	e := New()
	img := checkerImage(32, 32)
	score, err := e.Compare(context.Background(), "mobilenet", img, img)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if score < 0.99 {
		t.Fatalf("Compare(mobilenet, identical) = %f, want ~1", score)
	}
}

func TestCosineSimilarityBounds(t *testing.T) {
	if got := cosineSimilarity([]float64{1, 0}, []float64{1, 0}); got != 1 {
		t.Fatalf("cosineSimilarity(same) = %f, want 1", got)
	}
	if got := cosineSimilarity([]float64{}, []float64{}); got != 0 {
		t.Fatalf("cosineSimilarity(empty) = %f, want 0", got)
	}
}
