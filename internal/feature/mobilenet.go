package feature

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const mobilenetGridSize = 16

// mobilenetBackend computes a deterministic, fixed-length embedding from a
// downsampled luminance/edge-magnitude grid. It stands in for a pretrained
// classifier's penultimate-layer embedding: no ONNX/TFLite runtime surfaced
// anywhere in the retrieved dependency pack, so rather than fabricate a
// library dependency this backend documents exactly what it does — a cheap,
// repeatable visual fingerprint compared by cosine similarity — instead of
// claiming to run an actual MobileNet model.
type mobilenetBackend struct{}

func (b *mobilenetBackend) Name() string { return "mobilenet" }

func (b *mobilenetBackend) warmUp() error { return nil }

func (b *mobilenetBackend) Similarity(_ context.Context, captured, golden *image.NRGBA) (float64, error) {
	va := embed(captured)
	vb := embed(golden)
	return cosineSimilarity(va, vb), nil
}

// embed builds a 2*gridSize^2-length vector: the first half is the
// luminance of each cell of a gridSize x gridSize downsample, the second
// half is the Sobel edge magnitude computed on that downsampled luminance
// grid, one value per cell.
func embed(img *image.NRGBA) []float64 {
	small := imaging.Resize(img, mobilenetGridSize, mobilenetGridSize, imaging.Lanczos)
	lum := make([]float64, mobilenetGridSize*mobilenetGridSize)
	for y := 0; y < mobilenetGridSize; y++ {
		for x := 0; x < mobilenetGridSize; x++ {
			r, g, bch, _ := small.At(x, y).RGBA()
			lum[y*mobilenetGridSize+x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bch)
		}
	}
	edges := make([]float64, mobilenetGridSize*mobilenetGridSize)
	for y := 0; y < mobilenetGridSize; y++ {
		for x := 0; x < mobilenetGridSize; x++ {
			edges[y*mobilenetGridSize+x] = sobelMagnitude(lum, x, y, mobilenetGridSize, mobilenetGridSize)
		}
	}
	v := make([]float64, 0, len(lum)+len(edges))
	v = append(v, lum...)
	v = append(v, edges...)
	return v
}

func sobelMagnitude(lum []float64, x, y, w, h int) float64 {
	get := func(xx, yy int) float64 {
		if xx < 0 {
			xx = 0
		}
		if xx >= w {
			xx = w - 1
		}
		if yy < 0 {
			yy = 0
		}
		if yy >= h {
			yy = h - 1
		}
		return lum[yy*w+xx]
	}
	gx := (get(x+1, y-1) + 2*get(x+1, y) + get(x+1, y+1)) -
		(get(x-1, y-1) + 2*get(x-1, y) + get(x-1, y+1))
	gy := (get(x-1, y+1) + 2*get(x, y+1) + get(x+1, y+1)) -
		(get(x-1, y-1) + 2*get(x, y-1) + get(x+1, y-1))
	return math.Hypot(gx, gy)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos < 0 {
		cos = 0
	}
	if cos > 1 {
		cos = 1
	}
	return cos
}
