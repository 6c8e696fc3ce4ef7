// Package feature implements the Feature Extractor (C5): pluggable
// similarity backends ("mobilenet", "opencv") compared between a captured
// ROI crop and its golden sample. Grounded on internal/tools/wasmrun's
// one-shot-initializer pattern (teacher) for guarding expensive backend
// warm-up, generalized from a WASM runtime handle to an image-matching
// backend handle.
package feature

import (
	"context"
	"image"
	"sync"

	"github.com/aoipipeline/inspectord/internal/apierr"
)

// Backend computes a [0,1] similarity score between two crops of the same
// ROI: the freshly captured image and the current golden sample.
type Backend interface {
	Name() string
	Similarity(ctx context.Context, captured, golden *image.NRGBA) (float64, error)
	warmUp() error
}

// Extractor resolves a named backend and guarantees each one warms up at
// most once, on first use.
type Extractor struct {
	backends map[string]Backend
	warmOnce map[string]*sync.Once
	warmMu   sync.Mutex
	warmErr  map[string]error
}

func New() *Extractor {
	mn := &mobilenetBackend{}
	cv := &opencvBackend{}
	return &Extractor{
		backends: map[string]Backend{
			mn.Name(): mn,
			cv.Name(): cv,
		},
		warmOnce: map[string]*sync.Once{
			mn.Name(): {},
			cv.Name(): {},
		},
		warmErr: map[string]error{},
	}
}

// Compare dispatches to the named backend ("mobilenet" or "opencv"),
// warming it up at most once across the Extractor's lifetime.
func (e *Extractor) Compare(ctx context.Context, method string, captured, golden *image.NRGBA) (float64, error) {
	b, ok := e.backends[method]
	if !ok {
		return 0, apierr.Newf(apierr.KindValidation, "unknown feature_method %q", method)
	}
	e.warmMu.Lock()
	once := e.warmOnce[method]
	e.warmMu.Unlock()
	once.Do(func() {
		e.warmMu.Lock()
		e.warmErr[method] = b.warmUp()
		e.warmMu.Unlock()
	})
	e.warmMu.Lock()
	err := e.warmErr[method]
	e.warmMu.Unlock()
	if err != nil {
		return 0, apierr.Wrap(apierr.KindDepMissing, "feature backend warm-up", err)
	}
	return b.Similarity(ctx, captured, golden)
}
