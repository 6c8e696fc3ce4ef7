// Package ocrengine implements the OCR Engine (C7): text recognition on a
// cropped sub-image, whitespace-normalized comparison against an expected
// string with optional case sensitivity. No pack example performs OCR;
// github.com/otiai10/gosseract/v2 (Tesseract cgo bindings) is named
// explicitly as an out-of-pack dependency — the standard real Go OCR
// library, and a closer fit for an on-prem inspection line than the
// cloud-model SDKs (google/generative-ai-go) shown in the retrieved
// bosocmputer-account_ocr_gemini manifest.
package ocrengine

import (
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/aoipipeline/inspectord/internal/apierr"
	"github.com/aoipipeline/inspectord/internal/imagedecode"
)

// Engine wraps a pool-of-one gosseract client behind a mutex: gosseract
// clients are not safe for concurrent Recognize calls, so calls queue
// rather than racing on the underlying Tesseract handle.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func New() *Engine {
	return &Engine{client: gosseract.NewClient()}
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

// Recognize returns the raw recognized text from img.
func (e *Engine) Recognize(img *image.NRGBA) (string, error) {
	jpegBytes, err := imagedecode.EncodeJPEGBytes(img, 95)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInternal, "encode crop for ocr", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(jpegBytes); err != nil {
		return "", apierr.Wrap(apierr.KindDecodeError, "load crop into ocr engine", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", apierr.Wrap(apierr.KindDecodeError, "recognize text", err)
	}
	return text, nil
}

// Matches reports whether recognized text equals expected after whitespace
// normalization (runs of whitespace collapsed to a single space, leading and
// trailing whitespace trimmed), honoring caseSensitive.
func Matches(recognized, expected string, caseSensitive bool) bool {
	a := normalizeWhitespace(recognized)
	b := normalizeWhitespace(expected)
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return a == b
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
