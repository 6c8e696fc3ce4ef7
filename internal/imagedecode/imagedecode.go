// Package imagedecode implements the Image Decoder (C2): loading image
// bytes from an absolute path, a session-relative filename, or inline
// base64 bytes, and decoding them into the pipeline's canonical pixel
// format. Grounded on internal/tools/image/client.go's configured-client
// shape from the teacher, generalized from an HTTP client to a decode
// pipeline, and backed by github.com/disintegration/imaging for the actual
// decode/transform work (named in the bosocmputer-account_ocr_gemini
// manifest retrieved alongside this spec).
package imagedecode

import (
	"bytes"
	"encoding/base64"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/aoipipeline/inspectord/internal/apierr"
	"github.com/aoipipeline/inspectord/internal/pathtrans"
)

// Source selects which of the three input channels an inspect request used.
// Priority order matches base spec §4.2: absolute path, then session-relative
// filename, then inline bytes.
type Source struct {
	AbsolutePath    string
	RelativeName    string
	InlineBase64    string
}

// Decoder resolves an inspect request's image source and decodes it into a
// canonical image.NRGBA buffer (the pipeline's single fixed pixel format).
type Decoder struct {
	translator *pathtrans.Translator
}

func New(translator *pathtrans.Translator) *Decoder {
	return &Decoder{translator: translator}
}

// Decode resolves src against sessionRoot/sessionID/input and returns a
// decoded, canonical-format image.
func (d *Decoder) Decode(sessionRoot, sessionID string, src Source) (*image.NRGBA, error) {
	switch {
	case src.AbsolutePath != "":
		local := d.translator.ToLocal(src.AbsolutePath)
		return decodeFile(local)
	case src.RelativeName != "":
		p := filepath.Join(sessionRoot, sessionID, "input", src.RelativeName)
		return decodeFile(p)
	case src.InlineBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(src.InlineBase64)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindDecodeError, "invalid base64 image payload", err)
		}
		return decodeBytes(raw)
	default:
		return nil, apierr.New(apierr.KindValidation, "exactly one of image_path, image_filename, image must be set")
	}
}

func decodeFile(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindDecodeError, "read image file", err)
	}
	return decodeBytes(data)
}

func decodeBytes(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindDecodeError, "decode image bytes", err)
	}
	return imaging.Clone(img), nil
}

// DecodeBytes decodes an arbitrary image byte buffer into the canonical
// pixel format. Exported for callers outside this package that already
// have bytes in hand (e.g. the golden-sample store's saved references).
func DecodeBytes(data []byte) (*image.NRGBA, error) {
	return decodeBytes(data)
}

// Bounds validates that coords fall within img's bounds, returning
// OUT_OF_BOUNDS otherwise, per base spec §4.2.
func Bounds(img *image.NRGBA, x1, y1, x2, y2 int) error {
	b := img.Bounds()
	if x1 < b.Min.X || y1 < b.Min.Y || x2 > b.Max.X || y2 > b.Max.Y {
		return apierr.Newf(apierr.KindOutOfBounds, "roi coords [%d,%d,%d,%d] exceed image bounds %v", x1, y1, x2, y2, b)
	}
	return nil
}
