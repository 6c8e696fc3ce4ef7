package imagedecode

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// CropRotate crops img to [x1,y1,x2,y2] then rotates by degrees (one of
// 0/90/180/270, applied clockwise), matching base spec §4.9 step 1.
func CropRotate(img *image.NRGBA, x1, y1, x2, y2, degrees int) *image.NRGBA {
	cropped := imaging.Crop(img, image.Rect(x1, y1, x2, y2))
	switch degrees {
	case 90:
		return imaging.Rotate270(cropped) // imaging rotates counter-clockwise
	case 180:
		return imaging.Rotate180(cropped)
	case 270:
		return imaging.Rotate90(cropped)
	default:
		return cropped
	}
}

// EncodeJPEGBytes is a small convenience wrapper so callers don't need to
// know the imaging package's encode options.
func EncodeJPEGBytes(img *image.NRGBA, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
