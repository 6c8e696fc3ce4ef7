package roiconfig

import (
	"github.com/go-playground/validator/v10"

	"github.com/aoipipeline/inspectord/internal/apierr"
)

// validatorInstance is a single long-lived validator, matching the
// go-playground/validator convention of constructing once and reusing it
// concurrently (it is safe for concurrent use once built).
var validatorInstance = validator.New(validator.WithRequiredStructEnabled())

// productShape carries the struct tags validator.v10 checks; the
// spec-specific invariants (idx uniqueness, type-specific required fields,
// coordinate ordering) are enforced separately in Validate because they
// are cross-field / cross-element rules validator tags can't express
// cleanly for a slice of heterogeneous variants.
type productShape struct {
	ProductID   string `validate:"required"`
	DeviceCount int    `validate:"gte=1,lte=4"`
}

// Validate checks every invariant the base spec §3/§8 requires and returns
// a *apierr.Error with Kind=VALIDATION_ERROR on the first violation found.
func Validate(cfg ProductConfig) error {
	shape := productShape{ProductID: cfg.ProductID, DeviceCount: cfg.DeviceCount}
	if err := validatorInstance.Struct(shape); err != nil {
		return apierr.Wrap(apierr.KindValidation, "invalid product configuration", err)
	}

	seenIdx := make(map[int]bool, len(cfg.ROIs))
	for _, r := range cfg.ROIs {
		if seenIdx[r.Idx] {
			return apierr.Newf(apierr.KindValidation, "duplicate roi idx %d", r.Idx)
		}
		seenIdx[r.Idx] = true
		if r.Idx <= 0 {
			return apierr.Newf(apierr.KindValidation, "roi idx must be positive, got %d", r.Idx)
		}
		if !r.Type.Valid() {
			return apierr.Newf(apierr.KindValidation, "roi %d: type must be 1..4, got %d", r.Idx, r.Type)
		}
		if !r.Coords.Valid() {
			return apierr.Newf(apierr.KindValidation, "roi %d: coords must satisfy x1<x2 and y1<y2", r.Idx)
		}
		if r.DeviceLocation < 1 || r.DeviceLocation > cfg.DeviceCount {
			return apierr.Newf(apierr.KindValidation, "roi %d: device_location %d out of range [1,%d]", r.Idx, r.DeviceLocation, cfg.DeviceCount)
		}
		if err := validateTypeSpecific(r); err != nil {
			return err
		}
	}
	return nil
}

func validateTypeSpecific(r ROI) error {
	switch r.Type {
	case TypeCompare:
		if r.AIThreshold < 0 || r.AIThreshold > 1 {
			return apierr.Newf(apierr.KindValidation, "roi %d: ai_threshold must be in [0,1]", r.Idx)
		}
		if r.FeatureMethod != "mobilenet" && r.FeatureMethod != "opencv" {
			return apierr.Newf(apierr.KindValidation, "roi %d: feature_method must be mobilenet or opencv", r.Idx)
		}
	case TypeOCR:
		// expected_text may legitimately be empty only if the product intends
		// to always fail this ROI; the spec does not forbid it, so no check
		// beyond the type-2/4 field nulling (enforced structurally, not here).
	case TypeBarcode:
		// is_device_barcode is a plain bool; both values are valid.
	case TypeColor:
		for _, c := range r.ExpectedColor {
			if c < 0 || c > 255 {
				return apierr.Newf(apierr.KindValidation, "roi %d: expected_color channel out of [0,255]", r.Idx)
			}
		}
		if r.MinPixelPercentage < 0 || r.MinPixelPercentage > 100 {
			return apierr.Newf(apierr.KindValidation, "roi %d: min_pixel_percentage must be in [0,100]", r.Idx)
		}
	default:
		return apierr.Newf(apierr.KindValidation, "roi %d: unreachable type %d", r.Idx, r.Type)
	}
	return nil
}

// ValidateRotation ensures Rotation is one of 0/90/180/270 before
// normalization collapses arbitrary degrees.
func ValidateRotation(r ROI) error {
	switch r.Rotation {
	case 0, 90, 180, 270:
		return nil
	default:
		return apierr.Newf(apierr.KindValidation, "roi %d: rotation must be 0/90/180/270, got %d", r.Idx, r.Rotation)
	}
}

func init() {
	// Ensure the shared validator is reachable even if productShape's tags
	// are ever extended; failing fast here beats a silent no-op validator.
	if validatorInstance == nil {
		panic("roiconfig: validator failed to initialize")
	}
}
