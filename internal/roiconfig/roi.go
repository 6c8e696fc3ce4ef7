// Package roiconfig implements the ROI Config Store: per-product ROI
// definitions, legacy-array normalization, invariant validation, and an
// atomic-write persistence layer modeled on the teacher's
// internal/state/save.go writeFileAtomic helper.
package roiconfig

// ROIType is the type discriminant for a ROI definition.
type ROIType int

const (
	TypeBarcode ROIType = 1
	TypeCompare ROIType = 2
	TypeOCR     ROIType = 3
	TypeColor   ROIType = 4
)

func (t ROIType) Valid() bool {
	switch t {
	case TypeBarcode, TypeCompare, TypeOCR, TypeColor:
		return true
	default:
		return false
	}
}

func (t ROIType) Name() string {
	switch t {
	case TypeBarcode:
		return "barcode"
	case TypeCompare:
		return "compare"
	case TypeOCR:
		return "ocr"
	case TypeColor:
		return "color"
	default:
		return "unknown"
	}
}

// Coords is the [x1,y1,x2,y2] rectangle of a ROI, x1<x2 and y1<y2.
type Coords struct {
	X1, Y1, X2, Y2 int
}

func (c Coords) Valid() bool {
	return c.X1 < c.X2 && c.Y1 < c.Y2
}

// ROI is the canonical, internal tagged-variant representation of one ROI
// definition. The wire form is a single flat object with nullable
// type-specific fields (see wireROI); this struct keeps required fields
// static per type so callers don't need a second validation pass.
type ROI struct {
	Idx            int
	Type           ROIType
	Coords         Coords
	Focus          int
	Exposure       int
	Rotation       int
	DeviceLocation int
	Enabled        bool
	Notes          string

	// Type 2 (compare) only.
	AIThreshold   float64
	FeatureMethod string // "mobilenet" | "opencv"

	// Type 3 (OCR) only.
	ExpectedText  string
	CaseSensitive bool

	// Type 1 (barcode) only.
	IsDeviceBarcode bool

	// Type 4 (color) only.
	ExpectedColor      [3]int
	ColorTolerance     int
	MinPixelPercentage float64
}

// ProductConfig is the persisted, validated configuration for one product.
type ProductConfig struct {
	ProductID   string
	Description string
	DeviceCount int
	ROIs        []ROI
}

// RotationNormalized returns Rotation mod 360, coerced to one of 0/90/180/270.
func (r ROI) RotationNormalized() int {
	deg := r.Rotation % 360
	if deg < 0 {
		deg += 360
	}
	switch {
	case deg < 45 || deg >= 315:
		return 0
	case deg < 135:
		return 90
	case deg < 225:
		return 180
	default:
		return 270
	}
}
