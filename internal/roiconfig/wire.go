package roiconfig

import (
	"encoding/json"
	"fmt"
)

// wireROI is the on-the-wire flat object form: nullable fields for
// cross-version compatibility, per spec §9 DESIGN NOTES.
type wireROI struct {
	Idx                int      `json:"idx"`
	Type               int      `json:"type"`
	Coords             [4]int   `json:"coords"`
	Focus              int      `json:"focus,omitempty"`
	Exposure           int      `json:"exposure,omitempty"`
	Rotation           int      `json:"rotation,omitempty"`
	DeviceLocation     int      `json:"device_location"`
	Enabled            bool     `json:"enabled"`
	AIThreshold        *float64 `json:"ai_threshold"`
	FeatureMethod      *string  `json:"feature_method"`
	ExpectedText       *string  `json:"expected_text"`
	CaseSensitive      *bool    `json:"case_sensitive,omitempty"`
	IsDeviceBarcode    *bool    `json:"is_device_barcode"`
	ExpectedColor      *[3]int  `json:"expected_color"`
	ColorTolerance     *int     `json:"color_tolerance,omitempty"`
	MinPixelPercentage *float64 `json:"min_pixel_percentage,omitempty"`
	Notes              string   `json:"notes,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// toWire converts the internal tagged variant to the flat wire object,
// nulling out fields that don't apply to this ROI's type.
func toWire(r ROI) wireROI {
	w := wireROI{
		Idx:            r.Idx,
		Type:           int(r.Type),
		Coords:         [4]int{r.Coords.X1, r.Coords.Y1, r.Coords.X2, r.Coords.Y2},
		Focus:          r.Focus,
		Exposure:       r.Exposure,
		Rotation:       r.Rotation,
		DeviceLocation: r.DeviceLocation,
		Enabled:        r.Enabled,
		Notes:          r.Notes,
	}
	switch r.Type {
	case TypeCompare:
		w.AIThreshold = ptr(r.AIThreshold)
		w.FeatureMethod = ptr(r.FeatureMethod)
	case TypeOCR:
		w.ExpectedText = ptr(r.ExpectedText)
		w.CaseSensitive = ptr(r.CaseSensitive)
	case TypeBarcode:
		w.IsDeviceBarcode = ptr(r.IsDeviceBarcode)
	case TypeColor:
		w.ExpectedColor = ptr(r.ExpectedColor)
		w.ColorTolerance = ptr(r.ColorTolerance)
		w.MinPixelPercentage = ptr(r.MinPixelPercentage)
	}
	return w
}

// fromWire converts a validated flat wire object back into the tagged
// variant, applying type-specific defaults (color_tolerance=50,
// min_pixel_percentage=70.0).
func fromWire(w wireROI) ROI {
	r := ROI{
		Idx:            w.Idx,
		Type:           ROIType(w.Type),
		Coords:         Coords{w.Coords[0], w.Coords[1], w.Coords[2], w.Coords[3]},
		Focus:          w.Focus,
		Exposure:       w.Exposure,
		Rotation:       w.Rotation,
		DeviceLocation: w.DeviceLocation,
		Enabled:        w.Enabled,
		Notes:          w.Notes,
	}
	if w.AIThreshold != nil {
		r.AIThreshold = *w.AIThreshold
	}
	if w.FeatureMethod != nil {
		r.FeatureMethod = *w.FeatureMethod
	}
	if w.ExpectedText != nil {
		r.ExpectedText = *w.ExpectedText
	}
	if w.CaseSensitive != nil {
		r.CaseSensitive = *w.CaseSensitive
	}
	if w.IsDeviceBarcode != nil {
		r.IsDeviceBarcode = *w.IsDeviceBarcode
	}
	if w.ExpectedColor != nil {
		r.ExpectedColor = *w.ExpectedColor
	}
	r.ColorTolerance = 50
	if w.ColorTolerance != nil {
		r.ColorTolerance = *w.ColorTolerance
	}
	r.MinPixelPercentage = 70.0
	if w.MinPixelPercentage != nil {
		r.MinPixelPercentage = *w.MinPixelPercentage
	}
	return r
}

// MarshalConfig renders a ProductConfig to its canonical on-disk JSON form.
func MarshalConfig(cfg ProductConfig) ([]byte, error) {
	type wireConfig struct {
		ProductID   string    `json:"product_id"`
		Description string    `json:"description,omitempty"`
		DeviceCount int       `json:"device_count"`
		ROIs        []wireROI `json:"rois"`
	}
	wc := wireConfig{
		ProductID:   cfg.ProductID,
		Description: cfg.Description,
		DeviceCount: cfg.DeviceCount,
		ROIs:        make([]wireROI, 0, len(cfg.ROIs)),
	}
	for _, r := range cfg.ROIs {
		wc.ROIs = append(wc.ROIs, toWire(r))
	}
	return json.MarshalIndent(wc, "", "  ")
}

// rawConfig captures the product-level fields plus a raw ROI list, since
// each ROI entry may be either a flat object (current form) or a legacy
// positional array and needs its own normalization pass.
type rawConfig struct {
	ProductID   string            `json:"product_id"`
	Description string            `json:"description"`
	DeviceCount int               `json:"device_count"`
	ROIs        []json.RawMessage `json:"rois"`
}

// UnmarshalConfig parses raw product-config JSON, normalizing any
// legacy-array ROI entries to the canonical tagged form.
func UnmarshalConfig(data []byte) (ProductConfig, error) {
	var rc rawConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return ProductConfig{}, fmt.Errorf("parse product config: %w", err)
	}
	cfg := ProductConfig{
		ProductID:   rc.ProductID,
		Description: rc.Description,
		DeviceCount: rc.DeviceCount,
		ROIs:        make([]ROI, 0, len(rc.ROIs)),
	}
	for i, raw := range rc.ROIs {
		roi, err := NormalizeROI(raw)
		if err != nil {
			return ProductConfig{}, fmt.Errorf("roi[%d]: %w", i, err)
		}
		cfg.ROIs = append(cfg.ROIs, roi)
	}
	return cfg, nil
}

// NormalizeROI accepts either the canonical flat-object ROI form or a
// legacy positional array (length >= 9) and returns the internal tagged
// variant. Positional convention (array index -> field), matching the
// order of the ROI Definition table in the base spec:
//
//	0 idx, 1 type, 2 x1, 3 y1, 4 x2, 5 y2, 6 focus, 7 exposure,
//	8 rotation, 9 device_location, 10 enabled, 11 ai_threshold,
//	12 feature_method, 13 expected_text, 14 is_device_barcode,
//	15 color(array [r,g,b] or 0), 16 color_tolerance,
//	17 min_pixel_percentage, 18 notes.
//
// Positions beyond the provided array length get defaults: the zero value,
// except color_tolerance and min_pixel_percentage, which fromWire sets to
// 50 and 70.0.
func NormalizeROI(raw json.RawMessage) (ROI, error) {
	trimmed := trimLeadingSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return normalizeLegacyArray(raw)
	}
	var w wireROI
	if err := json.Unmarshal(raw, &w); err != nil {
		return ROI{}, fmt.Errorf("decode roi object: %w", err)
	}
	return fromWire(w), nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}

func normalizeLegacyArray(raw json.RawMessage) (ROI, error) {
	var arr []any
	if err := json.Unmarshal(raw, &arr); err != nil {
		return ROI{}, fmt.Errorf("decode legacy roi array: %w", err)
	}
	if len(arr) < 9 {
		return ROI{}, fmt.Errorf("legacy roi array too short: got %d elements, need >= 9", len(arr))
	}
	get := func(i int) any {
		if i < len(arr) {
			return arr[i]
		}
		return nil
	}
	asInt := func(v any) int {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		default:
			return 0
		}
	}
	asFloat := func(v any) float64 {
		if n, ok := v.(float64); ok {
			return n
		}
		return 0
	}
	asBool := func(v any) bool {
		switch b := v.(type) {
		case bool:
			return b
		case float64:
			return b != 0
		default:
			return false
		}
	}
	asString := func(v any) string {
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}

	w := wireROI{
		Idx:            asInt(get(0)),
		Type:           asInt(get(1)),
		Coords:         [4]int{asInt(get(2)), asInt(get(3)), asInt(get(4)), asInt(get(5))},
		Focus:          asInt(get(6)),
		Exposure:       asInt(get(7)),
		Rotation:       asInt(get(8)),
		DeviceLocation: asInt(get(9)),
		Enabled:        asBool(get(10)),
	}
	if v := get(11); v != nil {
		w.AIThreshold = ptr(asFloat(v))
	}
	if v := get(12); v != nil {
		w.FeatureMethod = ptr(asString(v))
	}
	if v := get(13); v != nil {
		w.ExpectedText = ptr(asString(v))
	}
	if v := get(14); v != nil {
		w.IsDeviceBarcode = ptr(asBool(v))
	}
	if v := get(15); v != nil {
		if carr, ok := v.([]any); ok && len(carr) == 3 {
			w.ExpectedColor = ptr([3]int{asInt(carr[0]), asInt(carr[1]), asInt(carr[2])})
		}
	}
	if v := get(16); v != nil {
		w.ColorTolerance = ptr(asInt(v))
	}
	if v := get(17); v != nil {
		w.MinPixelPercentage = ptr(asFloat(v))
	}
	if v := get(18); v != nil {
		w.Notes = asString(v)
	}
	return fromWire(w), nil
}
