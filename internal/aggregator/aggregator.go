// Package aggregator implements the Device Aggregator (C11): grouping ROI
// outcomes by device, strict barcode-priority selection, and per-device /
// overall verdict computation. Grounded on the teacher's plain-struct,
// pure-function style (e.g. internal/state/refine.go) — no library is
// needed for grouping and conjunction logic this simple.
package aggregator

import (
	"context"
	"sort"

	"github.com/aoipipeline/inspectord/internal/dispatch"
	"github.com/aoipipeline/inspectord/internal/linker"
)

// ROIResult is the wire-shaped per-ROI result nested under a device summary.
type ROIResult struct {
	RoiID             int     `json:"roi_id"`
	RoiTypeName       string  `json:"roi_type_name"`
	DeviceID          int     `json:"device_id"`
	Passed            bool    `json:"passed"`
	SimilarityOrScore float64 `json:"similarity_or_score"`
	DetectedValue     string  `json:"detected_value,omitempty"`
	ExpectedValue     string  `json:"expected_value,omitempty"`
	Coordinates       [4]int  `json:"coordinates"`
	ROIImagePath      string  `json:"roi_image_path,omitempty"`
	GoldenImagePath   string  `json:"golden_image_path,omitempty"`
	Error             string  `json:"error,omitempty"`
}

// DeviceSummary is the per-device rollup in an Inspection Result.
type DeviceSummary struct {
	DeviceID     int         `json:"device_id"`
	DevicePassed bool        `json:"device_passed"`
	Barcode      string      `json:"barcode"`
	PassedROIs   int         `json:"passed_rois"`
	TotalROIs    int         `json:"total_rois"`
	ROIResults   []ROIResult `json:"roi_results"`
	Note         string      `json:"note,omitempty"`
}

// Result is the final aggregated verdict for one inspect call.
type Result struct {
	OverallPassed   bool
	DeviceSummaries map[int]DeviceSummary
}

// RequestBarcodes carries the request-supplied fallback barcode sources
// used in priority steps 3 and 4 of base spec §4.11.
type RequestBarcodes struct {
	ByDevice map[int]string // from device_barcodes
	Legacy   string         // top-level device_barcode (single-device requests only)
}

// Aggregate groups outcomes by device, applies the barcode-priority rule,
// links the chosen raw value, and computes pass/fail verdicts.
func Aggregate(ctx context.Context, deviceCount int, outcomes []dispatch.Outcome, reqBarcodes RequestBarcodes, link *linker.PerCallLinker) Result {
	byDevice := make(map[int][]dispatch.Outcome)
	for _, o := range outcomes {
		byDevice[o.DeviceLocation] = append(byDevice[o.DeviceLocation], o)
	}

	summaries := make(map[int]DeviceSummary, deviceCount)
	overall := true

	for dev := 1; dev <= deviceCount; dev++ {
		devOutcomes := byDevice[dev]
		sort.Slice(devOutcomes, func(i, j int) bool { return devOutcomes[i].Idx < devOutcomes[j].Idx })

		total := len(devOutcomes)
		passedCount := 0
		results := make([]ROIResult, 0, total)
		for _, o := range devOutcomes {
			if o.Passed {
				passedCount++
			}
			results = append(results, ROIResult{
				RoiID:             o.Idx,
				RoiTypeName:       o.TypeName,
				DeviceID:          dev,
				Passed:            o.Passed,
				SimilarityOrScore: o.SimilarityOrScore,
				DetectedValue:     o.DetectedValue,
				ExpectedValue:     o.ExpectedValue,
				Coordinates:       [4]int{o.Coords.X1, o.Coords.Y1, o.Coords.X2, o.Coords.Y2},
				ROIImagePath:      o.ROIImagePath,
				GoldenImagePath:   o.GoldenImagePath,
				Error:             o.Error,
			})
		}

		devPassed := total > 0 && passedCount == total
		note := ""
		if total == 0 {
			note = "device has no enabled rois"
		}

		raw := selectBarcode(devOutcomes, dev, deviceCount, reqBarcodes)
		reported := raw
		if raw != "N/A" && link != nil {
			if linked, ok := link.Link(ctx, raw); ok {
				reported = linked
			}
		}

		summaries[dev] = DeviceSummary{
			DeviceID:     dev,
			DevicePassed: devPassed,
			Barcode:      reported,
			PassedROIs:   passedCount,
			TotalROIs:    total,
			ROIResults:   results,
			Note:         note,
		}

		if !devPassed {
			overall = false
		}
	}

	return Result{OverallPassed: overall, DeviceSummaries: summaries}
}

// selectBarcode implements the 5-step strict priority of base spec §4.11.
func selectBarcode(devOutcomes []dispatch.Outcome, dev, deviceCount int, req RequestBarcodes) string {
	if v, ok := firstPassingDeviceBarcode(devOutcomes, true); ok {
		return v
	}
	if v, ok := firstPassingDeviceBarcode(devOutcomes, false); ok {
		return v
	}
	if v, ok := req.ByDevice[dev]; ok && v != "" {
		return v
	}
	if deviceCount == 1 && req.Legacy != "" {
		return req.Legacy
	}
	return "N/A"
}

func firstPassingDeviceBarcode(devOutcomes []dispatch.Outcome, requireIsDeviceBarcode bool) (string, bool) {
	for _, o := range devOutcomes {
		if o.TypeName != "barcode" || !o.Passed || o.DetectedValue == "" {
			continue
		}
		if requireIsDeviceBarcode && !o.IsDeviceBarcode {
			continue
		}
		return o.DetectedValue, true
	}
	return "", false
}
