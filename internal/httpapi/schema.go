package httpapi

import "net/http"

// handleSchemaVersion reports the structural version the live ROI and
// Result types are currently at, per base spec §4.13.
func (s *Server) handleSchemaVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": schemaVersion})
}

// handleSchemaROI documents the live roiconfig.ROI wire shape. Field names
// and requiredness mirror internal/roiconfig/wire.go's wireROI exactly;
// this endpoint must be updated whenever that struct changes.
func (s *Server) handleSchemaROI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": schemaVersion,
		"fields": []map[string]string{
			{"name": "idx", "type": "int", "required": "true"},
			{"name": "type", "type": "int (1=barcode,2=compare,3=ocr,4=color)", "required": "true"},
			{"name": "coords", "type": "[x1,y1,x2,y2]int", "required": "true"},
			{"name": "focus", "type": "int", "required": "false"},
			{"name": "exposure", "type": "int", "required": "false"},
			{"name": "rotation", "type": "int (0/90/180/270)", "required": "false"},
			{"name": "device_location", "type": "int", "required": "true"},
			{"name": "enabled", "type": "bool", "required": "true"},
			{"name": "ai_threshold", "type": "float|null", "required": "type=2"},
			{"name": "feature_method", "type": "string|null (mobilenet|opencv)", "required": "type=2"},
			{"name": "expected_text", "type": "string|null", "required": "type=3"},
			{"name": "case_sensitive", "type": "bool", "required": "type=3"},
			{"name": "is_device_barcode", "type": "bool|null", "required": "type=1"},
			{"name": "expected_color", "type": "[r,g,b]int|null", "required": "type=4"},
			{"name": "color_tolerance", "type": "int", "required": "type=4"},
			{"name": "min_pixel_percentage", "type": "float", "required": "type=4"},
			{"name": "notes", "type": "string", "required": "false"},
		},
	})
}

// handleSchemaResult documents the live Inspection Result shape, mirroring
// internal/aggregator.DeviceSummary/ROIResult and inspectionResultWire.
func (s *Server) handleSchemaResult(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": schemaVersion,
		"fields": []map[string]string{
			{"name": "session_id", "type": "string"},
			{"name": "product_id", "type": "string"},
			{"name": "timestamp", "type": "string (RFC3339)"},
			{"name": "overall_passed", "type": "bool"},
			{"name": "device_summaries", "type": "map[int]DeviceSummary"},
		},
		"device_summary_fields": []map[string]string{
			{"name": "device_id", "type": "int"},
			{"name": "device_passed", "type": "bool"},
			{"name": "barcode", "type": "string"},
			{"name": "passed_rois", "type": "int"},
			{"name": "total_rois", "type": "int"},
			{"name": "roi_results", "type": "[]ROIResult"},
			{"name": "note", "type": "string (optional)"},
		},
		"roi_result_fields": []map[string]string{
			{"name": "roi_id", "type": "int"},
			{"name": "roi_type_name", "type": "string"},
			{"name": "device_id", "type": "int"},
			{"name": "passed", "type": "bool"},
			{"name": "similarity_or_score", "type": "float"},
			{"name": "detected_value", "type": "string (optional)"},
			{"name": "expected_value", "type": "string (optional)"},
			{"name": "coordinates", "type": "[x1,y1,x2,y2]int"},
			{"name": "roi_image_path", "type": "string (optional)"},
			{"name": "golden_image_path", "type": "string (optional)"},
			{"name": "error", "type": "string (optional)"},
		},
	})
}
