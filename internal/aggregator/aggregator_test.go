package aggregator

import (
	"context"
	"testing"

	"github.com/aoipipeline/inspectord/internal/dispatch"
)

func TestAggregateAllPassYieldsOverallPassed(t *testing.T) {
	outcomes := []dispatch.Outcome{
		{Idx: 1, TypeName: "barcode", DeviceLocation: 1, Passed: true, DetectedValue: "ABC-123", IsDeviceBarcode: true},
		{Idx: 2, TypeName: "compare", DeviceLocation: 1, Passed: true, SimilarityOrScore: 0.91},
	}
	res := Aggregate(context.Background(), 1, outcomes, RequestBarcodes{}, nil)
	if !res.OverallPassed {
		t.Fatalf("expected overall pass, got %+v", res)
	}
	dev := res.DeviceSummaries[1]
	if dev.Barcode != "ABC-123" {
		t.Fatalf("Barcode = %q, want ABC-123", dev.Barcode)
	}
	if dev.PassedROIs != 2 || dev.TotalROIs != 2 {
		t.Fatalf("passed/total = %d/%d, want 2/2", dev.PassedROIs, dev.TotalROIs)
	}
}

func TestAggregateZeroEnabledROIsDeviceFails(t *testing.T) {
	res := Aggregate(context.Background(), 1, nil, RequestBarcodes{}, nil)
	dev := res.DeviceSummaries[1]
	if dev.DevicePassed {
		t.Fatal("expected device with zero rois to fail")
	}
	if res.OverallPassed {
		t.Fatal("expected overall_passed=false when a device has zero rois")
	}
	if dev.Note == "" {
		t.Fatal("expected an explanatory note")
	}
}

func TestSelectBarcodePriorityOrder(t *testing.T) {
	outcomes := []dispatch.Outcome{
		{Idx: 1, TypeName: "barcode", DeviceLocation: 1, Passed: false, DetectedValue: ""},
	}
	req := RequestBarcodes{ByDevice: map[int]string{1: "XYZ-9"}}
	res := Aggregate(context.Background(), 1, outcomes, req, nil)
	if res.DeviceSummaries[1].Barcode != "XYZ-9" {
		t.Fatalf("Barcode = %q, want fallback XYZ-9", res.DeviceSummaries[1].Barcode)
	}
}

func TestSelectBarcodeLegacyFallbackOnlySingleDevice(t *testing.T) {
	req := RequestBarcodes{Legacy: "LEGACY-1"}
	res := Aggregate(context.Background(), 1, nil, req, nil)
	if res.DeviceSummaries[1].Barcode != "LEGACY-1" {
		t.Fatalf("Barcode = %q, want LEGACY-1", res.DeviceSummaries[1].Barcode)
	}
}

func TestSelectBarcodeDefaultsToNA(t *testing.T) {
	res := Aggregate(context.Background(), 1, nil, RequestBarcodes{}, nil)
	if res.DeviceSummaries[1].Barcode != "N/A" {
		t.Fatalf("Barcode = %q, want N/A", res.DeviceSummaries[1].Barcode)
	}
}

func TestIsDeviceBarcodeTakesPriorityOverPlainBarcode(t *testing.T) {
	outcomes := []dispatch.Outcome{
		{Idx: 1, TypeName: "barcode", DeviceLocation: 1, Passed: true, DetectedValue: "PLAIN-1", IsDeviceBarcode: false},
		{Idx: 2, TypeName: "barcode", DeviceLocation: 1, Passed: true, DetectedValue: "DEVICE-1", IsDeviceBarcode: true},
	}
	res := Aggregate(context.Background(), 1, outcomes, RequestBarcodes{}, nil)
	if res.DeviceSummaries[1].Barcode != "DEVICE-1" {
		t.Fatalf("Barcode = %q, want DEVICE-1 (is_device_barcode priority)", res.DeviceSummaries[1].Barcode)
	}
}

func TestAggregateWithoutLinkerKeepsRawValue(t *testing.T) {
	outcomes := []dispatch.Outcome{
		{Idx: 1, TypeName: "barcode", DeviceLocation: 1, Passed: true, DetectedValue: "RAW-1", IsDeviceBarcode: true},
	}
	res := Aggregate(context.Background(), 1, outcomes, RequestBarcodes{}, nil)
	if res.DeviceSummaries[1].Barcode != "RAW-1" {
		t.Fatalf("Barcode = %q, want RAW-1 when no linker configured", res.DeviceSummaries[1].Barcode)
	}
}
