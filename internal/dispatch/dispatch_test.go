package dispatch

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/aoipipeline/inspectord/internal/barcode"
	"github.com/aoipipeline/inspectord/internal/feature"
	"github.com/aoipipeline/inspectord/internal/goldenstore"
	"github.com/aoipipeline/inspectord/internal/imagedecode"
	"github.com/aoipipeline/inspectord/internal/ocrengine"
	"github.com/aoipipeline/inspectord/internal/roiconfig"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func newDispatcher(t *testing.T, goldenRoot string, autoPromote bool) *Dispatcher {
	t.Helper()
	bd, err := barcode.New()
	if err != nil {
		t.Fatalf("barcode.New: %v", err)
	}
	return New(Config{
		Features:    feature.New(),
		Barcodes:    bd,
		OCR:         ocrengine.New(),
		Golden:      goldenstore.NewStore(goldenRoot),
		WorkerCount: 2,
		AutoPromote: autoPromote,
	})
}

func TestProcessColorROIPassesAndWritesCrop(t *testing.T) {
	root := t.TempDir()
	outDir := filepath.Join(root, "sess1", "output")
	d := newDispatcher(t, filepath.Join(root, "golden"), false)

	img := solidImage(100, 100, color.NRGBA{R: 255, A: 255})
	roi := roiconfig.ROI{
		Idx: 1, Type: roiconfig.TypeColor, Coords: roiconfig.Coords{X1: 0, Y1: 0, X2: 50, Y2: 50},
		Enabled: true, DeviceLocation: 1,
		ExpectedColor: [3]int{255, 0, 0}, ColorTolerance: 10, MinPixelPercentage: 90,
	}

	outcomes, err := d.Process(context.Background(), outDir, "P1", img, []roiconfig.ROI{roi})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if !outcomes[0].Passed {
		t.Fatalf("expected color ROI to pass, got %+v", outcomes[0])
	}
	if outcomes[0].ROIImagePath == "" {
		t.Fatal("expected a roi image path to be recorded")
	}
	if _, err := os.Stat(outcomes[0].ROIImagePath); err != nil {
		t.Fatalf("expected crop file to exist: %v", err)
	}
}

func TestProcessDisabledROIsAreSkipped(t *testing.T) {
	root := t.TempDir()
	d := newDispatcher(t, filepath.Join(root, "golden"), false)
	img := solidImage(20, 20, color.NRGBA{A: 255})
	roi := roiconfig.ROI{Idx: 1, Type: roiconfig.TypeColor, Coords: roiconfig.Coords{X1: 0, Y1: 0, X2: 10, Y2: 10}, Enabled: false}
	outcomes, err := d.Process(context.Background(), filepath.Join(root, "out"), "P1", img, []roiconfig.ROI{roi})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected disabled roi to be skipped, got %d outcomes", len(outcomes))
	}
}

func TestProcessOutOfBoundsCoordsRecordsError(t *testing.T) {
	root := t.TempDir()
	d := newDispatcher(t, filepath.Join(root, "golden"), false)
	img := solidImage(20, 20, color.NRGBA{A: 255})
	roi := roiconfig.ROI{Idx: 1, Type: roiconfig.TypeColor, Coords: roiconfig.Coords{X1: 0, Y1: 0, X2: 500, Y2: 500}, Enabled: true}
	outcomes, err := d.Process(context.Background(), filepath.Join(root, "out"), "P1", img, []roiconfig.ROI{roi})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcomes[0].Error == "" || outcomes[0].Passed {
		t.Fatalf("expected an out-of-bounds error, got %+v", outcomes[0])
	}
}

func TestProcessResultsOrderedByIdxAscending(t *testing.T) {
	root := t.TempDir()
	d := newDispatcher(t, filepath.Join(root, "golden"), false)
	img := solidImage(100, 100, color.NRGBA{A: 255})
	rois := []roiconfig.ROI{
		{Idx: 3, Type: roiconfig.TypeColor, Coords: roiconfig.Coords{X1: 0, Y1: 0, X2: 10, Y2: 10}, Enabled: true, ExpectedColor: [3]int{0, 0, 0}, ColorTolerance: 200, MinPixelPercentage: 1},
		{Idx: 1, Type: roiconfig.TypeColor, Coords: roiconfig.Coords{X1: 0, Y1: 0, X2: 10, Y2: 10}, Enabled: true, ExpectedColor: [3]int{0, 0, 0}, ColorTolerance: 200, MinPixelPercentage: 1},
		{Idx: 2, Type: roiconfig.TypeColor, Coords: roiconfig.Coords{X1: 0, Y1: 0, X2: 10, Y2: 10}, Enabled: true, ExpectedColor: [3]int{0, 0, 0}, ColorTolerance: 200, MinPixelPercentage: 1},
	}
	outcomes, err := d.Process(context.Background(), filepath.Join(root, "out"), "P1", img, rois)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcomes[0].Idx != 1 || outcomes[1].Idx != 2 || outcomes[2].Idx != 3 {
		t.Fatalf("expected ascending idx order, got %d,%d,%d", outcomes[0].Idx, outcomes[1].Idx, outcomes[2].Idx)
	}
}

func TestProcessCompareAutoPromotesHigherScoringBackup(t *testing.T) {
	root := t.TempDir()
	goldenRoot := filepath.Join(root, "golden")
	store := goldenstore.NewStore(goldenRoot)

	blank := solidImage(40, 40, color.NRGBA{A: 255})
	blankBytes, err := imagedecode.EncodeJPEGBytes(blank, 90)
	if err != nil {
		t.Fatalf("encode blank: %v", err)
	}
	if _, err := store.WriteNewBest("P1", 5, blankBytes); err != nil {
		t.Fatalf("write initial best: %v", err)
	}

	matching := solidImage(40, 40, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	matchingBytes, err := imagedecode.EncodeJPEGBytes(matching, 90)
	if err != nil {
		t.Fatalf("encode matching: %v", err)
	}
	backupName, err := store.WriteNewBest("P1", 5, matchingBytes)
	if err != nil {
		t.Fatalf("write second best: %v", err)
	}
	if backupName == "" {
		t.Fatal("expected a backup to be created")
	}
	// Restore so matching is the backup and blank (the worse match) is best.
	if _, err := store.Promote("P1", 5, backupName); err != nil {
		t.Fatalf("promote: %v", err)
	}

	d := newDispatcher(t, goldenRoot, true)
	roi := roiconfig.ROI{
		Idx: 5, Type: roiconfig.TypeCompare, Coords: roiconfig.Coords{X1: 0, Y1: 0, X2: 40, Y2: 40},
		Enabled: true, AIThreshold: 0.99, FeatureMethod: "mobilenet",
	}

	outcomes, err := d.Process(context.Background(), filepath.Join(root, "out"), "P1", matching, []roiconfig.ROI{roi})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if !outcomes[0].Passed {
		t.Fatalf("expected auto-promotion to flip the compare ROI to passed, got %+v", outcomes[0])
	}
}
