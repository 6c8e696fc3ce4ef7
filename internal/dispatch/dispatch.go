// Package dispatch implements the ROI Processor Dispatcher (C9): per-ROI
// crop+rotate, type-dispatched work, bounded parallel fan-out, and
// auto-promotion of golden samples. Grounded on the teacher's
// internal/tools/runner.go (per-task timeout, channel-collected results
// from many goroutines) generalized from "one goroutine per tool
// invocation" to "one goroutine per ROI task"; the bounded worker pool
// itself is golang.org/x/sync/errgroup.Group with SetLimit, the idiomatic
// replacement for a hand-rolled semaphore (dependency grounded on
// moby-moby's go.mod).
package dispatch

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/aoipipeline/inspectord/internal/apierr"
	"github.com/aoipipeline/inspectord/internal/barcode"
	"github.com/aoipipeline/inspectord/internal/colorcheck"
	"github.com/aoipipeline/inspectord/internal/feature"
	"github.com/aoipipeline/inspectord/internal/goldenstore"
	"github.com/aoipipeline/inspectord/internal/imagedecode"
	"github.com/aoipipeline/inspectord/internal/ocrengine"
	"github.com/aoipipeline/inspectord/internal/roiconfig"
)

// Outcome is one ROI's processed result, the per-ROI unit later grouped by
// the Device Aggregator (C11).
type Outcome struct {
	Idx               int
	TypeName          string
	DeviceLocation    int
	Passed            bool
	SimilarityOrScore float64
	DetectedValue     string
	ExpectedValue     string
	Coords            roiconfig.Coords
	ROIImagePath      string
	GoldenImagePath   string
	Error             string
	DecodedBarcodes   []string
	IsDeviceBarcode   bool
}

// Dispatcher owns the engines C9 fans out to.
type Dispatcher struct {
	features    *feature.Extractor
	barcodes    *barcode.Decoder
	ocr         *ocrengine.Engine
	golden      *goldenstore.Store
	workerCount int
	autoPromote bool
}

type Config struct {
	Features    *feature.Extractor
	Barcodes    *barcode.Decoder
	OCR         *ocrengine.Engine
	Golden      *goldenstore.Store
	WorkerCount int
	AutoPromote bool
}

func New(cfg Config) *Dispatcher {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 2 {
		workers = 2
	}
	return &Dispatcher{
		features:    cfg.Features,
		barcodes:    cfg.Barcodes,
		ocr:         cfg.OCR,
		golden:      cfg.Golden,
		workerCount: workers,
		autoPromote: cfg.AutoPromote,
	}
}

// Process runs every enabled ROI in rois against img, in parallel on a
// bounded worker pool, and returns outcomes ordered by ascending idx.
func (d *Dispatcher) Process(ctx context.Context, outputDir, productID string, img *image.NRGBA, rois []roiconfig.ROI) ([]Outcome, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "create output directory", err)
	}

	enabled := make([]roiconfig.ROI, 0, len(rois))
	for _, r := range rois {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}

	outcomes := make([]Outcome, len(enabled))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workerCount)

	for i, roi := range enabled {
		i, roi := i, roi
		g.Go(func() error {
			outcomes[i] = d.processOne(gctx, outputDir, productID, img, roi)
			return nil
		})
	}
	_ = g.Wait() // per-ROI errors are captured into Outcome.Error, never propagated

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].Idx < outcomes[b].Idx })
	return outcomes, nil
}

// processOne never returns an error to its caller: any failure becomes
// Outcome.Error with Passed=false, per base spec §4.9's isolation rule.
func (d *Dispatcher) processOne(ctx context.Context, outputDir, productID string, img *image.NRGBA, roi roiconfig.ROI) (outcome Outcome) {
	outcome = Outcome{
		Idx:             roi.Idx,
		TypeName:        roi.Type.Name(),
		DeviceLocation:  roi.DeviceLocation,
		Coords:          roi.Coords,
		IsDeviceBarcode: roi.IsDeviceBarcode,
	}
	defer func() {
		if r := recover(); r != nil {
			outcome.Passed = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Error = string(apierr.KindDeadlineExceeded)
		return outcome
	}
	if err := imagedecode.Bounds(img, roi.Coords.X1, roi.Coords.Y1, roi.Coords.X2, roi.Coords.Y2); err != nil {
		outcome.Error = string(apierr.KindOf(err))
		return outcome
	}

	crop := imagedecode.CropRotate(img, roi.Coords.X1, roi.Coords.Y1, roi.Coords.X2, roi.Coords.Y2, roi.RotationNormalized())

	cropPath := filepath.Join(outputDir, fmt.Sprintf("roi_%d.jpg", roi.Idx))
	if data, err := imagedecode.EncodeJPEGBytes(crop, 90); err == nil {
		if err := os.WriteFile(cropPath, data, 0o644); err == nil {
			outcome.ROIImagePath = cropPath
		}
	}

	switch roi.Type {
	case roiconfig.TypeBarcode:
		d.processBarcode(crop, roi, &outcome)
	case roiconfig.TypeCompare:
		d.processCompare(ctx, outputDir, productID, crop, roi, &outcome)
	case roiconfig.TypeOCR:
		d.processOCR(crop, roi, &outcome)
	case roiconfig.TypeColor:
		d.processColor(crop, roi, &outcome)
	default:
		outcome.Error = "unknown roi type"
	}
	return outcome
}

func (d *Dispatcher) processBarcode(crop *image.NRGBA, roi roiconfig.ROI, outcome *Outcome) {
	results, err := d.barcodes.Decode(crop)
	if err != nil {
		outcome.Error = string(apierr.KindOf(err))
		return
	}
	for _, r := range results {
		outcome.DecodedBarcodes = append(outcome.DecodedBarcodes, r.Text)
	}
	outcome.Passed = len(results) > 0
	if outcome.Passed {
		outcome.DetectedValue = results[0].Text
	}
}

func (d *Dispatcher) processOCR(crop *image.NRGBA, roi roiconfig.ROI, outcome *Outcome) {
	text, err := d.ocr.Recognize(crop)
	if err != nil {
		outcome.Error = string(apierr.KindOf(err))
		return
	}
	outcome.DetectedValue = text
	outcome.ExpectedValue = roi.ExpectedText
	outcome.Passed = ocrengine.Matches(text, roi.ExpectedText, roi.CaseSensitive)
}

func (d *Dispatcher) processColor(crop *image.NRGBA, roi roiconfig.ROI, outcome *Outcome) {
	expected := colorcheck.RGB{
		R: uint8(roi.ExpectedColor[0]),
		G: uint8(roi.ExpectedColor[1]),
		B: uint8(roi.ExpectedColor[2]),
	}
	res := colorcheck.Check(crop, expected, float64(roi.ColorTolerance), roi.MinPixelPercentage, true)
	outcome.Passed = res.Passed
	outcome.SimilarityOrScore = res.ConformingFraction / 100
}

func (d *Dispatcher) processCompare(ctx context.Context, outputDir, productID string, crop *image.NRGBA, roi roiconfig.ROI, outcome *Outcome) {
	bestBytes, _, err := d.golden.ReadBest(productID, roi.Idx)
	if err != nil {
		outcome.Error = string(apierr.KindOf(err))
		return
	}
	bestImg, err := imagedecode.DecodeBytes(bestBytes)
	if err != nil {
		outcome.Error = string(apierr.KindOf(err))
		return
	}

	bestSim, err := d.features.Compare(ctx, roi.FeatureMethod, crop, bestImg)
	if err != nil {
		outcome.Error = string(apierr.KindOf(err))
		return
	}

	finalSim := bestSim
	finalBytes := bestBytes

	if d.autoPromote {
		if promoted := d.tryAutoPromote(ctx, productID, roi, crop, bestSim); promoted != nil {
			finalSim = promoted.similarity
			finalBytes = promoted.bytes
		}
	}

	outcome.SimilarityOrScore = finalSim
	outcome.Passed = finalSim >= roi.AIThreshold

	goldenCropPath := filepath.Join(outputDir, fmt.Sprintf("golden_%d.jpg", roi.Idx))
	if err := os.WriteFile(goldenCropPath, finalBytes, 0o644); err == nil {
		outcome.GoldenImagePath = goldenCropPath
	}
}

type promotedResult struct {
	similarity float64
	bytes      []byte
}

// tryAutoPromote implements base spec §4.9 step 3: if a backup beats the
// current best AND clears the threshold while the current best did not,
// promote it. At most one promotion happens per ROI per call because each
// ROI idx is processed exactly once per Process invocation.
func (d *Dispatcher) tryAutoPromote(ctx context.Context, productID string, roi roiconfig.ROI, crop *image.NRGBA, bestSim float64) *promotedResult {
	if bestSim >= roi.AIThreshold {
		return nil
	}
	samples, err := d.golden.ListAll(productID, roi.Idx)
	if err != nil {
		return nil
	}
	var bestBackup string
	var bestBackupSim float64
	for _, s := range samples {
		if s.Kind != goldenstore.KindBackup {
			continue
		}
		data, err := d.golden.ReadSample(productID, roi.Idx, s.Name)
		if err != nil {
			continue
		}
		backupImg, err := imagedecode.DecodeBytes(data)
		if err != nil {
			continue
		}
		sim, err := d.features.Compare(ctx, roi.FeatureMethod, crop, backupImg)
		if err != nil {
			continue
		}
		if sim > bestSim && sim >= roi.AIThreshold && sim > bestBackupSim {
			bestBackup = s.Name
			bestBackupSim = sim
		}
	}
	if bestBackup == "" {
		return nil
	}
	promotedBytes, err := d.golden.Promote(productID, roi.Idx, bestBackup)
	if err != nil {
		// Auto-promotion failures degrade to "keep current best"; never
		// surfaced as a request error, per base spec §7.
		return nil
	}
	return &promotedResult{similarity: bestBackupSim, bytes: promotedBytes}
}
