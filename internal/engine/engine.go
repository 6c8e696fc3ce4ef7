// Package engine wires every inspection-service component into one owned
// struct and implements the request-level orchestration: resolve session,
// load config, dispatch ROIs, aggregate, translate paths. Grounded on the
// teacher's cmd/agentcli wiring style (one constructor builds every
// collaborator from a Config and hands back a single handle with no
// package-level globals) generalized from "wire one LLM client + one tool
// runner" to "wire the whole ROI pipeline".
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/aoipipeline/inspectord/internal/aggregator"
	"github.com/aoipipeline/inspectord/internal/apierr"
	"github.com/aoipipeline/inspectord/internal/barcode"
	"github.com/aoipipeline/inspectord/internal/dispatch"
	"github.com/aoipipeline/inspectord/internal/feature"
	"github.com/aoipipeline/inspectord/internal/goldenstore"
	"github.com/aoipipeline/inspectord/internal/imagedecode"
	"github.com/aoipipeline/inspectord/internal/linker"
	"github.com/aoipipeline/inspectord/internal/ocrengine"
	"github.com/aoipipeline/inspectord/internal/pathtrans"
	"github.com/aoipipeline/inspectord/internal/roiconfig"
	"github.com/aoipipeline/inspectord/internal/session"
)

// inspectDeadline is the soft per-call deadline from base spec §5.
const inspectDeadline = 60 * time.Second

// reaperCadence is the session-reaper scan interval from base spec §4.12.
const reaperCadence = 60 * time.Second

// Config configures engine construction; it is a plain translation of
// internal/config.Config plus a logger, kept separate so engine never
// imports the CLI-flag layer.
type Config struct {
	Root              string
	LinkerURL         string
	WorkerCount       int
	SessionTTL        time.Duration
	AutoPromoteGolden bool
	DevicePrefix      string
	LocalPrefix       string
	Log               logr.Logger
}

// Engine owns every collaborator and exposes the operations the REST
// surface binds to. No field is a package-level global; every handler
// receives a *Engine by reference.
type Engine struct {
	root       string
	translator *pathtrans.Translator
	rois       *roiconfig.Store
	golden     *goldenstore.Store
	sessions   *session.Manager
	decoder    *imagedecode.Decoder
	dispatcher *dispatch.Dispatcher
	linkClient *linker.Client
	features   *feature.Extractor
	log        logr.Logger
	startedAt  time.Time
}

// New constructs an Engine. A missing barcode-decoder dependency is the
// only construction-time failure path, per base spec §4.6: the gozxing
// wrapper only fails if the underlying library can't even be constructed.
func New(cfg Config) (*Engine, error) {
	translator := pathtrans.New(pathtrans.Pair{DevicePrefix: cfg.DevicePrefix, LocalPrefix: cfg.LocalPrefix})

	barcodes, err := barcode.New()
	if err != nil {
		return nil, apierr.Wrap(apierr.KindDepMissing, "construct barcode decoder", err)
	}

	golden := goldenstore.NewStore(cfg.Root)
	rois := roiconfig.NewStore(cfg.Root)
	features := feature.New()
	ocr := ocrengine.New()
	sessions := session.NewManager(cfg.SessionTTL, cfg.Log)
	linkClient := linker.New(cfg.LinkerURL, cfg.Log)

	disp := dispatch.New(dispatch.Config{
		Features:    features,
		Barcodes:    barcodes,
		OCR:         ocr,
		Golden:      golden,
		WorkerCount: cfg.WorkerCount,
		AutoPromote: cfg.AutoPromoteGolden,
	})

	return &Engine{
		root:       cfg.Root,
		translator: translator,
		rois:       rois,
		golden:     golden,
		sessions:   sessions,
		decoder:    imagedecode.New(translator),
		dispatcher: disp,
		linkClient: linkClient,
		features:   features,
		log:        cfg.Log,
		startedAt:  time.Now(),
	}, nil
}

// RunBackground starts the session reaper; it blocks until ctx is
// canceled and is meant to run in its own goroutine for the process
// lifetime.
func (e *Engine) RunBackground(ctx context.Context) {
	e.sessions.RunReaper(ctx, reaperCadence)
}

// Uptime reports how long this Engine has been running, for /health and
// /status.
func (e *Engine) Uptime() time.Duration { return time.Since(e.startedAt) }

// ActiveSessionCount reports the number of currently active sessions, for
// /status.
func (e *Engine) ActiveSessionCount() int { return len(e.sessions.List()) }

// --- Product configuration -------------------------------------------------

func (e *Engine) ListProducts() ([]string, error) { return e.rois.List() }

func (e *Engine) CreateProduct(productID, description string, deviceCount int) (roiconfig.ProductConfig, error) {
	return e.rois.CreateProduct(productID, description, deviceCount)
}

func (e *Engine) LoadConfig(productID string) (roiconfig.ProductConfig, error) {
	return e.rois.Load(productID)
}

func (e *Engine) SaveConfig(cfg roiconfig.ProductConfig) (roiconfig.ProductConfig, error) {
	return e.rois.Save(cfg)
}

// --- Sessions ---------------------------------------------------------------

func (e *Engine) CreateSession(productID, clientTag string) (session.Session, error) {
	if _, err := e.rois.Load(productID); err != nil {
		return session.Session{}, apierr.Newf(apierr.KindValidation, "unknown product %q", productID)
	}
	s, err := e.sessions.Create(productID, clientTag)
	if err != nil {
		return session.Session{}, err
	}
	return *s, nil
}

func (e *Engine) GetSession(id string) (session.Session, error) { return e.sessions.Get(id) }

func (e *Engine) CloseSession(id string) error { return e.sessions.Close(id) }

func (e *Engine) ListSessions() []session.Session { return e.sessions.List() }

// --- Inspect -----------------------------------------------------------------

// InspectRequest is the engine-level form of an inspect call, already
// decoupled from how the REST layer bound it off the wire.
type InspectRequest struct {
	ImagePath      string
	ImageFilename  string
	ImageBase64    string
	DeviceBarcodes map[int]string
	DeviceBarcode  string
}

// InspectResult is the engine-level form of an Inspection Result (base
// spec §3), with device-visible paths already substituted.
type InspectResult struct {
	SessionID       string
	ProductID       string
	Timestamp       time.Time
	OverallPassed   bool
	DeviceSummaries map[int]aggregator.DeviceSummary
}

// Inspect runs one full inspect call: resolve+touch the session, load the
// product config, decode the image, fan the ROIs out on the dispatcher,
// aggregate by device, and translate outgoing paths back to device-visible
// form.
func (e *Engine) Inspect(ctx context.Context, sessionID string, req InspectRequest) (InspectResult, error) {
	sess, err := e.sessions.Touch(sessionID, "")
	if err != nil {
		return InspectResult{}, err
	}

	cfg, err := e.rois.Load(sess.ProductID)
	if err != nil {
		return InspectResult{}, err
	}

	img, err := e.decoder.Decode(filepath.Join(e.root, "sessions"), sessionID, imagedecode.Source{
		AbsolutePath: req.ImagePath,
		RelativeName: req.ImageFilename,
		InlineBase64: req.ImageBase64,
	})
	if err != nil {
		return InspectResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, inspectDeadline)
	defer cancel()

	outputDir := filepath.Join(e.root, "sessions", sessionID, "output")
	outcomes, err := e.dispatcher.Process(callCtx, outputDir, sess.ProductID, img, cfg.ROIs)
	if err != nil {
		return InspectResult{}, err
	}

	perCall := e.linkClient.NewPerCallLinker()
	agg := aggregator.Aggregate(callCtx, cfg.DeviceCount, outcomes, aggregator.RequestBarcodes{
		ByDevice: req.DeviceBarcodes,
		Legacy:   req.DeviceBarcode,
	}, perCall)

	for dev, summary := range agg.DeviceSummaries {
		for i := range summary.ROIResults {
			summary.ROIResults[i].ROIImagePath = e.translator.ToClient(summary.ROIResults[i].ROIImagePath)
			summary.ROIResults[i].GoldenImagePath = e.translator.ToClient(summary.ROIResults[i].GoldenImagePath)
		}
		agg.DeviceSummaries[dev] = summary
	}

	if err := callCtx.Err(); err != nil {
		return InspectResult{}, apierr.New(apierr.KindDeadlineExceeded, "inspect call exceeded its soft deadline")
	}

	return InspectResult{
		SessionID:       sessionID,
		ProductID:       sess.ProductID,
		Timestamp:       time.Now(),
		OverallPassed:   agg.OverallPassed,
		DeviceSummaries: agg.DeviceSummaries,
	}, nil
}

// --- Golden-sample admin (C15 thin binding, security rules enforced here) --

// validateSampleName rejects any name containing a path traversal
// sequence, per base spec §4.15.
func validateSampleName(name string) error {
	if name == "" || filepath.Base(name) != name ||
		strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return apierr.Newf(apierr.KindValidation, "unsafe sample name %q", name)
	}
	return nil
}

func (e *Engine) GoldenList(product string, idx int) ([]goldenstore.Sample, error) {
	return e.golden.ListAll(product, idx)
}

func (e *Engine) GoldenReadBest(product string, idx int) ([]byte, string, error) {
	return e.golden.ReadBest(product, idx)
}

func (e *Engine) GoldenReadSample(product string, idx int, name string) ([]byte, error) {
	if err := validateSampleName(name); err != nil {
		return nil, err
	}
	return e.golden.ReadSample(product, idx, name)
}

func (e *Engine) GoldenSave(product string, idx int, data []byte) (string, error) {
	return e.golden.WriteNewBest(product, idx, data)
}

func (e *Engine) GoldenPromote(product string, idx int, backupName string) ([]byte, error) {
	if err := validateSampleName(backupName); err != nil {
		return nil, err
	}
	return e.golden.Promote(product, idx, backupName)
}

func (e *Engine) GoldenRestore(product string, idx int, backupName string) ([]byte, error) {
	if err := validateSampleName(backupName); err != nil {
		return nil, err
	}
	return e.golden.Restore(product, idx, backupName)
}

func (e *Engine) GoldenDelete(product string, idx int, name string) error {
	if err := validateSampleName(name); err != nil {
		return err
	}
	return e.golden.Delete(product, idx, name)
}

func (e *Engine) GoldenRenameFolders(product string, mapping map[int]int) error {
	return e.golden.RenameFolders(product, mapping)
}

// GoldenSamplePath returns the device-visible path for a named golden
// sample, for listing endpoints that report file paths rather than bytes.
func (e *Engine) GoldenSamplePath(product string, idx int, name string) string {
	local := filepath.Join(e.root, "products", product, "golden_rois", fmt.Sprintf("roi_%d", idx), name)
	return e.translator.ToClient(local)
}

// GoldenSummary lists, per product, which ROI indices have at least one
// golden sample, for the /golden-sample/products overview endpoint.
type GoldenSummary struct {
	ProductID string
	ROIIdx    []int
}

func (e *Engine) GoldenProductsSummary() ([]GoldenSummary, error) {
	ids, err := e.rois.List()
	if err != nil {
		return nil, err
	}
	out := make([]GoldenSummary, 0, len(ids))
	for _, id := range ids {
		cfg, err := e.rois.Load(id)
		if err != nil {
			continue
		}
		var withSamples []int
		for _, r := range cfg.ROIs {
			samples, err := e.golden.ListAll(id, r.Idx)
			if err != nil || len(samples) == 0 {
				continue
			}
			withSamples = append(withSamples, r.Idx)
		}
		out = append(out, GoldenSummary{ProductID: id, ROIIdx: withSamples})
	}
	return out, nil
}

// golden-sample device-visible path helper, used by httpapi to report
// download paths consistent with everything else the engine hands back.
func (e *Engine) ToClientPath(localPath string) string { return e.translator.ToClient(localPath) }
