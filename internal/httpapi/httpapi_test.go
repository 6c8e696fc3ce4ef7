package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"

	"github.com/aoipipeline/inspectord/internal/engine"
	"github.com/aoipipeline/inspectord/internal/imagedecode"
)

func newTestServer(t *testing.T) (http.Handler, *engine.Engine) {
	t.Helper()
	e, err := engine.New(engine.Config{
		Root:              t.TempDir(),
		WorkerCount:       2,
		AutoPromoteGolden: true,
		Log:               logr.Discard(),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return NewRouter(e, logr.Discard()), e
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthReturns200(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateProductAndGetConfig(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/products", map[string]any{
		"product_id": "P1", "description": "widget", "device_count": 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/products/P1/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get config status = %d body=%s", rec.Code, rec.Body.String())
	}
	var cfg map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if cfg["product_id"] != "P1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestGetConfigUnknownProductReturns404Envelope(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/products/missing/config", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Error != "NOT_FOUND" {
		t.Fatalf("error kind = %q, want NOT_FOUND", env.Error)
	}
}

func solidJPEGBase64(t *testing.T, c color.NRGBA, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	data, err := imagedecode.EncodeJPEGBytes(img, 95)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func TestSessionCreateAndInspectColorROI(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/products/P1/config", map[string]any{
		"product_id":   "P1",
		"description":  "widget",
		"device_count": 1,
		"rois": []map[string]any{
			{
				"idx": 1, "type": 4, "coords": []int{0, 0, 20, 20},
				"device_location": 1, "enabled": true,
				"expected_color": []int{10, 20, 30}, "color_tolerance": 5, "min_pixel_percentage": 90,
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save config status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/session/create", map[string]any{"product_id": "P1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create session status = %d body=%s", rec.Code, rec.Body.String())
	}
	var sess sessionWire
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}

	b64 := solidJPEGBase64(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, 40, 40)
	rec = do(t, h, http.MethodPost, "/session/"+sess.SessionID+"/inspect", map[string]any{"image": b64})
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect status = %d body=%s", rec.Code, rec.Body.String())
	}
	var result inspectionResultWire
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.OverallPassed {
		t.Fatalf("expected overall pass, got %+v", result)
	}
}

func TestGoldenDownloadRejectsPathTraversal(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/golden-sample/P1/1/download/..", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body=%s", rec.Code, rec.Body.String())
	}
}

func TestSchemaVersionEndpoint(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/schema/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["version"] == "" {
		t.Fatal("expected non-empty version")
	}
}
