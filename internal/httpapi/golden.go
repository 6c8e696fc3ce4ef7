package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aoipipeline/inspectord/internal/apierr"
	"github.com/aoipipeline/inspectord/internal/goldenstore"
)

const maxGoldenUploadBytes = 16 << 20

type sampleWire struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	IsBest  bool   `json:"is_best"`
	Size    int64  `json:"size"`
	ModTime string `json:"mtime"`
	Path    string `json:"path,omitempty"`
}

func toSampleWire(s goldenstore.Sample) sampleWire {
	return sampleWire{
		Name:    s.Name,
		Kind:    string(s.Kind),
		IsBest:  s.IsBest,
		Size:    s.Size,
		ModTime: s.ModTime.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func roiIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "roi_id")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Newf(apierr.KindValidation, "invalid roi_id %q", raw)
	}
	return idx, nil
}

func (s *Server) handleGoldenProducts(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.GoldenProductsSummary()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": summary})
}

func (s *Server) handleGoldenList(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")
	idx, err := roiIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	samples, err := s.engine.GoldenList(product, idx)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]sampleWire, 0, len(samples))
	for _, sample := range samples {
		wire := toSampleWire(sample)
		wire.Path = s.engine.GoldenSamplePath(product, idx, sample.Name)
		out = append(out, wire)
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": out})
}

func (s *Server) handleGoldenMetadata(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")
	idx, err := roiIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	samples, err := s.engine.GoldenList(product, idx)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]sampleWire, 0, len(samples))
	for _, sample := range samples {
		out = append(out, toSampleWire(sample))
	}
	writeJSON(w, http.StatusOK, map[string]any{"samples": out})
}

func (s *Server) handleGoldenDownload(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")
	idx, err := roiIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	data, err := s.engine.GoldenReadSample(product, idx, name)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleGoldenSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxGoldenUploadBytes); err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "invalid multipart form", err))
		return
	}
	product := r.FormValue("product_name")
	idx, err := strconv.Atoi(r.FormValue("roi_id"))
	if product == "" || err != nil {
		writeError(w, apierr.New(apierr.KindValidation, "product_name and roi_id are required"))
		return
	}
	file, _, err := r.FormFile("golden_image")
	if err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "golden_image file is required", err))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxGoldenUploadBytes))
	if err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "read golden_image", err))
		return
	}

	backupName, err := s.engine.GoldenSave(product, idx, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup_name": backupName})
}

type goldenSampleRequest struct {
	ProductID  string `json:"product_id" validate:"required"`
	RoiID      int    `json:"roi_id" validate:"required"`
	Name       string `json:"name"`
	BackupName string `json:"backup_name"`
}

func (s *Server) handleGoldenPromote(w http.ResponseWriter, r *http.Request) {
	var req goldenSampleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := reqValidator.Struct(req); err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "invalid promote request", err))
		return
	}
	data, err := s.engine.GoldenPromote(req.ProductID, req.RoiID, req.BackupName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promoted": true, "size": len(data)})
}

func (s *Server) handleGoldenRestore(w http.ResponseWriter, r *http.Request) {
	var req goldenSampleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := reqValidator.Struct(req); err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "invalid restore request", err))
		return
	}
	data, err := s.engine.GoldenRestore(req.ProductID, req.RoiID, req.BackupName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": true, "size": len(data)})
}

func (s *Server) handleGoldenDelete(w http.ResponseWriter, r *http.Request) {
	var req goldenSampleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ProductID == "" || req.Name == "" {
		writeError(w, apierr.New(apierr.KindValidation, "product_id and name are required"))
		return
	}
	if err := s.engine.GoldenDelete(req.ProductID, req.RoiID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

type renameFoldersRequest struct {
	ProductID string         `json:"product_id" validate:"required"`
	Mapping   map[string]int `json:"mapping" validate:"required"`
}

func (s *Server) handleGoldenRenameFolders(w http.ResponseWriter, r *http.Request) {
	var req renameFoldersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := reqValidator.Struct(req); err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "invalid rename-folders request", err))
		return
	}
	mapping := make(map[int]int, len(req.Mapping))
	for k, v := range req.Mapping {
		oldIdx, err := strconv.Atoi(k)
		if err != nil {
			writeError(w, apierr.Newf(apierr.KindValidation, "mapping key %q is not an integer roi idx", k))
			return
		}
		mapping[oldIdx] = v
	}
	if err := s.engine.GoldenRenameFolders(req.ProductID, mapping); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"renamed": true})
}
