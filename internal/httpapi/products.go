package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aoipipeline/inspectord/internal/apierr"
	"github.com/aoipipeline/inspectord/internal/roiconfig"
)

var reqValidator = validator.New(validator.WithRequiredStructEnabled())

type createProductRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	Description string `json:"description"`
	DeviceCount int    `json:"device_count" validate:"gte=1,lte=4"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.ListProducts()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ids})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := reqValidator.Struct(req); err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "invalid create-product request", err))
		return
	}
	cfg, err := s.engine.CreateProduct(req.ProductID, req.Description, req.DeviceCount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeConfig(w, cfg)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := s.engine.LoadConfig(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeConfig(w, cfg)
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "read request body", err))
		return
	}
	cfg, err := roiconfig.UnmarshalConfig(body)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "invalid product configuration", err))
		return
	}
	cfg.ProductID = id
	saved, err := s.engine.SaveConfig(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeConfig(w, saved)
}

func writeConfig(w http.ResponseWriter, cfg roiconfig.ProductConfig) {
	data, err := roiconfig.MarshalConfig(cfg)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.KindInternal, "marshal product configuration", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
