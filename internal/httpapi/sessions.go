package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aoipipeline/inspectord/internal/aggregator"
	"github.com/aoipipeline/inspectord/internal/apierr"
	"github.com/aoipipeline/inspectord/internal/engine"
	"github.com/aoipipeline/inspectord/internal/session"
)

type createSessionRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	ClientTag string `json:"client_tag"`
}

type sessionWire struct {
	SessionID    string `json:"session_id"`
	ProductID    string `json:"product_id"`
	ClientTag    string `json:"client_tag,omitempty"`
	CreatedAt    string `json:"created_at"`
	LastActivity string `json:"last_activity"`
	State        string `json:"state"`
}

func toSessionWire(s session.Session) sessionWire {
	return sessionWire{
		SessionID:    s.ID,
		ProductID:    s.ProductID,
		ClientTag:    s.ClientTag,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastActivity: s.LastActivity.Format("2006-01-02T15:04:05Z07:00"),
		State:        string(s.State),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := reqValidator.Struct(req); err != nil {
		writeError(w, apierr.Wrap(apierr.KindValidation, "invalid create-session request", err))
		return
	}
	sess, err := s.engine.CreateSession(req.ProductID, req.ClientTag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionWire(sess))
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.engine.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionWire(sess))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.CloseSession(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"closed": true})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list := s.engine.ListSessions()
	out := make([]sessionWire, 0, len(list))
	for _, sess := range list {
		out = append(out, toSessionWire(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// inspectRequestWire is the bit-exact inspect request shape of base spec §6.
type inspectRequestWire struct {
	ImagePath      string          `json:"image_path"`
	ImageFilename  string          `json:"image_filename"`
	Image          string          `json:"image"`
	DeviceBarcodes json.RawMessage `json:"device_barcodes"`
	DeviceBarcode  string          `json:"device_barcode"`
}

// inspectionResultWire is the Inspection Result shape of base spec §3.
type inspectionResultWire struct {
	SessionID       string                           `json:"session_id"`
	ProductID       string                           `json:"product_id"`
	Timestamp       string                           `json:"timestamp"`
	OverallPassed   bool                             `json:"overall_passed"`
	DeviceSummaries map[int]aggregator.DeviceSummary `json:"device_summaries"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var wire inspectRequestWire
	if err := decodeJSON(r, &wire); err != nil {
		writeError(w, err)
		return
	}

	barcodes, err := parseDeviceBarcodes(wire.DeviceBarcodes)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.Inspect(r.Context(), id, engine.InspectRequest{
		ImagePath:      wire.ImagePath,
		ImageFilename:  wire.ImageFilename,
		ImageBase64:    wire.Image,
		DeviceBarcodes: barcodes,
		DeviceBarcode:  wire.DeviceBarcode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inspectionResultWire{
		SessionID:       result.SessionID,
		ProductID:       result.ProductID,
		Timestamp:       result.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		OverallPassed:   result.OverallPassed,
		DeviceSummaries: result.DeviceSummaries,
	})
}

// parseDeviceBarcodes accepts device_barcodes as either a JSON object
// ({"1": "ABC"}) or a legacy array (["ABC", "DEF"], device_location = index+1),
// per base spec §4.14.
func parseDeviceBarcodes(raw json.RawMessage) (map[int]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	trimmed := trimLeadingSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var arr []string
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, apierr.Wrap(apierr.KindValidation, "invalid device_barcodes array", err)
		}
		out := make(map[int]string, len(arr))
		for i, v := range arr {
			if v != "" {
				out[i+1] = v
			}
		}
		return out, nil
	}
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, apierr.Wrap(apierr.KindValidation, "invalid device_barcodes object", err)
	}
	out := make(map[int]string, len(obj))
	for k, v := range obj {
		dev, err := strconv.Atoi(k)
		if err != nil {
			return nil, apierr.Newf(apierr.KindValidation, "device_barcodes key %q is not an integer device id", k)
		}
		out[dev] = v
	}
	return out, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}
