package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/aoipipeline/inspectord/internal/apierr"
)

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorEnvelope is the uniform error body from base spec §6/§7.
type errorEnvelope struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError maps any error to the stable {error, message, details} envelope
// and its corresponding HTTP status.
func writeError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	writeJSON(w, kind.Status(), errorEnvelope{
		Error:   string(kind),
		Message: apierr.MessageOf(err),
		Details: apierr.DetailsOf(err),
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apierr.Wrap(apierr.KindValidation, "invalid request body", err)
	}
	return nil
}
