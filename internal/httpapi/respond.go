package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"modelmgr/pkg/types"
)

// HTTPError is implemented by domain errors that carry their own status,
// so handlers can pass them through without a mapping table per package.
type HTTPError interface {
	error
	StatusCode() int
}

// decodeJSON enforces the JSON content type and the request body cap
// before decoding into v. On failure the error response is already
// written and the handler must return.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// writeJSONError emits the uniform error envelope ({"error": ..., "code": ...})
// every endpoint uses, so clients never have to parse plain-text bodies.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
