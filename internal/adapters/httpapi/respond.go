package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody reads at most maxBodyBytes. A larger body is rejected with 413.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil {
		return nil, true
	}
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", map[string]any{"limit": maxBodyBytes})
			return nil, false
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "failed to read request body", nil)
		return nil, false
	}
	return b, true
}

// decodeBody decodes a JSON request body into dst. A missing body is a 422.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	b, ok := readBody(w, r)
	if !ok {
		return false
	}
	if len(b) == 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing request body", nil)
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", map[string]any{"cause": err.Error()})
		return false
	}
	return true
}
