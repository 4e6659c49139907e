package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"

	"github.com/palm-beach-pass/pass-api/internal/app/controller"
	"github.com/palm-beach-pass/pass-api/internal/app/offline"
	"github.com/palm-beach-pass/pass-api/internal/app/origin"
)

// ErrorResponse is the JSON error envelope of every endpoint.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(map[string]any(details))
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(er)
}

// writeAppError maps application errors onto the envelope. Anything unrecognised is a 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if oe := (*offline.Error)(nil); errors.As(err, &oe) {
		writeError(w, r, oe.Status, oe.Code, oe.Message, oe.Details)
		return
	}
	if ce := (*controller.Error)(nil); errors.As(err, &ce) {
		writeError(w, r, ce.Status, ce.Code, ce.Message, ce.Details)
		return
	}
	if ge := (*origin.Error)(nil); errors.As(err, &ge) {
		writeError(w, r, ge.Status, ge.Code, ge.Message, ge.Details)
		return
	}
	log.Printf("httpapi: %s %s: %v", r.Method, r.URL.Path, err)
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
