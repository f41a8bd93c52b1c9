package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/colonyops/linglenz/internal/capture"
	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
	"github.com/colonyops/linglenz/internal/lenz"
)

// errorBody is the error shape of every endpoint. It extends the correction
// service's {error} shape with the failure kind.
type errorBody struct {
	Error    string             `json:"error"`
	Kind     correction.Kind    `json:"kind,omitempty"`
	LastKind correction.Kind    `json:"last_kind,omitempty"`
	Existing *classroom.Session `json:"existing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var conflict *classroom.ConflictError
	if errors.As(err, &conflict) {
		existing := conflict.Existing
		body.Existing = &existing
		return http.StatusConflict, body
	}

	var ce *correction.Error
	if errors.As(err, &ce) {
		body.Kind = ce.Kind
		if ce.Kind == correction.KindInvalidInput {
			return http.StatusBadRequest, body
		}
		if last := ce.Last(); last != ce {
			body.LastKind = last.Kind
		}
		return http.StatusBadGateway, body
	}

	switch {
	case errors.Is(err, lenz.ErrInvalidArgument), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, body
	case errors.Is(err, classroom.ErrNotFound), errors.Is(err, mistake.ErrNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, classroom.ErrInvalidTransition),
		errors.Is(err, mistake.ErrInvalidTransition),
		errors.Is(err, classroom.ErrActiveSessionExists),
		errors.Is(err, lenz.ErrNotActive),
		errors.Is(err, lenz.ErrClosed):
		return http.StatusConflict, body
	case errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden, body
	case errors.Is(err, capture.ErrHardwareUnavailable), errors.Is(err, lenz.ErrCaptureUnavailable):
		return http.StatusServiceUnavailable, body
	}

	body.Error = "internal error"
	return http.StatusInternalServerError, body
}

var errBadRequest = errors.New("bad request")
