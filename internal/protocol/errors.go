package protocol

import (
	"errors"
	"net/http"

	"festering.ai/internal/sim/portal"
	"festering.ai/internal/sim/registry"
	"festering.ai/internal/sim/world"
)

const (
	// Request shape.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrSchema     = "E_SCHEMA"

	// World state.
	ErrNotLoaded = "E_NOT_LOADED"
	ErrWorldBusy = "E_WORLD_BUSY"
	ErrStopped   = "E_STOPPED"

	// Sources and portals.
	ErrNoFrame     = "E_NO_FRAME"
	ErrPlainFrame  = "E_PLAIN_FRAME"
	ErrTooClose    = "E_TOO_CLOSE"
	ErrBadStrength = "E_BAD_STRENGTH"
	ErrNotFound    = "E_NOT_FOUND"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]int{
	ErrBadRequest:  http.StatusBadRequest,
	ErrSchema:      http.StatusBadRequest,
	ErrNotLoaded:   http.StatusConflict,
	ErrWorldBusy:   http.StatusServiceUnavailable,
	ErrStopped:     http.StatusServiceUnavailable,
	ErrNoFrame:     http.StatusUnprocessableEntity,
	ErrPlainFrame:  http.StatusUnprocessableEntity,
	ErrTooClose:    http.StatusConflict,
	ErrBadStrength: http.StatusBadRequest,
	ErrNotFound:    http.StatusNotFound,
	ErrInternal:    http.StatusInternalServerError,
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps an error from the world or its collaborators to a code.
// A nil error maps to "".
func CodeFor(err error) string {
	var se *SchemaError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return ErrSchema
	case errors.Is(err, world.ErrNotLoaded):
		return ErrNotLoaded
	case errors.Is(err, world.ErrStopped):
		return ErrStopped
	case errors.Is(err, portal.ErrNoFrame):
		return ErrNoFrame
	case errors.Is(err, portal.ErrPlainFrame):
		return ErrPlainFrame
	case errors.Is(err, registry.ErrTooClose):
		return ErrTooClose
	case errors.Is(err, registry.ErrBadStrength):
		return ErrBadStrength
	case errors.Is(err, registry.ErrNotFound):
		return ErrNotFound
	}
	return ErrInternal
}

// HTTPStatus is the status an admin endpoint answers with for code.
func HTTPStatus(code string) int {
	if code == "" {
		return http.StatusOK
	}
	if s, ok := knownCodes[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Code: CodeFor(err), Message: err.Error()}
}
