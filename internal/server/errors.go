package server

import (
	"errors"
	"net/http"

	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// errBadRequest marks malformed request input.
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return "malformed request: " + e.err.Error() }

func (e errBadRequest) Unwrap() error { return e.err }

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusCode maps an error to its HTTP status.
func statusCode(err error) int {
	var validation *types.ValidationError
	var bad errBadRequest
	switch {
	case errors.As(err, &validation):
		if errors.Is(err, types.ErrDuplicate) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrListNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidFilter), errors.Is(err, types.ErrInvalidData), errors.Is(err, types.ErrInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	resp := errorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		resp.Error = http.StatusText(status)
	}

	var validation *types.ValidationError
	if errors.As(err, &validation) {
		resp.Fields = make(map[string]string, len(validation.Issues))
		for _, fe := range validation.Issues {
			resp.Fields[fe.Field] = fe.Err.Error()
		}
	}
	writeJSON(w, r, status, resp)
}
