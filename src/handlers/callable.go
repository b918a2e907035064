package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"herd/src/apperrors"

	"github.com/rs/zerolog"
)

const maxCallableBody = 1 << 20

type callableRequest struct {
	Data json.RawMessage `json:"data"`
}

type callableResult struct {
	Result any `json:"result"`
}

type callableError struct {
	Error callableErrorBody `json:"error"`
}

type callableErrorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// decodeCallable unwraps the {"data": ...} envelope of a callable request.
func decodeCallable(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, apperrors.InvalidRequest("content type must be application/json")
	}

	var req callableRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallableBody))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.InvalidRequest("request body is empty")
		}
		return nil, apperrors.InvalidRequest("request body is not valid JSON").Wrap(err)
	}

	return req.Data, nil
}

func writeCallableResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, callableResult{Result: result})
}

func writeCallableError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	appErr := apperrors.From(err)

	event := logger.Warn()
	if appErr.Code != apperrors.CodeInvalidRequest {
		event = logger.Error()
	}
	event.Err(appErr.Err).
		Str("code", appErr.Code.String()).
		Str("internal", appErr.Internal).
		Msg(appErr.Message)

	writeJSON(w, appErr.Code.HTTPStatus(), callableError{Error: callableErrorBody{
		Status:  appErr.Code.Status(),
		Message: appErr.Message,
		Field:   appErr.Field,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are gone by now; a failed encode only means the client went away
	_ = json.NewEncoder(w).Encode(v)
}
