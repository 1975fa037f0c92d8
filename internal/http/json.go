package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	apperrors "github.com/decorhub/storefront/internal/errors"
)

// DecodeJSON reads exactly one JSON value from the body into dst. On failure
// it writes the error response and returns false. A Content-Type other than
// JSON is rejected; a missing one is accepted.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			WriteError(w, ErrorParams{
				Code:    http.StatusUnsupportedMediaType,
				ErrCode: "unsupported_media_type",
				Message: "request body must be application/json",
			})
			return false
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("body must contain a single JSON object")
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, ErrorParams{
				Code:    http.StatusRequestEntityTooLarge,
				ErrCode: "body_too_large",
				Message: fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit),
			})
			return false
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON encodes v before touching w so an encoding failure can still
// become a clean 500.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// ErrorParams describes a JSON error body. Message wins over Err when both
// are set.
type ErrorParams struct {
	Code    int
	ErrCode string
	Message string
	Err     error
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteError writes {"error": ErrCode, "message": ...} with status Code.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	msg := p.Message
	if msg == "" && p.Err != nil {
		msg = p.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(p.Code)
	}
	WriteJSON(w, p.Code, errorBody{Error: p.ErrCode, Message: msg})
}

// WriteAppError derives status and body from err's AppError code. Errors
// without one are reported as internal and their text is not exposed.
func WriteAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Message: "internal error",
		})
		return
	}
	if appErr.Code.Transient() {
		w.Header().Set("Retry-After", strconv.Itoa(pendingRetrySeconds))
	}
	msg := appErr.Message
	if appErr.Field != "" {
		msg = appErr.Field + ": " + msg
	}
	WriteJSON(w, appErr.Code.HTTPStatus(), errorBody{Error: string(appErr.Code), Message: msg, Field: appErr.Field})
}
