// Package errors defines the coded application errors shared by the
// storefront's services, adapters and HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorizes an AppError.
type ErrorCode string

const (
	ErrCodeUnresolved      ErrorCode = "unresolved"      // identity or role still resolving; retry shortly
	ErrCodeUnauthenticated ErrorCode = "unauthenticated" // no signed-in identity
	ErrCodeForbidden       ErrorCode = "forbidden"       // role outside the allowed set
	ErrCodeNotFound        ErrorCode = "not_found"
	ErrCodeUpstream        ErrorCode = "upstream" // role store, identity provider or database failed
	ErrCodeConflict        ErrorCode = "conflict"
	ErrCodeValidation      ErrorCode = "validation"
	ErrCodeInternal        ErrorCode = "internal"
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeCanceled        ErrorCode = "canceled"
)

type codeInfo struct {
	status    int
	transient bool
}

//nolint:gochecknoglobals // static read-only lookup
var codes = map[ErrorCode]codeInfo{
	ErrCodeUnresolved:      {http.StatusServiceUnavailable, true},
	ErrCodeUnauthenticated: {http.StatusUnauthorized, false},
	ErrCodeForbidden:       {http.StatusForbidden, false},
	ErrCodeNotFound:        {http.StatusNotFound, false},
	ErrCodeUpstream:        {http.StatusBadGateway, true},
	ErrCodeConflict:        {http.StatusConflict, false},
	ErrCodeValidation:      {http.StatusBadRequest, false},
	ErrCodeInternal:        {http.StatusInternalServerError, true},
	ErrCodeTimeout:         {http.StatusGatewayTimeout, true},
	// 499 is the de facto "client closed request" status.
	ErrCodeCanceled: {499, false},
}

// Transient reports whether errors with this code may succeed on retry.
func (c ErrorCode) Transient() bool {
	return codes[c].transient
}

// HTTPStatus is the response status for the code; unknown codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// AppError is a coded error with a user-facing message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation and conflict errors.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError carrying only a code, so callers can write
// errors.Is(err, &AppError{Code: ErrCodeUpstream}).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Message == "" && t.Cause == nil && t.Code == e.Code
}

// New builds an AppError without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf builds an AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Upstream wraps a failure of an external collaborator.
func Upstream(err error, message string) *AppError {
	return Wrap(err, ErrCodeUpstream, message)
}

func Validation(message string) *AppError { return New(ErrCodeValidation, message) }

func Validationf(format string, args ...any) *AppError {
	return Newf(ErrCodeValidation, format, args...)
}

// ValidationField reports invalid input in a named field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// FieldOf returns the Field of the outermost AppError in err's chain, or "".
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &AppError{Code: code})
}
