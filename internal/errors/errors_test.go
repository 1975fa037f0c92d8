package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "route not found", New(ErrCodeNotFound, "route not found").Error())
	assert.Equal(t, "role lookup failed: connection refused",
		Upstream(errors.New("connection refused"), "role lookup failed").Error())
}

func TestAppError_ChainMatching(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", Upstream(cause, "role store"))

	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, ErrCodeUpstream))
	assert.False(t, HasCode(err, ErrCodeValidation))
	assert.Equal(t, ErrCodeUpstream, CodeOf(err))

	// An inner AppError is still found by HasCode; CodeOf reports the outer one.
	nested := Wrap(ValidationField("email", "required"), ErrCodeInternal, "save role")
	assert.True(t, HasCode(nested, ErrCodeValidation))
	assert.Equal(t, ErrCodeInternal, CodeOf(nested))

	// A full AppError is not a code-only target.
	assert.NotErrorIs(t, err, Upstream(cause, "role store"))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *AppError
		code  ErrorCode
		msg   string
		field string
	}{
		{"newf", Newf(ErrCodeNotFound, "route %s", "/x"), ErrCodeNotFound, "route /x", ""},
		{"validation", Validation("bad"), ErrCodeValidation, "bad", ""},
		{"validationf", Validationf("role %q", "owner"), ErrCodeValidation, `role "owner"`, ""},
		{"validation field", ValidationField("email", "required"), ErrCodeValidation, "required", "email"},
		{"wrapf", Wrapf(errors.New("x"), ErrCodeTimeout, "lookup %d", 1), ErrCodeTimeout, "lookup 1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.msg, tt.err.Message)
			assert.Equal(t, tt.field, FieldOf(tt.err))
		})
	}
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "x %d", 1))
	assert.Nil(t, Upstream(nil, "x"))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.Empty(t, FieldOf(errors.New("plain")))
}

func TestErrorCode_Table(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		status    int
		transient bool
	}{
		{ErrCodeUnresolved, http.StatusServiceUnavailable, true},
		{ErrCodeUpstream, http.StatusBadGateway, true},
		{ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{ErrCodeInternal, http.StatusInternalServerError, true},
		{ErrCodeForbidden, http.StatusForbidden, false},
		{ErrCodeNotFound, http.StatusNotFound, false},
		{ErrCodeUnauthenticated, http.StatusUnauthorized, false},
		{ErrCodeValidation, http.StatusBadRequest, false},
		{ErrCodeConflict, http.StatusConflict, false},
		{ErrCodeCanceled, 499, false},
		{ErrorCode("mystery"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
			assert.Equal(t, tt.transient, tt.code.Transient())
		})
	}
}
