package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "user", want: RoleUser},
		{in: "Decorator", want: RoleDecorator},
		{in: " admin ", want: RoleAdmin},
		{in: "", wantErr: true},
		{in: "guest", wantErr: true},
		{in: "superadmin", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownRole)
				assert.Equal(t, RoleUnresolved, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_ZeroValueIsUnresolved(t *testing.T) {
	var r Role
	assert.Equal(t, RoleUnresolved, r)
	assert.False(t, r.IsResolved())
	assert.Equal(t, "unresolved", r.String())
	for _, real := range Roles() {
		assert.True(t, real.IsResolved())
		assert.NotEqual(t, RoleUnresolved, real)
	}
}

func TestSession_Identity(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	s := Session{ID: "s1", Email: "a@example.com", DisplayName: "A", PhotoURL: "p", Token: "t", ExpiresAt: exp}
	id := s.Identity()
	assert.Equal(t, "a@example.com", id.Email)
	assert.Equal(t, "A", id.DisplayName)
	assert.Equal(t, "t", id.Token)
	assert.Equal(t, exp, id.ExpiresAt)
}

func TestAuthErrorKindOf(t *testing.T) {
	err := fmt.Errorf("exchange: %w", &AuthError{Kind: AuthErrInvalidCredentials, Err: errors.New("bad code")})
	assert.Equal(t, AuthErrInvalidCredentials, AuthErrorKindOf(err))
	assert.Contains(t, err.Error(), "invalid-credentials")
	assert.Equal(t, AuthErrProvider, AuthErrorKindOf(errors.New("boom")))
}
