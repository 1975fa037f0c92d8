package auth

// Package auth contains domain-level types for authentication, sessions and roles.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and JSON.
// The zero value is RoleUnresolved, which is never a real role.
type Role string

const (
	// RoleUnresolved marks a role that has not been loaded (or could not be).
	// It is distinct from every real role and must be treated as "deny".
	RoleUnresolved Role = ""
	RoleUser       Role = "user"
	RoleDecorator  Role = "decorator"
	RoleAdmin      Role = "admin"
)

// Roles lists every real role in display order.
func Roles() []Role {
	return []Role{RoleUser, RoleDecorator, RoleAdmin}
}

// ErrUnknownRole is returned by ParseRole for values outside the closed enum.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a raw role string into a Role.
// Empty or unrecognized values are rejected rather than defaulted.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleDecorator:
		return RoleDecorator, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return RoleUnresolved, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// IsResolved reports whether r is one of the real roles.
func (r Role) IsResolved() bool {
	switch r {
	case RoleUser, RoleDecorator, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	if r == RoleUnresolved {
		return "unresolved"
	}
	return string(r)
}

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	Email       string // unique, stable identifier
	DisplayName string
	PhotoURL    string
	Token       string // raw identity token from the provider
	ExpiresAt   time.Time
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier. Roles are deliberately not stored here:
// they are advisory and re-fetched from the role store.
type Session struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Identity returns the identity captured by the session.
func (s Session) Identity() Identity {
	return Identity{
		Email:       s.Email,
		DisplayName: s.DisplayName,
		PhotoURL:    s.PhotoURL,
		Token:       s.Token,
		ExpiresAt:   s.ExpiresAt,
	}
}

// RoleProfile is the role store's record for an identity.
type RoleProfile struct {
	Role        Role
	DisplayName string
	PhotoURL    string
}

// AuthErrorKind classifies sign-in failures.
type AuthErrorKind string

const (
	AuthErrInvalidCredentials AuthErrorKind = "invalid-credentials"
	AuthErrNetwork            AuthErrorKind = "network"
	AuthErrProvider           AuthErrorKind = "provider-error"
)

// AuthError is returned by identity providers when sign-in fails.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + string(e.Kind)
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AuthErrorKindOf extracts the kind of an AuthError in err's chain.
// Errors that are not AuthErrors are reported as provider errors.
func AuthErrorKindOf(err error) AuthErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return AuthErrProvider
}
