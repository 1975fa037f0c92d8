// Package ports declares the interfaces the storefront services depend on.
// Adapters in internal/adapters implement them.
package ports

import (
	"context"
	"errors"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
)

// ErrSessionNotFound means the session does not exist or has expired.
// Any other SessionStore error is treated as transient.
var ErrSessionNotFound = errors.New("session not found")

// AuthProvider signs a user in against an identity provider.
// Exchange failures are reported as *domainauth.AuthError.
type AuthProvider interface {
	// Begin returns the URL to send the browser to, plus the state and nonce
	// the callback must present.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)
	// Exchange trades the callback code for the signed-in identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// BeginInput starts a sign-in.
type BeginInput struct {
	RedirectURL string
	// LoginHint is the account the user asked to sign in as. Providers may ignore it.
	LoginHint string
}

// ExchangeInput completes a sign-in.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SessionStore persists sessions by opaque ID.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	// Get returns ErrSessionNotFound for unknown or expired IDs.
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionRevoker is implemented by session stores that index sessions by
// email, allowing every session of one account to be ended at once.
type SessionRevoker interface {
	DeleteByEmail(ctx context.Context, email string) (int, error)
}
