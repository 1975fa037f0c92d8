package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider
	Sessions ports.SessionStore
	// Registry, when set, is told about sign-in and sign-out so role
	// resolution starts before the first guarded request.
	Registry *SessionRegistry
	// SessionTTL caps session lifetime when the provider sets no expiry.
	SessionTTL time.Duration
}

// AuthService orchestrates authentication flows by coordinating the identity provider and session persistence.
// Roles are not part of the session; they are resolved separately per request.
type AuthService struct {
	provider   ports.AuthProvider
	sessions   ports.SessionStore
	registry   *SessionRegistry
	sessionTTL time.Duration
}

// ErrRevokeUnsupported is returned by RevokeUser when the session store
// cannot look sessions up by email.
var ErrRevokeUnsupported = errors.New("session store does not support revocation")

// ErrSessionExpired is returned for sessions past their expiry. It matches ports.ErrSessionNotFound.
var ErrSessionExpired = fmt.Errorf("session expired: %w", ports.ErrSessionNotFound)

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{
		provider:   opts.Provider,
		sessions:   opts.Sessions,
		registry:   opts.Registry,
		sessionTTL: ttl,
	}
}

// BeginLoginInput groups parameters for starting a login flow.
type BeginLoginInput struct {
	RedirectURL string
	// LoginHint pre-selects an account at the provider.
	LoginHint string
}

// BeginLoginResult is what the callback later needs to verify: the state and
// nonce go into short-lived cookies, the user is sent to AuthURL.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin asks the provider for an authorization URL.
func (s *AuthService) BeginLogin(ctx context.Context, in BeginLoginInput) (*BeginLoginResult, error) {
	if in.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{
		RedirectURL: in.RedirectURL,
		LoginHint:   normalizeEmail(in.LoginHint),
	})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput carries the callback parameters and the nonce saved by
// BeginLogin.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

func (in CompleteLoginInput) validate() error {
	switch {
	case in.Code == "":
		return errors.New("authorization code is required")
	case in.State == "":
		return errors.New("state parameter is required")
	case in.Nonce == "":
		return errors.New("nonce parameter is required")
	}
	return nil
}

// CompleteLoginResult holds the session created for the signed-in user.
type CompleteLoginResult struct {
	Session domainauth.Session
}

// CompleteLogin exchanges the code for an identity, stores a new session and
// starts role resolution for it.
func (s *AuthService) CompleteLogin(ctx context.Context, in CompleteLoginInput) (*CompleteLoginResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput(in))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if normalizeEmail(identity.Email) == "" {
		return nil, &domainauth.AuthError{Kind: domainauth.AuthErrProvider, Err: errors.New("identity has no email")}
	}

	session := domainauth.Session{
		ID:          uuid.NewString(),
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		PhotoURL:    identity.PhotoURL,
		Token:       identity.Token,
		ExpiresAt:   s.sessionExpiry(identity.ExpiresAt),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if s.registry != nil {
		s.registry.SignIn(session.ID, session.Identity())
	}
	return &CompleteLoginResult{Session: session}, nil
}

// sessionExpiry caps the provider's expiry at the configured session TTL.
func (s *AuthService) sessionExpiry(provided time.Time) time.Time {
	limit := time.Now().Add(s.sessionTTL)
	if provided.IsZero() || provided.After(limit) {
		return limit
	}
	return provided
}

// GetSession retrieves a session by ID. Missing or expired sessions yield an
// error matching ports.ErrSessionNotFound; anything else is a store failure.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, ports.ErrSessionNotFound
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(ErrSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Logout removes a session and signs its state out.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to logout
	}

	if s.registry != nil {
		s.registry.SignOut(sessionID)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// RevokeUser ends every session of email, on this instance and in the store.
// It returns the number of stored sessions removed.
func (s *AuthService) RevokeUser(ctx context.Context, email string) (int, error) {
	email = normalizeEmail(email)
	if email == "" {
		return 0, errors.New("email is required")
	}
	revoker, ok := s.sessions.(ports.SessionRevoker)
	if !ok {
		return 0, ErrRevokeUnsupported
	}

	if s.registry != nil {
		s.registry.SignOutEmail(email)
	}
	n, err := revoker.DeleteByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
