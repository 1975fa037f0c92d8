// Package devauth provides a config-driven AuthProvider for local development.
// It skips the identity provider entirely: Begin redirects straight back to
// the callback and Exchange returns one of the configured dev accounts.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// ErrUnknownAccount is returned when a login hint names no configured account.
var ErrUnknownAccount = errors.New("dev auth: unknown account")

// Config controls the dev auth provider behavior.
type Config struct {
	// Email is the account used when the login carries no hint. Required.
	Email       string
	DisplayName string
	PhotoURL    string
	// Accounts lists extra accounts selectable with a login hint, as
	// "email" or "email=Display Name". Roles still come from the role store.
	Accounts        []string
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.AuthProvider for local development.
type Provider struct {
	primary         string
	accounts        map[string]domainauth.Identity
	sessionDuration time.Duration
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	email := normalizeEmail(cfg.Email)
	if email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur <= 0 {
		dur = 8 * time.Hour
	}

	p := &Provider{
		primary:         email,
		accounts:        map[string]domainauth.Identity{},
		sessionDuration: dur,
	}
	p.accounts[email] = newIdentity(email, cfg.DisplayName, cfg.PhotoURL)
	for _, raw := range cfg.Accounts {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, name, _ := strings.Cut(raw, "=")
		addr = normalizeEmail(addr)
		if !strings.Contains(addr, "@") {
			return nil, fmt.Errorf("dev auth: invalid account %q", raw)
		}
		if _, dup := p.accounts[addr]; !dup {
			p.accounts[addr] = newIdentity(addr, strings.TrimSpace(name), "")
		}
	}
	return p, nil
}

func newIdentity(email, name, photo string) domainauth.Identity {
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return domainauth.Identity{Email: email, DisplayName: name, PhotoURL: photo, Token: "dev"}
}

// Begin returns a local callback URL carrying the selected account as the
// code, plus random state and nonce.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	email := p.primary
	if hint := normalizeEmail(in.LoginHint); hint != "" {
		if _, ok := p.accounts[hint]; !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrUnknownAccount, hint)
		}
		email = hint
	}

	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	q := url.Values{"code": {email}, "state": {state}}
	return "/auth/callback?" + q.Encode(), state, nonce, nil
}

// Exchange returns the account named by the code. State and nonce are
// checked by the callback handler before this is reached.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	id, ok := p.accounts[normalizeEmail(in.Code)]
	if !ok {
		return domainauth.Identity{}, &domainauth.AuthError{
			Kind: domainauth.AuthErrInvalidCredentials,
			Err:  fmt.Errorf("%w: %s", ErrUnknownAccount, in.Code),
		}
	}
	id.ExpiresAt = time.Now().Add(p.sessionDuration)
	return id, nil
}

// Accounts lists the selectable account emails, primary first.
func (p *Provider) Accounts() []string {
	out := []string{p.primary}
	for email := range p.accounts {
		if email != p.primary {
			out = append(out, email)
		}
	}
	return out
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
