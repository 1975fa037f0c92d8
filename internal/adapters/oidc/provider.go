// Package oidc signs storefront customers in through an OpenID Connect
// provider using the authorization code flow.
package oidc

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

const (
	defaultDiscoveryAttempts = 3
	// tokenTTL is assumed when the token response carries no expiry.
	tokenTTL = time.Hour
)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	// DiscoveryURL is the issuer URL, with or without the
	// /.well-known/openid-configuration suffix.
	DiscoveryURL string
	LogoutURL    string
	// PKCE adds an S256 code challenge to every sign-in.
	PKCE bool
	// AllowUnverifiedEmail accepts identities whose email_verified claim is
	// false. Roles are keyed by email, so this is off by default.
	AllowUnverifiedEmail bool
	// DiscoveryAttempts bounds retries while the issuer is unreachable.
	DiscoveryAttempts int
	HTTPClient        *http.Client // defaults to a client with a 30s timeout
}

// Provider implements ports.AuthProvider against an OIDC issuer.
type Provider struct {
	oauth           *oauth2.Config
	issuer          *gooidc.Provider
	verifier        *gooidc.IDTokenVerifier
	httpClient      *http.Client
	logoutURL       string
	pkceKey         []byte
	allowUnverified bool
}

var _ ports.AuthProvider = (*Provider)(nil)

// NewProvider validates cfg and fetches the issuer's discovery document.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	switch {
	case cfg.ClientID == "":
		return nil, errors.New("client ID is required")
	case cfg.ClientSecret == "":
		return nil, errors.New("client secret is required")
	case cfg.RedirectURL == "":
		return nil, errors.New("redirect URL is required")
	case cfg.DiscoveryURL == "":
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	attempts := cfg.DiscoveryAttempts
	if attempts <= 0 {
		attempts = defaultDiscoveryAttempts
	}

	issuer, err := discover(issuerURL(cfg.DiscoveryURL), httpClient, attempts)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     issuer.Endpoint(),
		},
		issuer:          issuer,
		verifier:        issuer.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		httpClient:      httpClient,
		logoutURL:       cfg.LogoutURL,
		allowUnverified: cfg.AllowUnverifiedEmail,
	}
	if cfg.PKCE {
		p.pkceKey = []byte(cfg.ClientSecret)
	}
	return p, nil
}

func issuerURL(discovery string) string {
	u := strings.TrimSuffix(discovery, "/")
	return strings.TrimSuffix(u, "/.well-known/openid-configuration")
}

func discover(issuer string, client *http.Client, attempts int) (*gooidc.Provider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = gooidc.ClientContext(ctx, client)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	op, err := backoff.Retry(ctx, func() (*gooidc.Provider, error) {
		return gooidc.NewProvider(ctx, issuer)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", issuer, err)
	}
	return op, nil
}

// LogoutURL is the provider's end-session URL, if configured.
func (p *Provider) LogoutURL() string { return p.logoutURL }

// Begin builds the authorization URL. A login hint skips the account chooser.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}
	state, err := randomToken()
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri always comes from the client registration.
	opts := []oauth2.AuthCodeOption{gooidc.Nonce(nonce)}
	if in.LoginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", in.LoginHint))
	} else {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "select_account"))
	}
	if v := p.codeVerifier(state); v != "" {
		opts = append(opts, oauth2.S256ChallengeOption(v))
	}
	return p.oauth.AuthCodeURL(state, opts...), state, nonce, nil
}

// Exchange redeems the code and builds an identity from the verified ID
// token, falling back to the userinfo endpoint for missing claims.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	switch {
	case in.Code == "":
		return domainauth.Identity{}, invalidCredentials(errors.New("authorization code is required"))
	case in.State == "":
		return domainauth.Identity{}, invalidCredentials(errors.New("state is required"))
	case in.Nonce == "":
		return domainauth.Identity{}, invalidCredentials(errors.New("nonce is required"))
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	var opts []oauth2.AuthCodeOption
	if v := p.codeVerifier(in.State); v != "" {
		opts = append(opts, oauth2.VerifierOption(v))
	}
	token, err := p.oauth.Exchange(ctx, in.Code, opts...)
	if err != nil {
		return domainauth.Identity{}, classify(fmt.Errorf("exchange code for token: %w", err))
	}

	var (
		c     claims
		rawID string
	)
	if slices.Contains(p.oauth.Scopes, gooidc.ScopeOpenID) {
		if c, rawID, err = p.verifyIDToken(ctx, token, in.Nonce); err != nil {
			return domainauth.Identity{}, err
		}
	}
	if c.incomplete() {
		ui, uiErr := p.userInfo(ctx, token)
		if uiErr != nil {
			return domainauth.Identity{}, classify(fmt.Errorf("get user info: %w", uiErr))
		}
		c.fill(ui)
	}

	email := c.email()
	if email == "" {
		return domainauth.Identity{}, providerError(errors.New("no email claim"))
	}
	if !p.allowUnverified && c.EmailVerified != nil && !*c.EmailVerified {
		return domainauth.Identity{}, invalidCredentials(fmt.Errorf("email %s is not verified", email))
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(tokenTTL)
	}
	return domainauth.Identity{
		Email:       strings.ToLower(email),
		DisplayName: c.displayName(),
		PhotoURL:    c.Picture,
		Token:       rawID,
		ExpiresAt:   expiresAt,
	}, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, nonce string) (claims, string, error) {
	rawID, err := idTokenFrom(tok)
	if err != nil {
		return claims{}, "", providerError(err)
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return claims{}, "", invalidCredentials(fmt.Errorf("verify id_token: %w", err))
	}
	if idTok.Nonce != nonce {
		return claims{}, "", invalidCredentials(errors.New("invalid nonce"))
	}
	var c claims
	if err := idTok.Claims(&c); err != nil {
		return claims{}, "", providerError(fmt.Errorf("parse id_token claims: %w", err))
	}
	return c, rawID, nil
}

func (p *Provider) userInfo(ctx context.Context, tok *oauth2.Token) (claims, error) {
	ui, err := p.issuer.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return claims{}, err
	}
	var c claims
	if err := ui.Claims(&c); err != nil {
		return claims{}, fmt.Errorf("decode user info: %w", err)
	}
	return c, nil
}

// codeVerifier derives the PKCE verifier from state so nothing beyond the
// state cookie has to survive the redirect. Empty when PKCE is off.
func (p *Provider) codeVerifier(state string) string {
	if len(p.pkceKey) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, p.pkceKey)
	mac.Write([]byte(state))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func idTokenFrom(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", errors.New("missing id_token in token response")
	}
	return raw, nil
}

// randomToken returns 32 random bytes, base64url encoded.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
