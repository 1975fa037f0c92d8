package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the identity provider.
type AuthMode string

const (
	// AuthModeOAuth signs shoppers in through an OpenID Connect provider.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock signs in a configured identity without any provider. Never
	// enable it in production.
	AuthModeMock AuthMode = "mock"
)

func (a *AuthMode) UnmarshalText(text []byte) error {
	switch m := AuthMode(strings.ToLower(strings.TrimSpace(string(text)))); m {
	case AuthModeOAuth, AuthModeMock:
		*a = m
		return nil
	default:
		return fmt.Errorf("auth mode %q: want %q or %q", text, AuthModeOAuth, AuthModeMock)
	}
}

// OAuthConfig is read from OAUTH_*.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"storefront"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:"storefront"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// LogoutURL is the provider's end-session endpoint, if any.
	LogoutURL string `env:"LOGOUT_URL"`

	PKCE                 bool `env:"PKCE"                   envDefault:"true"`
	AllowUnverifiedEmail bool `env:"ALLOW_UNVERIFIED_EMAIL"`
	DiscoveryAttempts    int  `env:"DISCOVERY_ATTEMPTS"     envDefault:"3"`
}

// Complete reports whether the provider can be reached and authenticated to.
func (o OAuthConfig) Complete() bool {
	return o.DiscoveryURL != "" && o.ClientID != "" && o.ClientSecret != ""
}

// DevAuthConfig is read from DEV_AUTH_* and only used in mock mode.
type DevAuthConfig struct {
	Email       string `env:"EMAIL"        envDefault:"dev@example.com"`
	DisplayName string `env:"DISPLAY_NAME"`
	PhotoURL    string `env:"PHOTO_URL"`
	// Accounts are extra identities picked with ?login_hint=, each written
	// "email" or "email=Display Name" and separated by ';'.
	Accounts []string `env:"ACCOUNTS" envSeparator:";"`
}

type AuthConfig struct {
	Mode    AuthMode      `env:"AUTH_MODE" envDefault:"oauth"`
	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// SessionTTL caps session lifetime when the provider sets no expiry.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"8h"`
}

const minSessionTTL = time.Minute

func (a *AuthConfig) Sanitize() {
	a.OAuth.DiscoveryURL = strings.TrimSpace(a.OAuth.DiscoveryURL)
	a.OAuth.ClientID = strings.TrimSpace(a.OAuth.ClientID)
	if a.OAuth.DiscoveryAttempts < 1 {
		a.OAuth.DiscoveryAttempts = 1
	}
	a.DevAuth.Email = strings.ToLower(strings.TrimSpace(a.DevAuth.Email))
	a.SessionTTL = max(a.SessionTTL, minSessionTTL)
}
