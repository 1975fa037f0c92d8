package httpx

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultCSRFCookieName = "csrf_token"
	// DefaultCSRFHeaderName is canonical so it matches http.Header lookups.
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFTokenLength is in bytes before encoding.
	DefaultCSRFTokenLength = 32

	csrfCookieMaxAge = 12 * 3600
)

// CSRFConfig configures CSRFProtection. Zero values take the defaults above.
type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
	CookieDomain  string
	TokenLength   int
	// TrustedOrigins are extra scheme://host[:port] origins allowed to send
	// state-changing requests. The request's own host is always allowed.
	TrustedOrigins []string
	Logger         *slog.Logger
}

type csrfGuard struct {
	cfg     CSRFConfig
	trusted map[string]bool
	logger  *slog.Logger
}

func newCSRFGuard(cfg CSRFConfig) *csrfGuard {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = cfg.CookieName
	}
	if cfg.TokenLength <= 0 {
		cfg.TokenLength = DefaultCSRFTokenLength
	}
	g := &csrfGuard{cfg: cfg, trusted: map[string]bool{}, logger: cfg.Logger}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	for _, o := range cfg.TrustedOrigins {
		if origin := normalizeOrigin(o); origin != "" {
			g.trusted[origin] = true
		}
	}
	return g
}

// CSRFProtection guards state-changing requests twice: cross-site requests
// are refused by Origin and Sec-Fetch-Site, and the rest must echo the
// double-submit cookie in the X-Csrf-Token header or the csrf_token field.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	g := newCSRFGuard(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := g.ensureToken(w, r)
			if err != nil {
				http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))

			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if reason := g.reject(r, token); reason != "" {
				g.logger.WarnContext(r.Context(), "csrf check failed",
					"reason", reason, "method", r.Method, "path", r.URL.Path)
				g.fail(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ensureToken returns the cookie token, minting and setting one if absent.
func (g *csrfGuard) ensureToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(g.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	token, err := newCSRFToken(g.cfg.TokenLength)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   g.cfg.CookieDomain,
		HttpOnly: false, // htmx copies it into the request header
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   csrfCookieMaxAge,
	})
	return token, nil
}

// reject returns why r fails the check, or "" when it passes.
func (g *csrfGuard) reject(r *http.Request, token string) string {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return "cross_site"
	}
	if origin := r.Header.Get("Origin"); origin != "" && !g.originAllowed(r, origin) {
		return "origin"
	}
	submitted := g.submittedToken(r)
	if submitted == "" {
		return "missing_token"
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
		return "token_mismatch"
	}
	return ""
}

func (g *csrfGuard) originAllowed(r *http.Request, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false // includes the opaque "null" origin
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return g.trusted[normalizeOrigin(origin)]
}

// submittedToken reads the header first. Forms are parsed only for form
// content types so JSON bodies are never consumed here.
func (g *csrfGuard) submittedToken(r *http.Request) string {
	if v := r.Header.Get(g.cfg.HeaderName); v != "" {
		return v
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return r.PostFormValue(g.cfg.FormFieldName)
	}
	return ""
}

func (g *csrfGuard) fail(w http.ResponseWriter, r *http.Request) {
	const msg = "CSRF token validation failed"
	if IsBrowserRequest(r) {
		http.Error(w, msg, http.StatusForbidden)
		return
	}
	WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "csrf", Message: msg})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// newCSRFToken fails closed; there is no predictable fallback.
func newCSRFToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf token generation failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type csrfTokenKey struct{}

// GetCSRFToken returns the token CSRFProtection stored on the request.
func GetCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}
