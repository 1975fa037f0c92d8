package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/domain/route"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/service"
)

const (
	oauthStateCookie        = "oauth_state"
	oauthNonceCookie        = "oauth_nonce"
	postLoginRedirectCookie = "post_login_redirect"
	oauthCookieMaxAge       = 600
	signedOutPath           = "/auth/signed-out"
)

// Codes carried by /login?error= after a failed sign-in.
const (
	loginErrInvalidCredentials = "invalid_credentials"
	loginErrNetwork            = "network"
	loginErrProvider           = "provider_error"
	loginErrInvalidState       = "invalid_state"
	loginErrCancelled          = "cancelled"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, in service.BeginLoginInput) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	RevokeUser(ctx context.Context, email string) (int, error)
}

// SessionReader reports the live state of a session.
// *service.AccessService satisfies it.
type SessionReader interface {
	Session(ctx context.Context, sessionID string) (service.Snapshot, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	Sessions     SessionReader
	Renderer     *TemplateRenderer
	CookieDomain string
	// ProviderLogoutURL, when set, is offered on the signed-out page.
	ProviderLogoutURL string
	Logger            *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Login starts the provider flow.
// GET /auth/login?redirect_uri=<origin>[&login_hint=<email>].
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin := access.OriginFromLoginQuery(q)

	result, err := h.Svc.BeginLogin(r.Context(), service.BeginLoginInput{
		RedirectURL: origin,
		LoginHint:   q.Get("login_hint"),
	})
	if err != nil {
		h.failLogin(w, r, origin, loginErrProvider, err)
		return
	}

	h.setCookie(w, r, oauthStateCookie, result.State, oauthCookieMaxAge)
	h.setCookie(w, r, oauthNonceCookie, result.Nonce, oauthCookieMaxAge)
	h.setCookie(w, r, postLoginRedirectCookie, origin, oauthCookieMaxAge)

	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback completes the provider flow and resumes the remembered origin.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin := h.takePostLoginRedirect(w, r)

	if providerErr := q.Get("error"); providerErr != "" {
		code := loginErrProvider
		if providerErr == "access_denied" {
			code = loginErrCancelled
		}
		h.failLogin(w, r, origin, code, errors.New("provider returned "+providerErr))
		return
	}

	code, state := q.Get("code"), q.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if code == "" || state == "" || err != nil || stateCookie.Value != state {
		h.failLogin(w, r, origin, loginErrInvalidState, errors.New("missing code or state mismatch"))
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		h.failLogin(w, r, origin, loginErrInvalidState, errors.New("missing nonce cookie"))
		return
	}

	result, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		h.failLogin(w, r, origin, loginErrorCode(err), err)
		return
	}

	// The new cookie replaces any previous session, which would otherwise
	// stay live in the store until it expires.
	if old := sessionIDFromRequest(r); old != "" && old != result.Session.ID {
		if err := h.Svc.Logout(r.Context(), old); err != nil {
			h.logger().WarnContext(r.Context(), "end replaced session failed", "error", err)
		}
	}
	h.clearCookie(w, r, oauthStateCookie)
	h.clearCookie(w, r, oauthNonceCookie)
	h.setSessionCookie(w, r, result.Session)
	h.logger().InfoContext(r.Context(), "signed in", "email", result.Session.Email)

	http.Redirect(w, r, origin, http.StatusFound)
}

// loginErrorCode maps a sign-in failure onto a /login?error= code.
func loginErrorCode(err error) string {
	switch domainauth.AuthErrorKindOf(err) {
	case domainauth.AuthErrInvalidCredentials:
		return loginErrInvalidCredentials
	case domainauth.AuthErrNetwork:
		return loginErrNetwork
	default:
		return loginErrProvider
	}
}

// failLogin sends the user back to the login view with an error code and the
// origin they were headed to, so retrying resumes the same navigation.
func (h *AuthHandlers) failLogin(w http.ResponseWriter, r *http.Request, origin, code string, err error) {
	h.logger().WarnContext(r.Context(), "sign-in failed", "error_code", code, "error", err)
	h.clearCookie(w, r, oauthStateCookie)
	h.clearCookie(w, r, oauthNonceCookie)

	q := url.Values{"error": {code}}
	if origin != "/" {
		q.Set(access.RedirectParam, origin)
	}
	http.Redirect(w, r, access.LoginPath+"?"+q.Encode(), http.StatusSeeOther)
}

// Logout ends the session.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := sessionIDFromRequest(r); sid != "" {
		if err := h.Svc.Logout(r.Context(), sid); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	h.clearCookie(w, r, SessionCookieName)

	origin := r.PostFormValue(access.RedirectParam)
	if origin == "" {
		origin = r.URL.Query().Get(access.RedirectParam)
	}
	target := signedOutPath + "?" + url.Values{access.RedirectParam: {access.SafeOrigin(origin)}}.Encode()

	isAJAX := strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
	switch {
	case isAJAX:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "redirect_to": target})
	case IsHTMX(r):
		HTMX(w).Redirect(target)
	default:
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// SignedOut renders the confirmation page after logout.
// GET /auth/signed-out?redirect_uri=<origin>.
func (h *AuthHandlers) SignedOut(w http.ResponseWriter, r *http.Request) {
	origin := access.OriginFromLoginQuery(r.URL.Query())
	data := NewTemplateData(r, PageMeta{View: ViewSignedOut, Shell: route.ShellAuth}).
		With("SignInURL", access.LoginURL(origin)).
		With("ProviderLogoutURL", h.ProviderLogoutURL).
		Build()
	if err := h.Renderer.Render(w, r, http.StatusOK, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type statusUser struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type statusResponse struct {
	Authenticated bool        `json:"authenticated"`
	Status        string      `json:"status"`
	User          *statusUser `json:"user,omitempty"`
	Role          string      `json:"role,omitempty"`
	RoleStatus    string      `json:"role_status,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

// Status reports the identity and role state of the caller's session.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Sessions.Session(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		WriteAppError(w, err)
		return
	}

	resp := statusResponse{Status: snap.Status.String()}
	switch snap.Status {
	case access.IdentitySignedOut:
		if sessionIDFromRequest(r) != "" {
			h.clearCookie(w, r, SessionCookieName)
		}
	case access.IdentitySignedIn:
		exp := snap.Identity.ExpiresAt
		resp.Authenticated = true
		resp.User = &statusUser{
			Email:       snap.Identity.Email,
			DisplayName: snap.Identity.DisplayName,
			PhotoURL:    snap.Identity.PhotoURL,
		}
		resp.RoleStatus = snap.RoleStatus.String()
		if snap.RoleStatus == access.RoleResolved {
			resp.Role = snap.Role.String()
		}
		if !exp.IsZero() {
			resp.ExpiresAt = &exp
		}
	default:
		w.Header().Set("Cache-Control", "no-store")
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandlers) setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clearCookie mirrors the attributes used when setting so browsers drop it.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	h.setCookie(w, r, SessionCookieName, s.ID, maxAge)
}

// takePostLoginRedirect returns the remembered origin and clears its cookie.
func (h *AuthHandlers) takePostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(postLoginRedirectCookie)
	if err != nil {
		return "/"
	}
	h.clearCookie(w, r, postLoginRedirectCookie)
	return access.SafeOrigin(c.Value)
}

type revokeRequest struct {
	Email string `json:"email"`
}

// RevokeSessions signs an account out on every instance.
// POST /api/sessions/revoke {"email": "..."}.
func (h *AuthHandlers) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		WriteAppError(w, apperrors.ValidationField("email", "must be an email address"))
		return
	}

	n, err := h.Svc.RevokeUser(r.Context(), email)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "session revocation failed", "email", email, "error", err)
		WriteAppError(w, apperrors.Upstream(err, "revoke sessions"))
		return
	}

	actor := ""
	if snap, ok := SnapshotFromContext(r.Context()); ok {
		actor = snap.Identity.Email
	}
	h.logger().InfoContext(r.Context(), "sessions revoked", "email", email, "sessions", n, "actor", actor)
	WriteJSON(w, http.StatusOK, map[string]any{"email": email, "revoked": n})
}
