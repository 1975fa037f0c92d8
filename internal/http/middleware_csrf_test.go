package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfHandler(cfg CSRFConfig) http.Handler {
	return CSRFProtection(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func csrfCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	resp := w.Result()
	defer resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCSRFCookieName {
			return c
		}
	}
	return nil
}

func issueCSRFToken(t *testing.T, h http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	c := csrfCookieFrom(t, w)
	require.NotNil(t, c, "csrf cookie not set")
	require.NotEmpty(t, c.Value)
	return c.Value
}

func TestCSRFProtection_SafeMethodsExempt(t *testing.T) {
	h := csrfHandler(CSRFConfig{})
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(method, "/dashboard", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestCSRFProtection_PostWithoutToken(t *testing.T) {
	h := csrfHandler(CSRFConfig{})

	t.Run("browser form", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Accept", "text/html")
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "CSRF token validation failed")
	})

	t.Run("api answers json", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/roles/changed", strings.NewReader(`{"email":"a@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusForbidden, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "csrf", body["error"])
	})
}

func TestCSRFProtection_ValidTokens(t *testing.T) {
	h := csrfHandler(CSRFConfig{})
	token := issueCSRFToken(t, h)

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/roles/changed", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(DefaultCSRFHeaderName, token)
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("form field", func(t *testing.T) {
		form := url.Values{DefaultCSRFCookieName: {token}}
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("json body field is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/roles/changed", strings.NewReader(`{"csrf_token":"`+token+`"}`))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCSRFProtection_MismatchedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "cookie-token"})
	req.Header.Set(DefaultCSRFHeaderName, "different-token")
	w := httptest.NewRecorder()
	csrfHandler(CSRFConfig{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCSRFProtection_TokenInContext(t *testing.T) {
	var captured string
	h := CSRFProtection(CSRFConfig{})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = GetCSRFToken(r)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	c := csrfCookieFrom(t, w)
	require.NotNil(t, c)
	assert.Equal(t, c.Value, captured)
}

func TestCSRFProtection_CookieAttributes(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		forwarded  string
		wantSecure bool
	}{
		{"https", "https://decorhub.example/", "", true},
		{"forwarded https", "http://decorhub.example/", "http, https", true},
		{"plain http", "http://decorhub.example/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-Proto", tt.forwarded)
			}
			w := httptest.NewRecorder()
			csrfHandler(CSRFConfig{CookieDomain: "decorhub.example"}).ServeHTTP(w, req)

			c := csrfCookieFrom(t, w)
			require.NotNil(t, c)
			assert.Equal(t, tt.wantSecure, c.Secure)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
			assert.False(t, c.HttpOnly)
			assert.Equal(t, "decorhub.example", c.Domain)
			assert.Equal(t, "/", c.Path)
		})
	}
}

func TestCSRFProtection_CookieNotReissued(t *testing.T) {
	h := csrfHandler(CSRFConfig{})
	token := issueCSRFToken(t, h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Values("Set-Cookie"))
}

func TestCSRFProtection_Origin(t *testing.T) {
	h := csrfHandler(CSRFConfig{TrustedOrigins: []string{"https://Admin.DecorHub.example/"}})
	const token = "origin-token"

	tests := []struct {
		name     string
		origin   string
		fetch    string
		wantCode int
	}{
		{"no origin", "", "", http.StatusOK},
		{"same host", "http://example.com", "same-origin", http.StatusOK},
		{"trusted origin", "https://admin.decorhub.example", "same-site", http.StatusOK},
		{"foreign origin", "https://evil.example", "", http.StatusForbidden},
		{"null origin", "null", "", http.StatusForbidden},
		{"cross site fetch", "", "cross-site", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/roles/changed", strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(DefaultCSRFHeaderName, token)
			req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.fetch != "" {
				req.Header.Set("Sec-Fetch-Site", tt.fetch)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestCSRFGuard_Reasons(t *testing.T) {
	g := newCSRFGuard(CSRFConfig{})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, "missing_token", g.reject(req, "tok"))

	req.Header.Set(DefaultCSRFHeaderName, "other")
	assert.Equal(t, "token_mismatch", g.reject(req, "tok"))

	req.Header.Set(DefaultCSRFHeaderName, "tok")
	assert.Empty(t, g.reject(req, "tok"))

	req.Header.Set("Origin", "https://elsewhere.example")
	assert.Equal(t, "origin", g.reject(req, "tok"))
}

func TestNormalizeOrigin(t *testing.T) {
	assert.Equal(t, "https://shop.example:8443", normalizeOrigin(" HTTPS://Shop.Example:8443/path "))
	assert.Empty(t, normalizeOrigin("shop.example"))
	assert.Empty(t, normalizeOrigin(""))
}
