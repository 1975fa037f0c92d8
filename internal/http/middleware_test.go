package httpx

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/observability/statsd"
	"github.com/decorhub/storefront/internal/service"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		snap       service.Snapshot
		err        error
		wantCode   int
		wantErr    string
		wantCalled bool
	}{
		{"admin admitted", signedInAs(domainauth.RoleAdmin), nil, http.StatusOK, "", true},
		{"user forbidden", signedInAs(domainauth.RoleUser), nil, http.StatusForbidden, "forbidden", false},
		{"signed out", service.Snapshot{Status: access.IdentitySignedOut}, nil, http.StatusUnauthorized, "unauthenticated", false},
		{"role pending", service.Snapshot{Status: access.IdentitySignedIn, RoleStatus: access.RolePending}, nil,
			http.StatusServiceUnavailable, "unresolved", false},
		{"role fetch failed", service.Snapshot{Status: access.IdentitySignedIn, RoleStatus: access.RoleFailed}, nil,
			http.StatusForbidden, "forbidden", false},
		{"authorizer error", service.Snapshot{}, apperrors.Upstream(errors.New("redis"), "session lookup"),
			http.StatusBadGateway, "upstream", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := newFakeAccess(tt.snap)
			fa.err = tt.err

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				snap, ok := SnapshotFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, domainauth.RoleAdmin, snap.Role)
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			RequireRole(fa, domainauth.RoleAdmin)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/roles/changed", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantErr != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantErr, body["error"])
			}
			if tt.wantCode == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("Hx-Request", "true")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http", entry["msg"])
	assert.Equal(t, "/about", entry["path"])
	assert.InDelta(t, float64(http.StatusTeapot), entry["status"], 0)
	assert.Equal(t, "htmx", entry["client"])
}

func TestRequestMetricsUsesMuxPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /services/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	rec := &statsd.Recorder{}
	var buf bytes.Buffer
	h := Logging(slog.New(slog.NewJSONHandler(&buf, nil)))(
		RequestMetrics(rec)(BrowserDetection()(recordRoute(mux))))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/services/42", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere/else", nil))

	counts := rec.Named("http.request")
	require.Len(t, counts, 2)
	assert.Equal(t, map[string]string{"method": "GET", "route": "GET /services/{id}", "status": "2xx"}, counts[0].Tags)
	assert.Equal(t, "unmatched", counts[1].Tags["route"])
	assert.Equal(t, "4xx", counts[1].Tags["status"])
	assert.Len(t, rec.Named("http.request_duration"), 2)
	assert.Contains(t, buf.String(), `"route":"GET /services/{id}"`)
}

func TestRequestMetricsNilSink(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := RequestMetrics(nil)(next)
	assert.NotNil(t, h)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("template exploded")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "template exploded")
	assert.Contains(t, buf.String(), "template exploded")
}

func TestIsSecureRequest(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, isSecureRequest(plain))

	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	assert.True(t, isSecureRequest(tlsReq))

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "http, HTTPS")
	assert.True(t, isSecureRequest(proxied))
}

func TestSessionIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, sessionIDFromRequest(req))

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "abc"})
	assert.Equal(t, "abc", sessionIDFromRequest(req))
}
