package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWantsPartial(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"plain navigation", nil, false},
		{"htmx swap", map[string]string{"Hx-Request": "true"}, true},
		{"htmx header case", map[string]string{"Hx-Request": "TRUE"}, true},
		{"history restore", map[string]string{"Hx-Request": "true", "Hx-History-Restore-Request": "true"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/dashboard/profile", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, WantsPartial(r))
		})
	}
}

func TestHTMXResponse(t *testing.T) {
	t.Run("redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HTMX(rec).Redirect("/login?redirect_uri=%2Fdashboard")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/login?redirect_uri=%2Fdashboard", rec.Header().Get("Hx-Redirect"))
		assert.Zero(t, rec.Body.Len())
	})

	t.Run("headers chain", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HTMX(rec).PushURL("/dashboard/bookings").Reswap("outerHTML").Trigger("a", "b").Redirect("/login")

		assert.Equal(t, "/dashboard/bookings", rec.Header().Get("Hx-Push-Url"))
		assert.Equal(t, "outerHTML", rec.Header().Get("Hx-Reswap"))
		assert.Equal(t, "a, b", rec.Header().Get("Hx-Trigger"))
		assert.Equal(t, "/login", rec.Header().Get("Hx-Redirect"))
	})

	t.Run("empty trigger", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HTMX(rec).Trigger()
		assert.Empty(t, rec.Header().Get("Hx-Trigger"))
	})
}

func TestSwappableStatus(t *testing.T) {
	tests := []struct {
		status     int
		wantStatus int
		wantHeader string
	}{
		{http.StatusOK, http.StatusOK, ""},
		{http.StatusForbidden, http.StatusOK, "403"},
		{http.StatusNotFound, http.StatusOK, "404"},
		{http.StatusInternalServerError, http.StatusOK, "500"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			rec := httptest.NewRecorder()
			assert.Equal(t, tt.wantStatus, HTMX(rec).swappableStatus(tt.status))
			assert.Equal(t, tt.wantHeader, rec.Header().Get(HeaderPageStatus))
			if tt.wantHeader != "" {
				assert.Equal(t, "page-status", rec.Header().Get("Hx-Trigger"))
			}
		})
	}
}
