package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/observability/metrics"
	"github.com/decorhub/storefront/internal/observability/statsd"
	"github.com/decorhub/storefront/internal/service"
)

// SessionCookieName carries the opaque session identifier.
const SessionCookieName = "session_id"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, route := withRouteSlot(r)
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", *route),
				slog.Int("status", ww.status),
				slog.String("client", ClientKindOf(r).String()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// RequestMetrics returns a middleware that emits request count and latency
// tagged with the matched mux pattern.
func RequestMetrics(sink statsd.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if sink == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, route := withRouteSlot(r)
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			metrics.EmitHTTPRequest(sink, metrics.HTTPRequestMetric{
				Method:   r.Method,
				Route:    *route,
				Status:   ww.status,
				Duration: time.Since(start),
			})
		})
	}
}

type routeSlotKey struct{}

// withRouteSlot gives the request a slot that recordRoute fills with the
// pattern the mux matched. Outer middleware reads it after the handler returns.
func withRouteSlot(r *http.Request) (*http.Request, *string) {
	if slot, ok := r.Context().Value(routeSlotKey{}).(*string); ok {
		return r, slot
	}
	slot := new(string)
	return r.WithContext(context.WithValue(r.Context(), routeSlotKey{}, slot)), slot
}

// recordRoute wraps a ServeMux; the mux sets r.Pattern on the request it is
// handed, which is visible here once it returns.
func recordRoute(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if slot, ok := r.Context().Value(routeSlotKey{}).(*string); ok {
			*slot = r.Pattern
		}
	})
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush passes through so streamed responses keep working behind Logging.
func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Authorizer re-checks a policy for a session on the server.
// *service.AccessService satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, sessionID string, policy access.Policy) (service.Snapshot, access.Decision, error)
}

// RequireRole returns a middleware that admits only sessions whose resolved
// role is one of roles. It answers in JSON: 401 when signed out, 503 with
// Retry-After while identity or role is still resolving, 403 otherwise.
func RequireRole(authz Authorizer, roles ...domainauth.Role) func(http.Handler) http.Handler {
	policy := access.RequireRoles(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, decision, err := authz.Authorize(r.Context(), sessionIDFromRequest(r), policy)
			if err != nil {
				if r.Context().Err() != nil {
					return
				}
				WriteAppError(w, err)
				return
			}

			switch decision.Outcome {
			case access.OutcomeAllow:
				ctx := SetSnapshotInContext(r.Context(), snap)
				next.ServeHTTP(w, r.WithContext(ctx))
			case access.OutcomeRedirect:
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: string(access.ReasonUnauthenticated),
					Message: "authentication required",
				})
			case access.OutcomePending:
				w.Header().Set("Retry-After", strconv.Itoa(pendingRetrySeconds))
				WriteError(w, ErrorParams{
					Code:    http.StatusServiceUnavailable,
					ErrCode: string(access.ReasonUnresolved),
					Message: "identity or role is still being resolved",
				})
			default:
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: string(access.ReasonForbidden),
					Message: "insufficient permissions",
				})
			}
		})
	}
}

// sessionIDFromRequest returns the session cookie value, or "" when absent.
func sessionIDFromRequest(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// redirect sends the browser to target. htmx requests get Hx-Redirect so the
// whole page navigates instead of swapping the login view into a fragment.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r) {
		HTMX(w).Redirect(target)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// isSecureRequest reports whether the request reached us over TLS, directly or via a proxy.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
