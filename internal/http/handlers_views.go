package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/decorhub/storefront/internal/domain/access"
	"github.com/decorhub/storefront/internal/domain/route"
	"github.com/decorhub/storefront/internal/service"
)

// Decider runs the route guard for one navigation attempt.
// *service.AccessService satisfies it.
type Decider interface {
	Decide(ctx context.Context, in service.DecideInput) (service.DecideResult, error)
}

// ViewHandlers renders every page path through the route guard.
type ViewHandlers struct {
	Access   Decider
	Renderer *TemplateRenderer
	Logger   *slog.Logger
}

// loginErrorMessages maps /login?error= codes to what the user sees.
//
//nolint:gochecknoglobals // static read-only lookup
var loginErrorMessages = map[string]string{
	loginErrInvalidCredentials: "We couldn't verify your sign-in. Please try again.",
	loginErrNetwork:            "We couldn't reach the sign-in service. Check your connection and try again.",
	loginErrProvider:           "The sign-in service returned an error. Please try again later.",
	loginErrInvalidState:       "Your sign-in attempt expired. Please start again.",
	loginErrCancelled:          "Sign-in was cancelled.",
}

func (h *ViewHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ServeHTTP resolves the request path, runs the guard and renders the outcome.
func (h *ViewHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.Access.Decide(ctx, service.DecideInput{
		Path:      r.URL.Path,
		Origin:    access.SafeOrigin(r.URL.RequestURI()),
		SessionID: sessionIDFromRequest(r),
	})
	if err != nil {
		if ctx.Err() != nil {
			// Navigated away or disconnected; nothing to render.
			h.logger().DebugContext(ctx, "navigation abandoned", "path", r.URL.Path)
			return
		}
		h.logger().ErrorContext(ctx, "access decision failed", "path", r.URL.Path, "error", err)
		h.render(w, r, http.StatusInternalServerError, PageMeta{View: ViewError, Shell: route.ShellPublic}, res)
		return
	}

	d := res.Decision
	switch d.Outcome {
	case access.OutcomeRedirect:
		redirect(w, r, d.RedirectTo)
	case access.OutcomeAllow:
		if res.Match.View == route.ViewLogin && res.Session.SignedIn() {
			redirect(w, r, access.OriginFromLoginQuery(r.URL.Query()))
			return
		}
		h.render(w, r, http.StatusOK, PageMeta{View: res.Match.View, Shell: res.Match.Shell}, res)
	case access.OutcomePending:
		w.Header().Set("Retry-After", strconv.Itoa(pendingRetrySeconds))
		w.Header().Set("Cache-Control", "no-store")
		h.render(w, r, http.StatusOK, PageMeta{View: ViewPending, Shell: res.Match.Shell}, res)
	case access.OutcomeForbidden:
		h.render(w, r, http.StatusForbidden, PageMeta{View: ViewForbidden, Shell: res.Match.Shell}, res)
	default:
		h.render(w, r, http.StatusNotFound, PageMeta{View: route.NotFoundView, Shell: route.ShellPublic}, res)
	}
}

func (h *ViewHandlers) render(w http.ResponseWriter, r *http.Request, status int, meta PageMeta, res service.DecideResult) {
	b := NewTemplateData(r, meta).
		WithSession(res.Session).
		WithParams(res.Match.Params).
		With("Outcome", string(res.Decision.Outcome)).
		With("Reason", string(res.Decision.Reason))
	if len(res.Navigation) > 0 {
		b.WithNavigation(res.Navigation, r.URL.Path)
	}

	switch meta.View {
	case ViewPending:
		b.With("RetryAfter", pendingRetrySeconds).With("PollURL", r.URL.RequestURI())
	case route.ViewLogin, route.ViewRegister:
		q := r.URL.Query()
		b.With("SignInURL", signInURL(access.OriginFromLoginQuery(q)))
		if msg, ok := loginErrorMessages[q.Get("error")]; ok {
			b.WithError(msg)
		}
	}

	if err := h.Renderer.Render(w, r, status, b.Build()); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// signInURL starts the provider flow and comes back to origin.
func signInURL(origin string) string {
	if origin == "" || origin == "/" {
		return "/auth/login"
	}
	return "/auth/login?" + url.Values{access.RedirectParam: {origin}}.Encode()
}
