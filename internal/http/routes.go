package httpx

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/decorhub/storefront"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/service"
)

// AccessServiceInterface is everything the router needs from the access service.
type AccessServiceInterface interface {
	AccessAPI
	Authorizer
	SessionReader
}

var _ AccessServiceInterface = (*service.AccessService)(nil)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Access AccessServiceInterface
	// Auth is optional; without it the sign-in endpoints are not mounted.
	Auth AuthServiceInterface
	// Renderer is built from the embedded or on-disk templates when nil.
	Renderer     *TemplateRenderer
	CookieDomain string
	// TrustedOrigins may send state-changing requests besides the request host.
	TrustedOrigins    []string
	ProviderLogoutURL string
	HealthChecks      map[string]HealthCheck
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// IsDev serves templates and static files from disk.
	IsDev bool
	// Logger receives template and HTTP errors (optional).
	Logger *slog.Logger
}

// NewRouter creates the HTTP router. Every page path is served by the
// guarded view dispatcher; auth, API and static routes are mounted beside it.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Access == nil {
		return nil, errors.New("access service is required")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	renderer := services.Renderer
	if renderer == nil {
		templateFS, err := templateFS(services.IsDev)
		if err != nil {
			return nil, err
		}
		renderer, err = NewTemplateRenderer(TemplateRendererConfig{
			TemplateFS: templateFS,
			Reload:     services.IsDev,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build template renderer: %w", err)
		}
	}

	csrf := CSRFProtection(CSRFConfig{
		CookieDomain:   services.CookieDomain,
		TrustedOrigins: services.TrustedOrigins,
		Logger:         logger,
	})
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.HealthChecks))
	if services.MetricsHandler != nil {
		mux.Handle("GET /metrics", services.MetricsHandler)
	}

	static, err := staticHandler(services.IsDev)
	if err != nil {
		return nil, err
	}
	mux.Handle("GET /static/", static)

	if services.Auth != nil {
		authHandlers := &AuthHandlers{
			Svc:               services.Auth,
			Sessions:          services.Access,
			Renderer:          renderer,
			CookieDomain:      services.CookieDomain,
			ProviderLogoutURL: services.ProviderLogoutURL,
			Logger:            logger,
		}
		registerAuthRoutes(mux, csrf, authHandlers)
		mux.Handle("POST /api/sessions/revoke",
			csrf(RequireRole(services.Access, domainauth.RoleAdmin)(http.HandlerFunc(authHandlers.RevokeSessions))))
	}

	api := &AccessHandlers{Access: services.Access, Logger: logger}
	mux.Handle("GET /api/access", csrf(http.HandlerFunc(api.Decide)))
	mux.Handle("POST /api/roles/changed",
		csrf(RequireRole(services.Access, domainauth.RoleAdmin)(http.HandlerFunc(api.RoleChanged))))

	mux.Handle("GET /", csrf(&ViewHandlers{Access: services.Access, Renderer: renderer, Logger: logger}))

	return BrowserDetection()(recordRoute(mux)), nil
}

func registerAuthRoutes(mux *http.ServeMux, csrf func(http.Handler) http.Handler, h *AuthHandlers) {
	// Login and callback are reached by top-level navigation from the IdP and
	// carry their own state cookie.
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.Handle("GET /auth/signed-out", csrf(http.HandlerFunc(h.SignedOut)))
	mux.Handle("POST /auth/logout", csrf(http.HandlerFunc(h.Logout)))
}

// templateFS reads templates from disk in dev mode for hot reloading and
// from the embedded copy otherwise.
func templateFS(isDev bool) (fs.FS, error) {
	if isDev {
		return os.DirFS(TemplatePathFromRoot), nil
	}
	sub, err := fs.Sub(storefront.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		return nil, fmt.Errorf("template sub-filesystem: %w", err)
	}
	return sub, nil
}

// staticHandler serves /static/* from disk in dev mode and from the embedded
// copy otherwise.
func staticHandler(isDev bool) (http.Handler, error) {
	if isDev {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(StaticPathFromRoot)))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			fileServer.ServeHTTP(w, r)
		}), nil
	}
	sub, err := fs.Sub(storefront.StaticFS, StaticPathFromRoot)
	if err != nil {
		return nil, fmt.Errorf("static sub-filesystem: %w", err)
	}
	fileServer := http.StripPrefix("/static/", http.FileServerFS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	}), nil
}
