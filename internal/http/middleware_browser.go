package httpx

import (
	"context"
	"net/http"
	"strings"
)

// ClientKind says who is on the other end of a request, which decides
// between HTML and JSON error bodies.
type ClientKind uint8

const (
	ClientBrowser ClientKind = iota
	ClientHTMX
	ClientAPI
	ClientAsset
)

func (k ClientKind) String() string {
	switch k {
	case ClientBrowser:
		return "browser"
	case ClientHTMX:
		return "htmx"
	case ClientAPI:
		return "api"
	case ClientAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// IsBrowser reports whether the client renders HTML.
func (k ClientKind) IsBrowser() bool {
	return k == ClientBrowser || k == ClientHTMX
}

// probePaths are hit by orchestrators and scrapers, never by people.
//
//nolint:gochecknoglobals // static read-only lookup
var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

type clientKindKey struct{}

// BrowserDetection classifies each request once and stores the result for
// ClientKindOf.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientKindKey{}, classifyClient(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientKindOf returns the stored classification, classifying on the spot
// when BrowserDetection did not run.
func ClientKindOf(r *http.Request) ClientKind {
	if k, ok := r.Context().Value(clientKindKey{}).(ClientKind); ok {
		return k
	}
	return classifyClient(r)
}

// IsBrowserRequest reports whether the request came from a page-rendering client.
func IsBrowserRequest(r *http.Request) bool {
	return ClientKindOf(r).IsBrowser()
}

func classifyClient(r *http.Request) ClientKind {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/static/"):
		return ClientAsset
	case strings.HasPrefix(path, "/api/"), probePaths[path]:
		return ClientAPI
	case IsHTMX(r):
		return ClientHTMX
	}
	accept := r.Header.Get("Accept")
	if accept == "" || strings.Contains(accept, "text/html") {
		return ClientBrowser
	}
	return ClientAPI
}
