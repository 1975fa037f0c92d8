package httpx

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	hxRequest        = "Hx-Request"
	hxHistoryRestore = "Hx-History-Restore-Request"
	hxRedirect       = "Hx-Redirect"
	hxPushURL        = "Hx-Push-Url"
	hxReswap         = "Hx-Reswap"
	hxTrigger        = "Hx-Trigger"

	// HeaderPageStatus carries the real status of a partial that was sent as
	// 200 so htmx would swap it.
	HeaderPageStatus = "X-Page-Status"
)

// IsHTMX reports whether the request was initiated by htmx.
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(hxRequest), "true")
}

// WantsPartial reports whether only the shell fragment should be rendered.
// History restores need the whole document.
func WantsPartial(r *http.Request) bool {
	return IsHTMX(r) && !strings.EqualFold(r.Header.Get(hxHistoryRestore), "true")
}

// HTMXResponse sets htmx response headers. Call before the status is written.
type HTMXResponse struct {
	w http.ResponseWriter
}

// HTMX wraps w for setting htmx response headers.
func HTMX(w http.ResponseWriter) *HTMXResponse {
	return &HTMXResponse{w: w}
}

// Redirect makes htmx navigate the whole page to url. htmx ignores headers
// on 3xx, so this writes an empty 200; return right after.
func (h *HTMXResponse) Redirect(url string) {
	h.w.Header().Set(hxRedirect, url)
	h.w.WriteHeader(http.StatusOK)
}

// PushURL records url in browser history for the swapped content.
func (h *HTMXResponse) PushURL(url string) *HTMXResponse {
	h.w.Header().Set(hxPushURL, url)
	return h
}

// Reswap overrides the element's hx-swap for this response.
func (h *HTMXResponse) Reswap(mode string) *HTMXResponse {
	h.w.Header().Set(hxReswap, mode)
	return h
}

// Trigger fires client-side events after the swap.
func (h *HTMXResponse) Trigger(events ...string) *HTMXResponse {
	if len(events) > 0 {
		h.w.Header().Set(hxTrigger, strings.Join(events, ", "))
	}
	return h
}

// swappableStatus returns the status to send for an htmx partial. htmx
// discards 4xx and 5xx bodies, so those go out as 200 with the real code in
// HeaderPageStatus and a page-status event.
func (h *HTMXResponse) swappableStatus(status int) int {
	if status < http.StatusBadRequest {
		return status
	}
	h.w.Header().Set(HeaderPageStatus, strconv.Itoa(status))
	h.Trigger("page-status")
	return http.StatusOK
}
