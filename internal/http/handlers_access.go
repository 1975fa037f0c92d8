package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/decorhub/storefront/internal/domain/access"
	"github.com/decorhub/storefront/internal/domain/shell"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/service"
)

// AccessAPI is what the JSON access endpoints need.
// *service.AccessService satisfies it.
type AccessAPI interface {
	Decider
	RoleChanged(ctx context.Context, email string) error
}

// AccessHandlers expose the guard to client-side navigation and to the
// role administration tooling.
type AccessHandlers struct {
	Access AccessAPI
	Logger *slog.Logger
}

func (h *AccessHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type accessIdentity struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type accessResponse struct {
	access.Decision
	View           string            `json:"view"`
	Shell          string            `json:"shell"`
	Params         map[string]string `json:"params,omitempty"`
	IdentityStatus string            `json:"identity_status"`
	Identity       *accessIdentity   `json:"identity,omitempty"`
	Role           string            `json:"role,omitempty"`
	RoleStatus     string            `json:"role_status"`
	Navigation     []shell.NavItem   `json:"navigation,omitempty"`
}

// Decide answers what navigating to path would render.
// GET /api/access?path=/dashboard/admin.
func (h *AccessHandlers) Decide(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" || !strings.HasPrefix(raw, "/") {
		WriteAppError(w, apperrors.ValidationField("path", "must be an absolute path"))
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		WriteAppError(w, apperrors.ValidationField("path", "malformed"))
		return
	}

	u.Path, u.RawPath = cleanPath(u.Path), ""

	res, err := h.Access.Decide(r.Context(), service.DecideInput{
		Path:      u.Path,
		Origin:    access.SafeOrigin(u.RequestURI()),
		SessionID: sessionIDFromRequest(r),
	})
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger().ErrorContext(r.Context(), "access decision failed", "path", u.Path, "error", err)
		WriteAppError(w, err)
		return
	}

	if res.Decision.Outcome == access.OutcomePending {
		w.Header().Set("Retry-After", strconv.Itoa(pendingRetrySeconds))
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, toAccessResponse(res))
}

// cleanPath resolves dot segments and duplicate slashes the way ServeMux does
// for page requests, keeping a trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean(p)
	if p[len(p)-1] == '/' && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func toAccessResponse(res service.DecideResult) accessResponse {
	out := accessResponse{
		Decision:       res.Decision,
		View:           res.Match.View,
		Shell:          string(res.Match.Shell),
		Params:         res.Match.Params,
		IdentityStatus: res.Session.Status.String(),
		RoleStatus:     res.Session.RoleStatus.String(),
		Navigation:     res.Navigation,
	}
	if res.Session.SignedIn() {
		id := res.Session.Identity
		out.Identity = &accessIdentity{Email: id.Email, DisplayName: id.DisplayName, PhotoURL: id.PhotoURL}
	}
	if res.Session.RoleStatus == access.RoleResolved {
		out.Role = res.Session.Role.String()
	}
	return out
}

type roleChangedRequest struct {
	Email string `json:"email"`
}

// RoleChanged tells every instance that an identity's role changed so live
// sessions re-fetch it.
// POST /api/roles/changed {"email": "..."}.
func (h *AccessHandlers) RoleChanged(w http.ResponseWriter, r *http.Request) {
	var req roleChangedRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		WriteAppError(w, apperrors.ValidationField("email", "must be an email address"))
		return
	}

	if err := h.Access.RoleChanged(r.Context(), email); err != nil {
		h.logger().ErrorContext(r.Context(), "role change announcement failed", "error", err)
		WriteAppError(w, apperrors.Upstream(err, "announce role change"))
		return
	}

	actor := ""
	if snap, ok := SnapshotFromContext(r.Context()); ok {
		actor = snap.Identity.Email
	}
	h.logger().InfoContext(r.Context(), "role change announced", "email", email, "actor", actor)
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
