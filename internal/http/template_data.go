package httpx

import (
	"net/http"
	"time"

	"github.com/decorhub/storefront/internal/domain/route"
	"github.com/decorhub/storefront/internal/domain/shell"
	corefuncs "github.com/decorhub/storefront/internal/http/templates/core"
	"github.com/decorhub/storefront/internal/service"
)

// PageMeta contains metadata for page rendering.
type PageMeta struct {
	View  string
	Shell route.Shell
	// Title defaults to TitleFor(View).
	Title string
}

// ViewUser is the signed-in identity as shown in the page chrome.
type ViewUser struct {
	Email       string
	DisplayName string
	PhotoURL    string
	Initials    string
	Role        string
	ExpiresAt   time.Time
}

// TemplateDataBuilder provides a fluent API for building template data maps.
type TemplateDataBuilder struct {
	data map[string]any
}

// NewTemplateData creates a new TemplateDataBuilder initialized with basePageData.
func NewTemplateData(r *http.Request, meta PageMeta) *TemplateDataBuilder {
	return &TemplateDataBuilder{data: basePageData(r, meta)}
}

func basePageData(r *http.Request, meta PageMeta) map[string]any {
	title := meta.Title
	if title == "" {
		title = TitleFor(meta.View)
	}
	sh := meta.Shell
	if !sh.Valid() {
		sh = route.ShellPublic
	}
	data := map[string]any{
		"Title":    title,
		"View":     meta.View,
		"Shell":    string(sh),
		"Path":     r.URL.Path,
		"SignedIn": false,
	}
	if token := GetCSRFToken(r); token != "" {
		data["CSRFToken"] = token
	}
	return data
}

// WithSession exposes the caller's identity and role status to the chrome.
func (b *TemplateDataBuilder) WithSession(snap service.Snapshot) *TemplateDataBuilder {
	b.data["IdentityStatus"] = snap.Status.String()
	b.data["RoleStatus"] = snap.RoleStatus.String()
	if !snap.SignedIn() {
		return b
	}
	name := snap.Identity.DisplayName
	if name == "" {
		name = snap.Identity.Email
	}
	b.data["SignedIn"] = true
	b.data["User"] = ViewUser{
		Email:       snap.Identity.Email,
		DisplayName: name,
		PhotoURL:    snap.Identity.PhotoURL,
		Initials:    corefuncs.Initials(name),
		Role:        snap.Role.String(),
		ExpiresAt:   snap.Identity.ExpiresAt,
	}
	return b
}

// WithNavigation sets the dashboard sidebar and marks the entry for path.
func (b *TemplateDataBuilder) WithNavigation(items []shell.NavItem, path string) *TemplateDataBuilder {
	b.data["Nav"] = items
	b.data["ActiveNav"] = shell.Active(items, path)
	return b
}

// WithParams exposes captured path parameters.
func (b *TemplateDataBuilder) WithParams(params map[string]string) *TemplateDataBuilder {
	if len(params) > 0 {
		b.data["Params"] = params
	}
	return b
}

// WithError sets a general error message.
func (b *TemplateDataBuilder) WithError(msg string) *TemplateDataBuilder {
	b.data["Error"] = true
	b.data["ErrorMessage"] = msg
	return b
}

// With adds a custom field to the template data.
func (b *TemplateDataBuilder) With(key string, value any) *TemplateDataBuilder {
	b.data[key] = value
	return b
}

// Build returns the final template data map.
func (b *TemplateDataBuilder) Build() map[string]any {
	return b.data
}
