package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	corefuncs "github.com/decorhub/storefront/internal/http/templates/core"
)

var templatePatterns = []string{"*.tmpl", "shells/*.tmpl", "views/*.tmpl"}

// TemplateRenderer renders the page layout or, for htmx navigations, the
// content block alone.
type TemplateRenderer struct {
	fsys   fs.FS
	reload bool
	logger *slog.Logger

	t    *template.Template
	bufs sync.Pool
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS // required
	// Reload re-parses templates on every render so edits on disk show up
	// without a restart. Dev mode only.
	Reload bool
	Logger *slog.Logger
}

// NewTemplateRenderer parses the templates once up front so syntax errors
// fail startup, even when Reload is set.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &TemplateRenderer{
		fsys:   cfg.TemplateFS,
		reload: cfg.Reload,
		logger: logger,
		bufs:   sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}
	t, err := r.parse()
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, err
	}
	r.t = t
	return r, nil
}

func (r *TemplateRenderer) parse() (*template.Template, error) {
	var t *template.Template
	funcs := corefuncs.Funcs(corefuncs.Deps{Template: &t})
	parsed, err := template.New("root").Funcs(funcs).ParseFS(r.fsys, templatePatterns...)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	t = parsed
	return t, nil
}

func (r *TemplateRenderer) templates() (*template.Template, error) {
	if !r.reload {
		return r.t, nil
	}
	return r.parse()
}

// Render writes data with the given status. htmx navigations get only the
// content area, with error statuses made swappable; everything else gets the
// full layout.
func (r *TemplateRenderer) Render(w http.ResponseWriter, req *http.Request, status int, data any) error {
	if WantsPartial(req) {
		hx := HTMX(w)
		if status >= http.StatusBadRequest {
			// Keep the denied address in the bar.
			hx.PushURL(req.URL.RequestURI())
		}
		return r.execute(w, "content", hx.swappableStatus(status), data)
	}
	return r.execute(w, "layout", status, data)
}

// execute renders into a pooled buffer first so a template error never
// leaves a half-written page behind.
func (r *TemplateRenderer) execute(w http.ResponseWriter, name string, status int, data any) error {
	t, err := r.templates()
	if err != nil {
		r.logger.Error("template reload failed", slog.Any("error", err))
		return err
	}

	buf, _ := r.bufs.Get().(*bytes.Buffer)
	buf.Reset()
	defer r.bufs.Put(buf)

	if err := t.ExecuteTemplate(buf, name, data); err != nil {
		r.logger.Error("template execution failed", slog.String("template", name), slog.Any("error", err))
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Warn("write rendered template", slog.String("template", name), slog.Any("error", err))
		return err
	}
	return nil
}
