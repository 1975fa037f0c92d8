package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"strings"
	"time"
	"unicode"
)

// PlaceholderView is rendered for views that have no template of their own.
const PlaceholderView = "view-placeholder"

// Deps holds dependencies for constructing the core template func map.
type Deps struct {
	Template **template.Template
}

// Funcs returns a template.FuncMap containing helpers that are broadly useful across templates.
func Funcs(deps Deps) template.FuncMap {
	funcs := template.FuncMap{
		"friendlyTime": friendlyTime,
		"initials":     Initials,
		"truncateText": TruncateText,
		"contains":     strings.Contains,
	}

	addRenderFuncs(funcs, deps)
	return funcs
}

func addRenderFuncs(funcs template.FuncMap, deps Deps) {
	lookup := func(name, fallback string) (*template.Template, error) {
		if deps.Template == nil || *deps.Template == nil {
			return nil, errors.New("template not initialized")
		}
		if t := (*deps.Template).Lookup(name); t != nil {
			return t, nil
		}
		if fallback != "" {
			if t := (*deps.Template).Lookup(fallback); t != nil {
				return t, nil
			}
		}
		return nil, errors.New("template not found: " + name)
	}

	execute := func(t *template.Template, data any) (template.HTML, error) {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return "", err
		}
		// #nosec G203 - rendered by our own html/template set; values were escaped during Execute.
		return template.HTML(buf.String()), nil
	}

	funcs["renderView"] = func(view string, data any) (template.HTML, error) {
		t, err := lookup("view-"+view, PlaceholderView)
		if err != nil {
			return "", err
		}
		return execute(t, data)
	}

	funcs["renderShell"] = func(shell string, data any) (template.HTML, error) {
		t, err := lookup("shell-"+shell, "shell-public")
		if err != nil {
			return "", err
		}
		return execute(t, data)
	}

	funcs["toJSON"] = func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func friendlyTime(ts any) string {
	var t0 time.Time
	switch v := ts.(type) {
	case time.Time:
		t0 = v
	case *time.Time:
		if v != nil {
			t0 = *v
		}
	default:
		return ""
	}
	if t0.IsZero() {
		return ""
	}
	return t0.Local().Format("Jan 2, 2006 3:04 PM")
}

// Initials returns up to two uppercase initials for an avatar fallback.
func Initials(name string) string {
	var out []rune
	for _, f := range strings.Fields(name) {
		r := []rune(f)[0]
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		out = append(out, unicode.ToUpper(r))
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

// TruncateText truncates a string to a maximum number of runes (not bytes).
// Adds an ellipsis (…) when truncated.
func TruncateText(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen > 1 {
		return string(runes[:maxLen-1]) + "…"
	}
	return string(runes[:1])
}
