package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/web"
)

// Engine renders HTML templates.
type Engine struct {
	pages map[string]*template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Theme       string
	Viewer      *shared.Viewer
	Nav         []NavItem
	Data        any
}

// Page prepares TemplateData with the request-scoped shell values filled in.
func Page(r *http.Request, title string) TemplateData {
	viewer := shared.ViewerFromContext(r.Context())
	return TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Theme:       shared.ThemeFromContext(r.Context()),
		Viewer:      viewer,
		Nav:         Navigation(viewer, r.URL.Path),
	}
}

// NewEngine parses templates at build-time. Every page gets its own set so that
// each can define the blocks the layouts reference.
func NewEngine() (*Engine, error) {
	base, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	files, err := fs.Glob(web.Templates, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	engine := &Engine{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		set, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.ParseFS(web.Templates, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		name := path.Base(file)
		engine.pages["pages/"+name] = set.Lookup(name)
	}
	return engine, nil
}

// Render executes a named page with TemplateData and status 200.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a named page and writes it with the given status. Nothing is
// written when execution fails.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	tpl, ok := e.pages[name]
	if !ok || tpl == nil {
		return fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"truncate": Truncate,
		"orNA": func(s string) string {
			if strings.TrimSpace(s) == "" {
				return "N/A"
			}
			return s
		},
		"upper":      strings.ToUpper,
		"indentJSON": IndentJSON,
		"add":        func(a, b int) int { return a + b },
		"pad2":       func(n int) string { return fmt.Sprintf("%02d", n) },
	}
}

// Truncate shortens s to max runes followed by an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

// IndentJSON pretty-prints raw JSON; invalid input is returned as-is.
func IndentJSON(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
