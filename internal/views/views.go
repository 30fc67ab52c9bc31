// Package views renders the embedded HTML pages.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
	"time"

	"warbler/internal/auth"
	"warbler/internal/csrf"
	"warbler/internal/models"
)

//go:embed all:templates
var files embed.FS

const layout = "templates/base.html"

// Page is the data every template receives.
type Page struct {
	Title       string
	CurrentUser *models.User
	Notices     []auth.Notice
	CSRF        csrf.Form
	Data        any
}

// Renderer holds one parsed template set per page, each built on the
// shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"timestamp": func(t time.Time) string { return t.Format("02 January 2006") },
}

func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	err := fs.WalkDir(files, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path == layout || strings.HasPrefix(d.Name(), "_") {
			return err
		}
		t, err := template.New("base.html").Funcs(funcs).ParseFS(files, layout, "templates/_*.html", path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		r.pages[strings.TrimPrefix(path, "templates/")] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Render executes the named page, e.g. "users/show.html". Output is
// buffered so a template error never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, name string, p Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("views: unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", p); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
