// Package web renders the storefront's HTML pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"babyshop/internal/domain"
	"babyshop/internal/flash"
	"babyshop/internal/forms"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names
const (
	PageHome     = "home"
	PageLogin    = "login"
	PageRegister = "register"
)

// FieldSet is what the "fields" template ranges over.
type FieldSet interface {
	Fields() []*forms.Field
}

// PageData is passed to every page template.
type PageData struct {
	Title     string
	Account   *domain.Account
	Messages  []flash.Message
	CSRFToken string
	Form      FieldSet
}

type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, page := range []string{PageHome, PageLogin, PageRegister} {
		tmpl, err := template.New(page).ParseFS(templateFS, "templates/base.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		r.pages[page] = tmpl
	}
	return r, nil
}

// Render executes the page into a buffer first so a template error never
// leaves a half written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
