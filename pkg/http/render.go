package http

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"github.com/labstack/echo/v4"
)

// TemplateRenderer renders pages that share one layout. Every page is parsed
// together with the layout files and executed through the "base" template.
type TemplateRenderer struct {
	pages map[string]*template.Template
}

// NewTemplateRenderer parses each file matching pagesGlob with the files
// matching layoutGlob. Pages are looked up by file name.
func NewTemplateRenderer(fsys fs.FS, funcs template.FuncMap, layoutGlob, pagesGlob string) (*TemplateRenderer, error) {
	pages, err := fs.Glob(fsys, pagesGlob)
	if err != nil {
		return nil, fmt.Errorf("glob pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no templates match %q", pagesGlob)
	}

	r := &TemplateRenderer{pages: make(map[string]*template.Template, len(pages))}
	for _, p := range pages {
		name := path.Base(p)
		t, err := template.New(name).Funcs(funcs).ParseFS(fsys, layoutGlob, p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *TemplateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "base", data)
}
