package results

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"strings"

	"github.com/R3E-Network/mvc_layer/pkg/actions"
	"github.com/R3E-Network/mvc_layer/pkg/modelbinding"
	"github.com/R3E-Network/mvc_layer/pkg/services"
)

// DefaultViewContentType is used when neither the result nor the response
// names a content type.
const DefaultViewContentType = "text/html; charset=utf-8"

// ViewContext is the data a view renders.
type ViewContext struct {
	Action     *actions.ActionContext
	Model      any
	ViewData   map[string]any
	ModelState *modelbinding.ModelStateDictionary
}

// View renders a page.
type View interface {
	Render(w io.Writer, vc *ViewContext) error
}

// ViewEngine locates views by name.
type ViewEngine interface {
	FindView(name string) (View, error)
}

// TemplateViewEngine serves html/template views parsed from a file system.
type TemplateViewEngine struct {
	root *template.Template
}

// NewTemplateViewEngine parses the files matching patterns in fsys.
func NewTemplateViewEngine(fsys fs.FS, patterns ...string) (*TemplateViewEngine, error) {
	t, err := template.ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}
	return &TemplateViewEngine{root: t}, nil
}

// FindView implements ViewEngine. name may omit the ".html" extension.
func (e *TemplateViewEngine) FindView(name string) (View, error) {
	for _, candidate := range []string{name, name + ".html"} {
		if t := e.root.Lookup(candidate); t != nil {
			return templateView{t: t}, nil
		}
	}
	return nil, fmt.Errorf("view %q not found", name)
}

type templateView struct {
	t *template.Template
}

func (v templateView) Render(w io.Writer, vc *ViewContext) error {
	return v.t.Execute(w, vc)
}

// ViewResult renders a named view.
type ViewResult struct {
	ViewName    string
	Model       any
	ViewData    map[string]any
	ContentType string
	StatusCode  int
	// ViewEngine overrides the engine from the services registry.
	ViewEngine ViewEngine
}

// ExecuteResult implements Result.
func (v *ViewResult) ExecuteResult(ac *actions.ActionContext) error {
	engine := v.ViewEngine
	if engine == nil {
		var ok bool
		if engine, ok = services.Get[ViewEngine](ac.Services, ViewEngineService); !ok {
			return fmt.Errorf("no view engine registered")
		}
	}
	name := v.ViewName
	if name == "" && ac.Descriptor != nil {
		name = ac.Descriptor.Name
	}
	view, err := engine.FindView(name)
	if err != nil {
		return err
	}
	vc := &ViewContext{Action: ac, Model: v.Model, ViewData: v.ViewData, ModelState: ac.ModelState}
	return ExecuteView(ac, view, vc, v.ContentType, v.StatusCode)
}

// ExecuteView renders view into the response. A content type without a
// charset gets charset=utf-8; with no content type the response's own is
// kept, falling back to DefaultViewContentType. The view is rendered into
// a buffer first so a failing view sends nothing.
func ExecuteView(ac *actions.ActionContext, view View, vc *ViewContext, contentType string, status int) error {
	ct, err := viewContentType(contentType, ac.Response.Header().Get("Content-Type"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := view.Render(&buf, vc); err != nil {
		return fmt.Errorf("render view: %w", err)
	}

	ac.Response.Header().Set("Content-Type", ct)
	if status == 0 {
		status = http.StatusOK
	}
	ac.Response.WriteHeader(status)
	_, err = ac.Response.Write(buf.Bytes())
	return err
}

func viewContentType(supplied, existing string) (string, error) {
	if supplied == "" {
		if existing != "" {
			return existing, nil
		}
		return DefaultViewContentType, nil
	}
	mt, params, err := mime.ParseMediaType(supplied)
	if err != nil {
		return "", fmt.Errorf("invalid view content type %q: %w", supplied, err)
	}
	if _, ok := params["charset"]; ok {
		return supplied, nil
	}
	withCharset := make(map[string]string, len(params)+1)
	for k, val := range params {
		withCharset[k] = val
	}
	withCharset["charset"] = "utf-8"
	return mime.FormatMediaType(strings.ToLower(mt), withCharset), nil
}
