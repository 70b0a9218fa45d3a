package http

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/couchcryptid/impact-predictor-service/internal/form"
	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

//go:embed templates/*.html
var templateFiles embed.FS

var pageNames = []string{"home", "about", "predict"}

// renderer holds the parsed page templates.
type renderer struct {
	pages map[string]*pongo2.Template
}

func newRenderer() (*renderer, error) {
	sub, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		return nil, fmt.Errorf("open templates: %w", err)
	}
	set := pongo2.NewSet("pages", pongo2.NewFSLoader(sub))

	r := &renderer{pages: make(map[string]*pongo2.Template, len(pageNames))}
	for _, name := range pageNames {
		tpl, err := set.FromFile(name + ".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tpl
	}
	return r, nil
}

func (r *renderer) render(name string, data pongo2.Context) ([]byte, error) {
	tpl, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(data, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// appView is the app summary the templates read.
type appView struct {
	Name        string
	Title       string
	Description string
	Target      string
	ModelName   string
	Dataset     string
}

func newAppView(p *predictor.Predictor) appView {
	b := p.Bundle()
	return appView{
		Name:        p.Name(),
		Title:       p.Title(),
		Description: b.Description,
		Target:      b.Target,
		ModelName:   b.ModelName,
		Dataset:     b.Dataset,
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	s.writePage(w, http.StatusOK, "home", s.pageContext(r, p, "home"))
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	ctx := s.pageContext(r, p, "about")
	ctx["columns"] = p.Schema().Names()
	s.writePage(w, http.StatusOK, "about", ctx)
}

func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	ctx := s.pageContext(r, p, "predict")
	ctx["fields"] = form.Fields(p.Bundle(), p.Rules())
	s.writePage(w, http.StatusOK, "predict", ctx)
}

func (s *Server) handlePredictSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.lookupApp(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}

	fields := form.Fields(p.Bundle(), p.Rules())
	ctx := s.pageContext(r, p, "predict")
	ctx["fields"] = form.Fill(fields, r.PostForm)

	status := http.StatusOK
	raw, err := form.ParseValues(fields, r.PostForm)
	if err == nil {
		var res predictor.Result
		res, err = p.Predict(r.Context(), raw)
		if err == nil {
			ctx["result"] = res
		}
	}
	if err != nil {
		d := p.Diagnose(raw, err)
		ctx["diagnostic"] = d
		ctx["row_shape"] = fmt.Sprintf("(%d, %d)", d.RowShape[0], d.RowShape[1])
		status = http.StatusUnprocessableEntity
		if !predictor.IsInputError(err) {
			status = http.StatusInternalServerError
		}
	}
	s.writePage(w, status, "predict", ctx)
}

// lookupApp resolves ?app=, writing a 404 page when the app is unknown.
func (s *Server) lookupApp(w http.ResponseWriter, r *http.Request) (*predictor.Predictor, bool) {
	name := strings.TrimSpace(r.URL.Query().Get("app"))
	p, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown app %q", form.Sanitize(name)), http.StatusNotFound)
		return nil, false
	}
	return p, true
}

func (s *Server) pageContext(r *http.Request, p *predictor.Predictor, page string) pongo2.Context {
	all := s.registry.All()
	apps := make([]appView, len(all))
	for i, a := range all {
		apps[i] = newAppView(a)
	}
	path := page
	if page == "home" {
		path = ""
	}
	return pongo2.Context{
		"app":       newAppView(p),
		"apps":      apps,
		"multi_app": len(apps) > 1,
		"app_query": r.URL.Query().Get("app") != "",
		"page":      page,
		"page_path": path,
	}
}

func (s *Server) writePage(w http.ResponseWriter, status int, name string, data pongo2.Context) {
	body, err := s.pages.render(name, data)
	if err != nil {
		s.logger.Error("render page failed", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck // client may have gone away
}
