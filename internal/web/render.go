// Package web renders the site's HTML pages from embedded templates.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"yatube/internal/httputil"
	"yatube/internal/transport/http/middleware"
)

//go:embed templates
var templateFS embed.FS

// Page template names. Each names a {{define}} block in templates/.
const (
	PageIndex      = "posts/index.html"
	PageGroupList  = "posts/group_list.html"
	PageProfile    = "posts/profile.html"
	PagePostDetail = "posts/post_detail.html"
	PageCreatePost = "posts/create_post.html"
	PageFollow     = "posts/follow.html"
	PageComment    = "posts/includes/comment.html"
	PageNotFound   = "core/404.html"
	PageServerErr  = "core/500.html"
	PageLogin      = "users/login.html"
	PageSignup     = "users/signup.html"
	PageLoggedOut  = "users/logged_out.html"
)

// Pages lists every renderable template.
var Pages = []string{
	PageIndex, PageGroupList, PageProfile, PagePostDetail, PageCreatePost, PageFollow, PageComment,
	PageNotFound, PageServerErr, PageLogin, PageSignup, PageLoggedOut,
}

var funcs = template.FuncMap{
	"profileURL": httputil.ProfileURL,
	"postURL":    httputil.PostURL,
	"groupURL":   httputil.GroupURL,
	"pageURL": func(page int) string {
		return "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"date": func(t time.Time) string {
		return t.Format("2 January 2006")
	},
}

// Renderer executes page templates inside the base layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every template once. Each page gets its own clone whose
// "content" block invokes the page.
func NewRenderer() (*Renderer, error) {
	root, err := template.New("root").Funcs(funcs).ParseFS(templateFS,
		"templates/layout/*.html",
		"templates/core/*.html",
		"templates/posts/*.html",
		"templates/posts/includes/*.html",
		"templates/users/*.html",
	)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(Pages))}
	for _, name := range Pages {
		if root.Lookup(name) == nil {
			return nil, fmt.Errorf("template %q is not defined", name)
		}
		page, err := root.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone templates for %s: %w", name, err)
		}
		if _, err := page.New("content").Parse(`{{template "` + name + `" .}}`); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
		r.pages[name] = page
	}
	return r, nil
}

// Render writes the named page with status. data may be nil. The viewer and
// the template name are added under "Viewer" and "Template".
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, data map[string]any) {
	page, ok := r.pages[name]
	if !ok {
		log.Errorf("[Render] unknown template %s", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	data["Template"] = name
	if viewer, ok := middleware.ViewerFromContext(req.Context()); ok {
		data["Viewer"] = viewer
	}

	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "base", data); err != nil {
		log.Errorf("[Render] %s: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
