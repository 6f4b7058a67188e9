package handler

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"yatube/internal/httputil"
	"yatube/internal/service"
	"yatube/internal/transport/http/middleware"
	"yatube/internal/web"
)

// Renderer draws an HTML page. *web.Renderer is the production implementation.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any)
}

// pages holds the renderer and the error pages every handler shares.
type pages struct {
	view Renderer
}

func (p pages) notFound(w http.ResponseWriter, r *http.Request) {
	p.view.Render(w, r, http.StatusNotFound, web.PageNotFound, map[string]any{"Path": r.URL.Path})
}

func (p pages) serverError(w http.ResponseWriter, r *http.Request, err error, what string) {
	log.WithField("request_uri", r.URL.RequestURI()).Errorf("[Handler] %s: %v", what, err)
	p.view.Render(w, r, http.StatusInternalServerError, web.PageServerErr, nil)
}

// viewer returns the session of a route behind RequireLogin. When it is
// missing anyway the visitor is sent to log in and ok is false.
func viewer(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	session, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, httputil.LoginURL(r))
	}
	return session, ok
}

// NotFoundHandler renders core/404.html for unmatched routes.
func NotFoundHandler(view Renderer) http.HandlerFunc {
	return pages{view: view}.notFound
}
