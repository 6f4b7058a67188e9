package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"yatube/internal/cache"
	"yatube/internal/handler"
	"yatube/internal/httputil"
	authmw "yatube/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	PostHandler    *handler.PostHandler
	CommentHandler *handler.CommentHandler
	FollowHandler  *handler.FollowHandler
	FeedHandler    *handler.FeedHandler

	Tokens authmw.TokenParser
	View   handler.Renderer

	// Pages caches the index page. Nil disables page caching.
	Pages        cache.PageCache
	PageCacheTTL time.Duration

	RequestTimeout time.Duration

	// Health reports whether backing services are reachable. Optional.
	Health func(ctx context.Context) error
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.StandardLogger(), NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(authmw.Metrics)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(authmw.Authenticate(cfg.Tokens))

	r.NotFound(handler.NotFoundHandler(cfg.View))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				log.Warnf("[Health] %v", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public pages
	index := http.Handler(http.HandlerFunc(cfg.PostHandler.Index))
	if cfg.Pages != nil {
		index = authmw.CachePage(cfg.Pages, cfg.PageCacheTTL)(index)
	}
	r.Method(http.MethodGet, "/", index)
	r.Get("/group/{slug}/", cfg.PostHandler.GroupPosts)
	r.Get("/profile/{username}/", cfg.UserHandler.Profile)
	r.Get("/posts/{id}/", cfg.PostHandler.Detail)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/signup/", cfg.AuthHandler.SignupForm)
		r.Post("/signup/", cfg.AuthHandler.Signup)
		r.Get("/login/", cfg.AuthHandler.LoginForm)
		r.Post("/login/", cfg.AuthHandler.Login)
		r.Get("/logout/", cfg.AuthHandler.Logout)
	})

	// Pages that need a logged-in user
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireLogin)

		r.Get("/create/", cfg.PostHandler.CreateForm)
		r.Post("/create/", cfg.PostHandler.Create)
		r.Get("/posts/{id}/edit/", cfg.PostHandler.EditForm)
		r.Post("/posts/{id}/edit/", cfg.PostHandler.Edit)
		r.Post("/posts/{id}/delete/", cfg.PostHandler.Delete)
		r.Post("/posts/{id}/comment/", cfg.CommentHandler.Create)

		r.Get("/follow/", cfg.FeedHandler.GetFeed)
		r.Get("/profile/{username}/follow/", cfg.FollowHandler.Follow)
		r.Post("/profile/{username}/follow/", cfg.FollowHandler.Follow)
		r.Get("/profile/{username}/unfollow/", cfg.FollowHandler.Unfollow)
		r.Post("/profile/{username}/unfollow/", cfg.FollowHandler.Unfollow)
	})

	return r
}
