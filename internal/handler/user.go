package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"yatube/internal/httputil"
	"yatube/internal/model"
	"yatube/internal/service"
	"yatube/internal/transport/http/middleware"
	"yatube/internal/web"
)

type UserHandler struct {
	pages
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService, view Renderer) *UserHandler {
	return &UserHandler{
		pages:       pages{view: view},
		userService: userService,
	}
}

// Profile handles GET /profile/{username}/
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	var viewerID *int64
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		viewerID = &id
	}

	profile, err := h.userService.Profile(r.Context(), chi.URLParam(r, "username"), viewerID, httputil.PageParam(r))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			h.notFound(w, r)
			return
		}
		h.serverError(w, r, err, "Profile")
		return
	}

	h.view.Render(w, r, http.StatusOK, web.PageProfile, map[string]any{
		"Title":   profile.Author.Name(),
		"Profile": profile,
	})
}
