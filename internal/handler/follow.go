package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"yatube/internal/httputil"
	"yatube/internal/model"
	"yatube/internal/service"
)

type FollowHandler struct {
	pages
	followService *service.FollowService
}

func NewFollowHandler(followService *service.FollowService, view Renderer) *FollowHandler {
	return &FollowHandler{
		pages:         pages{view: view},
		followService: followService,
	}
}

// Follow handles GET|POST /profile/{username}/follow/
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.followService.Follow)
}

// Unfollow handles GET|POST /profile/{username}/unfollow/
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.followService.Unfollow)
}

// apply runs a follow change and returns the visitor to the author's profile.
// Repeated or self-directed changes are no-ops and redirect the same way.
func (h *FollowHandler) apply(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, followerID int64, username string) (*model.User, error),
) {
	session, ok := viewer(w, r)
	if !ok {
		return
	}

	author, err := change(r.Context(), session.UserID, chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			h.notFound(w, r)
			return
		}
		h.serverError(w, r, err, "Follow")
		return
	}

	httputil.Redirect(w, r, httputil.ProfileURL(author.Username))
}
