package handler

import (
	"net/http"

	"yatube/internal/httputil"
	"yatube/internal/service"
	"yatube/internal/web"
)

type FeedHandler struct {
	pages
	feedService *service.FeedService
}

func NewFeedHandler(feedService *service.FeedService, view Renderer) *FeedHandler {
	return &FeedHandler{
		pages:       pages{view: view},
		feedService: feedService,
	}
}

// GetFeed handles GET /follow/
// Renders the posts of the authors the viewer follows, 20 per page.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	session, ok := viewer(w, r)
	if !ok {
		return
	}

	page, err := h.feedService.GetFeed(r.Context(), session.UserID, httputil.PageParam(r))
	if err != nil {
		h.serverError(w, r, err, "GetFeed")
		return
	}

	h.view.Render(w, r, http.StatusOK, web.PageFollow, map[string]any{
		"Title": "Following",
		"Page":  page,
	})
}
