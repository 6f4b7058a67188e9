package handler

import (
	"errors"
	"net/http"

	"yatube/internal/httputil"
	"yatube/internal/model"
	"yatube/internal/service"
	"yatube/internal/web"
)

// maxCommentFormSize leaves room for a MaxCommentLength comment in multi-byte
// runes plus urlencoding.
const maxCommentFormSize = 64 << 10

type CommentHandler struct {
	pages
	commentService *service.CommentService
	postService    *service.PostService
}

func NewCommentHandler(commentService *service.CommentService, postService *service.PostService, view Renderer) *CommentHandler {
	return &CommentHandler{
		pages:          pages{view: view},
		commentService: commentService,
		postService:    postService,
	}
}

// Create handles POST /posts/{id}/comment/
// A rejected comment re-renders the comment form with its error.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := viewer(w, r)
	if !ok {
		return
	}
	postID, ok := httputil.ParseID(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCommentFormSize)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	text := r.PostFormValue("text")
	_, err := h.commentService.Add(r.Context(), session.UserID, postID, text)
	if err == nil {
		httputil.Redirect(w, r, httputil.PostURL(postID))
		return
	}

	var verrs model.ValidationErrors
	switch {
	case errors.Is(err, model.ErrPostNotFound):
		h.notFound(w, r)
	case errors.As(err, &verrs):
		detail, err := h.postService.Detail(r.Context(), postID)
		if err != nil {
			h.serverError(w, r, err, "Comment: reload post")
			return
		}
		h.view.Render(w, r, http.StatusOK, web.PageComment, map[string]any{
			"Post":        detail.Post,
			"CommentText": text,
			"Errors":      verrs,
		})
	default:
		h.serverError(w, r, err, "Comment")
	}
}
