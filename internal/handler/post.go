package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"yatube/internal/httputil"
	"yatube/internal/model"
	"yatube/internal/service"
	"yatube/internal/transport/http/middleware"
	"yatube/internal/web"
)

const (
	// maxPostFormSize allows one image plus form overhead.
	maxPostFormSize  = model.MaxPostImageSize + 1<<20
	maxFormMemory    = 8 << 20
	indexTitle       = "Latest updates"
	createPostTitle  = "New post"
	editPostTitle    = "Edit post"
	bodyTooLargeText = "request body too large"
)

type PostHandler struct {
	pages
	postService *service.PostService
}

func NewPostHandler(postService *service.PostService, view Renderer) *PostHandler {
	return &PostHandler{
		pages:       pages{view: view},
		postService: postService,
	}
}

// Index handles GET /
func (h *PostHandler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := h.postService.Index(r.Context(), httputil.PageParam(r))
	if err != nil {
		h.serverError(w, r, err, "Index")
		return
	}
	h.view.Render(w, r, http.StatusOK, web.PageIndex, map[string]any{
		"Title": indexTitle,
		"Page":  page,
	})
}

// GroupPosts handles GET /group/{slug}/
func (h *PostHandler) GroupPosts(w http.ResponseWriter, r *http.Request) {
	group, page, err := h.postService.GroupPosts(r.Context(), chi.URLParam(r, "slug"), httputil.PageParam(r))
	if err != nil {
		if errors.Is(err, model.ErrGroupNotFound) {
			h.notFound(w, r)
			return
		}
		h.serverError(w, r, err, "GroupPosts")
		return
	}
	h.view.Render(w, r, http.StatusOK, web.PageGroupList, map[string]any{
		"Title": group.Title,
		"Group": group,
		"Page":  page,
	})
}

// Detail handles GET /posts/{id}/
func (h *PostHandler) Detail(w http.ResponseWriter, r *http.Request) {
	postID, ok := httputil.ParseID(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	detail, err := h.postService.Detail(r.Context(), postID)
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			h.notFound(w, r)
			return
		}
		h.serverError(w, r, err, "Detail")
		return
	}

	userID, loggedIn := middleware.GetUserIDFromContext(r.Context())
	h.view.Render(w, r, http.StatusOK, web.PagePostDetail, map[string]any{
		"Title":   detail.Post.AuthorName(),
		"Detail":  detail,
		"Post":    detail.Post,
		"CanEdit": loggedIn && userID == detail.Post.AuthorID,
		"Errors":  model.ValidationErrors{},
	})
}

// CreateForm handles GET /create/
func (h *PostHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, postForm{Errors: model.ValidationErrors{}})
}

// Create handles POST /create/
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := viewer(w, r)
	if !ok {
		return
	}

	in, formErrs, err := parsePostForm(w, r)
	if err != nil {
		h.serverError(w, r, err, "Create: parse form")
		return
	}
	defer closeUpload(in.Image)

	form := postForm{Text: in.Text, GroupID: groupValue(in.GroupID), Errors: formErrs}
	if len(formErrs) > 0 {
		h.renderForm(w, r, form)
		return
	}

	if _, err := h.postService.Create(r.Context(), session.UserID, in); err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			form.Errors = verrs
			h.renderForm(w, r, form)
			return
		}
		h.serverError(w, r, err, "Create")
		return
	}

	httputil.Redirect(w, r, httputil.ProfileURL(session.Username))
}

// EditForm handles GET /posts/{id}/edit/. Only the author sees the form;
// everyone else is sent to the read-only detail page.
func (h *PostHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	session, ok := viewer(w, r)
	if !ok {
		return
	}
	postID, ok := httputil.ParseID(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	post, err := h.postService.Authorize(r.Context(), session.UserID, postID)
	if err != nil {
		h.editFailed(w, r, postID, err)
		return
	}

	h.renderForm(w, r, postForm{
		IsEdit:  true,
		PostID:  post.ID,
		Text:    post.Text,
		GroupID: groupValue(post.GroupID),
		Errors:  model.ValidationErrors{},
	})
}

// Edit handles POST /posts/{id}/edit/
func (h *PostHandler) Edit(w http.ResponseWriter, r *http.Request) {
	session, ok := viewer(w, r)
	if !ok {
		return
	}
	postID, ok := httputil.ParseID(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	// Ownership first: a non-author gets the same redirect whatever they sent.
	if _, err := h.postService.Authorize(r.Context(), session.UserID, postID); err != nil {
		h.editFailed(w, r, postID, err)
		return
	}

	in, formErrs, err := parsePostForm(w, r)
	if err != nil {
		h.serverError(w, r, err, "Edit: parse form")
		return
	}
	defer closeUpload(in.Image)

	form := postForm{IsEdit: true, PostID: postID, Text: in.Text, GroupID: groupValue(in.GroupID), Errors: formErrs}
	if len(formErrs) > 0 {
		h.renderForm(w, r, form)
		return
	}

	if _, err := h.postService.Edit(r.Context(), session.UserID, postID, in); err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			form.Errors = verrs
			h.renderForm(w, r, form)
			return
		}
		h.editFailed(w, r, postID, err)
		return
	}

	httputil.Redirect(w, r, httputil.PostURL(postID))
}

// Delete handles POST /posts/{id}/delete/
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := viewer(w, r)
	if !ok {
		return
	}
	postID, ok := httputil.ParseID(r, "id")
	if !ok {
		h.notFound(w, r)
		return
	}

	if err := h.postService.Delete(r.Context(), session.UserID, postID); err != nil {
		h.editFailed(w, r, postID, err)
		return
	}

	httputil.Redirect(w, r, httputil.ProfileURL(session.Username))
}

// editFailed maps the errors shared by edit and delete.
func (h *PostHandler) editFailed(w http.ResponseWriter, r *http.Request, postID int64, err error) {
	switch {
	case errors.Is(err, model.ErrPostNotFound):
		h.notFound(w, r)
	case errors.Is(err, model.ErrNotPostOwner):
		httputil.Redirect(w, r, httputil.PostURL(postID))
	default:
		h.serverError(w, r, err, "Edit post")
	}
}

type postForm struct {
	IsEdit  bool
	PostID  int64
	Text    string
	GroupID int64
	Errors  model.ValidationErrors
}

func (h *PostHandler) renderForm(w http.ResponseWriter, r *http.Request, form postForm) {
	groups, err := h.postService.Groups(r.Context())
	if err != nil {
		h.serverError(w, r, err, "list groups")
		return
	}

	title := createPostTitle
	if form.IsEdit {
		title = editPostTitle
	}
	h.view.Render(w, r, http.StatusOK, web.PageCreatePost, map[string]any{
		"Title":   title,
		"IsEdit":  form.IsEdit,
		"PostID":  form.PostID,
		"Text":    form.Text,
		"GroupID": form.GroupID,
		"Groups":  groups,
		"Errors":  form.Errors,
	})
}

// parsePostForm reads text, group and image from a urlencoded or multipart
// body. Problems the user can fix come back as ValidationErrors.
func parsePostForm(w http.ResponseWriter, r *http.Request) (model.PostInput, model.ValidationErrors, error) {
	var in model.PostInput
	errs := model.ValidationErrors{}

	r.Body = http.MaxBytesReader(w, r.Body, maxPostFormSize)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), bodyTooLargeText) {
				errs.Add("image", model.MsgImageTooBig)
				return in, errs, nil
			}
			return in, nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return in, nil, err
	}

	in.Text = r.PostFormValue("text")
	if raw := strings.TrimSpace(r.PostFormValue("group")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs.Add("group", model.MsgInvalidGroup)
		} else {
			in.GroupID = &id
		}
	}

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("image")
		if err == nil {
			in.Image = &model.ImageUpload{
				File:        file,
				Filename:    header.Filename,
				Size:        header.Size,
				ContentType: header.Header.Get("Content-Type"),
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			return in, nil, err
		}
	}

	return in, errs, nil
}

func closeUpload(img *model.ImageUpload) {
	if img == nil {
		return
	}
	if c, ok := img.File.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Debugf("[PostHandler] close upload: %v", err)
		}
	}
}

func groupValue(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
