package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"yatube/internal/model"
	"yatube/internal/pagination"
	"yatube/internal/service"
	"yatube/internal/transport/http/middleware"
)

func samplePosts() *pagination.Page[model.Post] {
	slug, title := "novels", "Novels"
	posts := make([]model.Post, 12)
	for i := range posts {
		posts[i] = model.Post{
			ID:             int64(i + 1),
			Text:           "post text",
			AuthorID:       1,
			AuthorUsername: "leo",
			GroupSlug:      &slug,
			GroupTitle:     &title,
			CreatedAt:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}
	}
	page := pagination.Paginate(posts, model.PostsPerPage, "1")
	return &page
}

func TestRenderer_AllPages(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	page := samplePosts()
	post := &page.Items[0]
	desc := "Long books"
	data := map[string]map[string]any{
		PageIndex:     {"Page": page},
		PageGroupList: {"Group": &model.Group{ID: 1, Title: "Novels", Slug: "novels", Description: &desc}, "Page": page},
		PageProfile: {"Profile": &model.Profile{
			Author:    &model.User{ID: 1, Username: "leo"},
			Page:      *page,
			CanFollow: true,
		}},
		PagePostDetail: {
			"Detail":  &model.PostDetail{Post: post, AuthorPostCount: 12, Comments: []model.Comment{{Text: "nice", AuthorUsername: "ann"}}},
			"Post":    post,
			"CanEdit": true,
			"Errors":  model.ValidationErrors{},
		},
		PageCreatePost: {
			"Groups":  []model.Group{{ID: 1, Title: "Novels"}},
			"GroupID": int64(1),
			"Text":    "draft",
			"Errors":  model.ValidationErrors{"text": model.MsgRequired},
		},
		PageFollow:    {"Page": page},
		PageComment:   {"Post": post, "Errors": model.ValidationErrors{"text": model.MsgRequired}},
		PageNotFound:  {"Path": "/nowhere/"},
		PageServerErr: nil,
		PageLogin:     {"Next": "/create/", "Error": "bad"},
		PageSignup:    {"Form": model.SignupForm{Username: "leo"}, "Errors": model.ValidationErrors{}},
		PageLoggedOut: nil,
	}

	for _, name := range Pages {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(middleware.WithViewer(req.Context(), &service.Session{UserID: 1, Username: "leo"}))
			rec := httptest.NewRecorder()

			r.Render(rec, req, http.StatusOK, name, data[name])

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
			}
			body := rec.Body.String()
			if !strings.Contains(body, `data-template="`+name+`"`) {
				t.Errorf("body does not carry template marker for %s", name)
			}
			if strings.Contains(body, "<no value>") {
				t.Errorf("body renders a missing value:\n%s", body)
			}
		})
	}
}

func TestRenderer_PaginatorAndAnonymousNav(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	rec := httptest.NewRecorder()

	r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, PageIndex, map[string]any{"Page": samplePosts()})

	body := rec.Body.String()
	if !strings.Contains(body, `href="?page=2"`) {
		t.Error("paginator link to page 2 missing")
	}
	if !strings.Contains(body, `href="/auth/login/"`) {
		t.Error("anonymous navigation should offer log in")
	}
	if strings.Contains(body, `href="/create/"`) {
		t.Error("anonymous navigation should not offer new post")
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	rec := httptest.NewRecorder()

	r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "posts/missing.html", nil)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
