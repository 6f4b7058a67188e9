package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"yatube/internal/model"
	"yatube/internal/queue"
	"yatube/internal/repository/repotest"
)

type postFixture struct {
	store     *repotest.Store
	svc       *PostService
	images    *fakeImageStore
	published *recordingPublisher
}

func newPostFixture() *postFixture {
	store := repotest.NewStore()
	images := &fakeImageStore{}
	pub := &recordingPublisher{}
	svc := NewPostService(store.Posts(), store.Groups(), store.Users(), store.Comments(), repotest.TxRunner{}, images, pub)
	return &postFixture{store: store, svc: svc, images: images, published: pub}
}

func TestPostService_Create(t *testing.T) {
	// ARRANGE
	f := newPostFixture()
	author := f.store.AddUser("leo")
	group := f.store.AddGroup("Novels", "novels")

	// ACT
	post, err := f.svc.Create(context.Background(), author.ID, model.PostInput{
		Text:    "  War and Peace  ",
		GroupID: &group.ID,
	})

	// ASSERT
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if post.Text != "War and Peace" {
		t.Errorf("text = %q, want %q", post.Text, "War and Peace")
	}
	if len(f.published.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.published.events))
	}
	ev := f.published.events[0]
	if ev.Type != queue.EventPostCreated || ev.PostID != post.ID || ev.AuthorID != author.ID {
		t.Errorf("event = %+v, want post_created for post %d by %d", ev, post.ID, author.ID)
	}

	page, _ := f.svc.Index(context.Background(), "")
	if page.Count != 1 || page.Items[0].GroupSlug == nil || *page.Items[0].GroupSlug != "novels" {
		t.Errorf("index = %+v, want the new post in group novels", page.Items)
	}
}

func TestPostService_Create_Validation(t *testing.T) {
	missingGroup := int64(999)

	tests := []struct {
		name      string
		in        model.PostInput
		wantField string
	}{
		{name: "empty text", in: model.PostInput{Text: ""}, wantField: "text"},
		{name: "whitespace text", in: model.PostInput{Text: "   \n\t"}, wantField: "text"},
		{name: "text too long", in: model.PostInput{Text: strings.Repeat("a", model.MaxPostTextLength+1)}, wantField: "text"},
		{name: "unknown group", in: model.PostInput{Text: "ok", GroupID: &missingGroup}, wantField: "group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture()
			author := f.store.AddUser("leo")

			_, err := f.svc.Create(context.Background(), author.ID, tt.in)

			var verrs model.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error = %v, want ValidationErrors", err)
			}
			if _, ok := verrs[tt.wantField]; !ok {
				t.Errorf("errors = %v, want field %q", verrs, tt.wantField)
			}
			if n, _ := f.store.Posts().Count(context.Background(), model.PostFilter{}); n != 0 {
				t.Errorf("posts stored = %d, want 0", n)
			}
			if len(f.published.events) != 0 {
				t.Error("event published for an invalid post")
			}
		})
	}
}

func TestPostService_Create_ImageErrors(t *testing.T) {
	tests := []struct {
		name      string
		uploadErr error
		wantMsg   string
	}{
		{name: "too large", uploadErr: model.ErrFileTooLarge, wantMsg: model.MsgImageTooBig},
		{name: "not an image", uploadErr: model.ErrInvalidImageType, wantMsg: model.MsgBadImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture()
			f.images.uploadErr = tt.uploadErr
			author := f.store.AddUser("leo")

			_, err := f.svc.Create(context.Background(), author.ID, model.PostInput{
				Text:  "with picture",
				Image: &model.ImageUpload{File: strings.NewReader("x"), Filename: "a.png"},
			})

			var verrs model.ValidationErrors
			if !errors.As(err, &verrs) || verrs["image"] != tt.wantMsg {
				t.Errorf("error = %v, want image error %q", err, tt.wantMsg)
			}
		})
	}
}

func TestPostService_Create_ImageWithoutStorage(t *testing.T) {
	store := repotest.NewStore()
	svc := NewPostService(store.Posts(), store.Groups(), store.Users(), store.Comments(), repotest.TxRunner{}, nil, nil)
	author := store.AddUser("leo")

	_, err := svc.Create(context.Background(), author.ID, model.PostInput{
		Text:  "with picture",
		Image: &model.ImageUpload{File: strings.NewReader("x")},
	})

	var verrs model.ValidationErrors
	if !errors.As(err, &verrs) || verrs["image"] == "" {
		t.Errorf("error = %v, want image validation error", err)
	}
}

func TestPostService_Edit(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	author := f.store.AddUser("leo")
	post, err := f.svc.Create(ctx, author.ID, model.PostInput{
		Text:  "draft",
		Image: &model.ImageUpload{File: strings.NewReader("x")},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	firstKey := *post.ImageKey

	edited, err := f.svc.Edit(ctx, author.ID, post.ID, model.PostInput{
		Text:  "final",
		Image: &model.ImageUpload{File: strings.NewReader("y")},
	})

	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if edited.Text != "final" {
		t.Errorf("text = %q, want %q", edited.Text, "final")
	}
	if len(f.images.deleted) != 1 || f.images.deleted[0] != firstKey {
		t.Errorf("deleted images = %v, want [%s]", f.images.deleted, firstKey)
	}
	stored, _ := f.store.Posts().GetByID(ctx, post.ID)
	if stored.Text != "final" || stored.ImageKey == nil || *stored.ImageKey == firstKey {
		t.Errorf("stored post = %q key=%v, want final with new image", stored.Text, stored.ImageKey)
	}
}

func TestPostService_Edit_NotOwner(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	author := f.store.AddUser("leo")
	intruder := f.store.AddUser("intruder")
	post := f.store.AddPost(author.ID, "original", nil)

	// Invalid input must still be rejected as a permission problem.
	_, err := f.svc.Edit(ctx, intruder.ID, post.ID, model.PostInput{Text: ""})

	if !errors.Is(err, model.ErrNotPostOwner) {
		t.Errorf("Edit() error = %v, want ErrNotPostOwner", err)
	}
	stored, _ := f.store.Posts().GetByID(ctx, post.ID)
	if stored.Text != "original" {
		t.Errorf("text = %q, want %q", stored.Text, "original")
	}
}

func TestPostService_Edit_NotFound(t *testing.T) {
	f := newPostFixture()
	author := f.store.AddUser("leo")

	_, err := f.svc.Edit(context.Background(), author.ID, 404, model.PostInput{Text: "x"})

	if !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("Edit() error = %v, want ErrPostNotFound", err)
	}
}

func TestPostService_Delete(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	author := f.store.AddUser("leo")
	other := f.store.AddUser("other")
	post := f.store.AddPost(author.ID, "bye", nil)

	if err := f.svc.Delete(ctx, other.ID, post.ID); !errors.Is(err, model.ErrNotPostOwner) {
		t.Errorf("Delete(other) error = %v, want ErrNotPostOwner", err)
	}
	if err := f.svc.Delete(ctx, author.ID, post.ID); err != nil {
		t.Fatalf("Delete(author) error = %v", err)
	}

	if _, err := f.store.Posts().GetByID(ctx, post.ID); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("GetByID after delete error = %v, want ErrPostNotFound", err)
	}
	if len(f.published.events) != 1 || f.published.events[0].Type != queue.EventPostDeleted {
		t.Errorf("events = %+v, want one post_deleted", f.published.events)
	}
	u, _ := f.store.Users().GetByID(ctx, author.ID)
	if u.PostCount != 0 {
		t.Errorf("post_count = %d, want 0", u.PostCount)
	}
}

func TestPostService_Detail(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	author := f.store.AddUser("leo")
	reader := f.store.AddUser("reader")
	post := f.store.AddPost(author.ID, "first", nil)
	f.store.AddPost(author.ID, "second", nil)
	comments := NewCommentService(f.store.Comments(), f.store.Posts(), repotest.TxRunner{})
	_, _ = comments.Add(ctx, reader.ID, post.ID, "nice")
	_, _ = comments.Add(ctx, author.ID, post.ID, "thanks")

	detail, err := f.svc.Detail(ctx, post.ID)

	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if detail.AuthorPostCount != 2 {
		t.Errorf("author post count = %d, want 2", detail.AuthorPostCount)
	}
	if len(detail.Comments) != 2 || detail.Comments[0].Text != "nice" || detail.Comments[1].Text != "thanks" {
		t.Errorf("comments = %+v, want [nice thanks]", detail.Comments)
	}
	if detail.Comments[0].AuthorUsername != "reader" {
		t.Errorf("comment author = %q, want %q", detail.Comments[0].AuthorUsername, "reader")
	}
	if detail.Post.CommentCount != 2 {
		t.Errorf("comment_count = %d, want 2", detail.Post.CommentCount)
	}

	if _, err := f.svc.Detail(ctx, 999); !errors.Is(err, model.ErrPostNotFound) {
		t.Errorf("Detail(999) error = %v, want ErrPostNotFound", err)
	}
}

func TestPostService_GroupPosts(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	author := f.store.AddUser("leo")
	novels := f.store.AddGroup("Novels", "novels")
	poems := f.store.AddGroup("Poems", "poems")
	f.store.AddPost(author.ID, "in novels", &novels.ID)
	f.store.AddPost(author.ID, "in poems", &poems.ID)
	f.store.AddPost(author.ID, "ungrouped", nil)

	group, page, err := f.svc.GroupPosts(ctx, "novels", "")

	if err != nil {
		t.Fatalf("GroupPosts() error = %v", err)
	}
	if group.ID != novels.ID {
		t.Errorf("group = %d, want %d", group.ID, novels.ID)
	}
	if got := texts(page.Items); len(got) != 1 || got[0] != "in novels" {
		t.Errorf("posts = %v, want [in novels]", got)
	}

	if _, _, err := f.svc.GroupPosts(ctx, "missing", ""); !errors.Is(err, model.ErrGroupNotFound) {
		t.Errorf("GroupPosts(missing) error = %v, want ErrGroupNotFound", err)
	}
}
