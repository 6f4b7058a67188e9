package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"yatube/internal/model"
	"yatube/internal/repository/repotest"
)

func TestCommentService_Add(t *testing.T) {
	store := repotest.NewStore()
	ctx := context.Background()
	author := store.AddUser("leo")
	post := store.AddPost(author.ID, "post", nil)
	svc := NewCommentService(store.Comments(), store.Posts(), repotest.TxRunner{})

	comment, err := svc.Add(ctx, author.ID, post.ID, "  hello  ")

	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if comment.Text != "hello" {
		t.Errorf("text = %q, want %q", comment.Text, "hello")
	}
	if store.CommentCount() != 1 {
		t.Errorf("comments = %d, want 1", store.CommentCount())
	}
}

func TestCommentService_Add_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		postID  func(p *model.Post) int64
		text    string
		wantErr error
	}{
		{name: "empty", postID: func(p *model.Post) int64 { return p.ID }, text: "   "},
		{name: "too long", postID: func(p *model.Post) int64 { return p.ID }, text: strings.Repeat("x", model.MaxCommentLength+1)},
		{name: "missing post", postID: func(*model.Post) int64 { return 999 }, text: "hi", wantErr: model.ErrPostNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repotest.NewStore()
			author := store.AddUser("leo")
			post := store.AddPost(author.ID, "post", nil)
			svc := NewCommentService(store.Comments(), store.Posts(), repotest.TxRunner{})

			_, err := svc.Add(context.Background(), author.ID, tt.postID(post), tt.text)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			} else {
				var verrs model.ValidationErrors
				if !errors.As(err, &verrs) || verrs["text"] == "" {
					t.Errorf("error = %v, want text validation error", err)
				}
			}
			if store.CommentCount() != 0 {
				t.Errorf("comments = %d, want 0", store.CommentCount())
			}
		})
	}
}
