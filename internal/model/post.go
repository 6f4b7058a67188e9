package model

import (
	"errors"
	"io"
	"time"
)

// Post is a piece of authored content. AuthorID never changes after creation.
type Post struct {
	ID           int64      `db:"id"`
	Text         string     `db:"text"`
	AuthorID     int64      `db:"author_id"`
	GroupID      *int64     `db:"group_id"`
	ImageURL     *string    `db:"image_url"`
	ImageKey     *string    `db:"image_key"`
	CommentCount int        `db:"comment_count"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`

	// Joined fields (not in posts table)
	AuthorUsername    string  `db:"author_username"`
	AuthorDisplayName *string `db:"author_display_name"`
	GroupSlug         *string `db:"group_slug"`
	GroupTitle        *string `db:"group_title"`
}

// AuthorName returns the author's display name, falling back to the username.
func (p *Post) AuthorName() string {
	if p.AuthorDisplayName != nil && *p.AuthorDisplayName != "" {
		return *p.AuthorDisplayName
	}
	return p.AuthorUsername
}

// PostFilter narrows post listings. Nil fields are not applied.
type PostFilter struct {
	AuthorID *int64
	GroupID  *int64
}

// ImageUpload is an image attached to a post form.
type ImageUpload struct {
	File        io.Reader
	Filename    string
	Size        int64
	ContentType string
}

// PostInput is the data submitted on the create/edit post form.
type PostInput struct {
	Text    string
	GroupID *int64
	Image   *ImageUpload
}

// PostDetail is everything the post page shows.
type PostDetail struct {
	Post            *Post
	AuthorPostCount int
	Comments        []Comment
}

// PostScore is a post id with its feed ordering score (created_at in Unix microseconds).
type PostScore struct {
	PostID int64
	Score  int64
}

const (
	PostsPerPage       = 10
	FeedPostsPerPage   = 20
	MaxPostTextLength  = 10000
	PostImageFolder    = "posts"
	MaxPostImageSize   = 10 * 1024 * 1024 // 10MB
	PostImageMaxWidth  = 1280
	PostImageMaxHeight = 1280
)

// Post errors
var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotPostOwner = errors.New("not the owner of this post")
)
