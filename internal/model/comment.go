package model

import "time"

// Comment is text attached to exactly one post by exactly one user.
type Comment struct {
	ID        int64     `db:"id"`
	PostID    int64     `db:"post_id"`
	AuthorID  int64     `db:"author_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`

	AuthorUsername string `db:"author_username"` // Joined field
}

const MaxCommentLength = 2000
