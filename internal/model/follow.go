package model

import (
	"time"

	"yatube/internal/pagination"
)

// Follow is a directed edge from follower to author. The pair is unique.
type Follow struct {
	FollowerID int64     `db:"follower_id"`
	AuthorID   int64     `db:"author_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// Profile is an author's page as seen by a (possibly anonymous) viewer.
type Profile struct {
	Author    *User
	Page      pagination.Page[Post]
	Following bool
	// CanFollow is false for anonymous viewers and for authors viewing themselves.
	CanFollow bool
}
