package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"yatube/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	IncrementFollowerCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
	IncrementFollowingCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error
}

type GroupRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Group, error)
	GetBySlug(ctx context.Context, slug string) (*model.Group, error)
	List(ctx context.Context) ([]model.Group, error)
}

type FollowRepository interface {
	// Create reports whether a new edge was inserted. An existing edge is not an error.
	Create(ctx context.Context, tx *sqlx.Tx, followerID, authorID int64) (bool, error)
	// Delete reports whether an edge was removed. A missing edge is not an error.
	Delete(ctx context.Context, tx *sqlx.Tx, followerID, authorID int64) (bool, error)
	Exists(ctx context.Context, followerID, authorID int64) (bool, error)
	GetFollowerIDs(ctx context.Context, authorID int64) ([]int64, error)
	GetFolloweeIDs(ctx context.Context, followerID int64) ([]int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, post *model.Post) error
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, tx *sqlx.Tx, postID, authorID int64) error
	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	// GetByIDs returns the live posts among postIDs in the order given.
	GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error)
	Count(ctx context.Context, filter model.PostFilter) (int, error)
	List(ctx context.Context, filter model.PostFilter, offset, limit int) ([]model.Post, error)
	// CountFeed and ListFeed cover posts by authors followerID follows.
	CountFeed(ctx context.Context, followerID int64) (int, error)
	ListFeed(ctx context.Context, followerID int64, offset, limit int) ([]model.Post, error)
	// FeedPostScores returns the newest posts by authorIDs for cache warming.
	FeedPostScores(ctx context.Context, authorIDs []int64, limit int) ([]model.PostScore, error)
	IncrementCommentCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error
}

type CommentRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, comment *model.Comment) error
	// ListByPost returns the comments of a post, oldest first.
	ListByPost(ctx context.Context, postID int64) ([]model.Comment, error)
}
