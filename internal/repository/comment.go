package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"yatube/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts a comment inside tx so the post's counter moves with it.
func (r *commentRepository) Create(ctx context.Context, tx *sqlx.Tx, c *model.Comment) error {
	query := `
		INSERT INTO comments (post_id, author_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(ctx, query, c.PostID, c.AuthorID, c.Text).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, c.text, c.created_at, u.username AS author_username
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created_at, c.id
	`
	comments := []model.Comment{}
	if err := r.db.SelectContext(ctx, &comments, query, postID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
