package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"yatube/internal/model"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// postSelect joins the author and group so list pages render without extra queries.
const postSelect = `
	SELECT p.id, p.text, p.author_id, p.group_id, p.image_url, p.image_key,
	       p.comment_count, p.created_at, p.updated_at, p.deleted_at,
	       u.username AS author_username, u.display_name AS author_display_name,
	       g.slug AS group_slug, g.title AS group_title
	FROM posts p
	JOIN users u ON u.id = p.author_id
	LEFT JOIN groups g ON g.id = p.group_id
`

const postOrder = ` ORDER BY p.created_at DESC, p.id DESC`

// Create inserts a post and bumps the author's post count.
func (r *postRepository) Create(ctx context.Context, tx *sqlx.Tx, p *model.Post) error {
	query := `
		INSERT INTO posts (text, author_id, group_id, image_url, image_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, comment_count, created_at, updated_at
	`
	err := tx.QueryRowxContext(ctx, query, p.Text, p.AuthorID, p.GroupID, p.ImageURL, p.ImageKey).
		Scan(&p.ID, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET post_count = post_count + 1 WHERE id = $1`, p.AuthorID); err != nil {
		return fmt.Errorf("increment post count: %w", err)
	}
	return nil
}

// Update stores the mutable fields of a post. author_id is never written.
func (r *postRepository) Update(ctx context.Context, p *model.Post) error {
	query := `
		UPDATE posts
		SET text = $1, group_id = $2, image_url = $3, image_key = $4, updated_at = NOW()
		WHERE id = $5 AND deleted_at IS NULL
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, p.Text, p.GroupID, p.ImageURL, p.ImageKey, p.ID).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// Delete performs a soft delete on a post.
func (r *postRepository) Delete(ctx context.Context, tx *sqlx.Tx, postID, authorID int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE posts SET deleted_at = NOW()
		WHERE id = $1 AND author_id = $2 AND deleted_at IS NULL
	`, postID, authorID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPostNotFound
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET post_count = GREATEST(post_count - 1, 0) WHERE id = $1`, authorID)
	if err != nil {
		return fmt.Errorf("decrement post count: %w", err)
	}
	return nil
}

// GetByID retrieves a single live post.
func (r *postRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	var post model.Post
	err := r.db.GetContext(ctx, &post, postSelect+` WHERE p.id = $1 AND p.deleted_at IS NULL`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// GetByIDs is used for hydrating the feed from cache.
func (r *postRepository) GetByIDs(ctx context.Context, postIDs []int64) ([]model.Post, error) {
	if len(postIDs) == 0 {
		return []model.Post{}, nil
	}

	var posts []model.Post
	err := r.db.SelectContext(ctx, &posts, postSelect+` WHERE p.id = ANY($1) AND p.deleted_at IS NULL`, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("get posts by ids: %w", err)
	}

	// Re-order posts to match input order
	byID := make(map[int64]model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(postIDs))
	for _, id := range postIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func filterClause(f model.PostFilter) (string, []any) {
	conds := []string{"p.deleted_at IS NULL"}
	var args []any
	if f.AuthorID != nil {
		args = append(args, *f.AuthorID)
		conds = append(conds, fmt.Sprintf("p.author_id = $%d", len(args)))
	}
	if f.GroupID != nil {
		args = append(args, *f.GroupID)
		conds = append(conds, fmt.Sprintf("p.group_id = $%d", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *postRepository) Count(ctx context.Context, f model.PostFilter) (int, error) {
	where, args := filterClause(f)
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts p`+where, args...); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (r *postRepository) List(ctx context.Context, f model.PostFilter, offset, limit int) ([]model.Post, error) {
	where, args := filterClause(f)
	args = append(args, limit, offset)
	query := postSelect + where + postOrder + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	posts := []model.Post{}
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// The author_id <> follower_id guard keeps the viewer's own posts out even if
// a self-edge ever slipped past the CHECK constraint.
const feedWhere = `
	JOIN follows f ON f.author_id = p.author_id
	WHERE f.follower_id = $1 AND p.author_id <> $1 AND p.deleted_at IS NULL
`

func (r *postRepository) CountFeed(ctx context.Context, followerID int64) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts p`+feedWhere, followerID); err != nil {
		return 0, fmt.Errorf("count feed: %w", err)
	}
	return n, nil
}

func (r *postRepository) ListFeed(ctx context.Context, followerID int64, offset, limit int) ([]model.Post, error) {
	query := postSelect + feedWhere + postOrder + ` LIMIT $2 OFFSET $3`
	posts := []model.Post{}
	if err := r.db.SelectContext(ctx, &posts, query, followerID, limit, offset); err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	return posts, nil
}

// FeedPostScores scores posts by created_at in Unix microseconds.
func (r *postRepository) FeedPostScores(ctx context.Context, authorIDs []int64, limit int) ([]model.PostScore, error) {
	if len(authorIDs) == 0 {
		return []model.PostScore{}, nil
	}

	query := `
		SELECT id, (EXTRACT(EPOCH FROM created_at) * 1000000)::bigint AS score
		FROM posts
		WHERE author_id = ANY($1) AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	type row struct {
		ID    int64 `db:"id"`
		Score int64 `db:"score"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(authorIDs), limit); err != nil {
		return nil, fmt.Errorf("get feed post scores: %w", err)
	}

	scores := make([]model.PostScore, len(rows))
	for i, row := range rows {
		scores[i] = model.PostScore{PostID: row.ID, Score: row.Score}
	}
	return scores, nil
}

// IncrementCommentCount atomically updates the comment_count on a post.
func (r *postRepository) IncrementCommentCount(ctx context.Context, tx *sqlx.Tx, postID int64, delta int) error {
	query := `UPDATE posts SET comment_count = comment_count + $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := tx.ExecContext(ctx, query, delta, postID)
	if err != nil {
		return fmt.Errorf("update comment count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPostNotFound
	}
	return nil
}
