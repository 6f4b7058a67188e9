package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"yatube/internal/model"
)

type groupRepository struct {
	db *sqlx.DB
}

func NewGroupRepository(db *sqlx.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group
	err := r.db.GetContext(ctx, &g, `SELECT id, title, slug, description FROM groups WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group by id: %w", err)
	}
	return &g, nil
}

func (r *groupRepository) GetBySlug(ctx context.Context, slug string) (*model.Group, error) {
	var g model.Group
	err := r.db.GetContext(ctx, &g, `SELECT id, title, slug, description FROM groups WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group by slug: %w", err)
	}
	return &g, nil
}

// List returns every group ordered by title, for the post form's select box.
func (r *groupRepository) List(ctx context.Context) ([]model.Group, error) {
	groups := []model.Group{}
	if err := r.db.SelectContext(ctx, &groups, `SELECT id, title, slug, description FROM groups ORDER BY title`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}
