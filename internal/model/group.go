package model

import "errors"

// Group is a named category posts can be filed under.
type Group struct {
	ID          int64   `db:"id"`
	Title       string  `db:"title"`
	Slug        string  `db:"slug"`
	Description *string `db:"description"`
}

var ErrGroupNotFound = errors.New("group not found")
