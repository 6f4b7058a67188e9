package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// Schema is the bootstrap schema. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	username        VARCHAR(150) NOT NULL UNIQUE,
	password_hashed TEXT NOT NULL,
	display_name    VARCHAR(150),
	follower_count  INTEGER NOT NULL DEFAULT 0,
	following_count INTEGER NOT NULL DEFAULT 0,
	post_count      INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS groups (
	id          BIGSERIAL PRIMARY KEY,
	title       VARCHAR(200) NOT NULL,
	slug        VARCHAR(100) NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS posts (
	id            BIGSERIAL PRIMARY KEY,
	text          TEXT NOT NULL,
	author_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	group_id      BIGINT REFERENCES groups(id) ON DELETE SET NULL,
	image_url     TEXT,
	image_key     TEXT,
	comment_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS posts_created_idx ON posts (created_at DESC, id DESC) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS posts_author_created_idx ON posts (author_id, created_at DESC) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS posts_group_created_idx ON posts (group_id, created_at DESC) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS comments (
	id         BIGSERIAL PRIMARY KEY,
	post_id    BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
	author_id  BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS comments_post_idx ON comments (post_id, created_at);

CREATE TABLE IF NOT EXISTS follows (
	follower_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	author_id   BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (follower_id, author_id),
	CONSTRAINT follows_no_self_follow CHECK (follower_id <> author_id)
);
CREATE INDEX IF NOT EXISTS follows_author_idx ON follows (author_id);
`

// Migrate applies the bootstrap schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info("[Database] Schema applied")
	return nil
}
