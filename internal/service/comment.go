package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"yatube/internal/database"
	"yatube/internal/model"
	"yatube/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	tx          database.TxRunner
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	tx database.TxRunner,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		tx:          tx,
	}
}

// Add attaches a comment to a post. Empty text persists nothing and returns
// model.ValidationErrors keyed by "text".
func (s *CommentService) Add(ctx context.Context, authorID, postID int64, text string) (*model.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, model.ValidationErrors{"text": model.MsgRequired}
	case utf8.RuneCountInString(text) > model.MaxCommentLength:
		return nil, model.ValidationErrors{"text": fmt.Sprintf(model.MsgTextTooLong, model.MaxCommentLength)}
	}

	comment := &model.Comment{PostID: postID, AuthorID: authorID, Text: text}
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
			return err
		}
		return s.postRepo.IncrementCommentCount(ctx, tx, postID, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}

	log.Debugf("[CommentService] Add: post=%d author=%d comment=%d", postID, authorID, comment.ID)
	return comment, nil
}
