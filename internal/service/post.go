package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"yatube/internal/database"
	"yatube/internal/model"
	"yatube/internal/pagination"
	"yatube/internal/queue"
	"yatube/internal/repository"
)

// ImageStore persists post images. *MediaService is the production implementation.
type ImageStore interface {
	UploadPostImage(ctx context.Context, img *model.ImageUpload) (*model.UploadResult, error)
	DeleteObject(ctx context.Context, key string) error
}

type PostService struct {
	postRepo    repository.PostRepository
	groupRepo   repository.GroupRepository
	userRepo    repository.UserRepository
	commentRepo repository.CommentRepository
	tx          database.TxRunner
	images      ImageStore      // nil when uploads are not configured
	publisher   queue.Publisher // nil without Redis
}

func NewPostService(
	postRepo repository.PostRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	commentRepo repository.CommentRepository,
	tx database.TxRunner,
	images ImageStore,
	publisher queue.Publisher,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		commentRepo: commentRepo,
		tx:          tx,
		images:      images,
		publisher:   publisher,
	}
}

// Index returns a page of every post, newest first.
func (s *PostService) Index(ctx context.Context, requestedPage string) (*pagination.Page[model.Post], error) {
	return s.list(ctx, model.PostFilter{}, requestedPage)
}

// GroupPosts returns the group and a page of its posts.
func (s *PostService) GroupPosts(ctx context.Context, slug, requestedPage string) (*model.Group, *pagination.Page[model.Post], error) {
	group, err := s.groupRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	page, err := s.list(ctx, model.PostFilter{GroupID: &group.ID}, requestedPage)
	if err != nil {
		return nil, nil, err
	}
	return group, page, nil
}

func (s *PostService) list(ctx context.Context, filter model.PostFilter, requestedPage string) (*pagination.Page[model.Post], error) {
	count, err := s.postRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	w := pagination.Resolve(count, model.PostsPerPage, requestedPage)
	posts, err := s.postRepo.List(ctx, filter, w.Offset, w.Limit)
	if err != nil {
		return nil, err
	}
	page := pagination.FromWindow(w, posts)
	return &page, nil
}

// Detail returns a post with its author's post count and its comments, oldest first.
func (s *PostService) Detail(ctx context.Context, postID int64) (*model.PostDetail, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	detail := &model.PostDetail{Post: post}
	if author, err := s.userRepo.GetByID(ctx, post.AuthorID); err == nil {
		detail.AuthorPostCount = author.PostCount
	} else if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	detail.Comments, err = s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Groups lists the choices offered by the post form.
func (s *PostService) Groups(ctx context.Context) ([]model.Group, error) {
	return s.groupRepo.List(ctx)
}

// Create validates and stores a new post, then announces it to the feed workers.
func (s *PostService) Create(ctx context.Context, authorID int64, in model.PostInput) (*model.Post, error) {
	text, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	post := &model.Post{Text: text, AuthorID: authorID, GroupID: in.GroupID}

	uploaded, err := s.uploadImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}
	if uploaded != nil {
		post.ImageURL, post.ImageKey = &uploaded.URL, &uploaded.Key
	}

	err = s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		return s.postRepo.Create(ctx, tx, post)
	})
	if err != nil {
		if uploaded != nil {
			s.deleteImage(ctx, uploaded.Key)
		}
		return nil, fmt.Errorf("create post: %w", err)
	}

	log.WithFields(log.Fields{"post": post.ID, "author": authorID}).Info("[PostService] Created")
	s.publish(ctx, queue.NewPostCreatedEvent(post.ID, authorID, post.CreatedAt))
	return post, nil
}

// Authorize loads a post and checks that editorID wrote it.
func (s *PostService) Authorize(ctx context.Context, editorID, postID int64) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != editorID {
		return nil, model.ErrNotPostOwner
	}
	return post, nil
}

// Edit replaces a post's text, group and optionally its image. Ownership is
// checked before the input is even looked at.
func (s *PostService) Edit(ctx context.Context, editorID, postID int64, in model.PostInput) (*model.Post, error) {
	post, err := s.Authorize(ctx, editorID, postID)
	if err != nil {
		return nil, err
	}

	text, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.uploadImage(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	var previousKey *string
	post.Text = text
	post.GroupID = in.GroupID
	if uploaded != nil {
		previousKey = post.ImageKey
		post.ImageURL, post.ImageKey = &uploaded.URL, &uploaded.Key
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		if uploaded != nil {
			s.deleteImage(ctx, uploaded.Key)
		}
		return nil, fmt.Errorf("edit post: %w", err)
	}

	if previousKey != nil {
		s.deleteImage(ctx, *previousKey)
	}

	log.WithFields(log.Fields{"post": post.ID, "editor": editorID}).Info("[PostService] Edited")
	return post, nil
}

// Delete soft-deletes a post written by editorID.
func (s *PostService) Delete(ctx context.Context, editorID, postID int64) error {
	post, err := s.Authorize(ctx, editorID, postID)
	if err != nil {
		return err
	}

	err = s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		return s.postRepo.Delete(ctx, tx, postID, editorID)
	})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	if post.ImageKey != nil {
		s.deleteImage(ctx, *post.ImageKey)
	}

	log.WithFields(log.Fields{"post": postID, "author": editorID}).Info("[PostService] Deleted")
	s.publish(ctx, queue.NewPostDeletedEvent(postID, editorID))
	return nil
}

// validate returns the trimmed text or model.ValidationErrors.
func (s *PostService) validate(ctx context.Context, in model.PostInput) (string, error) {
	errs := model.ValidationErrors{}

	text := strings.TrimSpace(in.Text)
	switch {
	case text == "":
		errs.Add("text", model.MsgRequired)
	case utf8.RuneCountInString(text) > model.MaxPostTextLength:
		errs.Add("text", fmt.Sprintf(model.MsgTextTooLong, model.MaxPostTextLength))
	}

	if in.GroupID != nil {
		if _, err := s.groupRepo.GetByID(ctx, *in.GroupID); err != nil {
			if !errors.Is(err, model.ErrGroupNotFound) {
				return "", err
			}
			errs.Add("group", model.MsgInvalidGroup)
		}
	}

	if in.Image != nil && s.images == nil {
		errs.Add("image", "Image uploads are not available.")
	}

	return text, errs.OrNil()
}

// uploadImage maps media errors onto the "image" form field.
func (s *PostService) uploadImage(ctx context.Context, img *model.ImageUpload) (*model.UploadResult, error) {
	if img == nil || s.images == nil {
		return nil, nil
	}

	res, err := s.images.UploadPostImage(ctx, img)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, model.ErrFileTooLarge):
		return nil, model.ValidationErrors{"image": model.MsgImageTooBig}
	case errors.Is(err, model.ErrInvalidImageType):
		return nil, model.ValidationErrors{"image": model.MsgBadImage}
	default:
		return nil, fmt.Errorf("upload image: %w", err)
	}
}

func (s *PostService) deleteImage(ctx context.Context, key string) {
	if s.images == nil {
		return
	}
	if err := s.images.DeleteObject(ctx, key); err != nil {
		log.Warnf("[PostService] Failed to delete image key=%s: %v", key, err)
	}
}

// publish logs but never fails. Without the event, warm feeds miss the change
// until they are rebuilt.
func (s *PostService) publish(ctx context.Context, event queue.FeedEvent) {
	if s.publisher == nil {
		return
	}
	msgID, err := s.publisher.Publish(ctx, queue.StreamFeed, event)
	if err != nil {
		log.Errorf("[PostService] Failed to publish %s event: post=%d err=%v", event.Type, event.PostID, err)
		return
	}
	log.Debugf("[PostService] Published %s: post=%d msgID=%s", event.Type, event.PostID, msgID)
}
