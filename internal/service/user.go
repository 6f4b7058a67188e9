package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"yatube/internal/model"
	"yatube/internal/pagination"
	"yatube/internal/repository"
)

// UserService handles sign-up, log-in and profile pages.
type UserService struct {
	repo       repository.UserRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
}

func NewUserService(
	repo repository.UserRepository,
	followRepo repository.FollowRepository,
	postRepo repository.PostRepository,
) *UserService {
	return &UserService{
		repo:       repo,
		followRepo: followRepo,
		postRepo:   postRepo,
	}
}

// validUsername accepts letters, digits and @ . + - _.
func validUsername(name string) bool {
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return false
	}
	return true
}

// Register creates a new account. Field problems come back as model.ValidationErrors.
func (s *UserService) Register(ctx context.Context, form model.SignupForm) (*model.User, error) {
	errs := model.ValidationErrors{}
	username := strings.TrimSpace(form.Username)

	switch {
	case username == "":
		errs.Add("username", model.MsgRequired)
	case utf8.RuneCountInString(username) > model.MaxUsernameLength:
		errs.Add("username", fmt.Sprintf(model.MsgTextTooLong, model.MaxUsernameLength))
	case !validUsername(username):
		errs.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}

	switch {
	case form.Password == "":
		errs.Add("password1", model.MsgRequired)
	case utf8.RuneCountInString(form.Password) < model.MinPasswordLength:
		errs.Add("password1", fmt.Sprintf("This password is too short. It must contain at least %d characters.", model.MinPasswordLength))
	}
	if form.Password != form.PasswordConfirm {
		errs.Add("password2", "The two password fields didn't match.")
	}

	if len(errs) == 0 {
		exists, err := s.repo.ExistsByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if exists {
			errs.Add("username", "A user with that username already exists.")
		}
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       username,
		PasswordHashed: string(hashedPassword),
	}
	if name := strings.TrimSpace(form.DisplayName); name != "" {
		user.DisplayName = &name
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrUsernameExists) {
			return nil, model.ValidationErrors{"username": "A user with that username already exists."}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.WithField("user_id", user.ID).Info("[UserService] Registered")
	return user, nil
}

// Login authenticates a user with username and password.
func (s *UserService) Login(ctx context.Context, form model.LoginForm) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(form.Username))
	if err != nil {
		// Don't reveal whether username exists or not
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(form.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Profile returns an author's page of posts. viewerID is nil for anonymous viewers.
func (s *UserService) Profile(ctx context.Context, username string, viewerID *int64, requestedPage string) (*model.Profile, error) {
	author, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	filter := model.PostFilter{AuthorID: &author.ID}
	count, err := s.postRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	w := pagination.Resolve(count, model.PostsPerPage, requestedPage)
	posts, err := s.postRepo.List(ctx, filter, w.Offset, w.Limit)
	if err != nil {
		return nil, err
	}

	profile := &model.Profile{
		Author: author,
		Page:   pagination.FromWindow(w, posts),
	}

	if viewerID != nil && *viewerID != author.ID {
		profile.CanFollow = true
		following, err := s.followRepo.Exists(ctx, *viewerID, author.ID)
		if err != nil {
			log.Warnf("[UserService] follow check failed: viewer=%d author=%d err=%v", *viewerID, author.ID, err)
		}
		profile.Following = following
	}

	return profile, nil
}
