// Package repotest provides an in-memory implementation of every repository
// interface, shared by service, handler and router tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"yatube/internal/model"
	"yatube/internal/repository"
)

type followKey struct{ follower, author int64 }

// Store holds all rows. The zero value is not usable; call NewStore.
type Store struct {
	mu       sync.Mutex
	clock    time.Time
	nextID   int64
	users    map[int64]*model.User
	groups   map[int64]*model.Group
	posts    map[int64]*model.Post
	comments []model.Comment
	follows  map[followKey]time.Time
}

func NewStore() *Store {
	return &Store{
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:   map[int64]*model.User{},
		groups:  map[int64]*model.Group{},
		posts:   map[int64]*model.Post{},
		follows: map[followKey]time.Time{},
	}
}

// tick returns a strictly increasing timestamp so creation order is total.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Users() repository.UserRepository       { return userRepo{s} }
func (s *Store) Groups() repository.GroupRepository     { return groupRepo{s} }
func (s *Store) Follows() repository.FollowRepository   { return followRepo{s} }
func (s *Store) Posts() repository.PostRepository       { return postRepo{s} }
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// TxRunner runs fn without a real transaction. Repositories here ignore tx.
type TxRunner struct{}

func (TxRunner) InTx(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

// AddUser seeds a user and returns it.
func (s *Store) AddUser(username string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	u := &model.User{ID: s.id(), Username: username, PasswordHashed: "x", CreatedAt: now, UpdatedAt: now}
	s.users[u.ID] = u
	return u
}

// AddGroup seeds a group and returns it.
func (s *Store) AddGroup(title, slug string) *model.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &model.Group{ID: s.id(), Title: title, Slug: slug}
	s.groups[g.ID] = g
	return g
}

// AddPost seeds a post and returns it.
func (s *Store) AddPost(authorID int64, text string, groupID *int64) *model.Post {
	p := &model.Post{AuthorID: authorID, Text: text, GroupID: groupID}
	_ = postRepo{s}.Create(context.Background(), nil, p)
	return p
}

// FollowCount returns the number of follow edges.
func (s *Store) FollowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.follows)
}

// CommentCount returns the number of stored comments.
func (s *Store) CommentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments)
}

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return model.ErrUsernameExists
		}
	}
	now := r.s.tick()
	u.ID = r.s.id()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r userRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r userRepo) IncrementFollowerCount(_ context.Context, _ *sqlx.Tx, userID int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.FollowerCount = max(u.FollowerCount+delta, 0)
	}
	return nil
}

func (r userRepo) IncrementFollowingCount(_ context.Context, _ *sqlx.Tx, userID int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.FollowingCount = max(u.FollowingCount+delta, 0)
	}
	return nil
}

// --- groups ---

type groupRepo struct{ s *Store }

func (r groupRepo) GetByID(_ context.Context, id int64) (*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, model.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (r groupRepo) GetBySlug(_ context.Context, slug string) (*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.groups {
		if g.Slug == slug {
			cp := *g
			return &cp, nil
		}
	}
	return nil, model.ErrGroupNotFound
}

func (r groupRepo) List(_ context.Context) ([]model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Group, 0, len(r.s.groups))
	for _, g := range r.s.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// --- follows ---

type followRepo struct{ s *Store }

func (r followRepo) Create(_ context.Context, _ *sqlx.Tx, followerID, authorID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := followKey{followerID, authorID}
	if _, ok := r.s.follows[k]; ok {
		return false, nil
	}
	r.s.follows[k] = r.s.tick()
	return true, nil
}

func (r followRepo) Delete(_ context.Context, _ *sqlx.Tx, followerID, authorID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := followKey{followerID, authorID}
	if _, ok := r.s.follows[k]; !ok {
		return false, nil
	}
	delete(r.s.follows, k)
	return true, nil
}

func (r followRepo) Exists(_ context.Context, followerID, authorID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.follows[followKey{followerID, authorID}]
	return ok, nil
}

func (r followRepo) GetFollowerIDs(_ context.Context, authorID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []int64{}
	for k := range r.s.follows {
		if k.author == authorID {
			ids = append(ids, k.follower)
		}
	}
	return ids, nil
}

func (r followRepo) GetFolloweeIDs(_ context.Context, followerID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.followeesLocked(followerID), nil
}

func (s *Store) followeesLocked(followerID int64) []int64 {
	ids := []int64{}
	for k := range s.follows {
		if k.follower == followerID {
			ids = append(ids, k.author)
		}
	}
	return ids
}

// --- posts ---

type postRepo struct{ s *Store }

func (r postRepo) Create(_ context.Context, _ *sqlx.Tx, p *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.tick()
	p.ID = r.s.id()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.s.posts[p.ID] = &cp
	if u, ok := r.s.users[p.AuthorID]; ok {
		u.PostCount++
	}
	return nil
}

func (r postRepo) Update(_ context.Context, p *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.posts[p.ID]
	if !ok || stored.DeletedAt != nil {
		return model.ErrPostNotFound
	}
	stored.Text = p.Text
	stored.GroupID = p.GroupID
	stored.ImageURL = p.ImageURL
	stored.ImageKey = p.ImageKey
	stored.UpdatedAt = r.s.tick()
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r postRepo) Delete(_ context.Context, _ *sqlx.Tx, postID, authorID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.posts[postID]
	if !ok || stored.DeletedAt != nil || stored.AuthorID != authorID {
		return model.ErrPostNotFound
	}
	now := r.s.tick()
	stored.DeletedAt = &now
	if u, ok := r.s.users[authorID]; ok {
		u.PostCount = max(u.PostCount-1, 0)
	}
	return nil
}

// hydrateLocked copies a post and fills the joined fields.
func (s *Store) hydrateLocked(p *model.Post) model.Post {
	cp := *p
	if u, ok := s.users[p.AuthorID]; ok {
		cp.AuthorUsername = u.Username
		cp.AuthorDisplayName = u.DisplayName
	}
	if p.GroupID != nil {
		if g, ok := s.groups[*p.GroupID]; ok {
			cp.GroupSlug = &g.Slug
			cp.GroupTitle = &g.Title
		}
	}
	return cp
}

func (r postRepo) GetByID(_ context.Context, postID int64) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[postID]
	if !ok || p.DeletedAt != nil {
		return nil, model.ErrPostNotFound
	}
	cp := r.s.hydrateLocked(p)
	return &cp, nil
}

func (r postRepo) GetByIDs(_ context.Context, postIDs []int64) ([]model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Post{}
	for _, id := range postIDs {
		if p, ok := r.s.posts[id]; ok && p.DeletedAt == nil {
			out = append(out, r.s.hydrateLocked(p))
		}
	}
	return out, nil
}

// selectLocked returns live posts matching keep, newest first.
func (s *Store) selectLocked(keep func(p *model.Post) bool) []model.Post {
	out := []model.Post{}
	for _, p := range s.posts {
		if p.DeletedAt == nil && keep(p) {
			out = append(out, s.hydrateLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func window(posts []model.Post, offset, limit int) []model.Post {
	if offset >= len(posts) {
		return []model.Post{}
	}
	end := min(offset+limit, len(posts))
	return posts[offset:end]
}

func matches(f model.PostFilter) func(p *model.Post) bool {
	return func(p *model.Post) bool {
		if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
			return false
		}
		if f.GroupID != nil && (p.GroupID == nil || *p.GroupID != *f.GroupID) {
			return false
		}
		return true
	}
}

func (r postRepo) Count(_ context.Context, f model.PostFilter) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.selectLocked(matches(f))), nil
}

func (r postRepo) List(_ context.Context, f model.PostFilter, offset, limit int) ([]model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return window(r.s.selectLocked(matches(f)), offset, limit), nil
}

func (s *Store) feedLocked(followerID int64) []model.Post {
	authors := s.followeesLocked(followerID)
	return s.selectLocked(func(p *model.Post) bool {
		return p.AuthorID != followerID && lo.Contains(authors, p.AuthorID)
	})
}

func (r postRepo) CountFeed(_ context.Context, followerID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.feedLocked(followerID)), nil
}

func (r postRepo) ListFeed(_ context.Context, followerID int64, offset, limit int) ([]model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return window(r.s.feedLocked(followerID), offset, limit), nil
}

func (r postRepo) FeedPostScores(_ context.Context, authorIDs []int64, limit int) ([]model.PostScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	posts := r.s.selectLocked(func(p *model.Post) bool { return lo.Contains(authorIDs, p.AuthorID) })
	posts = window(posts, 0, limit)
	return lo.Map(posts, func(p model.Post, _ int) model.PostScore {
		return model.PostScore{PostID: p.ID, Score: p.CreatedAt.UnixMicro()}
	}), nil
}

func (r postRepo) IncrementCommentCount(_ context.Context, _ *sqlx.Tx, postID int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[postID]
	if !ok || p.DeletedAt != nil {
		return model.ErrPostNotFound
	}
	p.CommentCount += delta
	return nil
}

// --- comments ---

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, _ *sqlx.Tx, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.id()
	c.CreatedAt = r.s.tick()
	r.s.comments = append(r.s.comments, *c)
	return nil
}

func (r commentRepo) ListByPost(_ context.Context, postID int64) ([]model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Comment{}
	for _, c := range r.s.comments {
		if c.PostID == postID {
			if u, ok := r.s.users[c.AuthorID]; ok {
				c.AuthorUsername = u.Username
			}
			out = append(out, c)
		}
	}
	return out, nil
}
