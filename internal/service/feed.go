package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"yatube/internal/cache"
	"yatube/internal/model"
	"yatube/internal/monitoring"
	"yatube/internal/pagination"
	"yatube/internal/repository"
)

// FeedService composes a viewer's follow feed: posts by the authors they
// follow, newest first. The viewer's own posts are never included.
type FeedService struct {
	feedCache  cache.FeedCache // nil without Redis
	postRepo   repository.PostRepository
	followRepo repository.FollowRepository
}

func NewFeedService(
	feedCache cache.FeedCache,
	postRepo repository.PostRepository,
	followRepo repository.FollowRepository,
) *FeedService {
	return &FeedService{
		feedCache:  feedCache,
		postRepo:   postRepo,
		followRepo: followRepo,
	}
}

// GetFeed returns the requested page of viewerID's feed. A viewer following
// nobody gets an empty first page.
func (s *FeedService) GetFeed(ctx context.Context, viewerID int64, requestedPage string) (*pagination.Page[model.Post], error) {
	startTime := time.Now()

	if s.feedCache != nil {
		page, ok := s.fromCache(ctx, viewerID, requestedPage)
		if ok {
			log.Debugf("[FeedService] GetFeed (cache) OK: user=%d page=%d posts=%d duration=%v",
				viewerID, page.Number, len(page.Items), time.Since(startTime))
			return page, nil
		}
		monitoring.FeedCacheRequests.WithLabelValues("fallback").Inc()
	}

	count, err := s.postRepo.CountFeed(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("count feed: %w", err)
	}
	w := pagination.Resolve(count, model.FeedPostsPerPage, requestedPage)
	posts, err := s.postRepo.ListFeed(ctx, viewerID, w.Offset, w.Limit)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}

	page := pagination.FromWindow(w, posts)
	log.Debugf("[FeedService] GetFeed (db) OK: user=%d page=%d posts=%d duration=%v",
		viewerID, page.Number, len(page.Items), time.Since(startTime))
	return &page, nil
}

// fromCache serves the page from the viewer's sorted set. ok is false when the
// database must be used instead: any cache error, or a set at its cap, which
// may have dropped older posts.
func (s *FeedService) fromCache(ctx context.Context, viewerID int64, requestedPage string) (*pagination.Page[model.Post], bool) {
	exists, err := s.feedCache.Exists(ctx, viewerID)
	if err != nil {
		log.Warnf("[FeedService] Cache check failed for user=%d: %v", viewerID, err)
		return nil, false
	}

	if exists {
		monitoring.FeedCacheRequests.WithLabelValues("hit").Inc()
	} else {
		monitoring.FeedCacheRequests.WithLabelValues("warm").Inc()
		if err := s.warmCache(ctx, viewerID); err != nil {
			log.Warnf("[FeedService] Cache warm failed for user=%d: %v", viewerID, err)
			return nil, false
		}
	}

	size, err := s.feedCache.Size(ctx, viewerID)
	if err != nil || size >= cache.FeedCacheCap {
		return nil, false
	}

	w := pagination.Resolve(int(size), model.FeedPostsPerPage, requestedPage)
	ids, err := s.feedCache.GetRange(ctx, viewerID, w.Offset, w.Limit)
	if err != nil {
		return nil, false
	}

	posts, err := s.postRepo.GetByIDs(ctx, ids)
	if err != nil {
		log.Warnf("[FeedService] Hydrate failed for user=%d: %v", viewerID, err)
		return nil, false
	}

	page := pagination.FromWindow(w, posts)
	return &page, true
}

// warmCache populates the viewer's feed cache from the database.
func (s *FeedService) warmCache(ctx context.Context, viewerID int64) error {
	followeeIDs, err := s.followRepo.GetFolloweeIDs(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("get followee ids: %w", err)
	}
	if len(followeeIDs) == 0 {
		return nil
	}

	posts, err := s.postRepo.FeedPostScores(ctx, followeeIDs, cache.FeedCacheCap)
	if err != nil {
		return fmt.Errorf("get feed post scores: %w", err)
	}

	return s.feedCache.WarmCache(ctx, viewerID, posts)
}
