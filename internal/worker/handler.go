package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"yatube/internal/cache"
	"yatube/internal/monitoring"
	"yatube/internal/queue"
)

// FollowerProvider abstracts the follow repository so workers don't depend on the DB directly.
type FollowerProvider interface {
	GetFollowerIDs(ctx context.Context, authorID int64) ([]int64, error)
}

// PageInvalidator drops cached rendered pages.
type PageInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Handler applies post events to the feed and page caches. A nil feed cache
// limits it to page invalidation.
type Handler struct {
	feedCache        cache.FeedCache
	followerProvider FollowerProvider
	pages            PageInvalidator
}

func NewHandler(feedCache cache.FeedCache, followerProvider FollowerProvider, pages PageInvalidator) *Handler {
	return &Handler{
		feedCache:        feedCache,
		followerProvider: followerProvider,
		pages:            pages,
	}
}

// HandleEvent routes an event by type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.FeedEvent) error {
	timer := prometheus.NewTimer(monitoring.WorkerEventDuration.WithLabelValues(event.Type))
	defer timer.ObserveDuration()

	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventPostCreated:
		err = h.handlePostCreated(ctx, event)
	case queue.EventPostDeleted:
		err = h.handlePostDeleted(ctx, event)
	default:
		monitoring.WorkerEvents.WithLabelValues("unknown", "skipped").Inc()
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		monitoring.WorkerEvents.WithLabelValues(event.Type, "failed").Inc()
		log.Errorf("[Worker] HandleEvent FAILED: type=%s post=%d duration=%v err=%v",
			event.Type, event.PostID, time.Since(startTime), err)
		return err
	}

	monitoring.WorkerEvents.WithLabelValues(event.Type, "ok").Inc()
	log.Debugf("[Worker] HandleEvent OK: type=%s post=%d duration=%v", event.Type, event.PostID, time.Since(startTime))
	return nil
}

// handlePostCreated adds the post to followers' feeds that are already cached.
// Feeds not yet warmed are left alone; the next read warms them from the database.
func (h *Handler) handlePostCreated(ctx context.Context, event queue.FeedEvent) error {
	if h.feedCache == nil {
		return h.invalidatePages(ctx)
	}

	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}
	followers = lo.Without(followers, event.AuthorID)

	var added, failed int
	for _, followerID := range followers {
		ok, err := h.feedCache.AddPostIfWarm(ctx, followerID, event.PostID, event.Score)
		if err != nil {
			log.Warnf("[Worker] PostCreated: failed to add to user=%d err=%v", followerID, err)
			failed++
			continue
		}
		if ok {
			added++
		}
	}

	log.Infof("[Worker] PostCreated DONE: post=%d followers=%d added=%d failed=%d",
		event.PostID, len(followers), added, failed)

	return h.invalidatePages(ctx)
}

// handlePostDeleted removes the post from followers' cached feeds.
func (h *Handler) handlePostDeleted(ctx context.Context, event queue.FeedEvent) error {
	if h.feedCache == nil {
		return h.invalidatePages(ctx)
	}

	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.AuthorID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	var failed int
	for _, followerID := range followers {
		if err := h.feedCache.RemovePost(ctx, followerID, event.PostID); err != nil {
			log.Warnf("[Worker] PostDeleted: failed to remove from user=%d err=%v", followerID, err)
			failed++
		}
	}

	log.Infof("[Worker] PostDeleted DONE: post=%d followers=%d failed=%d", event.PostID, len(followers), failed)

	return h.invalidatePages(ctx)
}

func (h *Handler) invalidatePages(ctx context.Context) error {
	if h.pages == nil {
		return nil
	}
	if err := h.pages.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate page cache: %w", err)
	}
	return nil
}
