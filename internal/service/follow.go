package service

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"yatube/internal/cache"
	"yatube/internal/database"
	"yatube/internal/model"
	"yatube/internal/repository"
)

// FollowService maintains follow edges. Following yourself and following
// twice are silent no-ops, as is unfollowing someone you don't follow.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	tx         database.TxRunner
	feedCache  cache.FeedCache // nil without Redis
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	tx database.TxRunner,
	feedCache cache.FeedCache,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		tx:         tx,
		feedCache:  feedCache,
	}
}

// Follow makes followerID follow the user named username and returns that user.
func (s *FollowService) Follow(ctx context.Context, followerID int64, username string) (*model.User, error) {
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if author.ID == followerID {
		return author, nil
	}

	var inserted bool
	err = s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		inserted, err = s.followRepo.Create(ctx, tx, followerID, author.ID)
		if err != nil || !inserted {
			return err
		}
		if err := s.userRepo.IncrementFollowerCount(ctx, tx, author.ID, 1); err != nil {
			return err
		}
		return s.userRepo.IncrementFollowingCount(ctx, tx, followerID, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}

	if inserted {
		log.Infof("[FollowService] Follow: follower=%d author=%d", followerID, author.ID)
		s.invalidateFeed(ctx, followerID)
	}
	return author, nil
}

// Unfollow removes the edge from followerID to the user named username, if any.
func (s *FollowService) Unfollow(ctx context.Context, followerID int64, username string) (*model.User, error) {
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	var deleted bool
	err = s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		deleted, err = s.followRepo.Delete(ctx, tx, followerID, author.ID)
		if err != nil || !deleted {
			return err
		}
		if err := s.userRepo.IncrementFollowerCount(ctx, tx, author.ID, -1); err != nil {
			return err
		}
		return s.userRepo.IncrementFollowingCount(ctx, tx, followerID, -1)
	})
	if err != nil {
		return nil, fmt.Errorf("unfollow: %w", err)
	}

	if deleted {
		log.Infof("[FollowService] Unfollow: follower=%d author=%d", followerID, author.ID)
		s.invalidateFeed(ctx, followerID)
	}
	return author, nil
}

// invalidateFeed drops the cached feed after commit; the next read rebuilds it
// from the new follow set.
func (s *FollowService) invalidateFeed(ctx context.Context, followerID int64) {
	if s.feedCache == nil {
		return
	}
	if err := s.feedCache.Invalidate(ctx, followerID); err != nil {
		log.Warnf("[FollowService] feed invalidation failed: user=%d err=%v", followerID, err)
	}
}
