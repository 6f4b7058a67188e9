package worker

import (
	"context"

	"yatube/internal/queue"
)

// InlinePublisher runs events through a handler on the caller's goroutine.
// It stands in for the Redis stream when REDIS_URL is not set.
type InlinePublisher struct {
	Handler EventHandler
}

func (p InlinePublisher) Publish(ctx context.Context, _ string, event queue.FeedEvent) (string, error) {
	if err := p.Handler.HandleEvent(ctx, event); err != nil {
		return "", err
	}
	return "inline", nil
}
