package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const pingTimeout = 5 * time.Second

// Connect parses a redis:// URL, opens a pooled client and pings it so
// startup fails fast when Redis is unreachable.
// URL format: redis://[:password@]host:port[/db]
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.WithFields(log.Fields{"addr": opts.Addr, "db": opts.DB}).Info("[Redis] Connected")
	return client, nil
}
