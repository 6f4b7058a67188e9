package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"yatube/internal/cache"
	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/handler"
	"yatube/internal/logger"
	"yatube/internal/monitoring"
	"yatube/internal/queue"
	appredis "yatube/internal/redis"
	"yatube/internal/repository"
	"yatube/internal/service"
	"yatube/internal/web"
	"yatube/internal/worker"
)

const (
	streamMaxLen      = 10000
	memoryPageEntries = 1024
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// app bundles the stores and collaborators the site is assembled from.
type app struct {
	users    repository.UserRepository
	groups   repository.GroupRepository
	follows  repository.FollowRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	tx       database.TxRunner

	feedCache cache.FeedCache    // nil without Redis
	pages     cache.PageCache    // nil disables the page cache
	publisher queue.Publisher    // nil handles post events in-process
	images    service.ImageStore // nil disables image uploads

	auth   *service.AuthService
	view   handler.Renderer
	health func(ctx context.Context) error
}

// router builds services and handlers on top of the app's stores.
func (a app) router(cfg *config.Config) chi.Router {
	publisher := a.publisher
	if publisher == nil {
		publisher = worker.InlinePublisher{Handler: worker.NewHandler(a.feedCache, a.follows, a.pages)}
	}

	userService := service.NewUserService(a.users, a.follows, a.posts)
	followService := service.NewFollowService(a.follows, a.users, a.tx, a.feedCache)
	feedService := service.NewFeedService(a.feedCache, a.posts, a.follows)
	postService := service.NewPostService(a.posts, a.groups, a.users, a.comments, a.tx, a.images, publisher)
	commentService := service.NewCommentService(a.comments, a.posts, a.tx)

	return NewRouter(RouterConfig{
		AuthHandler:    handler.NewAuthHandler(userService, a.auth, cfg.CookieSecure, a.view),
		UserHandler:    handler.NewUserHandler(userService, a.view),
		PostHandler:    handler.NewPostHandler(postService, a.view),
		CommentHandler: handler.NewCommentHandler(commentService, postService, a.view),
		FollowHandler:  handler.NewFollowHandler(followService, a.view),
		FeedHandler:    handler.NewFeedHandler(feedService, a.view),
		Tokens:         a.auth,
		View:           a.view,
		Pages:          a.pages,
		PageCacheTTL:   cfg.PageCacheTTL,
		RequestTimeout: cfg.RequestTimeout,
		Health:         a.health,
	})
}

// Run starts the site and blocks until SIGINT/SIGTERM or a server error.
func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	monitoring.Register()

	view, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	a := app{
		users:    repository.NewUserRepository(db),
		groups:   repository.NewGroupRepository(db),
		follows:  repository.NewFollowRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		tx:       database.NewTxRunner(db),
		auth:     service.NewAuthService(cfg),
		view:     view,
		health:   db.PingContext,
	}

	// 3. Redis: feed cache, page cache and the feed worker pool
	if cfg.RedisURL != "" {
		rdb, err := appredis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()

		a.feedCache = cache.NewFeedCache(rdb)
		a.pages = cache.NewRedisPageCache(rdb)
		a.publisher = queue.NewPublisher(rdb, streamMaxLen)
		a.health = func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		}

		manager := worker.NewManager(
			queue.NewConsumer(rdb),
			worker.NewHandler(a.feedCache, a.follows, a.pages),
			worker.ManagerConfig{WorkerCount: cfg.WorkerCount},
		)
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start feed workers: %w", err)
		}
		defer manager.Stop()
	} else {
		a.pages = cache.NewMemoryPageCache(memoryPageEntries, cfg.PageCacheTTL)
		log.Warn("REDIS_URL not set: feeds read from Postgres, page cache kept in memory")
	}

	// 4. Optional image storage
	if cfg.MediaEnabled() {
		media, err := service.NewMediaService(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to init media storage: %w", err)
		}
		a.images = media
	} else {
		log.Info("R2 storage not configured: image uploads disabled")
	}

	// 5. Serve
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.router(cfg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
