package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-content-service/internal/app"
	"course-content-service/internal/auth"
	"course-content-service/internal/config"
	"course-content-service/internal/events"
	"course-content-service/internal/infra/file"
	"course-content-service/internal/infra/memory"
	pgsnapshots "course-content-service/internal/infra/postgres"
	redisinfra "course-content-service/internal/infra/redis"
	"course-content-service/internal/logger"
	transport "course-content-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the course content server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Auth.LecturerToken == "" {
		log.Warn().Msg("No lecturer token configured; lecturer operations are disabled")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	snapshots, closeSnapshots, err := openSnapshotStore(ctx, cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	flushTimeout := config.Duration(cfg.Storage.FlushTimeout, 5*time.Second)
	quizRepo := memory.NewQuizRepository(snapshots, flushTimeout, log)
	if err := quizRepo.Load(ctx); err != nil {
		return err
	}
	feedStore := memory.NewFeedStore(snapshots, flushTimeout, log)
	if err := feedStore.Load(ctx); err != nil {
		return err
	}

	var channels app.ChannelRegistry
	if redisClient != nil {
		channels = redisinfra.NewChannelStore(redisClient, config.Duration(cfg.Redis.TTL, 10*time.Minute), cfg.Feed.SubscriberBuffer, instanceID(), log)
	} else {
		channels = memory.NewChannelStore(cfg.Feed.SubscriberBuffer)
	}
	feed := app.NewFeedService(feedStore, channels, log)

	var autoEvents app.AutoEventSink = feed
	switch cfg.Feed.AutoEvents {
	case config.AutoEventsDirect:
	case config.AutoEventsBus:
		bus := events.NewInProcessBus(log)
		defer bus.Close()
		if err := events.NewForwarder(bus, feed, log).Start(ctx); err != nil {
			return err
		}
		autoEvents = events.NewPublisher(bus, log)
	default:
		return fmt.Errorf("unknown feed.autoEvents mode %q", cfg.Feed.AutoEvents)
	}
	quizzes := app.NewQuizService(quizRepo, autoEvents, log)

	router := transport.NewRouter(transport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Lecturer:       auth.NewStaticToken(cfg.Auth.LecturerToken),
		Log:            log,
	}, transport.Handlers{
		Quiz: transport.NewQuizHandler(quizzes, log),
		Feed: transport.NewFeedHandler(feed, autoEvents, config.Duration(cfg.Feed.PingInterval, 30*time.Second), log),
		WS:   transport.NewWSHandler(feed, cfg.Server.AllowedOrigins, log),
	})

	// No WriteTimeout: feed streams are long-lived.
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("storage", cfg.Storage.Backend).
			Str("auto_events", cfg.Feed.AutoEvents).
			Msg("Starting course content service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			log.Error().Err(err).Msg("Server failed")
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openSnapshotStore selects the durable backend. The memory backend returns
// a nil store, which keeps everything in process.
func openSnapshotStore(ctx context.Context, cfg config.Config, redisClient *redis.Client, log zerolog.Logger) (memory.SnapshotStore, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn().Msg("Memory storage backend: data is lost on restart")
		return nil, noop, nil
	case config.BackendFile:
		store, err := file.NewSnapshotStore(cfg.Storage.Dir)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, noop, fmt.Errorf("redis storage backend requires redis.addr")
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		return redisinfra.NewSnapshotStore(redisClient), noop, nil
	case config.BackendPostgres:
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, noop, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		return pgsnapshots.NewSnapshotStore(pool), pool.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// instanceID labels this process in Redis liveness markers.
func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}
