package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	jsonfile "progresskit/adapters/jsonfile"
	mem "progresskit/adapters/memory"
	redisAdapter "progresskit/adapters/redis"
	sqlxAdapter "progresskit/adapters/sqlx"
	"progresskit/api/httpapi"
	"progresskit/catalog"
	"progresskit/config"
	"progresskit/engine"
	"progresskit/leaderboard"
	"progresskit/progress"
	"progresskit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Kit       *progress.Kit
	Directory engine.ActivityDirectory
	Board     leaderboard.Board
	Handler   http.Handler
	Server    *http.Server
}

func provideConfig(_ context.Context) (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStore(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	return setupStorage(ctx, cfg)
}

func provideDirectory(cfg *config.Config) (engine.ActivityDirectory, error) {
	if cfg.Catalog.Path == "" {
		return catalog.NewStatic(), nil
	}
	return catalog.LoadFile(cfg.Catalog.Path)
}

func provideBoard(cfg *config.Config) (leaderboard.Board, error) {
	if cfg.Leaderboard.Backend == "redis" {
		return redisAdapter.NewLeaderboard(cfg.Leaderboard.Redis)
	}
	return leaderboard.NewSkipList(), nil
}

func provideKit(cfg *config.Config, hub *realtime.Hub, store engine.Store, board leaderboard.Board) (*progress.Kit, error) {
	opts := []progress.Option{
		progress.WithRealtime(hub),
		progress.WithStore(store),
		progress.WithLeaderboard(board),
		progress.WithDispatchMode(engine.DispatchAsync),
	}
	if cfg.Leaderboard.CacheSummaries {
		client, err := redisAdapter.Connect(cfg.Leaderboard.Redis)
		if err != nil {
			return nil, err
		}
		opts = append(opts, progress.WithSummaryCache(redisAdapter.NewSummaryCache(client, cfg.Leaderboard.CacheTTL)))
	}
	return progress.New(opts...), nil
}

func provideHandler(kit *progress.Kit, hub *realtime.Hub, directory engine.ActivityDirectory, board leaderboard.Board, cfg *config.Config) http.Handler {
	return httpapi.NewMux(httpapi.Deps{
		Service:   kit.Service,
		Projector: kit.Projector,
		Directory: directory,
		Board:     board,
		Hub:       hub,
	}, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		return jsonfile.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
