package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
	_ "modernc.org/sqlite"

	"github.com/kinolab/marquee/internal/api"
	"github.com/kinolab/marquee/internal/browse"
	"github.com/kinolab/marquee/internal/card"
	"github.com/kinolab/marquee/internal/catalog"
	"github.com/kinolab/marquee/internal/config"
	"github.com/kinolab/marquee/internal/detail"
	"github.com/kinolab/marquee/internal/home"
	"github.com/kinolab/marquee/internal/lang"
	"github.com/kinolab/marquee/internal/respcache"
	"github.com/kinolab/marquee/internal/schema"
	"github.com/kinolab/marquee/internal/search"
)

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var sink io.Writer = os.Stdout
	if cfg.LogFile != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func runServe(configPath string) error {
	// .env values feed ${VAR} substitution in the config file; a missing
	// .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg.Server)

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	store := catalog.NewStore(db)
	loc := lang.NewLocalizer(store)
	cards := card.NewBuilder(loc)
	cache := respcache.New()

	providers := make([]home.Provider, 0, len(cfg.Catalog.Providers))
	for _, p := range cfg.Catalog.Providers {
		providers = append(providers, home.Provider{Name: p.Name, Needles: p.Needles})
	}
	genres := make([]home.Genre, 0, len(cfg.Catalog.HomeGenres))
	for _, g := range cfg.Catalog.HomeGenres {
		genres = append(genres, home.Genre{Key: g.Key, Needles: g.Needles})
	}
	tabs := make([]browse.Tab, 0, len(cfg.Catalog.Tabs))
	for _, t := range cfg.Catalog.Tabs {
		tabs = append(tabs, browse.Tab{
			Key:     t.Key,
			Order:   catalog.Order(t.Order),
			Needles: t.Needles(),
		})
	}

	homeAgg := home.New(store, cards, cache, cfg.Cache.HomeTTL.Duration, providers, genres, logger.With("component", "home"))
	detailAsm := detail.New(store, loc, cards, cache, cfg.Cache.SimilarTTL.Duration)
	browser := browse.New(store, cards, tabs, cfg.Catalog.PageSize)
	engine := search.New(store, loc, cards)

	mux := http.NewServeMux()
	apiSrv := api.New(homeAgg, detailAsm, browser, engine, logger.With("component", "api"))
	apiSrv.RegisterRoutes(mux)

	// Recover sits innermost so a panic turns into a 500 before the gzip
	// writer closes and commits the response.
	var handler http.Handler = mux
	handler = api.Recover(handler, logger)
	handler = api.Gzip(handler)
	handler = api.RateLimit(handler, cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	handler = api.LogRequests(handler, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return runJanitor(ctx, cache, cfg.Cache, logger)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// runJanitor periodically drops cache entries past the longest TTL so a
// long-lived process doesn't accumulate one entry per language ever seen.
func runJanitor(ctx context.Context, cache *respcache.Cache, cfg config.CacheConfig, logger *slog.Logger) error {
	maxAge := cfg.HomeTTL.Duration
	if cfg.SimilarTTL.Duration > maxAge {
		maxAge = cfg.SimilarTTL.Duration
	}
	ticker := time.NewTicker(cfg.JanitorInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := cache.Prune(maxAge); n > 0 {
				logger.Debug("cache pruned", "removed", n)
			}
		}
	}
}

func runInit(configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(schema.DDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	fmt.Printf("initialized catalog database at %s\n", cfg.Database.Path)
	return nil
}
