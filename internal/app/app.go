// Package app assembles the service's dependencies and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/api"
	"github.com/pzntech/showcase-crawler/internal/cache"
	"github.com/pzntech/showcase-crawler/internal/clock/system"
	"github.com/pzntech/showcase-crawler/internal/config"
	"github.com/pzntech/showcase-crawler/internal/github"
	"github.com/pzntech/showcase-crawler/internal/limiter"
	"github.com/pzntech/showcase-crawler/internal/markdown"
	"github.com/pzntech/showcase-crawler/internal/scraper"
	"github.com/pzntech/showcase-crawler/internal/screenshot"
	"github.com/pzntech/showcase-crawler/internal/store"
	"github.com/pzntech/showcase-crawler/internal/telemetry"
)

// App contains the application's wired dependencies.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *store.Store
	capturer   *screenshot.Capturer
	reconciler *scraper.Reconciler
	apiServer  *api.Server
}

// New wires the full dependency graph from configuration. The caller owns
// Close.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	telemetry.Init()

	clock := system.Clock{}
	lim := limiter.New(cfg.Scraper.Concurrency)

	st, err := store.New(ctx, store.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, clock, lim, logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}

	source := github.New(github.Config{
		Owner:         cfg.GitHub.Owner,
		Repo:          cfg.GitHub.Repo,
		Token:         cfg.GitHub.Token,
		PrimaryBranch: cfg.GitHub.PrimaryBranch,
	})

	capturer := screenshot.NewCapturer(screenshot.Config{
		UserAgent: cfg.Screenshot.UserAgent,
		Timeout:   cfg.Screenshot.Timeout(),
		Quality:   cfg.Screenshot.Quality,
		DomainQPS: cfg.Screenshot.DomainQPS,
	}, lim, logger)

	reconciler := scraper.New(
		source,
		markdown.NewExtractor(nil, markdown.NewRenderer().Render),
		cache.New(st, logger),
		st,
		capturer,
		screenshot.NewGate(cfg.Screenshot.FreshnessWindow()),
		clock,
		scraper.Config{
			PrimaryBranch: cfg.GitHub.PrimaryBranch,
			ScreenshotDir: cfg.Screenshot.Dir,
			PublicPrefix:  "screenshots",
		},
		logger,
	)

	apiServer := api.NewServer(reconciler, st, st, cfg, cfg.Screenshot.Dir, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		capturer:   capturer,
		reconciler: reconciler,
		apiServer:  apiServer,
	}, nil
}

// Run starts the HTTP server and the interval scheduler, blocking until the
// context is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	if minutes := a.cfg.Scraper.IntervalMinutes; minutes > 0 {
		go a.schedule(ctx, time.Duration(minutes)*time.Minute)
	}

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	a.Close()
	return nil
}

// RunOnce performs a single reconciliation and returns its result.
func (a *App) RunOnce(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.reconciler.Run(ctx)
}

// schedule triggers a run every interval. A tick that lands while a run is
// still in flight is dropped by the single-flight guard.
func (a *App) schedule(ctx context.Context, interval time.Duration) {
	a.logger.Info("interval scheduler started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.reconciler.Trigger() {
				a.logger.Info("scheduled run skipped, previous still in flight")
			}
		}
	}
}

// Close releases held resources.
func (a *App) Close() {
	a.capturer.Close()
	a.store.Close()
	a.logger.Info("shutdown complete")
}
