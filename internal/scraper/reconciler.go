// Package scraper drives the end-to-end reconciliation run: list branches,
// diff, extract, capture, persist, and refresh the change-detection cache.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/cache"
	"github.com/pzntech/showcase-crawler/internal/catalog"
	"github.com/pzntech/showcase-crawler/internal/hash/md5"
	"github.com/pzntech/showcase-crawler/internal/markdown"
	"github.com/pzntech/showcase-crawler/internal/screenshot"
	"github.com/pzntech/showcase-crawler/internal/telemetry"
)

// ErrAlreadyRunning is returned by Run when a reconciliation is in flight.
var ErrAlreadyRunning = errors.New("scrape already in progress")

// Config holds the reconciler's fixed parameters.
type Config struct {
	PrimaryBranch string
	// ScreenshotDir is where capture files land on disk.
	ScreenshotDir string
	// PublicPrefix is the path prefix recorded on project rows, matching the
	// statically served route.
	PublicPrefix string
}

// Reconciler owns the single-flight guard and the per-run cache snapshot.
// Construct once per process; Run/Trigger may be called any number of times.
type Reconciler struct {
	source  catalog.ContentSource
	extract *markdown.Extractor
	cache   *cache.Cache
	store   catalog.ProjectStore
	capture catalog.Capturer
	gate    screenshot.Gate
	clock   catalog.Clock
	logger  *zap.Logger
	cfg     Config

	running atomic.Bool
}

// New constructs a Reconciler.
func New(
	source catalog.ContentSource,
	extract *markdown.Extractor,
	c *cache.Cache,
	store catalog.ProjectStore,
	capture catalog.Capturer,
	gate screenshot.Gate,
	clock catalog.Clock,
	cfg Config,
	logger *zap.Logger,
) *Reconciler {
	if cfg.PrimaryBranch == "" {
		cfg.PrimaryBranch = "main"
	}
	if cfg.PublicPrefix == "" {
		cfg.PublicPrefix = "screenshots"
	}
	return &Reconciler{
		source:  source,
		extract: extract,
		cache:   c,
		store:   store,
		capture: capture,
		gate:    gate,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Trigger starts a reconciliation in the background and reports whether it
// started. A run already in flight returns false and performs no work: at
// most one run exists at a time across all trigger sources.
func (r *Reconciler) Trigger() bool {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("scrape already in progress")
		return false
	}
	go func() {
		defer r.running.Store(false)
		if err := r.run(context.Background()); err != nil {
			r.logger.Error("scrape failed", zap.Error(err))
		}
	}()
	return true
}

// Run executes a reconciliation synchronously. It returns ErrAlreadyRunning
// when another run holds the single-flight guard.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)
	return r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) error {
	if err := r.cache.Load(ctx); err != nil {
		telemetry.ObserveRun("failed")
		return err
	}
	branches, err := r.source.Branches(ctx)
	if err != nil {
		telemetry.ObserveRun("failed")
		return fmt.Errorf("list branches: %w", err)
	}

	// Branches are independent; failures inside processBranch are logged and
	// never abort siblings.
	var wg sync.WaitGroup
	for _, branch := range branches {
		wg.Add(1)
		go func(branch string) {
			defer wg.Done()
			r.processBranch(ctx, branch)
		}(branch)
	}
	wg.Wait()

	telemetry.ObserveRun("completed")
	r.logger.Info("scrape completed", zap.Int("branches", len(branches)))
	return nil
}

func (r *Reconciler) processBranch(ctx context.Context, branch string) {
	log := r.logger.With(zap.String("branch", branch))

	content, err := r.source.Readme(ctx, branch)
	if err != nil {
		log.Warn("readme fetch failed", zap.Error(err))
		telemetry.ObserveBranch("failed")
		return
	}
	if content == "" {
		log.Warn("no readme content")
		telemetry.ObserveBranch("empty")
		return
	}

	contentHash := md5.Digest(content)
	if cached, ok := r.cache.Get(catalog.CacheTypeBranch, branch); ok && cached == contentHash {
		log.Debug("branch cache hit")
		telemetry.ObserveBranch("hit")
		return
	}

	weeks, err := r.extract.Parse(content)
	if err != nil {
		log.Warn("readme parse failed", zap.Error(err))
		telemetry.ObserveBranch("failed")
		return
	}

	season := catalog.SeasonNumber(branch, r.cfg.PrimaryBranch)
	log.Info("processing branch", zap.Int("season", season), zap.Int("weeks", len(weeks)))
	for _, week := range weeks {
		if err := r.processWeek(ctx, branch, season, week); err != nil {
			// Leaving the branch hash stale guarantees the next run retries
			// exactly this work.
			log.Error("week persistence failed, branch will be retried", zap.Error(err))
			telemetry.ObserveBranch("failed")
			return
		}
	}

	if err := r.cache.Put(ctx, catalog.CacheTypeBranch, branch, contentHash); err != nil {
		log.Warn("branch cache update failed", zap.Error(err))
		return
	}
	telemetry.ObserveBranch("processed")
}

type pendingProject struct {
	raw        catalog.RawProject
	identifier string
	hash       string
}

func (r *Reconciler) processWeek(
	ctx context.Context,
	branch string,
	season int,
	week catalog.RawWeek,
) error {
	var pending []pendingProject
	for _, raw := range week.Projects {
		identifier := catalog.BuildIdentifier(branch, raw.Order, week.Date)
		blockHash := md5.Digest(raw.Block)
		if cached, ok := r.cache.Get(catalog.CacheTypeProject, identifier); ok && cached == blockHash {
			continue
		}
		pending = append(pending, pendingProject{raw: raw, identifier: identifier, hash: blockHash})
	}
	if len(pending) == 0 {
		return nil
	}

	shots := r.captureAll(ctx, pending)

	projects := make([]catalog.Project, 0, len(pending))
	for i, p := range pending {
		projects = append(projects, catalog.Project{
			Identifier:   p.identifier,
			Order:        p.raw.Order,
			Branch:       branch,
			Season:       season,
			Date:         week.Date,
			Creator:      p.raw.Creator,
			CreatorLower: lower(p.raw.Creator),
			Link:         p.raw.Link,
			LinkLower:    lower(p.raw.Link),
			Description:  p.raw.Description,
			Screenshot:   shots[i],
		})
	}

	if err := r.store.UpsertProjects(ctx, projects); err != nil {
		return err
	}
	telemetry.ObserveUpserts(len(projects))

	// Project cache entries update only after the transaction committed; a
	// failed cache write just means redundant reprocessing next run.
	for _, p := range pending {
		if err := r.cache.Put(ctx, catalog.CacheTypeProject, p.identifier, p.hash); err != nil {
			r.logger.Warn("project cache update failed",
				zap.String("identifier", p.identifier), zap.Error(err))
		}
	}
	return nil
}

// captureAll resolves a screenshot path per pending project. The capturer's
// shared limiter bounds true in-flight captures process-wide.
func (r *Reconciler) captureAll(ctx context.Context, pending []pendingProject) []string {
	shots := make([]string, len(pending))
	var wg sync.WaitGroup
	for i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			shots[i] = r.screenshotFor(ctx, pending[i])
		}(i)
	}
	wg.Wait()
	return shots
}

func (r *Reconciler) screenshotFor(ctx context.Context, p pendingProject) string {
	name := p.identifier + screenshot.Ext
	dest := filepath.Join(r.cfg.ScreenshotDir, name)
	public := path.Join(r.cfg.PublicPrefix, name)

	if r.gate.IsFresh(dest) {
		telemetry.ObserveScreenshot("cached")
		return public
	}
	if _, err := r.capture.Capture(ctx, p.raw.Link, dest); err != nil {
		// Capture failure is project-scoped; the row persists without a
		// screenshot.
		r.logger.Warn("screenshot capture failed",
			zap.String("url", p.raw.Link), zap.Error(err))
		telemetry.ObserveScreenshot("failed")
		return ""
	}
	telemetry.ObserveScreenshot("captured")
	return public
}

func lower(s string) string {
	return strings.ToLower(s)
}
