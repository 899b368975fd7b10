package screenshot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pzntech/showcase-crawler/internal/limiter"
)

// Ext is the file extension for captured screenshots.
const Ext = ".webp"

// freezeCSS is injected into every page before capture: scrollbar artifacts
// come from root-element overflow, and animations make captures
// non-reproducible.
const freezeCSS = `html, body { overflow: hidden !important; }
*, *::before, *::after { animation: none !important; transition: none !important; caret-color: transparent !important; }`

// Config is the fixed capture policy; options are not tunable per call.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Quality   int
	DomainQPS float64
}

// Capturer renders URLs to WebP files using headless Chrome. All captures
// share one injected limiter so the process-wide render budget holds no
// matter how many branches are in flight.
type Capturer struct {
	cfg            Config
	lim            *limiter.Limiter
	allocator      context.Context
	allocCancel    context.CancelFunc
	logger         *zap.Logger
	domainLimiters sync.Map
}

// NewCapturer creates a Capturer backed by a shared chromedp exec allocator.
func NewCapturer(cfg Config, lim *limiter.Limiter, logger *zap.Logger) *Capturer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 80
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Capturer{
		cfg:         cfg,
		lim:         lim,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}
}

// Close cancels the allocator context.
func (c *Capturer) Close() {
	c.allocCancel()
}

// Capture renders rawURL into a WebP file at dest, overwriting any stale
// file. The returned path equals dest on success. Navigation and timeout
// failures surface as errors; callers treat them as project-scoped and
// persist the project without a screenshot.
func (c *Capturer) Capture(ctx context.Context, rawURL, dest string) (string, error) {
	if err := c.lim.Acquire(ctx); err != nil {
		return "", err
	}
	defer c.lim.Release()

	if err := c.waitDomainBudget(ctx, rawURL); err != nil {
		return "", fmt.Errorf("capture rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(c.allocator)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	buf, err := c.runCapture(taskCtx, rawURL)
	if err != nil {
		return "", fmt.Errorf("capture %s: %w", rawURL, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(dest, buf, 0o600); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	c.logger.Debug("screenshot captured", zap.String("url", rawURL), zap.String("path", dest))
	return dest, nil
}

func (c *Capturer) runCapture(ctx context.Context, rawURL string) ([]byte, error) {
	var buf []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(1280, 800),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(injectStyleJS(freezeCSS), nil),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatWebp).
				WithQuality(int64(c.cfg.Quality)).
				Do(ctx)
			return err
		}),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return buf, nil
}

func injectStyleJS(css string) string {
	escaped := strings.ReplaceAll(css, "`", "\\`")
	return fmt.Sprintf(
		"(() => { const s = document.createElement('style'); s.textContent = `%s`; document.head.appendChild(s); })()",
		escaped,
	)
}

func (c *Capturer) waitDomainBudget(ctx context.Context, rawURL string) error {
	if c.cfg.DomainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse capture url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := c.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(c.cfg.DomainQPS), 1))
	lim, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
