// internal/snapshot/chromedp.go
package snapshot

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

// ChromedpProvider drives a Chrome instance over CDP and extracts structured
// snapshots with the shared walker script.
type ChromedpProvider struct {
	cfg    config.SnapshotConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
}

// NewChromedpProvider launches the browser. The parent context bounds the
// whole browser lifetime, not a single call.
func NewChromedpProvider(parent context.Context, cfg config.SnapshotConfig, logger *zap.Logger) (*ChromedpProvider, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	p := &ChromedpProvider{
		cfg:         cfg,
		logger:      logger.Named("snapshot.chromedp"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
	}

	// Start the browser now and pin the viewport, so the first Navigate does
	// not pay the launch cost inside its own timeout.
	if err := chromedp.Run(browserCtx,
		emulation.SetDeviceMetricsOverride(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight), 1, false),
	); err != nil {
		browserStop()
		allocCancel()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	p.logger.Info("Chrome launched",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight),
	)
	return p, nil
}

// run executes chromedp actions under the navigation timeout, honoring early
// cancellation of the caller's context.
func (p *ChromedpProvider) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(p.browserCtx, p.cfg.NavigationTimeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *ChromedpProvider) Name() string { return "chromedp" }

func (p *ChromedpProvider) Navigate(ctx context.Context, url string) error {
	p.logger.Info("Navigating", zap.String("url", url))
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(p.cfg.SettleDelay),
	)
}

func (p *ChromedpProvider) Capture(ctx context.Context) (*schemas.PageSnapshot, error) {
	var (
		elements []schemas.Element
		url      string
		title    string
	)

	err := p.run(ctx,
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.Evaluate(walkerScript(p.cfg.MaxTextLength), &elements),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot capture failed: %w", err)
	}

	schemas.Normalize(elements)
	p.logger.Debug("Snapshot captured", zap.String("url", url), zap.Int("elements", len(elements)))

	return &schemas.PageSnapshot{URL: url, Title: title, Elements: elements}, nil
}

func (p *ChromedpProvider) Click(ctx context.Context, identifier string) error {
	return p.run(ctx,
		chromedp.Click(elementSelector(identifier), chromedp.ByQuery),
		chromedp.Sleep(p.cfg.SettleDelay),
	)
}

func (p *ChromedpProvider) Type(ctx context.Context, identifier, text string) error {
	return p.run(ctx,
		chromedp.SendKeys(elementSelector(identifier), text, chromedp.ByQuery),
	)
}

func (p *ChromedpProvider) PressEnter(ctx context.Context) error {
	return p.run(ctx,
		chromedp.KeyEvent(kb.Enter),
		chromedp.Sleep(p.cfg.SettleDelay),
	)
}

func (p *ChromedpProvider) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (p *ChromedpProvider) Close(context.Context) error {
	p.browserStop()
	p.allocCancel()
	return nil
}

var _ Provider = (*ChromedpProvider)(nil)
