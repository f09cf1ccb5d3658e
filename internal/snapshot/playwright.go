// internal/snapshot/playwright.go
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

const playwrightInstallTimeout = 5 * time.Minute

// PlaywrightProvider implements the same contract as the CDP backend on top
// of the Playwright driver. It exists so runs can be compared across the two
// automation stacks without touching anything downstream of the provider.
type PlaywrightProvider struct {
	cfg    config.SnapshotConfig
	logger *zap.Logger

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

// NewPlaywrightProvider installs the driver if needed, launches Chromium and
// opens the single page the run operates on.
func NewPlaywrightProvider(cfg config.SnapshotConfig, logger *zap.Logger) (*PlaywrightProvider, error) {
	if err := ensurePlaywright(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     []string{"--disable-gpu", "--no-sandbox", "--disable-dev-shm-usage"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	logger = logger.Named("snapshot.playwright")
	logger.Info("Chromium launched via playwright", zap.Bool("headless", cfg.Headless))

	return &PlaywrightProvider{cfg: cfg, logger: logger, pw: pw, browser: browser, page: page}, nil
}

// ensurePlaywright verifies the browser bundle is installed. The install
// command blocks, so it runs under its own timeout.
func ensurePlaywright() error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-time.After(playwrightInstallTimeout):
		return fmt.Errorf("timeout waiting for playwright installation")
	}
}

func (p *PlaywrightProvider) Name() string { return "playwright" }

func (p *PlaywrightProvider) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("Navigating", zap.String("url", url))

	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(p.cfg.NavigationTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	time.Sleep(p.cfg.SettleDelay)
	return nil
}

func (p *PlaywrightProvider) Capture(ctx context.Context) (*schemas.PageSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := p.page.Evaluate(walkerScript(p.cfg.MaxTextLength))
	if err != nil {
		return nil, fmt.Errorf("snapshot capture failed: %w", err)
	}

	elements, err := decodeElements(raw)
	if err != nil {
		return nil, err
	}

	title, _ := p.page.Title()
	p.logger.Debug("Snapshot captured", zap.String("url", p.page.URL()), zap.Int("elements", len(elements)))

	return &schemas.PageSnapshot{URL: p.page.URL(), Title: title, Elements: elements}, nil
}

func (p *PlaywrightProvider) Click(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Locator(elementSelector(identifier)).Click(); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	time.Sleep(p.cfg.SettleDelay)
	return nil
}

func (p *PlaywrightProvider) Type(ctx context.Context, identifier, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Locator(elementSelector(identifier)).Click(); err != nil {
		return fmt.Errorf("focus failed: %w", err)
	}
	// Typed with a per-key delay; instant fills trip bot heuristics on the
	// pages this tool is pointed at.
	return p.page.Keyboard().Type(text, playwright.KeyboardTypeOptions{Delay: playwright.Float(100)})
}

func (p *PlaywrightProvider) PressEnter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Keyboard().Press("Enter"); err != nil {
		return err
	}
	time.Sleep(p.cfg.SettleDelay)
	return nil
}

func (p *PlaywrightProvider) CurrentURL(context.Context) (string, error) {
	return p.page.URL(), nil
}

func (p *PlaywrightProvider) Close(context.Context) error {
	var firstErr error
	if err := p.browser.Close(); err != nil {
		firstErr = err
	}
	if err := p.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

var _ Provider = (*PlaywrightProvider)(nil)
