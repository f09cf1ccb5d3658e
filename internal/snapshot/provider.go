// internal/snapshot/provider.go
package snapshot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

// Provider supplies structured page snapshots and executes the actions the
// selector decides on. Element identifiers are minted per capture; an
// identifier from an earlier snapshot must not be replayed against a later
// page state.
type Provider interface {
	Name() string
	Navigate(ctx context.Context, url string) error
	Capture(ctx context.Context) (*schemas.PageSnapshot, error)
	Click(ctx context.Context, identifier string) error
	Type(ctx context.Context, identifier, text string) error
	PressEnter(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// New constructs the configured snapshot backend.
func New(ctx context.Context, cfg config.SnapshotConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Backend {
	case "chromedp":
		return NewChromedpProvider(ctx, cfg, logger)
	case "playwright":
		return NewPlaywrightProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

// elementSelector resolves a minted identifier back to its stamped DOM node.
func elementSelector(identifier string) string {
	return fmt.Sprintf(`[data-sift-id=%q]`, identifier)
}
