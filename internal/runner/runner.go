// internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
	"github.com/skryptik/sift-cli/internal/filter"
	"github.com/skryptik/sift-cli/internal/selector"
	"github.com/skryptik/sift-cli/internal/snapshot"
	"github.com/skryptik/sift-cli/internal/tokentrack"
)

// Runner executes a scripted task scene by scene: snapshot the page, filter
// the element set down to candidates, let the selector pick one and perform
// the scene's action on it. When a scene yields no candidate it recovers by
// re-capturing the page and then progressively widening the filter.
type Runner struct {
	provider snapshot.Provider
	selector selector.Selector
	tracker  *tokentrack.Tracker
	runCfg   config.RunnerConfig
	settle   time.Duration
	logger   *zap.Logger
}

// New assembles a runner over an already constructed provider and selector.
func New(provider snapshot.Provider, sel selector.Selector, cfg config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		provider: provider,
		selector: sel,
		tracker:  tokentrack.New("run"),
		runCfg:   cfg.Runner,
		settle:   cfg.Snapshot.SettleDelay,
		logger:   logger,
	}
}

// Usage reports the per-scene token accounting accumulated so far.
func (r *Runner) Usage() tokentrack.Summary {
	return r.tracker.Summarize()
}

// Run walks the task's scenes in order. It returns the run record and every
// scene record regardless of outcome so failed runs can still be archived
// and reported on. The error, when non-nil, names the scene that broke the
// run.
func (r *Runner) Run(ctx context.Context, task Task) (schemas.RunRecord, []schemas.SceneRecord, error) {
	run := schemas.RunRecord{
		ID:        uuid.NewString(),
		Task:      task.Name,
		Backend:   r.provider.Name(),
		Selector:  r.selector.Name(),
		StartedAt: time.Now().UTC(),
	}

	r.logger.Info("Starting run",
		zap.String("run_id", run.ID),
		zap.String("task", task.Name),
		zap.String("selector", run.Selector))

	records := make([]schemas.SceneRecord, 0, len(task.Scenes))
	var runErr error
	var lastActionURL string

	for i, scene := range task.Scenes {
		rec, err := r.runScene(ctx, run.ID, i+1, scene, &lastActionURL)
		run.Usage = run.Usage.Add(rec.Usage)
		records = append(records, rec)
		if err != nil {
			runErr = fmt.Errorf("scene %q: %w", scene.Name, err)
			break
		}
	}

	run.FinishedAt = time.Now().UTC()
	run.Succeeded = runErr == nil

	r.logger.Info("Run finished",
		zap.String("run_id", run.ID),
		zap.Bool("succeeded", run.Succeeded),
		zap.Int("total_tokens", run.Usage.TotalTokens))

	return run, records, runErr
}

func (r *Runner) runScene(ctx context.Context, runID string, seq int, scene Scene, lastActionURL *string) (schemas.SceneRecord, error) {
	rec := schemas.SceneRecord{
		RunID:      runID,
		Scene:      scene.Name,
		Sequence:   seq,
		ObservedAt: time.Now().UTC(),
	}

	var err error
	switch scene.Action {
	case schemas.ActionNavigate:
		err = r.navigate(ctx, scene.URL, &rec, lastActionURL)
	case schemas.ActionType, schemas.ActionClick:
		err = r.pickAndAct(ctx, scene, &rec, lastActionURL)
	case schemas.ActionVerify:
		err = r.verify(ctx, &rec, *lastActionURL)
	default:
		err = fmt.Errorf("unknown scene action %q", scene.Action)
	}

	if err != nil {
		rec.Detail = err.Error()
		if rec.Outcome == "" {
			rec.Outcome = schemas.OutcomeError
		}
		return rec, err
	}
	rec.Outcome = schemas.OutcomeSuccess
	return rec, nil
}

func (r *Runner) navigate(ctx context.Context, url string, rec *schemas.SceneRecord, lastActionURL *string) error {
	if err := r.provider.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	rec.URL = url
	*lastActionURL = url
	return r.waitSettle(ctx)
}

// pickAndAct runs the snapshot -> filter -> select pipeline, recovering from
// an empty candidate set first by re-capturing once and then by widening the
// filter policy until it has nothing left to relax.
func (r *Runner) pickAndAct(ctx context.Context, scene Scene, rec *schemas.SceneRecord, lastActionURL *string) error {
	snap, err := r.capture(ctx, rec)
	if err != nil {
		return err
	}

	cfg := scene.Filter
	widened := 0
	resnapshotted := !r.runCfg.Resnapshot

	var selection schemas.Selection
	for {
		result, err := filter.Apply(snap.Elements, cfg)
		if err != nil {
			return fmt.Errorf("filtering failed: %w", err)
		}
		rec.KeptElements = len(result.Kept)
		rec.ExcludedByRole = result.Excluded.ByRole
		rec.ExcludedByText = result.Excluded.ByText
		rec.ExcludedInert = result.Excluded.NonInteractive

		r.logger.Info("Filtered snapshot",
			zap.String("scene", scene.Name),
			zap.Int("raw", rec.RawElements),
			zap.Int("kept", rec.KeptElements),
			zap.Int("excluded_by_role", rec.ExcludedByRole),
			zap.Int("excluded_by_text", rec.ExcludedByText),
			zap.Int("excluded_inert", rec.ExcludedInert))

		var usage schemas.TokenUsage
		selection, usage, err = r.selector.Select(ctx, scene.Goal, result.Kept)
		rec.Usage = rec.Usage.Add(usage)
		r.tracker.Record(scene.Name, usage)

		if err == nil {
			break
		}
		if !errors.Is(err, selector.ErrNoCandidate) {
			return fmt.Errorf("selection failed: %w", err)
		}

		// Recovery ladder: one fresh capture first, then widen the policy.
		if !resnapshotted {
			resnapshotted = true
			r.logger.Warn("No candidate, re-capturing page", zap.String("scene", scene.Name))
			if err := r.waitSettle(ctx); err != nil {
				return err
			}
			if snap, err = r.capture(ctx, rec); err != nil {
				return err
			}
			continue
		}
		next, ok := cfg.Widened()
		if !ok || widened >= r.runCfg.MaxWidenAttempts {
			rec.Outcome = schemas.OutcomeNoCandidate
			return fmt.Errorf("no candidate after %d widen attempts: %w", widened, err)
		}
		widened++
		cfg = next
		r.logger.Warn("No candidate, widening filter",
			zap.String("scene", scene.Name),
			zap.Int("attempt", widened))
	}

	r.logger.Info("Selected element",
		zap.String("scene", scene.Name),
		zap.String("element_id", selection.Identifier),
		zap.String("reasoning", selection.Reasoning))

	switch scene.Action {
	case schemas.ActionType:
		if err := r.provider.Type(ctx, selection.Identifier, scene.Text); err != nil {
			return fmt.Errorf("type failed: %w", err)
		}
		if err := r.provider.PressEnter(ctx); err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}
	case schemas.ActionClick:
		if err := r.provider.Click(ctx, selection.Identifier); err != nil {
			return fmt.Errorf("click failed: %w", err)
		}
	}

	*lastActionURL = snap.URL
	return r.waitSettle(ctx)
}

// verify confirms the last action moved the browser off the page it acted
// on. The scene fails when the URL never changed.
func (r *Runner) verify(ctx context.Context, rec *schemas.SceneRecord, before string) error {
	current, err := r.provider.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("url check failed: %w", err)
	}
	rec.URL = current
	if current == "" || current == before {
		return fmt.Errorf("navigation not observed, still at %q", before)
	}
	return nil
}

func (r *Runner) capture(ctx context.Context, rec *schemas.SceneRecord) (*schemas.PageSnapshot, error) {
	snap, err := r.provider.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}
	rec.URL = snap.URL
	rec.RawElements = len(snap.Elements)
	return snap, nil
}

func (r *Runner) waitSettle(ctx context.Context) error {
	if r.settle <= 0 {
		return nil
	}
	timer := time.NewTimer(r.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
