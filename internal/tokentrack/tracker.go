// internal/tokentrack/tracker.go
package tokentrack

import (
	"sync"

	"github.com/skryptik/sift-cli/api/schemas"
)

// Tracker accumulates per-scene token usage for one run. It is passed
// explicitly to whoever spends tokens; there is no process-wide counter.
// Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	label  string
	order  []string
	scenes map[string]schemas.TokenUsage
}

// SceneUsage is one row of a summary: a scene and what it cost.
type SceneUsage struct {
	Scene string             `json:"scene"`
	Usage schemas.TokenUsage `json:"usage"`
}

// Summary is the final accounting for a run.
type Summary struct {
	Label  string             `json:"label"`
	Scenes []SceneUsage       `json:"scenes"`
	Total  schemas.TokenUsage `json:"total"`
}

// New creates a tracker labeled with the run it accounts for.
func New(label string) *Tracker {
	return &Tracker{
		label:  label,
		scenes: make(map[string]schemas.TokenUsage),
	}
}

// Record adds usage under the given scene. Repeated records for the same
// scene accumulate, which covers retried LLM calls within one scene.
func (t *Tracker) Record(scene string, usage schemas.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.scenes[scene]; !seen {
		t.order = append(t.order, scene)
	}
	t.scenes[scene] = t.scenes[scene].Add(usage)
}

// Summarize returns the per-scene rows in first-recorded order plus totals.
func (t *Tracker) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := Summary{Label: t.label, Scenes: make([]SceneUsage, 0, len(t.order))}
	for _, scene := range t.order {
		usage := t.scenes[scene]
		summary.Scenes = append(summary.Scenes, SceneUsage{Scene: scene, Usage: usage})
		summary.Total = summary.Total.Add(usage)
	}
	return summary
}
