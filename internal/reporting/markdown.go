// internal/reporting/markdown.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/skryptik/sift-cli/api/schemas"
)

// Reporter renders an archived run as a markdown report in the style of the
// strategy-comparison writeups these runs feed.
type Reporter struct {
	writer io.WriteCloser
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New creates a reporter writing to the given path, or stdout when the path
// is empty or "stdout".
func New(outputPath string) (*Reporter, error) {
	if outputPath == "" || outputPath == "stdout" {
		return &Reporter{writer: &nopWriteCloser{os.Stdout}}, nil
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	return &Reporter{writer: f}, nil
}

// NewWithWriter builds a reporter over an arbitrary writer. Used by tests
// and by callers that manage the output stream themselves.
func NewWithWriter(w io.Writer) *Reporter {
	return &Reporter{writer: &nopWriteCloser{w}}
}

// Write renders the full report for one run.
func (r *Reporter) Write(run schemas.RunRecord, scenes []schemas.SceneRecord) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report: %s\n\n", run.Task)
	fmt.Fprintf(&b, "- **Run ID**: `%s`\n", run.ID)
	fmt.Fprintf(&b, "- **Snapshot backend**: %s\n", run.Backend)
	fmt.Fprintf(&b, "- **Selector**: %s\n", run.Selector)
	fmt.Fprintf(&b, "- **Started**: %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Duration**: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(100*time.Millisecond))
	fmt.Fprintf(&b, "- **Outcome**: %s\n\n", outcomeBadge(run.Succeeded))

	b.WriteString("## Scenes\n\n")
	b.WriteString("| # | Scene | Raw | Kept | By role | By text | Inert | Tokens | Outcome |\n")
	b.WriteString("|---|-------|-----|------|---------|---------|-------|--------|--------|\n")
	for _, scene := range scenes {
		fmt.Fprintf(&b, "| %d | %s | %d | %d | %d | %d | %d | %d | %s |\n",
			scene.Sequence, scene.Scene, scene.RawElements, scene.KeptElements,
			scene.ExcludedByRole, scene.ExcludedByText, scene.ExcludedInert,
			scene.Usage.TotalTokens, scene.Outcome)
	}

	fmt.Fprintf(&b, "\n## Token Totals\n\n")
	fmt.Fprintf(&b, "- Prompt tokens: %d\n", run.Usage.PromptTokens)
	fmt.Fprintf(&b, "- Completion tokens: %d\n", run.Usage.CompletionTokens)
	fmt.Fprintf(&b, "- **Total**: %d\n", run.Usage.TotalTokens)

	if reduction, ok := overallReduction(scenes); ok {
		fmt.Fprintf(&b, "\nFiltering reduced the candidate surface by %.1f%% across %d scenes with snapshots.\n",
			reduction, snapshotScenes(scenes))
	}

	_, err := io.WriteString(r.writer, b.String())
	return err
}

// Close finalizes the report and releases the underlying file, if any.
func (r *Reporter) Close() error {
	return r.writer.Close()
}

func outcomeBadge(succeeded bool) string {
	if succeeded {
		return "SUCCESS"
	}
	return "FAILED"
}

// overallReduction computes how much of the raw element volume the filter
// removed, across every scene that captured a snapshot.
func overallReduction(scenes []schemas.SceneRecord) (float64, bool) {
	var raw, kept int
	for _, scene := range scenes {
		raw += scene.RawElements
		kept += scene.KeptElements
	}
	if raw == 0 {
		return 0, false
	}
	return 100 * float64(raw-kept) / float64(raw), true
}

func snapshotScenes(scenes []schemas.SceneRecord) int {
	n := 0
	for _, scene := range scenes {
		if scene.RawElements > 0 {
			n++
		}
	}
	return n
}
