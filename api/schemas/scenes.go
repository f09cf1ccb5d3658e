package schemas

import "time"

// -- Scene Schemas --

// SceneAction defines what the runner does with a scene's chosen element.
type SceneAction string

const (
	ActionNavigate SceneAction = "navigate"
	ActionClick    SceneAction = "click"
	ActionType     SceneAction = "type"
	ActionVerify   SceneAction = "verify"
)

// SceneOutcome classifies how a scene ended.
type SceneOutcome string

const (
	OutcomeSuccess     SceneOutcome = "success"
	OutcomeNoCandidate SceneOutcome = "no_candidate"
	OutcomeError       SceneOutcome = "error"
)

// SceneRecord is the archived result of one scene: how many elements the
// snapshot produced, what the filter kept and why it dropped the rest, what
// the selector cost, and how the scene ended.
type SceneRecord struct {
	RunID          string       `json:"run_id"`
	Scene          string       `json:"scene"`
	Sequence       int          `json:"sequence"`
	URL            string       `json:"url,omitempty"`
	RawElements    int          `json:"raw_elements"`
	KeptElements   int          `json:"kept_elements"`
	ExcludedByRole int          `json:"excluded_by_role"`
	ExcludedByText int          `json:"excluded_by_text"`
	ExcludedInert  int          `json:"excluded_inert"`
	Usage          TokenUsage   `json:"usage"`
	Outcome        SceneOutcome `json:"outcome"`
	Detail         string       `json:"detail,omitempty"`
	ObservedAt     time.Time    `json:"observed_at"`
}

// RunRecord describes one execution of a scripted task.
type RunRecord struct {
	ID         string     `json:"id"`
	Task       string     `json:"task"`
	Backend    string     `json:"backend"`
	Selector   string     `json:"selector"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Succeeded  bool       `json:"succeeded"`
	Usage      TokenUsage `json:"usage"`
}
