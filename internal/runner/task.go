// internal/runner/task.go
package runner

import (
	"fmt"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
	"github.com/skryptik/sift-cli/internal/filter"
	"github.com/skryptik/sift-cli/internal/selector"
)

// Scene is one step of a scripted task. Scenes that pick an element carry a
// filter policy and a selection goal; navigate and verify scenes do not.
type Scene struct {
	Name   string
	Action schemas.SceneAction

	// URL is the navigation target for ActionNavigate scenes.
	URL string

	// Filter and Goal drive the snapshot -> filter -> select pipeline for
	// ActionClick and ActionType scenes.
	Filter filter.Config
	Goal   selector.Goal

	// Text is what ActionType scenes type into the chosen element. The
	// runner submits with Enter afterwards.
	Text string
}

// Task is an ordered list of scenes with a name for the archive.
type Task struct {
	Name   string
	Scenes []Scene
}

// GoogleSearchTask builds the scripted search walkthrough: open the search
// page, find the query input among the filtered candidates, type the query,
// pick an organic result from the filtered results page and verify the
// browser left the search engine.
func GoogleSearchTask(query string, scenes config.ScenesConfig) Task {
	return Task{
		Name: "google-search",
		Scenes: []Scene{
			{
				Name:   "open-search-page",
				Action: schemas.ActionNavigate,
				URL:    "https://www.google.com",
			},
			{
				Name:   "find-search-box",
				Action: schemas.ActionType,
				Filter: scenes.FindControl,
				Goal: selector.Goal{
					Scene:          "find-search-box",
					Objective:      "Find the search input field on this page.",
					PreferredRoles: []string{"searchbox", "combobox", "textbox"},
				},
				Text: query,
			},
			{
				Name:   "choose-result",
				Action: schemas.ActionClick,
				Filter: scenes.ChooseResult,
				Goal: selector.Goal{
					Scene:          "choose-result",
					Objective:      fmt.Sprintf("Pick the organic search result most relevant to %q. Avoid sponsored entries.", query),
					PreferredRoles: []string{"link"},
				},
			},
			{
				Name:   "verify-navigation",
				Action: schemas.ActionVerify,
			},
		},
	}
}
