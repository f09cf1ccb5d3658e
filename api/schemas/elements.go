package schemas

// -- Element Schemas --

// RoleUnknown is assigned at the boundary when a snapshot backend reports an
// element without a role. The accessibility role vocabulary is externally
// defined and open ended, so roles are carried as plain strings rather than a
// closed enumeration.
const RoleUnknown = "unknown"

// BBox is an axis-aligned bounding box in viewport coordinates.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is one node of a page's structured accessibility representation.
// Identifier is an opaque reference minted by the snapshot backend; it is only
// valid for actions taken against the snapshot that produced it.
type Element struct {
	Identifier  string `json:"id"`
	Role        string `json:"role"`
	Text        string `json:"text,omitempty"`
	Bounds      BBox   `json:"bbox"`
	Interactive bool   `json:"interactive"`
	InViewport  bool   `json:"in_viewport"`
}

// Normalize enforces the boundary invariants on an element list in place:
// a missing role becomes RoleUnknown. Nothing else is touched.
func Normalize(elements []Element) {
	for i := range elements {
		if elements[i].Role == "" {
			elements[i].Role = RoleUnknown
		}
	}
}

// PageSnapshot is a point-in-time structured view of a page, as opposed to a
// raster screenshot. Element order is the backend's document order and is
// meaningful downstream; it must not be re-sorted.
type PageSnapshot struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
}

// -- Selection Schemas --

// Selection is the decision a selector returns for one scene: exactly one
// identifier drawn from the candidate set it was shown.
type Selection struct {
	Identifier string `json:"element_id"`
	Reasoning  string `json:"reasoning,omitempty"`
	Title      string `json:"result_title,omitempty"`
}

// -- Token Accounting Schemas --

// TokenUsage records the cost of a single LLM round trip.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}
