// internal/filter/filter.go
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skryptik/sift-cli/api/schemas"
)

// ErrInvalidConfig marks configuration that would produce a degenerate pass.
// It is detected eagerly, before any element is examined.
var ErrInvalidConfig = errors.New("invalid filter config")

// Config is the immutable configuration for one filtering pass.
//
// Role matching is exact and case sensitive against the backend's role
// vocabulary; there is no prefix or fuzzy matching. Text markers are exact,
// case-sensitive substrings checked in order. Note the middle-dot marker used
// for ad detection ("·") can legitimately appear in punctuated result titles;
// callers that worry about that should scope it per scene rather than apply it
// globally. Markers are deliberately not lowercased here so that "Ad" does not
// swallow every word containing "ad".
type Config struct {
	ExcludedRoles       []string `mapstructure:"excluded_roles" json:"excluded_roles,omitempty"`
	ExcludedTextMarkers []string `mapstructure:"excluded_text_markers" json:"excluded_text_markers,omitempty"`
	RequireInteractive  bool     `mapstructure:"require_interactive" json:"require_interactive,omitempty"`
}

// Validate rejects degenerate configurations. An empty-string marker matches
// every element and would silently exclude the whole snapshot, so it is a
// config error, not a runtime discovery.
func (c Config) Validate() error {
	for i, marker := range c.ExcludedTextMarkers {
		if marker == "" {
			return fmt.Errorf("%w: excluded_text_markers[%d] is empty", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Widened returns a copy of the config with the next relaxation applied:
// text markers are dropped first, then role exclusions, then the
// interactivity requirement. It reports false when nothing was left to relax.
func (c Config) Widened() (Config, bool) {
	switch {
	case len(c.ExcludedTextMarkers) > 0:
		c.ExcludedTextMarkers = nil
		return c, true
	case len(c.ExcludedRoles) > 0:
		c.ExcludedRoles = nil
		return c, true
	case c.RequireInteractive:
		c.RequireInteractive = false
		return c, true
	default:
		return c, false
	}
}

// Union combines two configs: the set union of role exclusions, the
// concatenation of text markers (receiver's first, duplicates removed), and
// the OR of the interactivity requirements.
func (c Config) Union(other Config) Config {
	merged := Config{RequireInteractive: c.RequireInteractive || other.RequireInteractive}

	seenRole := make(map[string]struct{}, len(c.ExcludedRoles)+len(other.ExcludedRoles))
	for _, role := range append(append([]string{}, c.ExcludedRoles...), other.ExcludedRoles...) {
		if _, ok := seenRole[role]; ok {
			continue
		}
		seenRole[role] = struct{}{}
		merged.ExcludedRoles = append(merged.ExcludedRoles, role)
	}

	seenMarker := make(map[string]struct{}, len(c.ExcludedTextMarkers)+len(other.ExcludedTextMarkers))
	for _, m := range append(append([]string{}, c.ExcludedTextMarkers...), other.ExcludedTextMarkers...) {
		if _, ok := seenMarker[m]; ok {
			continue
		}
		seenMarker[m] = struct{}{}
		merged.ExcludedTextMarkers = append(merged.ExcludedTextMarkers, m)
	}

	return merged
}

// Counts partitions the excluded elements by the reason they were dropped.
// Reasons are mutually exclusive: an element dropped by role is never also
// counted against a text marker (role check runs first, first match wins).
type Counts struct {
	ByRole         int `json:"by_role"`
	ByText         int `json:"by_text"`
	NonInteractive int `json:"non_interactive"`
}

// Total is the number of elements removed across all reasons.
func (c Counts) Total() int {
	return c.ByRole + c.ByText + c.NonInteractive
}

// Result is the output of one filtering pass. Kept preserves the input order
// of the survivors; len(Kept) + Excluded.Total() always equals the input
// length.
type Result struct {
	Kept     []schemas.Element `json:"kept"`
	Excluded Counts            `json:"excluded"`
}

// Apply runs the three exclusion stages over the element list in order:
// role exclusion, then text markers, then the interactivity requirement.
// It is a pure function of its inputs; the input slice is never mutated and
// no element is synthesized or altered. An empty result is a legitimate
// outcome, not an error; the only failure mode is an invalid config.
func Apply(elements []schemas.Element, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	excludedRoles := make(map[string]struct{}, len(cfg.ExcludedRoles))
	for _, role := range cfg.ExcludedRoles {
		excludedRoles[role] = struct{}{}
	}

	res := Result{Kept: make([]schemas.Element, 0, len(elements))}

	for _, el := range elements {
		if _, drop := excludedRoles[el.Role]; drop {
			res.Excluded.ByRole++
			continue
		}
		if markerHit(el.Text, cfg.ExcludedTextMarkers) {
			res.Excluded.ByText++
			continue
		}
		if cfg.RequireInteractive && !el.Interactive {
			res.Excluded.NonInteractive++
			continue
		}
		res.Kept = append(res.Kept, el)
	}

	return res, nil
}

// markerHit reports whether text contains any marker as a substring. Markers
// are checked in configuration order and the first hit wins; membership of
// the result does not depend on which marker matched.
func markerHit(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
