package filter

import (
	"path/filepath"
	"strings"

	"github.com/dyluth/compass/pkg/canvas"
)

// Criteria defines filtering criteria for projects.
// All filters are ANDed together - a project must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix milliseconds, compared with UpdatedAt; 0 = no filter
	UntilTimestampMs int64  // Unix milliseconds, compared with UpdatedAt; 0 = no filter
	NameGlob         string // Case-insensitive glob on the project name, empty = no filter
	NonEmpty         bool   // Only projects with at least one item
}

// Matches returns true if the project matches all filter criteria.
func (c *Criteria) Matches(p canvas.Project) bool {
	if c.SinceTimestampMs > 0 && p.UpdatedAt < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && p.UpdatedAt > c.UntilTimestampMs {
		return false
	}

	if c.NameGlob != "" {
		matched, err := filepath.Match(strings.ToLower(c.NameGlob), strings.ToLower(p.Name))
		if err != nil || !matched {
			return false
		}
	}

	if c.NonEmpty && p.ItemCount() == 0 {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.NameGlob != "" ||
		c.NonEmpty
}

// Apply returns the projects that match, preserving order.
func (c *Criteria) Apply(projects []canvas.Project) []canvas.Project {
	if !c.HasFilters() {
		return projects
	}
	out := make([]canvas.Project, 0, len(projects))
	for _, p := range projects {
		if c.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
