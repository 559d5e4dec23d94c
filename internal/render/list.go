// Package render writes projects for people and for tools: the project list
// table, JSONL, the canvas view used by `compass show`, and export documents.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/compass/pkg/canvas"
)

// FormatTable writes projects as a table with columns ID, NAME, ITEMS, LINKS and UPDATED.
// active marks the project later commands default to. Returns the number of rows written.
func FormatTable(w io.Writer, projects []canvas.Project, namespace, active string) int {
	if len(projects) == 0 {
		fmt.Fprintf(w, "No projects found in namespace '%s'\n", namespace)
		return 0
	}

	fmt.Fprintf(w, "Projects in namespace '%s':\n\n", namespace)
	fmt.Fprintf(w, "  %-10s %-32s %-6s %-6s %s\n", "ID", "NAME", "ITEMS", "LINKS", "UPDATED")
	fmt.Fprintf(w, "  %-10s %-32s %-6s %-6s %s\n", "----------", strings.Repeat("-", 32), "-----", "-----", "--------")

	for _, p := range projects {
		marker := " "
		if p.ID == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-10s %-32s %-6d %-6d %s\n",
			marker,
			ShortID(p.ID),
			truncate(p.Name, 32),
			p.ItemCount(),
			len(p.Threads),
			Age(p.UpdatedAt, time.Now()),
		)
	}

	noun := "project"
	if len(projects) != 1 {
		noun = "projects"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(projects), noun)
	return len(projects)
}

// summary is the JSONL record for one project.
type summary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Items         int    `json:"items"`
	Threads       int    `json:"threads"`
	UpdatedAt     int64  `json:"updatedAt"`
	SchemaVersion string `json:"schemaVersion"`
}

// FormatJSONL writes one compact JSON summary per project, one per line.
// Suitable for piping into jq.
func FormatJSONL(w io.Writer, projects []canvas.Project) error {
	enc := json.NewEncoder(w)
	for _, p := range projects {
		err := enc.Encode(summary{
			ID:            p.ID,
			Name:          p.Name,
			Items:         p.ItemCount(),
			Threads:       len(p.Threads),
			UpdatedAt:     p.UpdatedAt,
			SchemaVersion: p.SchemaVersion,
		})
		if err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// ShortID truncates an id to its first 8 characters for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Age formats a Unix millisecond timestamp relative to now, like "5m ago".
func Age(timestampMs int64, now time.Time) string {
	if timestampMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(timestampMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	s = strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
