package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/compass/pkg/canvas"
)

// Format is an export document format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates an export format name. "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid export format: %s (must be 'markdown' or 'json')", s)
	}
}

// Export writes p in the given format.
func Export(w io.Writer, p canvas.Project, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, p)
	case FormatMarkdown:
		return Markdown(w, p)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// JSON writes the full project snapshot as indented JSON.
func JSON(w io.Writer, p canvas.Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// Markdown writes the project as a document: one section per space, one
// subsection per block, then the logic threads. Empty blocks are omitted.
func Markdown(w io.Writer, p canvas.Project) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	fmt.Fprintf(&b, "_Research canvas: %d items, %d logic threads._\n", p.ItemCount(), len(p.Threads))

	for _, space := range canvas.Spaces {
		var section strings.Builder
		for _, id := range canvas.BlocksInSpace(space) {
			items := p.Blocks[id].Items
			if len(items) == 0 {
				continue
			}
			def, _ := canvas.Lookup(id)
			fmt.Fprintf(&section, "\n### %s\n\n", def.Title)
			for _, it := range items {
				fmt.Fprintf(&section, "- %s%s\n", it.Text, markdownFlags(it))
			}
		}
		if section.Len() == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n%s", spaceTitle(space), section.String())
	}

	if len(p.Threads) > 0 {
		b.WriteString("\n## Logic threads\n\n")
		for _, t := range p.Threads {
			fmt.Fprintf(&b, "- %s ↔ %s\n", endpoint(p, t.SourceID), endpoint(p, t.TargetID))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func markdownFlags(it canvas.Item) string {
	var out string
	if it.IsKillCriterion {
		out += " **[kill criterion]**"
	}
	if it.Status != "" {
		out += fmt.Sprintf(" _(%s)_", it.Status)
	}
	return out
}

// spaceTitle turns "RISK" into "Risk space".
func spaceTitle(s canvas.SpaceID) string {
	name := strings.ToLower(string(s))
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:] + " space"
}
