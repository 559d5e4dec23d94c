package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/compass/pkg/canvas"
)

// FormatCanvas writes the project grouped by space and block, with short item
// ids that item and link commands accept. Empty blocks are listed by title only
// unless verbose is set, in which case their description is shown.
func FormatCanvas(w io.Writer, p canvas.Project, verbose bool) {
	fmt.Fprintf(w, "%s  (%s)\n", p.Name, ShortID(p.ID))
	fmt.Fprintf(w, "%d items, %d links\n", p.ItemCount(), len(p.Threads))

	for _, space := range canvas.Spaces {
		fmt.Fprintf(w, "\n== %s ==\n", space)
		for _, id := range canvas.BlocksInSpace(space) {
			b := p.Blocks[id]
			def, _ := canvas.Lookup(id)
			fmt.Fprintf(w, "  %s [%s]\n", def.Title, id)
			if len(b.Items) == 0 {
				if verbose {
					fmt.Fprintf(w, "      (%s)\n", def.Description)
				}
				continue
			}
			for _, it := range b.Items {
				fmt.Fprintf(w, "    %-8s %s%s\n", ShortID(it.ID), it.Text, itemFlags(it))
			}
		}
	}

	if len(p.Threads) == 0 {
		return
	}
	fmt.Fprintf(w, "\n== LINKS ==\n")
	for _, t := range p.Threads {
		fmt.Fprintf(w, "  %-8s %s  <->  %s\n", ShortID(t.ID), endpoint(p, t.SourceID), endpoint(p, t.TargetID))
	}
}

// FormatBlocks writes the static block table.
func FormatBlocks(w io.Writer) {
	fmt.Fprintf(w, "%-22s %-12s %-36s %s\n", "BLOCK", "SPACE", "TITLE", "DESCRIPTION")
	for _, def := range canvas.BlockDefs() {
		fmt.Fprintf(w, "%-22s %-12s %-36s %s\n", def.ID, def.Category, def.Title, def.Description)
	}
}

func itemFlags(it canvas.Item) string {
	var flags []string
	if it.IsKillCriterion {
		flags = append(flags, "KILL")
	}
	if it.Status != "" {
		flags = append(flags, string(it.Status))
	}
	if len(flags) == 0 {
		return ""
	}
	return "  (" + strings.Join(flags, ", ") + ")"
}

// endpoint describes a thread end as "Block Title: item text".
func endpoint(p canvas.Project, itemID string) string {
	blockID, it, ok := canvas.FindItem(p, itemID)
	if !ok {
		return ShortID(itemID) + " (missing)"
	}
	def, _ := canvas.Lookup(blockID)
	return fmt.Sprintf("%s: %s", def.Title, truncate(it.Text, 40))
}
