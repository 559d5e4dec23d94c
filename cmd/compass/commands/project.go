package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/filter"
	"github.com/dyluth/compass/internal/printer"
	"github.com/dyluth/compass/internal/render"
	"github.com/dyluth/compass/internal/timespec"
	"github.com/dyluth/compass/pkg/canvas"
)

var (
	listOutputFormat string
	listName         string
	listSince        string
	listUntil        string
	listNonEmpty     bool

	showVerbose bool
)

var newCmd = &cobra.Command{
	Use:   "new NAME",
	Short: "Create a project and make it active",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNew,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved projects",
	Long: `List saved projects, most recently updated first.

The active project is marked with '*'.

Output Formats:
  default - Human-readable table
  jsonl   - One JSON summary per line

Examples:
  # Projects touched in the last two days
  compass list --since=2d

  # Name filter (case-insensitive glob)
  compass list --name="soil*"

  # Pipe ids into jq
  compass list -o jsonl | jq -r .id`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var openCmd = &cobra.Command{
	Use:   "open ID",
	Short: "Make a project the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

var showCmd = &cobra.Command{
	Use:   "show [ID]",
	Short: "Show a project's canvas",
	Long: `Show a project's blocks, items and logic threads.

Item and link ids are shown as short prefixes; every command that takes an
id accepts them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

var renameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a project",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRename,
}

var deleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete a project",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	listCmd.Flags().StringVar(&listName, "name", "", "Filter by project name (glob pattern)")
	listCmd.Flags().StringVar(&listSince, "since", "", "Only projects updated after time (duration, Nd or RFC3339)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Only projects updated before time (duration, Nd or RFC3339)")
	listCmd.Flags().BoolVar(&listNonEmpty, "non-empty", false, "Hide projects without items")

	showCmd.Flags().BoolVar(&showVerbose, "all", false, "Describe empty blocks")

	rootCmd.AddCommand(newCmd, listCmd, openCmd, showCmd, renameCmd, deleteCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.session.Create(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return printer.Error("could not create project", err.Error(), nil)
	}
	printer.Success("Created project '%s' (%s)\n", p.Name, render.ShortID(p.ID))
	printer.Info("Add items with: compass item add BLOCK \"text\"   (see compass blocks)\n")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if listOutputFormat != "default" && listOutputFormat != "jsonl" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", listOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	sinceMS, untilMS, err := timespec.ParseRange(listSince, listUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use a duration like '2h', days like '7d', a date like '2025-10-29' or RFC3339"},
		)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	criteria := &filter.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		NameGlob:         listName,
		NonEmpty:         listNonEmpty,
	}
	projects := criteria.Apply(ws.store.List(cmd.Context()))

	if listOutputFormat == "jsonl" {
		return render.FormatJSONL(printer.Writer(), projects)
	}

	active := ""
	if p, ok := ws.store.Active(cmd.Context()); ok {
		active = p.ID
	}
	render.FormatTable(printer.Writer(), projects, ws.store.Namespace(), active)
	return nil
}

func runOpen(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	id, err := ws.resolveProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	p, err := ws.session.Open(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to open project: %w", err)
	}
	printer.Success("Active project is now '%s' (%s)\n", p.Name, render.ShortID(p.ID))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	var p canvas.Project
	if len(args) == 1 {
		// An explicit id is shown without making it active.
		id, err := ws.resolveProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if p, err = ws.store.Get(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}
	} else if p, err = ws.openProject(cmd.Context(), projectFlag); err != nil {
		return err
	}

	render.FormatCanvas(printer.Writer(), p, showVerbose)
	printer.Info("\nUpdated %s\n", render.Age(p.UpdatedAt, time.Now()))
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	id, err := ws.resolveProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if name == "" {
		return printer.Error("invalid name", "Project names cannot be empty.", nil)
	}
	p, err := ws.store.Rename(cmd.Context(), id, name)
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	printer.Success("Renamed %s to '%s'\n", render.ShortID(p.ID), p.Name)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	id, err := ws.resolveProject(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := ws.store.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	printer.Success("Deleted project %s\n", render.ShortID(id))
	return nil
}
