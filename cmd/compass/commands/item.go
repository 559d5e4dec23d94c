package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/printer"
	"github.com/dyluth/compass/internal/render"
	"github.com/dyluth/compass/internal/resolver"
	"github.com/dyluth/compass/pkg/canvas"
)

var killOff bool

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Add, edit and flag items on the active project",
}

var itemAddCmd = &cobra.Command{
	Use:   "add BLOCK TEXT",
	Short: "Append an item to a block",
	Long: `Append an item to a block of the active project.

BLOCK is a block id such as 'risks' or 'questions_hypotheses'.
Run 'compass blocks' for the full list.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runItemAdd,
}

var itemEditCmd = &cobra.Command{
	Use:   "edit ID TEXT",
	Short: "Replace an item's text",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runItemEdit,
}

var itemRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an item and its links",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemRm,
}

var itemKillCmd = &cobra.Command{
	Use:   "kill ID",
	Short: "Mark an item as a kill criterion",
	Long:  `Mark an item as a kill criterion: a result that would stop the project. Use --off to clear it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runItemKill,
}

var itemStatusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Set an item's validation status (pending, validated, falsified, or none)",
	Args:  cobra.ExactArgs(2),
	RunE:  runItemStatus,
}

var linkCmd = &cobra.Command{
	Use:   "link A B",
	Short: "Join two items with a logic thread",
	Args:  cobra.ExactArgs(2),
	RunE:  runLink,
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink THREAD_ID",
	Short: "Remove a logic thread",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnlink,
}

func init() {
	itemKillCmd.Flags().BoolVar(&killOff, "off", false, "Clear the kill criterion flag")

	itemCmd.AddCommand(itemAddCmd, itemEditCmd, itemRmCmd, itemKillCmd, itemStatusCmd)
	rootCmd.AddCommand(itemCmd, linkCmd, unlinkCmd)
}

func runItemAdd(cmd *cobra.Command, args []string) error {
	blockID, err := canvas.ParseBlockID(args[0])
	if err != nil {
		return printer.Error(
			fmt.Sprintf("unknown block '%s'", args[0]),
			"",
			[]string{"List block ids:\n  compass blocks"},
		)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.openProject(cmd.Context(), projectFlag); err != nil {
		return err
	}
	item, err := ws.session.AddItem(blockID, strings.Join(args[1:], " "))
	if err != nil {
		return printer.Error("could not add item", err.Error(), nil)
	}
	printer.Success("Added %s to %s\n", render.ShortID(item.ID), blockID)
	return nil
}

func runItemEdit(cmd *cobra.Command, args []string) error {
	return withItem(cmd, args[0], func(ws *workspace, id string) error {
		if err := ws.session.EditItem(id, strings.Join(args[1:], " ")); err != nil {
			return printer.Error("could not edit item", err.Error(), nil)
		}
		printer.Success("Updated %s\n", render.ShortID(id))
		return nil
	})
}

func runItemRm(cmd *cobra.Command, args []string) error {
	return withItem(cmd, args[0], func(ws *workspace, id string) error {
		if err := ws.session.DeleteItem(id); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
		printer.Success("Deleted %s\n", render.ShortID(id))
		return nil
	})
}

func runItemKill(cmd *cobra.Command, args []string) error {
	return withItem(cmd, args[0], func(ws *workspace, id string) error {
		if err := ws.session.SetKillCriterion(id, !killOff); err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}
		if killOff {
			printer.Success("%s is no longer a kill criterion\n", render.ShortID(id))
		} else {
			printer.Success("%s is now a kill criterion\n", render.ShortID(id))
		}
		return nil
	})
}

func runItemStatus(cmd *cobra.Command, args []string) error {
	raw := args[1]
	if raw == "none" {
		raw = ""
	}
	status, err := canvas.ParseItemStatus(raw)
	if err != nil {
		return printer.Error(
			fmt.Sprintf("invalid status '%s'", args[1]),
			"",
			[]string{"Valid statuses: pending, validated, falsified, none"},
		)
	}

	return withItem(cmd, args[0], func(ws *workspace, id string) error {
		if err := ws.session.SetStatus(id, status); err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}
		printer.Success("%s status set to %s\n", render.ShortID(id), args[1])
		return nil
	})
}

func runLink(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.openProject(cmd.Context(), projectFlag)
	if err != nil {
		return err
	}
	a, err := resolveItem(p, args[0])
	if err != nil {
		return err
	}
	b, err := resolveItem(p, args[1])
	if err != nil {
		return err
	}

	outcome, err := ws.session.Link(a, b)
	if err != nil {
		return fmt.Errorf("failed to link items: %w", err)
	}
	switch outcome {
	case canvas.LinkCreated:
		printer.Success("Linked %s and %s\n", render.ShortID(a), render.ShortID(b))
	case canvas.LinkDuplicate:
		printer.Info("%s and %s are already linked\n", render.ShortID(a), render.ShortID(b))
	case canvas.LinkSelfCancelled:
		return printer.Error("cannot link an item to itself", "", nil)
	default:
		return printer.Error("link not created", outcome.String(), nil)
	}
	return nil
}

func runUnlink(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.openProject(cmd.Context(), projectFlag)
	if err != nil {
		return err
	}
	id, err := resolver.ResolveThreadID(p, args[0])
	if err != nil {
		return resolveError(err, "compass show")
	}
	if err := ws.session.Unlink(id); err != nil {
		return fmt.Errorf("failed to unlink: %w", err)
	}
	printer.Success("Removed link %s\n", render.ShortID(id))
	return nil
}

// withItem opens the active project, resolves an item prefix and runs fn.
func withItem(cmd *cobra.Command, ref string, fn func(ws *workspace, id string) error) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.openProject(cmd.Context(), projectFlag)
	if err != nil {
		return err
	}
	id, err := resolveItem(p, ref)
	if err != nil {
		return err
	}
	return fn(ws, id)
}
