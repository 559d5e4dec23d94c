package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/printer"
	"github.com/dyluth/compass/internal/render"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the active project as markdown or JSON",
	Long: `Export the active project.

Formats:
  markdown - A readable document, one section per space
  json     - The full project snapshot

Examples:
  compass export > plan.md
  compass export -f json -o plan.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List block ids, their spaces and purposes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		render.FormatBlocks(printer.Writer())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "Export format: markdown or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(exportCmd, blocksCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(exportFormat)
	if err != nil {
		return printer.Error("invalid export format", err.Error(), []string{"Valid formats: markdown, json"})
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.openProject(cmd.Context(), projectFlag)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		return render.Export(printer.Writer(), p, format)
	}

	var buf bytes.Buffer
	if err := render.Export(&buf, p, format); err != nil {
		return err
	}
	if err := os.WriteFile(exportOutput, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOutput, err)
	}
	printer.Success("Exported '%s' to %s\n", p.Name, exportOutput)
	return nil
}
