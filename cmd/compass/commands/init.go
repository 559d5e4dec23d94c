package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/printer"
	"github.com/dyluth/compass/internal/scaffold"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize compass in the current directory",
	Long: `Initialize compass with a default configuration.

Creates:
  • compass.yml - Store, AI and autosave configuration
  • .compass/   - Local data directory for the SQLite store

Use --force to overwrite an existing compass.yml. Saved projects are kept.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing compass.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	created, err := scaffold.Initialize(".", forceInit)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("Initialized compass\n\n")
	for _, path := range created {
		printer.Info("  created %s\n", path)
	}
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Set your Gemini key:   export GEMINI_API_KEY=...\n")
	printer.Info("  2. Start a project:       compass new \"My study\"\n")
	printer.Info("  3. Answer the wizard:     compass wizard\n")
	return nil
}
