package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/config"
	"github.com/dyluth/compass/internal/mcpserver"
	"github.com/dyluth/compass/internal/printer"
)

var (
	version string
	commit  string
	date    string

	configPath  string
	projectFlag string
	verbose     bool
	noColor     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "compass",
	Short: "Compass - research planning canvas",
	Long: `Compass is a research-planning canvas for the terminal.

A project is a fixed set of blocks (problem context, hypotheses, methodology,
risks, budget and more) grouped into seven spaces. You fill blocks with short
items, mark kill criteria, link items across blocks, and ask an AI model to
find gaps, refine wording, import documents and draft abstracts.

Projects are saved automatically to a local SQLite file or a Redis store.`,
	Version: version,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			printer.DisableColor()
		}
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
	mcpserver.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "Path to compass.yml")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project id or prefix (defaults to the active project)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")
}
