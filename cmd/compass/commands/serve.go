package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dyluth/compass/internal/mcpserver"
	"github.com/dyluth/compass/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an MCP server on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout so AI assistants can
read and edit projects with compass tools.

The active project is opened on start. Logs go to stderr.

Example MCP client configuration:
  {"command": "compass", "args": ["serve"]}`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	if projectFlag != "" {
		if _, err := ws.openProject(cmd.Context(), projectFlag); err != nil {
			return err
		}
	} else if _, err := ws.session.OpenActive(cmd.Context()); err != nil && !errors.Is(err, session.ErrNoProject) {
		return err
	}

	ws.log.Info("serving MCP on stdio", "namespace", ws.store.Namespace(), "backend", ws.cfg.Store.Backend)
	return mcpserver.Serve(mcpserver.New(ws.session, ws.store))
}
