// Package mcpserver exposes a compass session as MCP tools over stdio.
//
// Every tool works on the session's current project. Item, link and project
// arguments accept unique id prefixes of at least four characters.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dyluth/compass/internal/session"
	"github.com/dyluth/compass/pkg/canvas"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Projects is the store surface the project tools read.
// *store.Store satisfies it.
type Projects interface {
	List(ctx context.Context) []canvas.Project
	Namespace() string
}

// New creates the MCP server with every canvas tool registered.
func New(sess *session.Session, projects Projects) *server.MCPServer {
	s := server.NewMCPServer(
		"compass",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	t := &Tools{session: sess, projects: projects}
	for _, tool := range t.all() {
		s.AddTool(tool.def, tool.handle)
	}
	return s
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `You have access to compass, a research-planning canvas.

A project is a canvas of fixed blocks (problem context, hypotheses, methodology,
risks, budget and more) grouped into seven spaces. Blocks hold short text items.
Items can be marked as kill criteria, given a validation status, and linked to
items in other blocks with logic threads.

Start with compass_list_projects and compass_open_project, or compass_new_project.
Use compass_show to read the canvas and compass_blocks for valid block ids.
compass_check_gaps asks the AI for structural gaps; compass_fix_gap resolves one.
compass_refine rewrites every non-empty block and can be reverted once.`
