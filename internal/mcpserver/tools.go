package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dyluth/compass/internal/gateway"
	"github.com/dyluth/compass/internal/render"
	"github.com/dyluth/compass/internal/resolver"
	"github.com/dyluth/compass/internal/session"
	"github.com/dyluth/compass/pkg/canvas"
)

// Tools holds the handlers for every compass MCP tool.
type Tools struct {
	session  *session.Session
	projects Projects
}

type tool struct {
	def    mcp.Tool
	handle server.ToolHandlerFunc
}

func (t *Tools) all() []tool {
	return []tool{
		{t.listProjectsDef(), t.ListProjects},
		{t.openProjectDef(), t.OpenProject},
		{t.newProjectDef(), t.NewProject},
		{t.showDef(), t.Show},
		{t.blocksDef(), t.Blocks},
		{t.addItemDef(), t.AddItem},
		{t.editItemDef(), t.EditItem},
		{t.deleteItemDef(), t.DeleteItem},
		{t.killDef(), t.SetKillCriterion},
		{t.statusDef(), t.SetStatus},
		{t.linkDef(), t.Link},
		{t.unlinkDef(), t.Unlink},
		{t.checkGapsDef(), t.CheckGaps},
		{t.fixGapDef(), t.FixGap},
		{t.refineDef(), t.Refine},
		{t.wizardDef(), t.WizardQuestions},
		{t.answerDef(), t.Answer},
		{t.draftDef(), t.Draft},
		{t.jargonDef(), t.Jargon},
		{t.falsifyDef(), t.Falsify},
		{t.exportDef(), t.Export},
	}
}

// --- Projects ---

func (t *Tools) listProjectsDef() mcp.Tool {
	return mcp.NewTool("compass_list_projects",
		mcp.WithDescription("List saved projects, most recently updated first."),
	)
}

// ListProjects handles compass_list_projects.
func (t *Tools) ListProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	active := ""
	if p, err := t.session.Project(); err == nil {
		active = p.ID
	}
	var buf bytes.Buffer
	if render.FormatTable(&buf, t.projects.List(ctx), t.projects.Namespace(), active) == 0 {
		return mcp.NewToolResultText("No projects yet. Create one with compass_new_project."), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (t *Tools) openProjectDef() mcp.Tool {
	return mcp.NewTool("compass_open_project",
		mcp.WithDescription("Make a saved project the current one."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Project id or unique id prefix"),
		),
	)
}

// OpenProject handles compass_open_project.
func (t *Tools) OpenProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	short := strings.TrimSpace(req.GetString("id", ""))
	if short == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	id, err := resolver.ResolveProjectID(t.projects.List(ctx), short)
	if err != nil {
		return failure(err), nil
	}
	p, err := t.session.Open(ctx, id)
	if err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Opened %q (%s)", p.Name, p.ID)), nil
}

func (t *Tools) newProjectDef() mcp.Tool {
	return mcp.NewTool("compass_new_project",
		mcp.WithDescription("Create an empty project, save it and make it current."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Display name"),
		),
	)
}

// NewProject handles compass_new_project.
func (t *Tools) NewProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := t.session.Create(ctx, req.GetString("name", ""))
	if err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created %q (%s)", p.Name, p.ID)), nil
}

func (t *Tools) showDef() mcp.Tool {
	return mcp.NewTool("compass_show",
		mcp.WithDescription("Show the current project's blocks, items and logic threads."),
		mcp.WithBoolean("verbose",
			mcp.Description("Show the purpose of empty blocks"),
		),
	)
}

// Show handles compass_show.
func (t *Tools) Show(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := t.session.Project()
	if err != nil {
		return failure(err), nil
	}
	var buf bytes.Buffer
	render.FormatCanvas(&buf, p, boolArg(req, "verbose", false))
	if warnings := t.session.Warnings(); len(warnings) > 0 {
		buf.WriteString("\nOpen gap warnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(&buf, "  - %s\n", w)
		}
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (t *Tools) blocksDef() mcp.Tool {
	return mcp.NewTool("compass_blocks",
		mcp.WithDescription("List every block id with its space and purpose."),
	)
}

// Blocks handles compass_blocks.
func (t *Tools) Blocks(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	render.FormatBlocks(&buf)
	return mcp.NewToolResultText(buf.String()), nil
}

// --- Items and links ---

func (t *Tools) addItemDef() mcp.Tool {
	return mcp.NewTool("compass_add_item",
		mcp.WithDescription("Append an item to a block of the current project."),
		mcp.WithString("block",
			mcp.Required(),
			mcp.Description("Block id, for example 'risks' (see compass_blocks)"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Item text"),
		),
	)
}

// AddItem handles compass_add_item.
func (t *Tools) AddItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := canvas.ParseBlockID(req.GetString("block", ""))
	if err != nil {
		return failure(err), nil
	}
	item, err := t.session.AddItem(blockID, req.GetString("text", ""))
	if err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added item %s to %s", item.ID, blockID)), nil
}

func (t *Tools) editItemDef() mcp.Tool {
	return mcp.NewTool("compass_edit_item",
		mcp.WithDescription("Replace the text of an item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id or unique prefix")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New text")),
	)
}

// EditItem handles compass_edit_item.
func (t *Tools) EditItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := t.item(req, "id")
	if res != nil {
		return res, nil
	}
	if err := t.session.EditItem(id, req.GetString("text", "")); err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText("Item updated"), nil
}

func (t *Tools) deleteItemDef() mcp.Tool {
	return mcp.NewTool("compass_delete_item",
		mcp.WithDescription("Delete an item and every logic thread attached to it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id or unique prefix")),
	)
}

// DeleteItem handles compass_delete_item.
func (t *Tools) DeleteItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := t.item(req, "id")
	if res != nil {
		return res, nil
	}
	if err := t.session.DeleteItem(id); err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText("Item deleted"), nil
}

func (t *Tools) killDef() mcp.Tool {
	return mcp.NewTool("compass_set_kill_criterion",
		mcp.WithDescription("Mark or unmark an item as a kill criterion: a result that would stop the project."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id or unique prefix")),
		mcp.WithBoolean("on", mcp.Description("false clears the flag (default true)")),
	)
}

// SetKillCriterion handles compass_set_kill_criterion.
func (t *Tools) SetKillCriterion(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := t.item(req, "id")
	if res != nil {
		return res, nil
	}
	on := boolArg(req, "on", true)
	if err := t.session.SetKillCriterion(id, on); err != nil {
		return failure(err), nil
	}
	if on {
		return mcp.NewToolResultText("Item marked as kill criterion"), nil
	}
	return mcp.NewToolResultText("Kill criterion cleared"), nil
}

func (t *Tools) statusDef() mcp.Tool {
	return mcp.NewTool("compass_set_status",
		mcp.WithDescription("Set the validation status of an item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id or unique prefix")),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("pending, validated or falsified"),
			mcp.Enum("pending", "validated", "falsified"),
		),
	)
}

// SetStatus handles compass_set_status.
func (t *Tools) SetStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := t.item(req, "id")
	if res != nil {
		return res, nil
	}
	status, err := canvas.ParseItemStatus(req.GetString("status", ""))
	if err != nil {
		return failure(err), nil
	}
	if err := t.session.SetStatus(id, status); err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Status set to %s", status)), nil
}

func (t *Tools) linkDef() mcp.Tool {
	return mcp.NewTool("compass_link",
		mcp.WithDescription("Join two items with a logic thread. Links are undirected."),
		mcp.WithString("a", mcp.Required(), mcp.Description("First item id or unique prefix")),
		mcp.WithString("b", mcp.Required(), mcp.Description("Second item id or unique prefix")),
	)
}

// Link handles compass_link.
func (t *Tools) Link(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, res := t.item(req, "a")
	if res != nil {
		return res, nil
	}
	b, res := t.item(req, "b")
	if res != nil {
		return res, nil
	}
	outcome, err := t.session.Link(a, b)
	if err != nil {
		return failure(err), nil
	}
	switch outcome {
	case canvas.LinkCreated:
		return mcp.NewToolResultText("Linked"), nil
	case canvas.LinkDuplicate:
		return mcp.NewToolResultText("Already linked"), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("link not created: %s", outcome)), nil
	}
}

func (t *Tools) unlinkDef() mcp.Tool {
	return mcp.NewTool("compass_unlink",
		mcp.WithDescription("Remove a logic thread."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Thread id or unique prefix")),
	)
}

// Unlink handles compass_unlink.
func (t *Tools) Unlink(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := t.session.Project()
	if err != nil {
		return failure(err), nil
	}
	id, err := resolver.ResolveThreadID(p, req.GetString("id", ""))
	if err != nil {
		return failure(err), nil
	}
	if err := t.session.Unlink(id); err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText("Unlinked"), nil
}

// --- AI ---

func (t *Tools) checkGapsDef() mcp.Tool {
	return mcp.NewTool("compass_check_gaps",
		mcp.WithDescription("Ask the AI for up to three structural gaps in the current project."),
	)
}

// CheckGaps handles compass_check_gaps.
func (t *Tools) CheckGaps(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	findings, err := t.session.CheckGaps(ctx)
	if err != nil {
		return failure(err), nil
	}
	if len(findings) == 0 {
		return mcp.NewToolResultText("No gaps found"), nil
	}
	var b strings.Builder
	b.WriteString("Gaps:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) fixGapDef() mcp.Tool {
	return mcp.NewTool("compass_fix_gap",
		mcp.WithDescription("Ask the AI to resolve one gap warning. Rewritten blocks replace their items."),
		mcp.WithString("warning",
			mcp.Required(),
			mcp.Description("Warning text as reported by compass_check_gaps"),
		),
	)
}

// FixGap handles compass_fix_gap.
func (t *Tools) FixGap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	warning := strings.TrimSpace(req.GetString("warning", ""))
	if warning == "" {
		return mcp.NewToolResultError("'warning' is required"), nil
	}
	fixed, err := t.session.FixGap(ctx, warning)
	if err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rewrote %d block(s): %s", len(fixed), blockList(fixed))), nil
}

func (t *Tools) refineDef() mcp.Tool {
	return mcp.NewTool("compass_refine",
		mcp.WithDescription("Rewrite every non-empty block in clearer academic language, or revert the last refine."),
		mcp.WithBoolean("revert", mcp.Description("Restore the project as it was before the last refine")),
	)
}

// Refine handles compass_refine.
func (t *Tools) Refine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if boolArg(req, "revert", false) {
		if err := t.session.RevertRefine(ctx); err != nil {
			return failure(err), nil
		}
		return mcp.NewToolResultText("Refine reverted"), nil
	}
	n, err := t.session.Refine(ctx)
	if err != nil {
		return failure(err), nil
	}
	if n == 0 {
		return mcp.NewToolResultText("Nothing to refine"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Refined %d block(s). Call compass_refine with revert=true to undo.", n)), nil
}

func (t *Tools) wizardDef() mcp.Tool {
	return mcp.NewTool("compass_wizard_questions",
		mcp.WithDescription("List the guided questions that fill the canvas. Answer them with compass_answer."),
	)
}

// WizardQuestions handles compass_wizard_questions.
func (t *Tools) WizardQuestions(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	for _, q := range canvas.WizardQuestions() {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", q.ID, q.Question, q.Description)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) answerDef() mcp.Tool {
	return mcp.NewTool("compass_answer",
		mcp.WithDescription("Answer a wizard question. The AI maps the answer onto the question's blocks."),
		mcp.WithNumber("question", mcp.Required(), mcp.Description("Question number")),
		mcp.WithString("answer", mcp.Required(), mcp.Description("Free-text answer")),
	)
}

// Answer handles compass_answer.
func (t *Tools) Answer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, ok := canvas.WizardQuestionByID(intArg(req, "question", 0))
	if !ok {
		return mcp.NewToolResultError("unknown question number (see compass_wizard_questions)"), nil
	}
	n, err := t.session.Answer(ctx, q, req.GetString("answer", ""))
	if err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %d item(s)", n)), nil
}

func (t *Tools) draftDef() mcp.Tool {
	return mcp.NewTool("compass_draft",
		mcp.WithDescription("Write an abstract or a grant outline from the current project."),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Enum(string(gateway.DraftAbstract), string(gateway.DraftGrant)),
		),
	)
}

// Draft handles compass_draft.
func (t *Tools) Draft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := t.session.Draft(ctx, gateway.DraftKind(req.GetString("kind", "")))
	if err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (t *Tools) jargonDef() mcp.Tool {
	return mcp.NewTool("compass_jargon",
		mcp.WithDescription("List buzzwords in a text with plainer alternatives."),
		mcp.WithString("text", mcp.Required()),
	)
}

// Jargon handles compass_jargon.
func (t *Tools) Jargon(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	terms, err := t.session.Jargon(ctx, req.GetString("text", ""))
	if err != nil {
		return failure(err), nil
	}
	if len(terms) == 0 {
		return mcp.NewToolResultText("No jargon found"), nil
	}
	var b strings.Builder
	for _, term := range terms {
		fmt.Fprintf(&b, "- %s -> %s\n", term.Term, term.Alternative)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) falsifyDef() mcp.Tool {
	return mcp.NewTool("compass_falsify",
		mcp.WithDescription("Judge whether a hypothesis could be proven false."),
		mcp.WithString("hypothesis", mcp.Required()),
	)
}

// Falsify handles compass_falsify.
func (t *Tools) Falsify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	verdict, err := t.session.Falsify(ctx, req.GetString("hypothesis", ""))
	if err != nil {
		return failure(err), nil
	}
	if verdict.IsFalsifiable {
		return mcp.NewToolResultText("Falsifiable"), nil
	}
	return mcp.NewToolResultText("Not falsifiable. " + verdict.Suggestion), nil
}

func (t *Tools) exportDef() mcp.Tool {
	return mcp.NewTool("compass_export",
		mcp.WithDescription("Export the current project as markdown or JSON."),
		mcp.WithString("format",
			mcp.Description("markdown (default) or json"),
			mcp.Enum(string(render.FormatMarkdown), string(render.FormatJSON)),
		),
	)
}

// Export handles compass_export.
func (t *Tools) Export(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := render.ParseFormat(req.GetString("format", string(render.FormatMarkdown)))
	if err != nil {
		return failure(err), nil
	}
	p, err := t.session.Project()
	if err != nil {
		return failure(err), nil
	}
	var buf bytes.Buffer
	if err := render.Export(&buf, p, format); err != nil {
		return nil, fmt.Errorf("exporting project: %w", err)
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// --- helpers ---

// item resolves an item id argument against the current project.
// A non-nil result is the error to return to the client.
func (t *Tools) item(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	short := strings.TrimSpace(req.GetString(key, ""))
	if short == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("'%s' is required", key))
	}
	p, err := t.session.Project()
	if err != nil {
		return "", failure(err)
	}
	id, err := resolver.ResolveItemID(p, short)
	if err != nil {
		return "", failure(err)
	}
	return id, nil
}

// failure turns an operation error into a tool error result with a hint where one helps.
func failure(err error) *mcp.CallToolResult {
	var ambiguous *resolver.AmbiguousError
	switch {
	case errors.Is(err, session.ErrNoProject):
		return mcp.NewToolResultError("no project is open: call compass_open_project or compass_new_project first")
	case errors.Is(err, session.ErrBusy):
		return mcp.NewToolResultError(err.Error() + ": wait for it to finish")
	case errors.As(err, &ambiguous):
		return mcp.NewToolResultError(resolver.FormatAmbiguousError(ambiguous))
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func blockList(texts canvas.BlockTexts) string {
	ids := make([]string, 0, len(texts))
	for _, id := range canvas.BlockIDs() {
		if _, ok := texts[id]; ok {
			ids = append(ids, string(id))
		}
	}
	return strings.Join(ids, ", ")
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
