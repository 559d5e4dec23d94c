package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/compass/internal/gateway"
	"github.com/dyluth/compass/internal/session"
	"github.com/dyluth/compass/internal/store"
	"github.com/dyluth/compass/pkg/canvas"
)

func setupTools(t *testing.T, ai *gateway.Stub) (*Tools, *session.Session, *store.Store) {
	mr := miniredis.RunT(t)
	st, err := store.New(store.NewRedisKV(&redis.Options{Addr: mr.Addr()}), "test")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sess := session.New(st, ai, session.Opts{Debounce: time.Hour})
	t.Cleanup(func() { sess.Close() })
	return &Tools{session: sess, projects: st}, sess, st
}

func call(t *testing.T, handle func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handle(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	return result.Content[0].(mcp.TextContent).Text, result.IsError
}

func TestNew_RegistersEveryTool(t *testing.T) {
	tools, sess, st := setupTools(t, &gateway.Stub{})
	require.NotNil(t, New(sess, st))

	seen := map[string]bool{}
	for _, tool := range tools.all() {
		assert.True(t, strings.HasPrefix(tool.def.Name, "compass_"), tool.def.Name)
		assert.False(t, seen[tool.def.Name], "duplicate tool %s", tool.def.Name)
		seen[tool.def.Name] = true
	}
	assert.Len(t, seen, 21)
}

func TestTools_NoProject(t *testing.T) {
	tools, _, _ := setupTools(t, &gateway.Stub{})

	text, isErr := call(t, tools.Show, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "compass_new_project")

	text, isErr = call(t, tools.ListProjects, nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "No projects yet")
}

func TestTools_ProjectLifecycle(t *testing.T) {
	tools, sess, _ := setupTools(t, &gateway.Stub{})

	text, isErr := call(t, tools.NewProject, map[string]interface{}{"name": "Soil carbon"})
	require.False(t, isErr, text)
	p, err := sess.Project()
	require.NoError(t, err)

	_, isErr = call(t, tools.NewProject, map[string]interface{}{"name": "Roots"})
	require.False(t, isErr)

	text, isErr = call(t, tools.ListProjects, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "Soil carbon")
	assert.Contains(t, text, "Roots")
	assert.Contains(t, text, "2 projects found")

	text, isErr = call(t, tools.OpenProject, map[string]interface{}{"id": p.ID[:8]})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Soil carbon")

	_, isErr = call(t, tools.OpenProject, map[string]interface{}{"id": "zzzzzzzz"})
	assert.True(t, isErr)

	_, isErr = call(t, tools.NewProject, map[string]interface{}{"name": "  "})
	assert.True(t, isErr)
}

func TestTools_ItemsAndLinks(t *testing.T) {
	tools, sess, _ := setupTools(t, &gateway.Stub{})
	_, err := sess.Create(context.Background(), "Soil carbon")
	require.NoError(t, err)

	_, isErr := call(t, tools.AddItem, map[string]interface{}{"block": "nonsense", "text": "x"})
	assert.True(t, isErr)

	_, isErr = call(t, tools.AddItem, map[string]interface{}{"block": "risks", "text": "Drought"})
	require.False(t, isErr)
	_, isErr = call(t, tools.AddItem, map[string]interface{}{"block": "contingencies", "text": "Irrigate"})
	require.False(t, isErr)

	p, err := sess.Project()
	require.NoError(t, err)
	risk := p.Blocks[canvas.BlockRisks].Items[0]
	plan := p.Blocks[canvas.BlockContingencies].Items[0]

	_, isErr = call(t, tools.EditItem, map[string]interface{}{"id": risk.ID[:8], "text": "Severe drought"})
	require.False(t, isErr)
	_, isErr = call(t, tools.SetKillCriterion, map[string]interface{}{"id": risk.ID})
	require.False(t, isErr)
	_, isErr = call(t, tools.SetStatus, map[string]interface{}{"id": risk.ID, "status": "validated"})
	require.False(t, isErr)
	_, isErr = call(t, tools.SetStatus, map[string]interface{}{"id": risk.ID, "status": "maybe"})
	assert.True(t, isErr)

	text, isErr := call(t, tools.Link, map[string]interface{}{"a": risk.ID[:8], "b": plan.ID[:8]})
	require.False(t, isErr, text)
	assert.Equal(t, "Linked", text)

	text, isErr = call(t, tools.Link, map[string]interface{}{"a": plan.ID, "b": risk.ID})
	require.False(t, isErr)
	assert.Equal(t, "Already linked", text)

	_, isErr = call(t, tools.Link, map[string]interface{}{"a": risk.ID, "b": risk.ID})
	assert.True(t, isErr)

	p, err = sess.Project()
	require.NoError(t, err)
	_, got, ok := canvas.FindItem(p, risk.ID)
	require.True(t, ok)
	assert.Equal(t, "Severe drought", got.Text)
	assert.True(t, got.IsKillCriterion)
	assert.Equal(t, canvas.StatusValidated, got.Status)
	require.Len(t, p.Threads, 1)

	text, isErr = call(t, tools.Show, map[string]interface{}{"verbose": false})
	require.False(t, isErr)
	assert.Contains(t, text, "Severe drought")
	assert.Contains(t, text, "== LINKS ==")

	_, isErr = call(t, tools.Unlink, map[string]interface{}{"id": p.Threads[0].ID[:8]})
	require.False(t, isErr)
	_, isErr = call(t, tools.DeleteItem, map[string]interface{}{"id": plan.ID})
	require.False(t, isErr)

	p, err = sess.Project()
	require.NoError(t, err)
	assert.Empty(t, p.Threads)
	assert.Empty(t, p.Blocks[canvas.BlockContingencies].Items)

	_, isErr = call(t, tools.DeleteItem, map[string]interface{}{})
	assert.True(t, isErr)
}

func TestTools_AI(t *testing.T) {
	ai := &gateway.Stub{
		Findings: []string{"Risk has no contingency"},
		Fixed:    canvas.BlockTexts{canvas.BlockContingencies: {"Irrigate"}},
		Refined:  canvas.BlockTexts{canvas.BlockRisks: {"Prolonged drought"}},
		Mapped:   canvas.BlockTexts{canvas.BlockBudget: {"$200k cap"}},
		Drafts:   map[gateway.DraftKind]string{gateway.DraftAbstract: "An abstract"},
		Jargon:   []gateway.JargonTerm{{Term: "synergy", Alternative: "cooperation"}},
		Falsifiability: gateway.Falsifiability{
			IsFalsifiable: false,
			Suggestion:    "Add a threshold",
		},
	}
	tools, sess, _ := setupTools(t, ai)
	_, err := sess.Create(context.Background(), "Soil carbon")
	require.NoError(t, err)
	_, err = sess.AddItem(canvas.BlockRisks, "drought")
	require.NoError(t, err)

	text, isErr := call(t, tools.CheckGaps, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "Risk has no contingency")

	text, isErr = call(t, tools.Show, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "Open gap warnings")

	text, isErr = call(t, tools.FixGap, map[string]interface{}{"warning": "Risk has no contingency"})
	require.False(t, isErr)
	assert.Contains(t, text, "contingencies")
	assert.Empty(t, sess.Warnings())

	text, isErr = call(t, tools.Refine, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "Refined 1 block")

	_, isErr = call(t, tools.Refine, map[string]interface{}{"revert": true})
	require.False(t, isErr)
	p, err := sess.Project()
	require.NoError(t, err)
	assert.Equal(t, "drought", p.Blocks[canvas.BlockRisks].Items[0].Text)

	text, isErr = call(t, tools.WizardQuestions, nil)
	require.False(t, isErr)
	assert.Contains(t, text, "19. ")

	text, isErr = call(t, tools.Answer, map[string]interface{}{"question": float64(19), "answer": "Two years, 200k"})
	require.False(t, isErr, text)
	assert.Equal(t, "Added 1 item(s)", text)

	_, isErr = call(t, tools.Answer, map[string]interface{}{"question": float64(999), "answer": "x"})
	assert.True(t, isErr)

	text, isErr = call(t, tools.Draft, map[string]interface{}{"kind": "abstract"})
	require.False(t, isErr)
	assert.Equal(t, "An abstract", text)

	_, isErr = call(t, tools.Draft, map[string]interface{}{"kind": "poem"})
	assert.True(t, isErr)

	text, isErr = call(t, tools.Jargon, map[string]interface{}{"text": "leverage synergy"})
	require.False(t, isErr)
	assert.Contains(t, text, "synergy -> cooperation")

	text, isErr = call(t, tools.Falsify, map[string]interface{}{"hypothesis": "Plants like music"})
	require.False(t, isErr)
	assert.Contains(t, text, "Add a threshold")
}

func TestTools_Export(t *testing.T) {
	tools, sess, _ := setupTools(t, &gateway.Stub{})
	_, err := sess.Create(context.Background(), "Soil carbon")
	require.NoError(t, err)

	text, isErr := call(t, tools.Export, nil)
	require.False(t, isErr)
	assert.True(t, strings.HasPrefix(text, "# Soil carbon"))

	text, isErr = call(t, tools.Export, map[string]interface{}{"format": "json"})
	require.False(t, isErr)
	assert.Contains(t, text, `"name": "Soil carbon"`)

	_, isErr = call(t, tools.Export, map[string]interface{}{"format": "pdf"})
	assert.True(t, isErr)
}

func TestTools_Blocks(t *testing.T) {
	tools, _, _ := setupTools(t, &gateway.Stub{})
	text, isErr := call(t, tools.Blocks, nil)
	require.False(t, isErr)
	for _, id := range canvas.BlockIDs() {
		assert.Contains(t, text, string(id))
	}
}
