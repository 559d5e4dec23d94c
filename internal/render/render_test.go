package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/compass/pkg/canvas"
)

// sampleProject builds a project with a risk linked to its contingency.
func sampleProject(t *testing.T) canvas.Project {
	p := canvas.NewProject("Soil carbon", canvas.DefaultTemplate())
	p, risk, err := canvas.AddItem(p, canvas.BlockRisks, "Drought year")
	require.NoError(t, err)
	p, plan, err := canvas.AddItem(p, canvas.BlockContingencies, "Irrigated plots")
	require.NoError(t, err)
	p, kill, err := canvas.AddItem(p, canvas.BlockEvidenceCriteria, "Yield below baseline")
	require.NoError(t, err)
	p, err = canvas.SetKillCriterion(p, canvas.BlockEvidenceCriteria, kill.ID, true)
	require.NoError(t, err)
	p, err = canvas.SetStatus(p, canvas.BlockRisks, risk.ID, canvas.StatusPending)
	require.NoError(t, err)
	p, outcome := canvas.AddThread(p, risk.ID, plan.ID)
	require.Equal(t, canvas.LinkCreated, outcome)
	return p
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short", "Drought", 10, "Drought"},
		{"exact", strings.Repeat("a", 10), 10, strings.Repeat("a", 10)},
		{"long", strings.Repeat("a", 11), 10, strings.Repeat("a", 7) + "..."},
		{"first line only", "First\nSecond", 10, "First"},
		{"multibyte", "ééééééééééé", 5, "éé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.max))
		})
	}
}

func TestAge(t *testing.T) {
	now := time.UnixMilli(10 * 24 * 3600 * 1000)
	assert.Equal(t, "-", Age(0, now))
	assert.Equal(t, "30s ago", Age(now.Add(-30*time.Second).UnixMilli(), now))
	assert.Equal(t, "5m ago", Age(now.Add(-5*time.Minute).UnixMilli(), now))
	assert.Equal(t, "3h ago", Age(now.Add(-3*time.Hour).UnixMilli(), now))
	assert.Equal(t, "2d ago", Age(now.Add(-49*time.Hour).UnixMilli(), now))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdef12", ShortID("abcdef12-3456-7890"))
	assert.Equal(t, "t1", ShortID("t1"))
}

func TestFormatTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		n := FormatTable(&buf, nil, "lab", "")
		assert.Zero(t, n)
		assert.Contains(t, buf.String(), "No projects found in namespace 'lab'")
	})

	t.Run("rows with active marker", func(t *testing.T) {
		p := sampleProject(t)
		other := canvas.NewProject("Ocean sensors", canvas.DefaultTemplate())

		var buf bytes.Buffer
		n := FormatTable(&buf, []canvas.Project{p, other}, "lab", p.ID)
		assert.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "* "+ShortID(p.ID))
		assert.Contains(t, out, "Soil carbon")
		assert.Contains(t, out, "Ocean sensors")
		assert.Contains(t, out, "2 projects found")
	})
}

func TestFormatJSONL(t *testing.T) {
	p := sampleProject(t)
	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, []canvas.Project{p, p}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, p.ID, got["id"])
	assert.Equal(t, float64(3), got["items"])
	assert.Equal(t, float64(1), got["threads"])
}

func TestFormatCanvas(t *testing.T) {
	p := sampleProject(t)
	var buf bytes.Buffer
	FormatCanvas(&buf, p, false)

	out := buf.String()
	assert.Contains(t, out, "Soil carbon")
	assert.Contains(t, out, "== RISK ==")
	assert.Contains(t, out, "Drought year  (pending)")
	assert.Contains(t, out, "Yield below baseline  (KILL)")
	assert.Contains(t, out, "== LINKS ==")
	assert.Contains(t, out, "Risks: Drought year  <->  Contingencies: Irrigated plots")
	assert.NotContains(t, out, "What could fail?")

	buf.Reset()
	FormatCanvas(&buf, canvas.NewProject("Empty", canvas.DefaultTemplate()), true)
	assert.Contains(t, buf.String(), "(What could fail?)")
	assert.NotContains(t, buf.String(), "LINKS")
}

func TestFormatBlocks(t *testing.T) {
	var buf bytes.Buffer
	FormatBlocks(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, len(canvas.BlockIDs())+1)
	assert.Contains(t, buf.String(), "questions_hypotheses")
}

func TestExport(t *testing.T) {
	p := sampleProject(t)

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, p, FormatMarkdown))
		out := buf.String()

		assert.True(t, strings.HasPrefix(out, "# Soil carbon\n"))
		assert.Contains(t, out, "## Risk space")
		assert.Contains(t, out, "### Risks\n\n- Drought year _(pending)_")
		assert.Contains(t, out, "- Yield below baseline **[kill criterion]**")
		assert.Contains(t, out, "## Logic threads")
		assert.NotContains(t, out, "## Problem space", "empty spaces are omitted")
	})

	t.Run("json round trips", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Export(&buf, p, FormatJSON))

		var got canvas.Project
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, p.ID, got.ID)
		assert.Len(t, got.Threads, 1)
	})

	t.Run("format names", func(t *testing.T) {
		f, err := ParseFormat("md")
		require.NoError(t, err)
		assert.Equal(t, FormatMarkdown, f)

		_, err = ParseFormat("pptx")
		assert.Error(t, err)
	})
}
