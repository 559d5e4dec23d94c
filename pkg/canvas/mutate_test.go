package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedProject returns a project with the given number of items in each listed block.
func seedProject(t *testing.T, counts map[BlockID]int) Project {
	t.Helper()
	p := NewProject("Seed", DefaultTemplate())
	for _, id := range BlockIDs() {
		for i := 0; i < counts[id]; i++ {
			var err error
			p, _, err = AddItem(p, id, string(id)+" item")
			require.NoError(t, err)
		}
	}
	return p
}

func TestNewProject(t *testing.T) {
	t.Run("every block present and empty", func(t *testing.T) {
		p := NewProject("X", DefaultTemplate())

		require.NoError(t, p.Validate())
		assert.Equal(t, "X", p.Name)
		assert.Equal(t, SchemaVersion, p.SchemaVersion)
		assert.NotZero(t, p.UpdatedAt)
		assert.Empty(t, p.Threads)
		assert.Len(t, p.Blocks, len(BlockIDs()))
		for _, id := range BlockIDs() {
			assert.Empty(t, p.Blocks[id].Items, "block %s", id)
		}
	})

	t.Run("ids are unique", func(t *testing.T) {
		a := NewProject("A", DefaultTemplate())
		b := NewProject("A", DefaultTemplate())
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("template is deep copied", func(t *testing.T) {
		tmpl := DefaultTemplate()
		seeded := tmpl[BlockRisks]
		seeded.Items = []Item{{ID: "t1", Text: "seed", Metadata: map[string]string{"k": "v"}}}
		tmpl[BlockRisks] = seeded

		p := NewProject("X", tmpl)
		p.Blocks[BlockRisks].Items[0].Text = "changed"
		p.Blocks[BlockRisks].Items[0].Metadata["k"] = "changed"

		assert.Equal(t, "seed", tmpl[BlockRisks].Items[0].Text)
		assert.Equal(t, "v", tmpl[BlockRisks].Items[0].Metadata["k"])
	})

	t.Run("partial template is completed", func(t *testing.T) {
		tmpl := Template{BlockRisks: {ID: BlockRisks, Title: "Risks"}}
		p := NewProject("X", tmpl)
		require.NoError(t, p.Validate())
		assert.Equal(t, "Methodology", p.Blocks[BlockMethodology].Title)
	})
}

func TestAddItem(t *testing.T) {
	t.Run("appends to the named block", func(t *testing.T) {
		p := NewProject("X", DefaultTemplate())

		next, item, err := AddItem(p, BlockRisks, "Funding lapse")
		require.NoError(t, err)

		require.Len(t, next.Blocks[BlockRisks].Items, 1)
		assert.Equal(t, "Funding lapse", next.Blocks[BlockRisks].Items[0].Text)
		assert.Equal(t, item.ID, next.Blocks[BlockRisks].Items[0].ID)
		assert.NotEmpty(t, item.ID)
	})

	t.Run("input project is untouched", func(t *testing.T) {
		p := NewProject("X", DefaultTemplate())
		_, _, err := AddItem(p, BlockRisks, "Funding lapse")
		require.NoError(t, err)
		assert.Empty(t, p.Blocks[BlockRisks].Items)
	})

	t.Run("unknown block", func(t *testing.T) {
		p := NewProject("X", DefaultTemplate())
		next, _, err := AddItem(p, BlockID("nope"), "x")
		require.ErrorIs(t, err, ErrUnknownBlock)
		assert.Equal(t, p, next)
	})
}

func TestUpdateItem(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockNovelty: 2})
	target := p.Blocks[BlockNovelty].Items[1]

	t.Run("shallow merge", func(t *testing.T) {
		text := "rewritten"
		status := StatusValidated
		next, err := UpdateItem(p, BlockNovelty, target.ID, ItemPatch{Text: &text, Status: &status})
		require.NoError(t, err)

		got := next.Blocks[BlockNovelty].Items[1]
		assert.Equal(t, "rewritten", got.Text)
		assert.Equal(t, StatusValidated, got.Status)
		assert.False(t, got.IsKillCriterion)
		assert.Equal(t, target.Text, p.Blocks[BlockNovelty].Items[1].Text)
	})

	t.Run("kill criterion and status helpers", func(t *testing.T) {
		next, err := SetKillCriterion(p, BlockNovelty, target.ID, true)
		require.NoError(t, err)
		next, err = SetStatus(next, BlockNovelty, target.ID, StatusFalsified)
		require.NoError(t, err)

		got := next.Blocks[BlockNovelty].Items[1]
		assert.True(t, got.IsKillCriterion)
		assert.Equal(t, StatusFalsified, got.Status)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := SetStatus(p, BlockNovelty, target.ID, ItemStatus("maybe"))
		assert.Error(t, err)
	})

	t.Run("missing item is a no-op", func(t *testing.T) {
		text := "x"
		next, err := UpdateItem(p, BlockNovelty, "missing", ItemPatch{Text: &text})
		require.NoError(t, err)
		assert.Equal(t, p, next)
	})

	t.Run("item in another block is a no-op", func(t *testing.T) {
		text := "x"
		next, err := UpdateItem(p, BlockRisks, target.ID, ItemPatch{Text: &text})
		require.NoError(t, err)
		assert.Equal(t, p, next)
	})
}

func TestDeleteItem(t *testing.T) {
	t.Run("cascades threads", func(t *testing.T) {
		p := seedProject(t, map[BlockID]int{BlockRisks: 1, BlockContingencies: 1})
		a1 := p.Blocks[BlockRisks].Items[0].ID
		a2 := p.Blocks[BlockContingencies].Items[0].ID

		p, outcome := AddThread(p, a1, a2)
		require.Equal(t, LinkCreated, outcome)
		require.Len(t, p.Threads, 1)

		next, err := DeleteItem(p, BlockRisks, a1)
		require.NoError(t, err)
		assert.Empty(t, next.Threads)
		assert.Empty(t, next.Blocks[BlockRisks].Items)
		assert.Len(t, next.Blocks[BlockContingencies].Items, 1)
		assert.Len(t, p.Threads, 1, "input must keep its thread")
	})

	t.Run("keeps unrelated threads", func(t *testing.T) {
		p := seedProject(t, map[BlockID]int{BlockRisks: 2, BlockContingencies: 1})
		r1 := p.Blocks[BlockRisks].Items[0].ID
		r2 := p.Blocks[BlockRisks].Items[1].ID
		c1 := p.Blocks[BlockContingencies].Items[0].ID
		p, _ = AddThread(p, r1, c1)
		p, _ = AddThread(p, r2, c1)

		next, err := DeleteItem(p, BlockRisks, r1)
		require.NoError(t, err)
		require.Len(t, next.Threads, 1)
		assert.True(t, next.Threads[0].Joins(r2, c1))
	})

	t.Run("missing item is a no-op", func(t *testing.T) {
		p := seedProject(t, map[BlockID]int{BlockRisks: 1})
		next, err := DeleteItem(p, BlockRisks, "missing")
		require.NoError(t, err)
		assert.Equal(t, p, next)
	})
}

func TestReplaceBlockItems(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockMethodology: 5, BlockData: 1})
	old := p.Blocks[BlockMethodology].Items
	d1 := p.Blocks[BlockData].Items[0].ID
	p, _ = AddThread(p, old[2].ID, d1)
	p, _ = AddThread(p, old[0].ID, old[4].ID)
	require.Len(t, p.Threads, 2)

	next, err := ReplaceBlockItems(p, BlockMethodology, []string{"Step 1", "Step 2"})
	require.NoError(t, err)

	items := next.Blocks[BlockMethodology].Items
	require.Len(t, items, 2)
	assert.Equal(t, "Step 1", items[0].Text)
	assert.Equal(t, "Step 2", items[1].Text)
	for _, it := range items {
		for _, o := range old {
			assert.NotEqual(t, o.ID, it.ID)
		}
	}
	assert.Empty(t, next.Threads)
	assert.Len(t, next.Blocks[BlockData].Items, 1)
	require.NoError(t, next.Validate())
}

func TestApplyBlockTexts(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockRisks: 1, BlockImpact: 1})

	t.Run("append keeps existing items", func(t *testing.T) {
		next, n := ApplyBlockTexts(p, BlockTexts{
			BlockRisks:       {"Sensor drift", "  "},
			BlockID("bogus"): {"ignored"},
		}, ApplyAppend)

		assert.Equal(t, 1, n)
		require.Len(t, next.Blocks[BlockRisks].Items, 2)
		assert.Equal(t, "Sensor drift", next.Blocks[BlockRisks].Items[1].Text)
		assert.Len(t, next.Blocks, len(BlockIDs()))
	})

	t.Run("replace clears keyed blocks only", func(t *testing.T) {
		next, n := ApplyBlockTexts(p, BlockTexts{BlockRisks: {"A", "B"}}, ApplyReplace)

		assert.Equal(t, 2, n)
		assert.Len(t, next.Blocks[BlockRisks].Items, 2)
		assert.Len(t, next.Blocks[BlockImpact].Items, 1)
	})
}

func TestRestoreBlocks(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockRisks: 1, BlockContingencies: 1})
	p, _ = AddThread(p, p.Blocks[BlockRisks].Items[0].ID, p.Blocks[BlockContingencies].Items[0].ID)
	saved := p.Clone()

	refined, _ := ApplyBlockTexts(p, BlockTexts{BlockRisks: {"new"}}, ApplyReplace)
	require.Empty(t, refined.Threads)

	restored := RestoreBlocks(refined, saved.Blocks, saved.Threads)
	assert.Equal(t, saved.Blocks, restored.Blocks)
	assert.Equal(t, saved.Threads, restored.Threads)
	assert.Equal(t, refined.ID, restored.ID)
}

func TestFindItem(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockBudget: 1})
	want := p.Blocks[BlockBudget].Items[0]

	block, got, ok := FindItem(p, want.ID)
	require.True(t, ok)
	assert.Equal(t, BlockBudget, block)
	assert.Equal(t, want, got)

	_, _, ok = FindItem(p, "missing")
	assert.False(t, ok)
}

func TestClone(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockRisks: 1})
	c := p.Clone()
	c.Blocks[BlockRisks].Items[0].Text = "changed"
	assert.NotEqual(t, "changed", p.Blocks[BlockRisks].Items[0].Text)
}
