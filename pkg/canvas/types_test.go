package canvas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockID(t *testing.T) {
	for _, id := range BlockIDs() {
		got, err := ParseBlockID(string(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	_, err := ParseBlockID("problem")
	assert.ErrorIs(t, err, ErrUnknownBlock)
}

func TestBlockTable(t *testing.T) {
	t.Run("twenty blocks across seven spaces", func(t *testing.T) {
		assert.Len(t, BlockIDs(), 20)
		total := 0
		for _, s := range Spaces {
			require.NoError(t, s.Validate())
			ids := BlocksInSpace(s)
			assert.NotEmpty(t, ids, "space %s", s)
			total += len(ids)
		}
		assert.Equal(t, 20, total)
	})

	t.Run("lookup", func(t *testing.T) {
		def, ok := Lookup(BlockRisks)
		require.True(t, ok)
		assert.Equal(t, "Risks", def.Title)
		assert.Equal(t, SpaceRisk, def.Category)
		assert.Equal(t, SpaceRisk, BlockRisks.Space())

		_, ok = Lookup("nope")
		assert.False(t, ok)
	})

	t.Run("default template is fresh per call", func(t *testing.T) {
		a := DefaultTemplate()
		b := DefaultTemplate()
		blk := a[BlockRisks]
		blk.Items = append(blk.Items, Item{ID: "x"})
		a[BlockRisks] = blk
		assert.Empty(t, b[BlockRisks].Items)
	})
}

func TestItemStatus(t *testing.T) {
	for _, s := range []string{"", "pending", "validated", "falsified"} {
		_, err := ParseItemStatus(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseItemStatus("done")
	assert.Error(t, err)
}

func TestProjectValidate(t *testing.T) {
	valid := func() Project {
		p := seedProject(t, map[BlockID]int{BlockRisks: 1, BlockContingencies: 1})
		p, _ = AddThread(p, p.Blocks[BlockRisks].Items[0].ID, p.Blocks[BlockContingencies].Items[0].ID)
		return p
	}

	t.Run("valid", func(t *testing.T) {
		p := valid()
		assert.NoError(t, p.Validate())
	})

	t.Run("missing block", func(t *testing.T) {
		p := valid()
		delete(p.Blocks, BlockAccess)
		assert.Error(t, p.Validate())
	})

	t.Run("dangling thread", func(t *testing.T) {
		p := valid()
		p.Threads = append(p.Threads, Thread{ID: "t", SourceID: p.Blocks[BlockRisks].Items[0].ID, TargetID: "ghost"})
		assert.Error(t, p.Validate())
	})

	t.Run("duplicate pair", func(t *testing.T) {
		p := valid()
		first := p.Threads[0]
		p.Threads = append(p.Threads, Thread{ID: "t", SourceID: first.TargetID, TargetID: first.SourceID})
		assert.Error(t, p.Validate())
	})

	t.Run("duplicate item id", func(t *testing.T) {
		p := valid()
		blk := p.Blocks[BlockBudget]
		blk.Items = append(blk.Items, p.Blocks[BlockRisks].Items[0])
		p.Blocks[BlockBudget] = blk
		assert.Error(t, p.Validate())
	})
}

func TestProjectJSON(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockRisks: 1})
	p, _ = SetKillCriterion(p, BlockRisks, p.Blocks[BlockRisks].Items[0].ID, true)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "updatedAt")
	assert.Contains(t, raw, "schemaVersion")

	blocks := raw["blocks"].(map[string]any)
	risks := blocks["risks"].(map[string]any)
	item := risks["items"].([]any)[0].(map[string]any)
	assert.Equal(t, true, item["isKillCriterion"])
	assert.NotContains(t, item, "status")
}
