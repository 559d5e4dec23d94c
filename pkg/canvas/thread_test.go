package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinker(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockQuestionsHypotheses: 1, BlockEvidenceCriteria: 1})
	a := p.Blocks[BlockQuestionsHypotheses].Items[0].ID
	b := p.Blocks[BlockEvidenceCriteria].Items[0].ID

	t.Run("zero value is idle", func(t *testing.T) {
		var l Linker
		assert.Equal(t, LinkIdle, l.State())
		assert.Empty(t, l.Source())
	})

	t.Run("start then end creates a thread", func(t *testing.T) {
		var l Linker
		l.Start(a)
		assert.Equal(t, LinkLinking, l.State())
		assert.Equal(t, a, l.Source())

		next, outcome := l.End(p, b)
		assert.Equal(t, LinkCreated, outcome)
		assert.Equal(t, LinkIdle, l.State())
		require.Len(t, next.Threads, 1)
		assert.Equal(t, a, next.Threads[0].SourceID)
		assert.Equal(t, b, next.Threads[0].TargetID)
		assert.Empty(t, p.Threads)
	})

	t.Run("repeated gesture is idempotent", func(t *testing.T) {
		var l Linker
		l.Start(a)
		next, _ := l.End(p, b)
		l.Start(a)
		next, outcome := l.End(next, b)

		assert.Equal(t, LinkDuplicate, outcome)
		assert.Len(t, next.Threads, 1)
	})

	t.Run("reverse direction is a duplicate", func(t *testing.T) {
		var l Linker
		l.Start(a)
		next, _ := l.End(p, b)
		l.Start(b)
		next, outcome := l.End(next, a)

		assert.Equal(t, LinkDuplicate, outcome)
		assert.Len(t, next.Threads, 1)
	})

	t.Run("self link is cancelled", func(t *testing.T) {
		var l Linker
		l.Start(a)
		next, outcome := l.End(p, a)

		assert.Equal(t, LinkSelfCancelled, outcome)
		assert.Empty(t, next.Threads)
		assert.Equal(t, LinkIdle, l.State())
	})

	t.Run("end while idle", func(t *testing.T) {
		var l Linker
		next, outcome := l.End(p, b)
		assert.Equal(t, LinkNotStarted, outcome)
		assert.Empty(t, next.Threads)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		var l Linker
		l.Start(a)
		next, outcome := l.End(p, "ghost")
		assert.Equal(t, LinkMissingEndpoint, outcome)
		assert.Empty(t, next.Threads)
		assert.Equal(t, LinkIdle, l.State())
	})

	t.Run("cancel", func(t *testing.T) {
		var l Linker
		l.Start(a)
		l.Cancel()
		assert.Equal(t, LinkIdle, l.State())
		assert.Empty(t, l.Source())
	})
}

func TestRemoveThread(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockRisks: 1, BlockContingencies: 1, BlockMilestones: 1})
	r := p.Blocks[BlockRisks].Items[0].ID
	c := p.Blocks[BlockContingencies].Items[0].ID
	m := p.Blocks[BlockMilestones].Items[0].ID
	p, _ = AddThread(p, r, c)
	p, _ = AddThread(p, c, m)
	first := p.Threads[0].ID

	next := RemoveThread(p, first)
	require.Len(t, next.Threads, 1)
	assert.True(t, next.Threads[0].Joins(c, m))
	assert.Len(t, p.Threads, 2)

	assert.Equal(t, p, RemoveThread(p, "unknown"))
	assert.Len(t, ThreadsOf(p, c), 2)
}

func TestPruneThreads(t *testing.T) {
	p := seedProject(t, map[BlockID]int{BlockRisks: 1, BlockContingencies: 1})
	r := p.Blocks[BlockRisks].Items[0].ID
	c := p.Blocks[BlockContingencies].Items[0].ID

	p.Threads = []Thread{
		{ID: "t1", SourceID: r, TargetID: c},
		{ID: "t2", SourceID: c, TargetID: r},
		{ID: "t3", SourceID: r, TargetID: "gone"},
		{ID: "t4", SourceID: r, TargetID: r},
	}

	pruned := PruneThreads(p)
	require.Len(t, pruned.Threads, 1)
	assert.Equal(t, "t1", pruned.Threads[0].ID)
	require.NoError(t, pruned.Validate())
}

func TestLinkOutcomeString(t *testing.T) {
	assert.Equal(t, "created", LinkCreated.String())
	assert.Equal(t, "self-link cancelled", LinkSelfCancelled.String())
	assert.Equal(t, "linking", LinkLinking.String())
}
