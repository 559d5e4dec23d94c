package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/compass/internal/gateway"
	"github.com/dyluth/compass/internal/store"
	"github.com/dyluth/compass/pkg/canvas"
)

// setupSession creates a session over a miniredis-backed store.
// The debounce is long so tests control persistence with Flush.
func setupSession(t *testing.T, ai gateway.Gateway) (*Session, *store.Store) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	st, err := store.New(store.NewRedisKV(&redis.Options{Addr: mr.Addr()}), "test")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := New(st, ai, Opts{Debounce: time.Hour})
	t.Cleanup(func() { s.Close() })
	return s, st
}

// createWith opens a new project and seeds one item per text in blockID.
func createWith(t *testing.T, s *Session, blockID canvas.BlockID, texts ...string) []canvas.Item {
	_, err := s.Create(context.Background(), "Soil carbon")
	require.NoError(t, err)

	items := make([]canvas.Item, 0, len(texts))
	for _, text := range texts {
		it, err := s.AddItem(blockID, text)
		require.NoError(t, err)
		items = append(items, it)
	}
	return items
}

func current(t *testing.T, s *Session) canvas.Project {
	p, err := s.Project()
	require.NoError(t, err)
	return p
}

func TestSession_NoProject(t *testing.T) {
	s, _ := setupSession(t, &gateway.Stub{})

	_, err := s.Project()
	assert.ErrorIs(t, err, ErrNoProject)

	_, err = s.AddItem(canvas.BlockRisks, "x")
	assert.ErrorIs(t, err, ErrNoProject)

	_, err = s.CheckGaps(context.Background())
	assert.ErrorIs(t, err, ErrNoProject)

	_, err = s.OpenActive(context.Background())
	assert.ErrorIs(t, err, ErrNoProject)
}

func TestSession_CreateAndOpen(t *testing.T) {
	ctx := context.Background()
	s, st := setupSession(t, nil)

	_, err := s.Create(ctx, "  ")
	assert.Error(t, err)

	first, err := s.Create(ctx, "First")
	require.NoError(t, err)
	_, err = s.AddItem(canvas.BlockRisks, "Drought")
	require.NoError(t, err)

	// Creating another project flushes the pending edit of the first.
	second, err := s.Create(ctx, "Second")
	require.NoError(t, err)
	assert.Equal(t, second.ID, current(t, s).ID)

	stored, err := st.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Blocks[canvas.BlockRisks].Items, 1)

	opened, err := s.Open(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", opened.Name)

	active, ok := st.Active(ctx)
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)

	_, err = s.Open(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSession_ItemEdits(t *testing.T) {
	ctx := context.Background()
	s, st := setupSession(t, nil)
	items := createWith(t, s, canvas.BlockQuestionsHypotheses, "H1", "H2")

	require.NoError(t, s.EditItem(items[0].ID, "H1 refined"))
	require.NoError(t, s.SetKillCriterion(items[1].ID, true))
	require.NoError(t, s.SetStatus(items[1].ID, canvas.StatusValidated))

	err := s.SetStatus(items[1].ID, canvas.ItemStatus("maybe"))
	assert.Error(t, err)

	err = s.EditItem("nope", "x")
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = s.AddItem(canvas.BlockID("key_insight"), "x")
	assert.ErrorIs(t, err, canvas.ErrUnknownBlock)

	got := current(t, s).Blocks[canvas.BlockQuestionsHypotheses].Items
	require.Len(t, got, 2)
	assert.Equal(t, "H1 refined", got[0].Text)
	assert.True(t, got[1].IsKillCriterion)
	assert.Equal(t, canvas.StatusValidated, got[1].Status)

	require.NoError(t, s.Flush(ctx))
	stored, err := st.Get(ctx, current(t, s).ID)
	require.NoError(t, err)
	assert.Equal(t, "H1 refined", stored.Blocks[canvas.BlockQuestionsHypotheses].Items[0].Text)
}

func TestSession_Links(t *testing.T) {
	s, _ := setupSession(t, nil)
	items := createWith(t, s, canvas.BlockRisks, "Drought", "Flood")
	a, b := items[0].ID, items[1].ID

	outcome, err := s.EndLink(a)
	require.NoError(t, err)
	assert.Equal(t, canvas.LinkNotStarted, outcome)

	require.NoError(t, s.StartLink(a))
	state, src := s.LinkState()
	assert.Equal(t, canvas.LinkLinking, state)
	assert.Equal(t, a, src)

	outcome, err = s.EndLink(a)
	require.NoError(t, err)
	assert.Equal(t, canvas.LinkSelfCancelled, outcome)
	state, _ = s.LinkState()
	assert.Equal(t, canvas.LinkIdle, state)

	outcome, err = s.Link(a, b)
	require.NoError(t, err)
	assert.Equal(t, canvas.LinkCreated, outcome)

	outcome, err = s.Link(b, a)
	require.NoError(t, err)
	assert.Equal(t, canvas.LinkDuplicate, outcome)

	outcome, err = s.Link(a, "ghost")
	require.NoError(t, err)
	assert.Equal(t, canvas.LinkMissingEndpoint, outcome)
	assert.Len(t, current(t, s).Threads, 1)

	t.Run("deleting an endpoint removes its threads", func(t *testing.T) {
		require.NoError(t, s.DeleteItem(b))
		assert.Empty(t, current(t, s).Threads)
	})

	t.Run("unlink", func(t *testing.T) {
		c, err := s.AddItem(canvas.BlockContingencies, "Irrigation")
		require.NoError(t, err)
		_, err = s.Link(a, c.ID)
		require.NoError(t, err)
		threads := current(t, s).Threads
		require.Len(t, threads, 1)

		require.NoError(t, s.Unlink(threads[0].ID))
		assert.Empty(t, current(t, s).Threads)
		require.NoError(t, s.Unlink("unknown"))
	})
}

func TestSession_CheckAndFixGaps(t *testing.T) {
	ctx := context.Background()
	stub := &gateway.Stub{
		Findings: []string{"Risk without contingency", "Aim without evidence"},
		Fixed:    canvas.BlockTexts{canvas.BlockContingencies: {"Drought-tolerant cultivar"}},
	}
	s, _ := setupSession(t, stub)
	items := createWith(t, s, canvas.BlockRisks, "Drought")

	findings, err := s.CheckGaps(ctx)
	require.NoError(t, err)
	assert.Len(t, findings, 2)
	assert.Equal(t, findings, s.Warnings())

	fixed, err := s.FixGap(ctx, "Risk without contingency")
	require.NoError(t, err)
	assert.Contains(t, fixed, canvas.BlockContingencies)
	assert.Equal(t, []string{"Aim without evidence"}, s.Warnings())

	p := current(t, s)
	require.Len(t, p.Blocks[canvas.BlockContingencies].Items, 1)
	assert.Equal(t, "Drought-tolerant cultivar", p.Blocks[canvas.BlockContingencies].Items[0].Text)
	assert.Equal(t, items[0].ID, p.Blocks[canvas.BlockRisks].Items[0].ID, "blocks absent from the fix are untouched")
	assert.Equal(t, []string{"diagnose", "fix-gap"}, stub.Calls())
}

func TestSession_FailedAIKeepsProject(t *testing.T) {
	ctx := context.Background()
	stub := &gateway.Stub{Refined: canvas.BlockTexts{canvas.BlockRisks: {"changed"}}}
	s, _ := setupSession(t, stub)
	createWith(t, s, canvas.BlockRisks, "Drought")
	before := current(t, s)

	stub.Err = fmt.Errorf("%w: not json", gateway.ErrMalformedResponse)

	_, err := s.Refine(ctx)
	require.Error(t, err)
	assert.True(t, gateway.IsMalformed(err))

	_, err = s.FixGap(ctx, "anything")
	require.Error(t, err)

	_, err = s.Import(ctx, gateway.Document{Name: "p.pdf", Data: []byte("x")}, canvas.ApplyAppend)
	require.Error(t, err)

	assert.Equal(t, before, current(t, s))
	assert.False(t, s.Busy(ActionRefine))
}

func TestSession_Busy(t *testing.T) {
	ctx := context.Background()
	stub := &gateway.Stub{Findings: []string{"gap"}, Block: make(chan struct{})}
	s, _ := setupSession(t, stub)
	createWith(t, s, canvas.BlockRisks, "Drought")

	errc := make(chan error, 1)
	go func() {
		_, err := s.CheckGaps(ctx)
		errc <- err
	}()

	require.Eventually(t, func() bool { return s.Busy(ActionDiagnose) }, time.Second, 5*time.Millisecond)

	_, err := s.CheckGaps(ctx)
	assert.ErrorIs(t, err, ErrBusy)

	close(stub.Block)
	require.NoError(t, <-errc)
	assert.False(t, s.Busy(ActionDiagnose))
	assert.Equal(t, []string{"gap"}, s.Warnings())
}

func TestSession_RefineAndRevert(t *testing.T) {
	ctx := context.Background()
	stub := &gateway.Stub{Refined: canvas.BlockTexts{canvas.BlockRisks: {"Prolonged drought", "Flooding"}}}
	s, st := setupSession(t, stub)
	items := createWith(t, s, canvas.BlockRisks, "drought", "flood")
	c, err := s.AddItem(canvas.BlockContingencies, "Irrigation")
	require.NoError(t, err)
	_, err = s.Link(items[0].ID, c.ID)
	require.NoError(t, err)

	n, err := s.Refine(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p := current(t, s)
	assert.Len(t, p.Blocks[canvas.BlockRisks].Items, 2)
	assert.Equal(t, "Prolonged drought", p.Blocks[canvas.BlockRisks].Items[0].Text)
	assert.Empty(t, p.Threads, "threads to replaced items are dropped")

	t.Run("revert restores blocks and threads once", func(t *testing.T) {
		require.NoError(t, s.RevertRefine(ctx))
		p := current(t, s)
		assert.Equal(t, items[0].ID, p.Blocks[canvas.BlockRisks].Items[0].ID)
		assert.Len(t, p.Threads, 1)

		assert.ErrorIs(t, s.RevertRefine(ctx), ErrNothingToRevert)
	})

	t.Run("undo survives a new session", func(t *testing.T) {
		_, err := s.Refine(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Close())

		next := New(st, stub, Opts{Debounce: time.Hour})
		t.Cleanup(func() { next.Close() })
		_, err = next.OpenActive(ctx)
		require.NoError(t, err)

		require.NoError(t, next.RevertRefine(ctx))
		assert.Equal(t, "drought", current(t, next).Blocks[canvas.BlockRisks].Items[0].Text)
	})
}

func TestSession_RefineEmptyCanvas(t *testing.T) {
	stub := &gateway.Stub{Refined: canvas.BlockTexts{canvas.BlockRisks: {"x"}}}
	s, _ := setupSession(t, stub)
	_, err := s.Create(context.Background(), "Empty")
	require.NoError(t, err)

	n, err := s.Refine(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, stub.Calls())
	assert.ErrorIs(t, s.RevertRefine(context.Background()), ErrNothingToRevert)
}

func TestSession_Import(t *testing.T) {
	ctx := context.Background()
	doc := gateway.Document{Name: "proposal.pdf", MimeType: "application/pdf", Data: []byte("%PDF")}

	t.Run("appends by default", func(t *testing.T) {
		stub := &gateway.Stub{Extracted: canvas.BlockTexts{
			canvas.BlockRisks:  {"Flood", " "},
			canvas.BlockBudget: {"$50k"},
			"made_up":          {"ignored"},
		}}
		s, _ := setupSession(t, stub)
		createWith(t, s, canvas.BlockRisks, "Drought")

		n, err := s.Import(ctx, doc, canvas.ApplyAppend)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		p := current(t, s)
		assert.Len(t, p.Blocks[canvas.BlockRisks].Items, 2)
		assert.Len(t, p.Blocks[canvas.BlockBudget].Items, 1)
	})

	t.Run("replace mode", func(t *testing.T) {
		stub := &gateway.Stub{Extracted: canvas.BlockTexts{canvas.BlockRisks: {"Flood"}}}
		s, _ := setupSession(t, stub)
		createWith(t, s, canvas.BlockRisks, "Drought")

		_, err := s.Import(ctx, doc, canvas.ApplyReplace)
		require.NoError(t, err)
		risks := current(t, s).Blocks[canvas.BlockRisks].Items
		require.Len(t, risks, 1)
		assert.Equal(t, "Flood", risks[0].Text)
	})

	t.Run("nothing extracted", func(t *testing.T) {
		stub := &gateway.Stub{Extracted: canvas.BlockTexts{canvas.BlockRisks: {}}}
		s, _ := setupSession(t, stub)
		createWith(t, s, canvas.BlockRisks, "Drought")
		before := current(t, s)

		_, err := s.Import(ctx, doc, canvas.ApplyAppend)
		assert.ErrorIs(t, err, ErrNothingImported)
		assert.Equal(t, before, current(t, s))
	})
}

func TestSession_Answer(t *testing.T) {
	ctx := context.Background()
	stub := &gateway.Stub{Mapped: canvas.BlockTexts{
		canvas.BlockBudget: {"$200k cap"},
		canvas.BlockEthics: {"IRB approval"},
		canvas.BlockRisks:  {"Scope creep"},
	}}
	s, _ := setupSession(t, stub)
	createWith(t, s, canvas.BlockBudget, "Existing")

	q, ok := canvas.WizardQuestionByID(19)
	require.True(t, ok)

	n, err := s.Answer(ctx, q, "   ")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, stub.Calls())

	n, err = s.Answer(ctx, q, "Two years, 200k, needs IRB")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, current(t, s).Blocks[canvas.BlockBudget].Items, 2)
	assert.Empty(t, current(t, s).Blocks[canvas.BlockRisks].Items, "question 19 does not target risks")
}

func TestSession_TextTools(t *testing.T) {
	ctx := context.Background()
	stub := &gateway.Stub{
		Drafts:         map[gateway.DraftKind]string{gateway.DraftAbstract: "An abstract."},
		Jargon:         []gateway.JargonTerm{{Term: "synergy", Alternative: "cooperation"}},
		Falsifiability: gateway.Falsifiability{IsFalsifiable: true},
	}
	s, _ := setupSession(t, stub)

	terms, err := s.Jargon(ctx, "leverage synergy")
	require.NoError(t, err, "text tools do not need an open project")
	assert.Len(t, terms, 1)

	verdict, err := s.Falsify(ctx, "Yield rises 10% with biochar")
	require.NoError(t, err)
	assert.True(t, verdict.IsFalsifiable)

	_, err = s.Draft(ctx, gateway.DraftAbstract)
	assert.ErrorIs(t, err, ErrNoProject)

	createWith(t, s, canvas.BlockNovelty, "First field trial")
	draft, err := s.Draft(ctx, gateway.DraftAbstract)
	require.NoError(t, err)
	assert.Equal(t, "An abstract.", draft)

	_, err = s.Draft(ctx, gateway.DraftKind("poem"))
	assert.Error(t, err)
}

func TestSession_NoGateway(t *testing.T) {
	s, _ := setupSession(t, nil)
	createWith(t, s, canvas.BlockRisks, "Drought")

	_, err := s.CheckGaps(context.Background())
	assert.ErrorIs(t, err, ErrNoGateway)
}
