// Package session holds the one project a user is working on and routes every
// edit through the canvas mutation engine, the AI gateway and autosave.
//
// The current project is replaced, never modified in place. AI replies are
// applied only once fully parsed, so a failed call leaves the project as it was.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/compass/internal/autosave"
	"github.com/dyluth/compass/internal/gateway"
	"github.com/dyluth/compass/pkg/canvas"
)

var (
	// ErrBusy is returned when an AI action is triggered while the same action is still running.
	ErrBusy = errors.New("action already in progress")

	// ErrNothingImported is returned when a document yields no items.
	ErrNothingImported = errors.New("no items could be extracted from the document")

	// ErrNoProject is returned by operations that need an open project.
	ErrNoProject = errors.New("no project is open")

	// ErrItemNotFound is returned when an item id is not in the current project.
	ErrItemNotFound = errors.New("item not found")

	// ErrNothingToRevert is returned by RevertRefine when no refine snapshot exists.
	ErrNothingToRevert = errors.New("no refine to revert")

	// ErrNoGateway is returned by AI operations when the session has no gateway.
	ErrNoGateway = errors.New("AI gateway is not configured")

	// ErrProjectSwitched is returned when the project changed while an AI call was in flight.
	ErrProjectSwitched = errors.New("project changed while the request was running")
)

// Action names an AI-backed operation. Each action has its own busy flag.
type Action string

const (
	ActionDiagnose Action = "diagnose"
	ActionFixGap   Action = "fix-gap"
	ActionRefine   Action = "refine"
	ActionImport   Action = "import"
	ActionWizard   Action = "wizard"
	ActionDraft    Action = "draft"
	ActionJargon   Action = "jargon"
	ActionFalsify  Action = "falsify"
)

// Store is the persistence surface a session needs.
// *store.Store satisfies it.
type Store interface {
	Save(ctx context.Context, p canvas.Project) (canvas.Project, error)
	Get(ctx context.Context, id string) (canvas.Project, error)
	Active(ctx context.Context) (canvas.Project, bool)
	SetActive(ctx context.Context, id string) error
	PutUndo(ctx context.Context, p canvas.Project) error
	TakeUndo(ctx context.Context, id string) (canvas.Project, bool, error)
}

// Opts configures a Session.
type Opts struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	store Store
	ai    gateway.Gateway
	saver *autosave.Saver
	log   *slog.Logger

	mu       sync.Mutex
	current  canvas.Project
	open     bool
	linker   canvas.Linker
	warnings []string
	undo     *canvas.Project
	busy     map[Action]bool
}

// New creates a session over st. ai may be nil when no AI operations are used.
func New(st Store, ai gateway.Gateway, opts Opts) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		store: st,
		ai:    ai,
		log:   log,
		saver: autosave.New(st, autosave.Opts{Debounce: opts.Debounce, Logger: log}),
		busy:  make(map[Action]bool),
	}
}

// Project returns a copy of the current project.
func (s *Session) Project() (canvas.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return canvas.Project{}, ErrNoProject
	}
	return s.current.Clone(), nil
}

// Open flushes pending saves and switches to the stored project id.
func (s *Session) Open(ctx context.Context, id string) (canvas.Project, error) {
	if err := s.saver.Flush(ctx); err != nil {
		s.log.Warn("autosave flush failed before switching project", "error", err)
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return canvas.Project{}, err
	}
	s.switchTo(ctx, p)
	return p.Clone(), nil
}

// OpenActive opens the project later commands default to: the one last
// opened, or the most recently updated.
func (s *Session) OpenActive(ctx context.Context) (canvas.Project, error) {
	p, ok := s.store.Active(ctx)
	if !ok {
		return canvas.Project{}, ErrNoProject
	}
	s.switchTo(ctx, p)
	return p.Clone(), nil
}

// Create starts a new project from the default template, saves it and makes it current.
func (s *Session) Create(ctx context.Context, name string) (canvas.Project, error) {
	if strings.TrimSpace(name) == "" {
		return canvas.Project{}, fmt.Errorf("project name cannot be empty")
	}
	if err := s.saver.Flush(ctx); err != nil {
		s.log.Warn("autosave flush failed before creating project", "error", err)
	}

	saved, err := s.store.Save(ctx, canvas.NewProject(name, canvas.DefaultTemplate()))
	if err != nil {
		return canvas.Project{}, err
	}
	s.switchTo(ctx, saved)
	return saved.Clone(), nil
}

func (s *Session) switchTo(ctx context.Context, p canvas.Project) {
	s.mu.Lock()
	s.current = p
	s.open = true
	s.linker.Cancel()
	s.warnings = nil
	s.undo = nil
	s.mu.Unlock()

	s.saver.MarkPersisted(p)
	if err := s.store.SetActive(ctx, p.ID); err != nil {
		s.log.Warn("failed to record active project", "project", p.ID, "error", err)
	}
}

// commit replaces the current project and schedules its autosave.
// Callers hold s.mu.
func (s *Session) commit(p canvas.Project) {
	s.current = p
	if err := s.saver.Schedule(p); err != nil {
		s.log.Warn("autosave not scheduled", "project", p.ID, "error", err)
	}
}

// mutate applies fn to the current project under the lock.
func (s *Session) mutate(fn func(p canvas.Project) (canvas.Project, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNoProject
	}
	next, err := fn(s.current)
	if err != nil {
		return err
	}
	s.commit(next)
	return nil
}

// locate resolves the block holding itemID. Callers hold s.mu.
func (s *Session) locate(itemID string) (canvas.BlockID, error) {
	blockID, _, ok := canvas.FindItem(s.current, itemID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return blockID, nil
}

// AddItem appends a new item to blockID.
func (s *Session) AddItem(blockID canvas.BlockID, text string) (canvas.Item, error) {
	var added canvas.Item
	err := s.mutate(func(p canvas.Project) (canvas.Project, error) {
		next, item, err := canvas.AddItem(p, blockID, text)
		added = item
		return next, err
	})
	return added, err
}

// EditItem replaces the text of an item.
func (s *Session) EditItem(itemID, text string) error {
	return s.mutate(func(p canvas.Project) (canvas.Project, error) {
		blockID, err := s.locate(itemID)
		if err != nil {
			return p, err
		}
		return canvas.UpdateItem(p, blockID, itemID, canvas.ItemPatch{Text: &text})
	})
}

// DeleteItem removes an item and every thread touching it.
func (s *Session) DeleteItem(itemID string) error {
	return s.mutate(func(p canvas.Project) (canvas.Project, error) {
		blockID, err := s.locate(itemID)
		if err != nil {
			return p, err
		}
		if s.linker.Source() == itemID {
			s.linker.Cancel()
		}
		return canvas.DeleteItem(p, blockID, itemID)
	})
}

// SetKillCriterion flags or unflags an item as a kill criterion.
func (s *Session) SetKillCriterion(itemID string, on bool) error {
	return s.mutate(func(p canvas.Project) (canvas.Project, error) {
		blockID, err := s.locate(itemID)
		if err != nil {
			return p, err
		}
		return canvas.SetKillCriterion(p, blockID, itemID, on)
	})
}

// SetStatus sets the validation status of an item.
func (s *Session) SetStatus(itemID string, status canvas.ItemStatus) error {
	return s.mutate(func(p canvas.Project) (canvas.Project, error) {
		blockID, err := s.locate(itemID)
		if err != nil {
			return p, err
		}
		return canvas.SetStatus(p, blockID, itemID, status)
	})
}

// StartLink begins a link gesture on itemID.
func (s *Session) StartLink(itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNoProject
	}
	s.linker.Start(itemID)
	return nil
}

// EndLink completes the link gesture on itemID.
func (s *Session) EndLink(itemID string) (canvas.LinkOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return canvas.LinkNotStarted, ErrNoProject
	}
	next, outcome := s.linker.End(s.current, itemID)
	if outcome == canvas.LinkCreated {
		s.commit(next)
	}
	return outcome, nil
}

// CancelLink abandons a link gesture in progress.
func (s *Session) CancelLink() {
	s.mu.Lock()
	s.linker.Cancel()
	s.mu.Unlock()
}

// LinkState reports the link gesture state and its source item.
func (s *Session) LinkState() (canvas.LinkState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linker.State(), s.linker.Source()
}

// Link joins two items directly.
func (s *Session) Link(a, b string) (canvas.LinkOutcome, error) {
	if err := s.StartLink(a); err != nil {
		return canvas.LinkNotStarted, err
	}
	return s.EndLink(b)
}

// Unlink removes a thread. Unknown thread ids are a no-op.
func (s *Session) Unlink(threadID string) error {
	return s.mutate(func(p canvas.Project) (canvas.Project, error) {
		return canvas.RemoveThread(p, threadID), nil
	})
}

// Warnings returns the findings of the last gap check that are not yet fixed.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Busy reports whether action is in flight.
func (s *Session) Busy(action Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[action]
}

// begin marks action busy and returns a snapshot of the current project.
// Text-only actions pass needProject false and get a zero project.
func (s *Session) begin(action Action, needProject bool) (canvas.Project, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ai == nil {
		return canvas.Project{}, nil, ErrNoGateway
	}
	if needProject && !s.open {
		return canvas.Project{}, nil, ErrNoProject
	}
	if s.busy[action] {
		return canvas.Project{}, nil, fmt.Errorf("%s: %w", action, ErrBusy)
	}
	s.busy[action] = true

	done := func() {
		s.mu.Lock()
		delete(s.busy, action)
		s.mu.Unlock()
	}
	if !needProject {
		return canvas.Project{}, done, nil
	}
	return s.current.Clone(), done, nil
}

// land applies an AI mapping to the current project if it is still the one
// the request was made for. Callers hold s.mu.
func (s *Session) land(projectID string, texts canvas.BlockTexts, mode canvas.ApplyMode) (int, error) {
	if !s.open || s.current.ID != projectID {
		return 0, ErrProjectSwitched
	}
	known, dropped := texts.Known()
	if len(dropped) > 0 {
		s.log.Debug("ignoring unknown blocks in AI reply", "blocks", dropped)
	}
	next, created := canvas.ApplyBlockTexts(s.current, known, mode)
	s.commit(next)
	return created, nil
}

// CheckGaps runs a gap audit of the current project and stores the findings as warnings.
func (s *Session) CheckGaps(ctx context.Context) ([]string, error) {
	p, done, err := s.begin(ActionDiagnose, true)
	if err != nil {
		return nil, err
	}
	defer done()

	findings, err := s.ai.Diagnose(ctx, canvas.SnapshotOf(p))
	if err != nil {
		return nil, fmt.Errorf("gap check failed: %w", err)
	}

	s.mu.Lock()
	if s.current.ID == p.ID {
		s.warnings = append([]string(nil), findings...)
	}
	s.mu.Unlock()
	return findings, nil
}

// FixGap asks the AI to resolve one warning, replaces the blocks it rewrites
// and drops the warning.
func (s *Session) FixGap(ctx context.Context, warning string) (canvas.BlockTexts, error) {
	p, done, err := s.begin(ActionFixGap, true)
	if err != nil {
		return nil, err
	}
	defer done()

	fixed, err := s.ai.FixGap(ctx, canvas.SnapshotOf(p), warning)
	if err != nil {
		return nil, fmt.Errorf("fix failed: %w", err)
	}
	known, _ := fixed.Known()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.land(p.ID, known, canvas.ApplyReplace); err != nil {
		return nil, err
	}
	kept := s.warnings[:0]
	for _, w := range s.warnings {
		if w != warning {
			kept = append(kept, w)
		}
	}
	s.warnings = kept
	return known, nil
}

// Refine rewrites every non-empty block through the AI and keeps the prior
// blocks and threads so the refine can be reverted once.
// Returns the number of blocks rewritten.
func (s *Session) Refine(ctx context.Context) (int, error) {
	p, done, err := s.begin(ActionRefine, true)
	if err != nil {
		return 0, err
	}
	defer done()

	refined, err := s.ai.Refine(ctx, canvas.SnapshotOf(p))
	if err != nil {
		return 0, fmt.Errorf("refine failed: %w", err)
	}
	known, _ := refined.Known()
	if len(known) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.current.Clone()
	if _, err := s.land(p.ID, known, canvas.ApplyReplace); err != nil {
		return 0, err
	}
	s.undo = &before
	if err := s.store.PutUndo(ctx, before); err != nil {
		s.log.Warn("failed to persist refine undo; it will only last this session", "project", before.ID, "error", err)
	}
	return len(known), nil
}

// RevertRefine restores the blocks and threads captured by the last Refine.
func (s *Session) RevertRefine(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNoProject
	}

	undo := s.undo
	s.undo = nil
	stored, found, err := s.store.TakeUndo(ctx, s.current.ID)
	if err != nil {
		s.log.Warn("failed to read refine undo", "project", s.current.ID, "error", err)
	}
	if undo == nil && found {
		undo = &stored
	}
	if undo == nil {
		return ErrNothingToRevert
	}

	s.commit(canvas.RestoreBlocks(s.current, undo.Blocks, undo.Threads))
	return nil
}

// Import extracts canvas items from doc and lands them in the current project.
// Items are appended unless mode is canvas.ApplyReplace.
func (s *Session) Import(ctx context.Context, doc gateway.Document, mode canvas.ApplyMode) (int, error) {
	p, done, err := s.begin(ActionImport, true)
	if err != nil {
		return 0, err
	}
	defer done()

	extracted, err := s.ai.Extract(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("import of %s failed: %w", doc.Name, err)
	}
	if extracted.Count() == 0 {
		return 0, ErrNothingImported
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.land(p.ID, extracted, mode)
}

// Answer maps a wizard answer onto the question's target blocks and appends the items.
func (s *Session) Answer(ctx context.Context, q canvas.WizardQuestion, answer string) (int, error) {
	if strings.TrimSpace(answer) == "" {
		return 0, nil
	}
	p, done, err := s.begin(ActionWizard, true)
	if err != nil {
		return 0, err
	}
	defer done()

	mapped, err := s.ai.MapAnswer(ctx, q, answer)
	if err != nil {
		return 0, fmt.Errorf("question %d: %w", q.ID, err)
	}
	mapped = mapped.Only(q.TargetBlocks)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.land(p.ID, mapped, canvas.ApplyAppend)
}

// Draft writes an abstract or grant outline from the current project.
func (s *Session) Draft(ctx context.Context, kind gateway.DraftKind) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	p, done, err := s.begin(ActionDraft, true)
	if err != nil {
		return "", err
	}
	defer done()

	return s.ai.Draft(ctx, kind, p.Name, canvas.SnapshotOf(p))
}

// Jargon lists buzzwords in text with plainer alternatives.
func (s *Session) Jargon(ctx context.Context, text string) ([]gateway.JargonTerm, error) {
	_, done, err := s.begin(ActionJargon, false)
	if err != nil {
		return nil, err
	}
	defer done()
	return s.ai.DetectJargon(ctx, text)
}

// Falsify judges whether hypothesis can be proven false.
func (s *Session) Falsify(ctx context.Context, hypothesis string) (gateway.Falsifiability, error) {
	_, done, err := s.begin(ActionFalsify, false)
	if err != nil {
		return gateway.Falsifiability{}, err
	}
	defer done()
	return s.ai.CheckFalsifiability(ctx, hypothesis)
}

// Flush persists any pending autosave now.
func (s *Session) Flush(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// Close flushes pending saves and stops autosave.
func (s *Session) Close() error {
	return s.saver.Close()
}
