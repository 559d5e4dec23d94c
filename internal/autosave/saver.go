// Package autosave coalesces project mutations into debounced store writes.
//
// Each project id has at most one pending save. Scheduling a newer snapshot
// replaces the pending one and restarts its quiescence timer, so only the
// most recent state is written once edits stop. Writes whose canonical
// content matches the last persisted content are skipped.
package autosave

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/dyluth/compass/pkg/canvas"
)

// DefaultDebounce is the quiescence window used when none is configured.
const DefaultDebounce = 800 * time.Millisecond

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("autosave closed")

// Persister is the store surface the saver writes through.
type Persister interface {
	Save(ctx context.Context, p canvas.Project) (canvas.Project, error)
}

// Opts configures a Saver.
type Opts struct {
	Debounce time.Duration
	Logger   *slog.Logger

	// OnSaved, if set, is called after every attempted write with the stored
	// snapshot or the write error. It runs on the saving goroutine.
	OnSaved func(p canvas.Project, err error)
}

type pendingSave struct {
	project canvas.Project
	timer   *time.Timer
	seq     uint64
}

// Saver schedules debounced saves. It is safe for concurrent use.
type Saver struct {
	store    Persister
	debounce time.Duration
	log      *slog.Logger
	onSaved  func(canvas.Project, error)

	mu      sync.Mutex
	pending map[string]*pendingSave
	seq     uint64
	closed  bool

	persistMu sync.Mutex
	lastSeq   map[string]uint64
	digests   map[string]string
}

// New creates a saver writing through store.
func New(store Persister, opts Opts) *Saver {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Saver{
		store:    store,
		debounce: debounce,
		log:      log,
		onSaved:  opts.OnSaved,
		pending:  make(map[string]*pendingSave),
		lastSeq:  make(map[string]uint64),
		digests:  make(map[string]string),
	}
}

// Schedule queues p for saving after the quiescence window, replacing any
// pending save of the same project.
func (s *Saver) Schedule(p canvas.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if prev, ok := s.pending[p.ID]; ok {
		prev.timer.Stop()
	}

	s.seq++
	entry := &pendingSave{project: p.Clone(), seq: s.seq}
	id, seq := p.ID, s.seq
	entry.timer = time.AfterFunc(s.debounce, func() { s.fire(id, seq) })
	s.pending[p.ID] = entry
	return nil
}

// Pending reports how many projects have a save waiting.
func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// MarkPersisted records p as already stored, so an identical schedule is skipped.
// Used after loading a project from the store.
func (s *Saver) MarkPersisted(p canvas.Project) {
	digest, err := Digest(p)
	if err != nil {
		return
	}
	s.persistMu.Lock()
	s.digests[p.ID] = digest
	s.persistMu.Unlock()
}

// Flush writes every pending save now and waits for the writes to finish.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := make([]*pendingSave, 0, len(s.pending))
	for id, entry := range s.pending {
		entry.timer.Stop()
		batch = append(batch, entry)
		delete(s.pending, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, entry := range batch {
		if err := s.persist(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes pending saves and rejects further schedules.
func (s *Saver) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(context.Background())
}

func (s *Saver) fire(id string, seq uint64) {
	s.mu.Lock()
	entry, ok := s.pending[id]
	if !ok || entry.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	// Background writes drop their errors after logging them.
	_ = s.persist(context.Background(), entry)
}

func (s *Saver) persist(ctx context.Context, entry *pendingSave) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	p := entry.project
	if entry.seq < s.lastSeq[p.ID] {
		return nil
	}
	s.lastSeq[p.ID] = entry.seq

	digest, err := Digest(p)
	if err == nil && digest == s.digests[p.ID] {
		s.log.Debug("autosave skipped, content unchanged", "project", p.ID)
		return nil
	}

	saved, err := s.store.Save(ctx, p)
	if s.onSaved != nil {
		s.onSaved(saved, err)
	}
	if err != nil {
		s.log.Warn("autosave failed, change kept in memory", "project", p.ID, "error", err)
		return fmt.Errorf("autosave %s: %w", p.ID, err)
	}

	if digest != "" {
		s.digests[p.ID] = digest
	}
	s.log.Debug("autosaved project", "project", p.ID, "updated_at", saved.UpdatedAt)
	return nil
}

// Digest returns the SHA-256 of the RFC 8785 canonical JSON of p, ignoring updatedAt.
func Digest(p canvas.Project) (string, error) {
	p.UpdatedAt = 0
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal project: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalise project: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
