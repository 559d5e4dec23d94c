package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/compass/pkg/canvas"
)

// Store is the durable mapping from project id to project snapshot.
//
// All snapshots of a namespace live in one JSON array under BackpackKey.
// Reads fail soft: an unreachable medium or a corrupted array is treated as
// an empty backpack. Writes return their error so the caller can decide to
// drop them. Entries this build cannot read (newer major schema) are kept
// verbatim and never overwritten by saves of other projects.
type Store struct {
	kv        KV
	namespace string
	log       *slog.Logger
	now       func() int64

	mu sync.Mutex // serialises read-modify-write of the backpack
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for fail-soft warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the Unix-millisecond clock used for updatedAt.
func WithClock(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store over kv, scoped to namespace.
func New(kv KV, namespace string, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("store medium cannot be nil")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	s := &Store{
		kv:        kv,
		namespace: namespace,
		log:       slog.Default(),
		now:       func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Namespace returns the namespace the store is scoped to.
func (s *Store) Namespace() string {
	return s.namespace
}

// Close closes the underlying medium.
func (s *Store) Close() error {
	return s.kv.Close()
}

// CreateNew returns a fresh, unsaved project seeded from a deep copy of template.
func (s *Store) CreateNew(name string, template canvas.Template) canvas.Project {
	p := canvas.NewProject(name, template)
	p.UpdatedAt = s.now()
	return p
}

// List returns every readable snapshot, most recently updated first.
// Storage and parse failures are logged and yield an empty list.
func (s *Store) List(ctx context.Context) []canvas.Project {
	projects, err := s.Scan(ctx)
	if err != nil {
		s.log.Warn("project store unavailable, treating as empty", "namespace", s.namespace, "error", err)
		return []canvas.Project{}
	}
	return projects
}

// Scan is List without the fail-soft read: an unreachable medium is returned
// as an error. Unreadable entries and a corrupted backpack are still skipped.
func (s *Store) Scan(ctx context.Context) ([]canvas.Project, error) {
	raw, err := s.readRaw(ctx, false)
	if err != nil {
		return nil, err
	}

	projects := make([]canvas.Project, 0, len(raw))
	for i, entry := range raw {
		var p canvas.Project
		if err := json.Unmarshal(entry, &p); err != nil {
			s.log.Warn("skipping unreadable snapshot", "index", i, "error", err)
			continue
		}

		migrated, report, err := canvas.Migrate(p)
		if err != nil {
			s.log.Warn("skipping snapshot", "project", p.ID, "error", err)
			continue
		}
		if report.Changed() {
			s.log.Info("upgraded snapshot",
				"project", p.ID,
				"from", report.From,
				"added_blocks", report.AddedBlocks,
				"dropped_blocks", report.DroppedBlocks,
				"pruned_threads", report.PrunedThreads,
				"reassigned_ids", report.ReassignedIDs)
		}
		projects = append(projects, migrated)
	}

	SortByRecent(projects)
	return projects, nil
}

// SortByRecent orders projects by updatedAt, newest first. Ties keep their order.
func SortByRecent(projects []canvas.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].UpdatedAt > projects[j].UpdatedAt
	})
}

// Get returns the snapshot with the given id.
func (s *Store) Get(ctx context.Context, id string) (canvas.Project, error) {
	for _, p := range s.List(ctx) {
		if p.ID == id {
			return p, nil
		}
	}
	return canvas.Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Latest returns the most recently updated snapshot.
func (s *Store) Latest(ctx context.Context) (canvas.Project, bool) {
	projects := s.List(ctx)
	if len(projects) == 0 {
		return canvas.Project{}, false
	}
	return projects[0], true
}

// Save inserts or overwrites the snapshot with the same id, stamping updatedAt.
// Returns the snapshot as stored.
func (s *Store) Save(ctx context.Context, p canvas.Project) (canvas.Project, error) {
	out, err := s.write(ctx, p)
	if err != nil {
		return p, err
	}
	s.publish(ctx, Event{
		Type:      EventSaved,
		ProjectID: out.ID,
		Name:      out.Name,
		Items:     out.ItemCount(),
		Threads:   len(out.Threads),
		UpdatedAt: out.UpdatedAt,
	})
	return out, nil
}

// write stores p without publishing an event.
func (s *Store) write(ctx context.Context, p canvas.Project) (canvas.Project, error) {
	out := p.Clone()
	out.UpdatedAt = s.now()
	if out.SchemaVersion == "" {
		out.SchemaVersion = canvas.SchemaVersion
	}
	if err := out.Validate(); err != nil {
		return p, fmt.Errorf("refusing to save invalid project: %w", err)
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return p, fmt.Errorf("failed to marshal project %s: %w", out.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw(ctx, true)
	if err != nil {
		return p, err
	}

	replaced := false
	for i, entry := range raw {
		if entryID(entry) == out.ID {
			raw[i] = encoded
			replaced = true
			break
		}
	}
	if !replaced {
		raw = append(raw, encoded)
	}

	if err := s.writeRaw(ctx, raw); err != nil {
		return p, err
	}
	return out, nil
}

// Rename changes a stored project's display name.
func (s *Store) Rename(ctx context.Context, id, name string) (canvas.Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return canvas.Project{}, err
	}
	p.Name = name
	saved, err := s.write(ctx, p)
	if err != nil {
		return canvas.Project{}, err
	}
	s.publish(ctx, Event{
		Type:      EventRenamed,
		ProjectID: id,
		Name:      name,
		Items:     saved.ItemCount(),
		Threads:   len(saved.Threads),
		UpdatedAt: saved.UpdatedAt,
	})
	return saved, nil
}

// Delete removes the snapshot with the given id. Missing ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw(ctx, true)
	if err != nil {
		return err
	}

	kept := raw[:0]
	for _, entry := range raw {
		if entryID(entry) != id {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(raw) {
		return nil
	}

	if err := s.writeRaw(ctx, kept); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, UndoKey(s.namespace, id)); err != nil {
		s.log.Warn("failed to clear undo snapshot", "project", id, "error", err)
	}

	s.publish(ctx, Event{Type: EventDeleted, ProjectID: id, UpdatedAt: s.now()})
	return nil
}

// SetActive records id as the project later commands operate on.
func (s *Store) SetActive(ctx context.Context, id string) error {
	return s.kv.Set(ctx, ActiveKey(s.namespace), id)
}

// Active returns the project recorded by SetActive, falling back to Latest
// when none is recorded or it no longer exists.
func (s *Store) Active(ctx context.Context) (canvas.Project, bool) {
	id, found, err := s.kv.Get(ctx, ActiveKey(s.namespace))
	if err != nil {
		s.log.Warn("failed to read active project", "error", err)
	}
	if found {
		if p, err := s.Get(ctx, id); err == nil {
			return p, true
		}
	}
	return s.Latest(ctx)
}

// PutUndo stores the pre-refine state of a project, replacing any earlier one.
func (s *Store) PutUndo(ctx context.Context, p canvas.Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal undo snapshot: %w", err)
	}
	return s.kv.Set(ctx, UndoKey(s.namespace, p.ID), string(data))
}

// TakeUndo returns and clears the pre-refine state of a project.
func (s *Store) TakeUndo(ctx context.Context, id string) (canvas.Project, bool, error) {
	key := UndoKey(s.namespace, id)
	val, found, err := s.kv.Get(ctx, key)
	if err != nil || !found {
		return canvas.Project{}, false, err
	}

	var p canvas.Project
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return canvas.Project{}, false, fmt.Errorf("failed to unmarshal undo snapshot: %w", err)
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return canvas.Project{}, false, err
	}
	return p, true, nil
}

// readRaw loads the backpack as individual JSON entries.
// A value that is not a JSON array is treated as empty; with quarantine set,
// it is first copied aside to CorruptKey so the next write cannot lose it.
func (s *Store) readRaw(ctx context.Context, quarantine bool) ([]json.RawMessage, error) {
	key := BackpackKey(s.namespace)
	val, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found || val == "" {
		return []json.RawMessage{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(val), &raw); err != nil {
		s.log.Warn("project backpack is corrupted, treating as empty", "key", key, "error", err)
		if quarantine {
			aside := CorruptKey(s.namespace, s.now())
			if err := s.kv.Set(ctx, aside, val); err != nil {
				return nil, fmt.Errorf("failed to quarantine corrupted backpack: %w", err)
			}
			s.log.Warn("moved corrupted backpack aside", "key", aside)
		}
		return []json.RawMessage{}, nil
	}
	return raw, nil
}

func (s *Store) writeRaw(ctx context.Context, raw []json.RawMessage) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal backpack: %w", err)
	}
	return s.kv.Set(ctx, BackpackKey(s.namespace), string(data))
}

func (s *Store) publish(ctx context.Context, ev Event) {
	pub, ok := s.kv.(Publisher)
	if !ok {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := pub.Publish(ctx, ProjectEventsChannel(s.namespace), payload); err != nil {
		s.log.Debug("failed to publish project event", "project", ev.ProjectID, "error", err)
	}
}

// entryID extracts the id of a raw snapshot without decoding the rest of it.
func entryID(entry json.RawMessage) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(entry, &head); err != nil {
		return ""
	}
	return head.ID
}

// IsNotFound reports whether err means the project does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
