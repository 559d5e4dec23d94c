package canvas

// Thread tracking
//
// Threads are undirected associations between two items. They are created by a
// two-phase gesture: Start on the source item, End on the target item. The
// tracker guarantees that
// - no thread ever has the same item at both ends
// - no two threads join the same unordered pair
// - no thread references an item that does not exist
//
// Deleting or replacing items cascades through dropThreadsTouching, so the
// last guarantee holds after every mutation in this package.

// LinkState is the state of the link gesture.
type LinkState int

const (
	// LinkIdle means no link is in progress
	LinkIdle LinkState = iota

	// LinkLinking means a source item has been chosen and the gesture awaits its target
	LinkLinking
)

// String returns the state name.
func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkLinking:
		return "linking"
	default:
		return "unknown"
	}
}

// LinkOutcome reports what End did.
type LinkOutcome int

const (
	// LinkCreated means a new thread was appended to the project
	LinkCreated LinkOutcome = iota

	// LinkDuplicate means the pair was already joined; nothing changed
	LinkDuplicate

	// LinkSelfCancelled means the gesture ended on its own source; nothing changed
	LinkSelfCancelled

	// LinkMissingEndpoint means one of the items no longer exists; nothing changed
	LinkMissingEndpoint

	// LinkNotStarted means End was called while idle; nothing changed
	LinkNotStarted
)

// String returns a short description of the outcome.
func (o LinkOutcome) String() string {
	switch o {
	case LinkCreated:
		return "created"
	case LinkDuplicate:
		return "duplicate"
	case LinkSelfCancelled:
		return "self-link cancelled"
	case LinkMissingEndpoint:
		return "missing endpoint"
	case LinkNotStarted:
		return "not started"
	default:
		return "unknown"
	}
}

// Linker drives the two-state link gesture. The zero value is Idle.
// A Linker is a plain value and is not safe for concurrent use.
type Linker struct {
	state    LinkState
	sourceID string
}

// Start records itemID as the source of a new link, replacing any gesture in progress.
func (l *Linker) Start(itemID string) {
	l.state = LinkLinking
	l.sourceID = itemID
}

// Cancel abandons any gesture in progress.
func (l *Linker) Cancel() {
	l.state = LinkIdle
	l.sourceID = ""
}

// State returns the current gesture state.
func (l *Linker) State() LinkState {
	return l.state
}

// Source returns the recorded source item id, or "" when idle.
func (l *Linker) Source() string {
	return l.sourceID
}

// End completes the gesture on targetID and always returns the tracker to Idle.
func (l *Linker) End(p Project, targetID string) (Project, LinkOutcome) {
	if l.state != LinkLinking {
		return p, LinkNotStarted
	}
	sourceID := l.sourceID
	l.Cancel()

	if sourceID == targetID {
		return p, LinkSelfCancelled
	}
	return AddThread(p, sourceID, targetID)
}

// AddThread joins two items directly, with the same rules as the gesture.
func AddThread(p Project, sourceID, targetID string) (Project, LinkOutcome) {
	if sourceID == targetID {
		return p, LinkSelfCancelled
	}
	if _, _, ok := FindItem(p, sourceID); !ok {
		return p, LinkMissingEndpoint
	}
	if _, _, ok := FindItem(p, targetID); !ok {
		return p, LinkMissingEndpoint
	}
	if HasThread(p, sourceID, targetID) {
		return p, LinkDuplicate
	}

	out := p.Clone()
	out.Threads = append(out.Threads, Thread{ID: newID(), SourceID: sourceID, TargetID: targetID})
	return out, LinkCreated
}

// HasThread reports whether a and b are already joined, in either direction.
func HasThread(p Project, a, b string) bool {
	for i := range p.Threads {
		if p.Threads[i].Joins(a, b) {
			return true
		}
	}
	return false
}

// ThreadsOf returns every thread touching itemID, in creation order.
func ThreadsOf(p Project, itemID string) []Thread {
	var out []Thread
	for i := range p.Threads {
		if p.Threads[i].Touches(itemID) {
			out = append(out, p.Threads[i])
		}
	}
	return out
}

// RemoveThread drops the thread with the given id. Unknown ids are a no-op.
func RemoveThread(p Project, threadID string) Project {
	for i := range p.Threads {
		if p.Threads[i].ID != threadID {
			continue
		}
		out := p.Clone()
		out.Threads = append(out.Threads[:i], out.Threads[i+1:]...)
		return out
	}
	return p
}

// PruneThreads drops threads whose endpoints no longer exist, self-links,
// and later duplicates of an already-joined pair.
func PruneThreads(p Project) Project {
	live := make(map[string]bool)
	for _, b := range p.Blocks {
		for _, it := range b.Items {
			live[it.ID] = true
		}
	}

	kept := make([]Thread, 0, len(p.Threads))
	for _, t := range p.Threads {
		if !live[t.SourceID] || !live[t.TargetID] || t.SourceID == t.TargetID {
			continue
		}
		dup := false
		for i := range kept {
			if kept[i].Joins(t.SourceID, t.TargetID) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, t)
		}
	}

	if len(kept) == len(p.Threads) {
		return p
	}
	out := p.Clone()
	out.Threads = kept
	return out
}

func dropThreadsTouching(threads []Thread, ids map[string]bool) []Thread {
	kept := make([]Thread, 0, len(threads))
	for _, t := range threads {
		if !ids[t.SourceID] && !ids[t.TargetID] {
			kept = append(kept, t)
		}
	}
	return kept
}
