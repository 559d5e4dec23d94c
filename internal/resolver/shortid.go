package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/compass/pkg/canvas"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// An id typed in full always resolves, whatever its length.
const MinShortIDLength = 4

// Kind names what an id refers to, for error messages.
type Kind string

const (
	KindProject Kind = "project"
	KindItem    Kind = "item"
	KindThread  Kind = "link"
)

// ResolveProjectID resolves a full id or short prefix against the listed projects.
func ResolveProjectID(projects []canvas.Project, shortID string) (string, error) {
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return resolve(KindProject, ids, shortID)
}

// ResolveItemID resolves a full id or short prefix against every item in p.
func ResolveItemID(p canvas.Project, shortID string) (string, error) {
	var ids []string
	for _, id := range canvas.BlockIDs() {
		for _, it := range p.Blocks[id].Items {
			ids = append(ids, it.ID)
		}
	}
	return resolve(KindItem, ids, shortID)
}

// ResolveThreadID resolves a full id or short prefix against the threads of p.
func ResolveThreadID(p canvas.Project, shortID string) (string, error) {
	ids := make([]string, len(p.Threads))
	for i, t := range p.Threads {
		ids[i] = t.ID
	}
	return resolve(KindThread, ids, shortID)
}

func resolve(kind Kind, ids []string, shortID string) (string, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))
	if shortID == "" {
		return "", fmt.Errorf("%s id cannot be empty", kind)
	}

	for _, id := range ids {
		if strings.ToLower(id) == shortID {
			return id, nil
		}
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(strings.ToLower(id), shortID) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: kind, ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousError{Kind: kind, ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no ids matched the short ID.
type NotFoundError struct {
	Kind    Kind
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching '%s'", e.Kind, e.ShortID)
}

// AmbiguousError indicates multiple ids matched the short ID.
type AmbiguousError struct {
	Kind    Kind
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d %ss", e.ShortID, len(e.Matches), e.Kind)
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists all matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: ambiguous short ID '%s' matches %d %ss:\n", err.ShortID, len(err.Matches), err.Kind)

	shown := min(len(err.Matches), 10)
	for _, id := range err.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > shown {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-shown)
	}

	fmt.Fprintf(&b, "\nUse a longer prefix to uniquely identify the %s.", err.Kind)
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
