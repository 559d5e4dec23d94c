package store

import "fmt"

// Key pattern helpers
//
// All keys and Pub/Sub channels are namespaced so several canvases (work,
// personal, tests) can share one Redis server or SQLite file.
//
// Key pattern: compass:{namespace}:{entity}
// Channel pattern: compass:{namespace}:{event_type}_events

// BackpackKey returns the key holding the JSON array of project snapshots.
// Pattern: compass:{namespace}:backpack
func BackpackKey(namespace string) string {
	return fmt.Sprintf("compass:%s:backpack", namespace)
}

// ActiveKey returns the key holding the id of the project opened last.
// Pattern: compass:{namespace}:active
func ActiveKey(namespace string) string {
	return fmt.Sprintf("compass:%s:active", namespace)
}

// UndoKey returns the key holding the pre-refine blocks of one project.
// Pattern: compass:{namespace}:undo:{project_id}
func UndoKey(namespace, projectID string) string {
	return fmt.Sprintf("compass:%s:undo:%s", namespace, projectID)
}

// CorruptKey returns the key a backpack that failed to parse is moved to.
// Pattern: compass:{namespace}:backpack:corrupt:{unix_ms}
func CorruptKey(namespace string, unixMs int64) string {
	return fmt.Sprintf("compass:%s:backpack:corrupt:%d", namespace, unixMs)
}

// ProjectEventsChannel returns the Pub/Sub channel for project saves and deletes.
// Pattern: compass:{namespace}:project_events
func ProjectEventsChannel(namespace string) string {
	return fmt.Sprintf("compass:%s:project_events", namespace)
}
