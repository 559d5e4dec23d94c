package store

// EventType names what happened to a project.
type EventType string

const (
	EventSaved   EventType = "saved"
	EventDeleted EventType = "deleted"
	EventRenamed EventType = "renamed"
)

// Event is published on the project events channel after a successful write.
type Event struct {
	Type      EventType `json:"type"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name,omitempty"`
	Items     int       `json:"items"`
	Threads   int       `json:"threads"`
	UpdatedAt int64     `json:"updatedAt"`
}
