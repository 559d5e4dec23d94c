package canvas

import (
	"errors"
	"fmt"
)

// ErrUnknownBlock is returned when a block id is outside the fixed schema.
var ErrUnknownBlock = errors.New("unknown block id")

// BlockID identifies one block in the fixed canvas schema.
// Only values listed in the block table are valid; use ParseBlockID for untrusted input.
type BlockID string

// SpaceID identifies one of the seven higher-level groupings a block belongs to.
type SpaceID string

const (
	SpaceProblem     SpaceID = "PROBLEM"
	SpaceClaim       SpaceID = "CLAIM"
	SpaceValue       SpaceID = "VALUE"
	SpaceExecution   SpaceID = "EXECUTION"
	SpaceValidation  SpaceID = "VALIDATION"
	SpaceRisk        SpaceID = "RISK"
	SpaceConstraints SpaceID = "CONSTRAINTS"
)

// Spaces lists the spaces in display order.
var Spaces = []SpaceID{
	SpaceProblem, SpaceClaim, SpaceValue, SpaceExecution,
	SpaceValidation, SpaceRisk, SpaceConstraints,
}

// ItemStatus tracks the validation state of an item. The zero value means "not set".
type ItemStatus string

const (
	// StatusPending marks an item whose claim has not been tested yet
	StatusPending ItemStatus = "pending"

	// StatusValidated marks an item supported by evidence
	StatusValidated ItemStatus = "validated"

	// StatusFalsified marks an item contradicted by evidence
	StatusFalsified ItemStatus = "falsified"
)

// Item is a single text entry inside a block.
// An item is owned by exactly one block at a time.
type Item struct {
	ID              string            `json:"id"`                        // Unique within the project
	Text            string            `json:"text"`                      // User-authored or AI-generated text
	IsKillCriterion bool              `json:"isKillCriterion,omitempty"` // Marks a result that would stop the project
	Status          ItemStatus        `json:"status,omitempty"`          // Optional validation state
	Metadata        map[string]string `json:"metadata,omitempty"`        // Free-form annotations
}

// Block is a fixed-identity container of items.
// Title, description and category come from the static block table.
type Block struct {
	ID          BlockID `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    SpaceID `json:"category"`
	Items       []Item  `json:"items"` // Insertion order; meaningful for display only
}

// Thread is an undirected association between two items, possibly in different blocks.
type Thread struct {
	ID       string `json:"id"`       // UUID
	SourceID string `json:"sourceId"` // Item id of the end the gesture started on
	TargetID string `json:"targetId"` // Item id of the end the gesture finished on
}

// Project is the complete persisted state of one canvas instance.
type Project struct {
	ID            string            `json:"id"`            // UUID
	Name          string            `json:"name"`          // Display name
	Blocks        map[BlockID]Block `json:"blocks"`        // Every id of the fixed schema is always present
	Threads       []Thread          `json:"threads"`       // Ordered by creation
	UpdatedAt     int64             `json:"updatedAt"`     // Unix milliseconds of the last persisted save
	SchemaVersion string            `json:"schemaVersion"` // Block schema the snapshot was written under
}

// ParseBlockID converts an untrusted string into a BlockID.
// Returns ErrUnknownBlock if the id is not part of the fixed schema.
func ParseBlockID(s string) (BlockID, error) {
	id := BlockID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks that the BlockID belongs to the fixed schema.
func (id BlockID) Validate() error {
	if _, ok := blockIndex[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBlock, string(id))
	}
	return nil
}

// Space returns the space the block belongs to, or "" for unknown ids.
func (id BlockID) Space() SpaceID {
	if i, ok := blockIndex[id]; ok {
		return blockTable[i].Category
	}
	return ""
}

// Validate checks if the SpaceID is a valid enum value.
func (s SpaceID) Validate() error {
	switch s {
	case SpaceProblem, SpaceClaim, SpaceValue, SpaceExecution,
		SpaceValidation, SpaceRisk, SpaceConstraints:
		return nil
	default:
		return fmt.Errorf("unknown space: %q", s)
	}
}

// Validate checks if the ItemStatus is a valid enum value. The empty status is valid.
func (st ItemStatus) Validate() error {
	switch st {
	case "", StatusPending, StatusValidated, StatusFalsified:
		return nil
	default:
		return fmt.Errorf("unknown item status: %q", st)
	}
}

// ParseItemStatus converts an untrusted string into an ItemStatus.
func ParseItemStatus(s string) (ItemStatus, error) {
	st := ItemStatus(s)
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

// Validate checks if the Item has valid field values.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item ID cannot be empty")
	}
	if err := i.Status.Validate(); err != nil {
		return fmt.Errorf("item %s: %w", i.ID, err)
	}
	return nil
}

// Validate checks that the thread has two distinct, well-formed endpoints.
func (t *Thread) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("thread ID cannot be empty")
	}
	if t.SourceID == "" || t.TargetID == "" {
		return fmt.Errorf("thread %s: endpoints cannot be empty", t.ID)
	}
	if t.SourceID == t.TargetID {
		return fmt.Errorf("thread %s: self-links are not allowed", t.ID)
	}
	return nil
}

// Joins reports whether the thread connects a and b, in either direction.
func (t *Thread) Joins(a, b string) bool {
	return (t.SourceID == a && t.TargetID == b) || (t.SourceID == b && t.TargetID == a)
}

// Touches reports whether either endpoint of the thread is itemID.
func (t *Thread) Touches(itemID string) bool {
	return t.SourceID == itemID || t.TargetID == itemID
}

// Validate checks the structural invariants of a project:
// every schema block present (and nothing else), valid items,
// unique item ids, threads anchored to existing items and no duplicate pairs.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}

	if len(p.Blocks) != len(blockTable) {
		return fmt.Errorf("project %s: expected %d blocks, got %d", p.ID, len(blockTable), len(p.Blocks))
	}

	seen := make(map[string]BlockID)
	for _, def := range blockTable {
		b, ok := p.Blocks[def.ID]
		if !ok {
			return fmt.Errorf("project %s: missing block %q", p.ID, def.ID)
		}
		if b.ID != def.ID {
			return fmt.Errorf("project %s: block keyed %q carries id %q", p.ID, def.ID, b.ID)
		}
		for idx := range b.Items {
			item := &b.Items[idx]
			if err := item.Validate(); err != nil {
				return fmt.Errorf("block %s: %w", def.ID, err)
			}
			if owner, dup := seen[item.ID]; dup {
				return fmt.Errorf("item %s appears in both %s and %s", item.ID, owner, def.ID)
			}
			seen[item.ID] = def.ID
		}
	}

	for idx := range p.Threads {
		t := &p.Threads[idx]
		if err := t.Validate(); err != nil {
			return err
		}
		if _, ok := seen[t.SourceID]; !ok {
			return fmt.Errorf("thread %s: source item %s does not exist", t.ID, t.SourceID)
		}
		if _, ok := seen[t.TargetID]; !ok {
			return fmt.Errorf("thread %s: target item %s does not exist", t.ID, t.TargetID)
		}
		for j := 0; j < idx; j++ {
			if p.Threads[j].Joins(t.SourceID, t.TargetID) {
				return fmt.Errorf("thread %s duplicates thread %s", t.ID, p.Threads[j].ID)
			}
		}
	}

	return nil
}
