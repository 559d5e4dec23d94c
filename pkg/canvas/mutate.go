package canvas

import (
	"fmt"
	"strings"
)

// Mutation engine
//
// Every function here takes a Project by value and returns a new Project.
// The input is never modified: block item slices, thread slices and item
// metadata are copied before any change. Unknown block ids are reported as
// ErrUnknownBlock; unknown item ids are a silent no-op.

// ItemPatch is a shallow merge applied by UpdateItem. Nil fields are left unchanged.
type ItemPatch struct {
	Text            *string
	IsKillCriterion *bool
	Status          *ItemStatus
	Metadata        map[string]string // Replaces the whole metadata map when non-nil
}

// ApplyMode selects how ApplyBlockTexts lands AI output in a block.
type ApplyMode int

const (
	// ApplyReplace discards the block's items and threads anchored to them
	ApplyReplace ApplyMode = iota

	// ApplyAppend keeps existing items and adds new ones after them
	ApplyAppend
)

// NewProject returns a fresh project seeded from a deep copy of template.
// Blocks missing from the template are created empty; ids outside the schema are ignored.
// The template itself is never aliased by the returned project.
func NewProject(name string, template Template) Project {
	blocks := make(map[BlockID]Block, len(blockTable))
	for _, def := range blockTable {
		b, ok := template[def.ID]
		if !ok {
			b = Block{ID: def.ID, Title: def.Title, Description: def.Description, Category: def.Category}
		}
		b.ID = def.ID
		b.Category = def.Category
		b.Items = cloneItems(b.Items)
		blocks[def.ID] = b
	}

	return Project{
		ID:            newID(),
		Name:          name,
		Blocks:        blocks,
		Threads:       []Thread{},
		UpdatedAt:     nowMs(),
		SchemaVersion: SchemaVersion,
	}
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	out := p
	out.Blocks = make(map[BlockID]Block, len(p.Blocks))
	for id, b := range p.Blocks {
		b.Items = cloneItems(b.Items)
		out.Blocks[id] = b
	}
	out.Threads = append([]Thread{}, p.Threads...)
	return out
}

// Block returns the block with the given id.
func (p Project) Block(id BlockID) (Block, error) {
	if err := id.Validate(); err != nil {
		return Block{}, err
	}
	b, ok := p.Blocks[id]
	if !ok {
		return Block{}, fmt.Errorf("%w: %q missing from project %s", ErrUnknownBlock, string(id), p.ID)
	}
	return b, nil
}

// ItemCount returns the number of items across all blocks.
func (p Project) ItemCount() int {
	n := 0
	for _, b := range p.Blocks {
		n += len(b.Items)
	}
	return n
}

// FindItem locates an item anywhere in the project.
func FindItem(p Project, itemID string) (BlockID, Item, bool) {
	for _, def := range blockTable {
		for _, it := range p.Blocks[def.ID].Items {
			if it.ID == itemID {
				return def.ID, it, true
			}
		}
	}
	return "", Item{}, false
}

// AddItem appends a new item with a fresh id to the named block.
func AddItem(p Project, blockID BlockID, text string) (Project, Item, error) {
	if _, err := p.Block(blockID); err != nil {
		return p, Item{}, err
	}

	out := p.Clone()
	item := Item{ID: newID(), Text: text}
	b := out.Blocks[blockID]
	b.Items = append(b.Items, item)
	out.Blocks[blockID] = b

	return out, item, nil
}

// UpdateItem shallow-merges patch into the matching item.
// Returns the project unchanged if itemID is not in the block.
func UpdateItem(p Project, blockID BlockID, itemID string, patch ItemPatch) (Project, error) {
	b, err := p.Block(blockID)
	if err != nil {
		return p, err
	}
	if patch.Status != nil {
		if err := patch.Status.Validate(); err != nil {
			return p, err
		}
	}

	idx := indexOfItem(b.Items, itemID)
	if idx < 0 {
		return p, nil
	}

	out := p.Clone()
	nb := out.Blocks[blockID]
	it := nb.Items[idx]
	if patch.Text != nil {
		it.Text = *patch.Text
	}
	if patch.IsKillCriterion != nil {
		it.IsKillCriterion = *patch.IsKillCriterion
	}
	if patch.Status != nil {
		it.Status = *patch.Status
	}
	if patch.Metadata != nil {
		it.Metadata = cloneMetadata(patch.Metadata)
	}
	nb.Items[idx] = it
	out.Blocks[blockID] = nb

	return out, nil
}

// SetKillCriterion flags or unflags an item as a kill criterion.
func SetKillCriterion(p Project, blockID BlockID, itemID string, on bool) (Project, error) {
	return UpdateItem(p, blockID, itemID, ItemPatch{IsKillCriterion: &on})
}

// SetStatus sets the validation status of an item.
func SetStatus(p Project, blockID BlockID, itemID string, status ItemStatus) (Project, error) {
	return UpdateItem(p, blockID, itemID, ItemPatch{Status: &status})
}

// DeleteItem removes the item from its block and every thread that references it.
// Returns the project unchanged if itemID is not in the block.
func DeleteItem(p Project, blockID BlockID, itemID string) (Project, error) {
	b, err := p.Block(blockID)
	if err != nil {
		return p, err
	}
	if indexOfItem(b.Items, itemID) < 0 {
		return p, nil
	}

	out := p.Clone()
	nb := out.Blocks[blockID]
	nb.Items = removeItems(nb.Items, map[string]bool{itemID: true})
	out.Blocks[blockID] = nb
	out.Threads = dropThreadsTouching(out.Threads, map[string]bool{itemID: true})

	return out, nil
}

// ReplaceBlockItems replaces every item of one block with fresh items built from texts.
// Threads anchored to any discarded item are removed.
func ReplaceBlockItems(p Project, blockID BlockID, texts []string) (Project, error) {
	b, err := p.Block(blockID)
	if err != nil {
		return p, err
	}

	gone := make(map[string]bool, len(b.Items))
	for _, it := range b.Items {
		gone[it.ID] = true
	}

	out := p.Clone()
	nb := out.Blocks[blockID]
	nb.Items = freshItems(texts)
	out.Blocks[blockID] = nb
	out.Threads = dropThreadsTouching(out.Threads, gone)

	return out, nil
}

// AppendBlockItems adds fresh items built from texts after the block's existing items.
func AppendBlockItems(p Project, blockID BlockID, texts []string) (Project, error) {
	if _, err := p.Block(blockID); err != nil {
		return p, err
	}

	out := p.Clone()
	nb := out.Blocks[blockID]
	nb.Items = append(nb.Items, freshItems(texts)...)
	out.Blocks[blockID] = nb

	return out, nil
}

// ApplyBlockTexts lands an AI block mapping in the project.
// Keys outside the schema are skipped, blank strings are dropped, and in
// ApplyReplace mode a key with no remaining texts still clears its block.
// Returns the new project and the number of items created.
func ApplyBlockTexts(p Project, texts BlockTexts, mode ApplyMode) (Project, int) {
	out := p
	created := 0

	// Iterate in table order so item creation order is deterministic.
	for _, def := range blockTable {
		raw, ok := texts[def.ID]
		if !ok {
			continue
		}
		clean := nonBlank(raw)

		var err error
		switch mode {
		case ApplyReplace:
			out, err = ReplaceBlockItems(out, def.ID, clean)
		default:
			if len(clean) == 0 {
				continue
			}
			out, err = AppendBlockItems(out, def.ID, clean)
		}
		if err != nil {
			continue
		}
		created += len(clean)
	}

	return out, created
}

// RestoreBlocks swaps in a previously captured set of blocks and threads,
// keeping the project's identity. Threads whose endpoints are missing are pruned.
func RestoreBlocks(p Project, blocks map[BlockID]Block, threads []Thread) Project {
	out := p.Clone()
	saved := Project{Blocks: blocks, Threads: threads}.Clone()
	for _, def := range blockTable {
		if b, ok := saved.Blocks[def.ID]; ok {
			out.Blocks[def.ID] = b
		}
	}
	out.Threads = saved.Threads
	return PruneThreads(out)
}

func indexOfItem(items []Item, itemID string) int {
	for i, it := range items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

func removeItems(items []Item, ids map[string]bool) []Item {
	kept := make([]Item, 0, len(items))
	for _, it := range items {
		if !ids[it.ID] {
			kept = append(kept, it)
		}
	}
	return kept
}

func freshItems(texts []string) []Item {
	items := make([]Item, 0, len(texts))
	for _, t := range texts {
		items = append(items, Item{ID: newID(), Text: t})
	}
	return items
}

func nonBlank(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Metadata = cloneMetadata(it.Metadata)
		out[i] = it
	}
	return out
}

// cloneMetadata maps an empty map to nil, matching what a JSON round trip yields.
func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
