package canvas

import "strings"

// BlockTexts maps block ids to ordered item texts, with ids and metadata stripped.
// It is the only shape the AI gateway ever sees or returns for block content.
type BlockTexts map[BlockID][]string

// SnapshotOf projects every block of p into BlockTexts.
// Empty blocks are present with an empty slice.
func SnapshotOf(p Project) BlockTexts {
	out := make(BlockTexts, len(blockTable))
	for _, def := range blockTable {
		items := p.Blocks[def.ID].Items
		texts := make([]string, 0, len(items))
		for _, it := range items {
			texts = append(texts, it.Text)
		}
		out[def.ID] = texts
	}
	return out
}

// NonEmpty returns a copy holding only the blocks that have at least one text.
func (bt BlockTexts) NonEmpty() BlockTexts {
	out := make(BlockTexts)
	for id, texts := range bt {
		if len(texts) > 0 {
			out[id] = append([]string(nil), texts...)
		}
	}
	return out
}

// Known returns a copy without keys outside the fixed schema.
// The ids that were dropped are returned in the second value.
func (bt BlockTexts) Known() (BlockTexts, []string) {
	out := make(BlockTexts, len(bt))
	var dropped []string
	for id, texts := range bt {
		if id.Validate() != nil {
			dropped = append(dropped, string(id))
			continue
		}
		out[id] = append([]string(nil), texts...)
	}
	return out, dropped
}

// Only returns a copy restricted to the given block ids.
func (bt BlockTexts) Only(ids []BlockID) BlockTexts {
	out := make(BlockTexts, len(ids))
	for _, id := range ids {
		if texts, ok := bt[id]; ok {
			out[id] = append([]string(nil), texts...)
		}
	}
	return out
}

// Count returns the total number of non-blank texts.
func (bt BlockTexts) Count() int {
	n := 0
	for _, texts := range bt {
		for _, t := range texts {
			if strings.TrimSpace(t) != "" {
				n++
			}
		}
	}
	return n
}

// IsEmpty reports whether no block carries any non-blank text.
func (bt BlockTexts) IsEmpty() bool {
	return bt.Count() == 0
}

// Merge folds other into bt, appending texts for keys present in both.
func (bt BlockTexts) Merge(other BlockTexts) BlockTexts {
	out := make(BlockTexts, len(bt)+len(other))
	for id, texts := range bt {
		out[id] = append([]string(nil), texts...)
	}
	for id, texts := range other {
		out[id] = append(out[id], texts...)
	}
	return out
}
