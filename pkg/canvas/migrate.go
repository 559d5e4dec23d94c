package canvas

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// ErrUnsupportedSchema is returned for snapshots written by a newer major schema.
var ErrUnsupportedSchema = errors.New("unsupported schema version")

// legacySchemaVersion is assumed for snapshots that predate the schemaVersion field.
const legacySchemaVersion = "1.0.0"

var currentSchema = semver.MustParse(SchemaVersion)

// MigrationReport describes what Migrate changed.
type MigrationReport struct {
	From          string   // Version the snapshot declared (legacy default when absent)
	AddedBlocks   []string // Block ids filled in from the template
	DroppedBlocks []string // Block ids outside the schema that were removed, with their items
	PrunedThreads int      // Threads removed because an endpoint vanished
	ReassignedIDs int      // Items given a fresh id because theirs was blank or already taken
	Upgraded      bool     // SchemaVersion was rewritten to the current version
}

// Changed reports whether the migration modified the snapshot.
func (r MigrationReport) Changed() bool {
	return r.Upgraded || len(r.AddedBlocks) > 0 || len(r.DroppedBlocks) > 0 ||
		r.PrunedThreads > 0 || r.ReassignedIDs > 0
}

// Migrate upgrades a decoded snapshot to the current block schema.
//
// Snapshots of the same or an older major version are brought up to date:
// missing blocks are created empty and blocks outside the schema are dropped.
// Titles and descriptions are refreshed from the block table only when the
// snapshot is older than the current schema. Items with a blank or repeated
// id get a fresh one, and threads left dangling are pruned. Snapshots from a newer major version return ErrUnsupportedSchema
// and are not modified.
func Migrate(p Project) (Project, MigrationReport, error) {
	report := MigrationReport{From: p.SchemaVersion}
	if report.From == "" {
		report.From = legacySchemaVersion
	}

	v, err := semver.NewVersion(report.From)
	if err != nil {
		return p, report, fmt.Errorf("project %s: invalid schema version %q: %w", p.ID, report.From, err)
	}
	if v.Major() > currentSchema.Major() {
		return p, report, fmt.Errorf("%w: project %s was written under %s, this build reads %s",
			ErrUnsupportedSchema, p.ID, v, currentSchema)
	}

	upgrade := p.SchemaVersion == "" || v.LessThan(currentSchema)

	out := p.Clone()
	blocks := make(map[BlockID]Block, len(blockTable))
	seen := make(map[string]bool)
	for _, def := range blockTable {
		b, ok := out.Blocks[def.ID]
		if !ok || upgrade {
			b.Title = def.Title
			b.Description = def.Description
		}
		if !ok {
			report.AddedBlocks = append(report.AddedBlocks, string(def.ID))
		}
		b.ID = def.ID
		b.Category = def.Category
		if b.Items == nil {
			b.Items = []Item{}
		}
		for i := range b.Items {
			if b.Items[i].ID == "" || seen[b.Items[i].ID] {
				b.Items[i].ID = newID()
				report.ReassignedIDs++
			}
			seen[b.Items[i].ID] = true
		}
		blocks[def.ID] = b
	}
	for id := range out.Blocks {
		if _, ok := blockIndex[id]; !ok {
			report.DroppedBlocks = append(report.DroppedBlocks, string(id))
		}
	}
	sort.Strings(report.DroppedBlocks)
	out.Blocks = blocks

	if out.Threads == nil {
		out.Threads = []Thread{}
	}
	before := len(out.Threads)
	out = PruneThreads(out)
	report.PrunedThreads = before - len(out.Threads)

	if upgrade {
		out.SchemaVersion = SchemaVersion
		report.Upgraded = true
	}

	return out, report, nil
}
