// Package canvas provides the type-safe Go definitions and pure mutation
// engine for the Compass research-planning canvas.
//
// # Overview
//
// A canvas is a fixed set of labelled blocks, each holding an ordered list of
// short text items. Blocks are grouped into seven spaces (Problem, Claim, Value,
// Execution, Validation, Risk, Constraints). Items in different blocks can be
// joined by threads, which are undirected cross-references.
//
// # Core Concepts
//
// Projects are the unit of persistence. A Project always carries every block in
// the fixed schema, even when a block is empty. Mutations never add or remove
// block keys.
//
// Mutations are pure functions: they take a Project value, return a new Project
// value, and never modify their input. The caller decides when to persist.
//
// Threads obey two invariants: both endpoints reference items that exist in the
// project, and no two threads join the same unordered pair of items. Deleting
// an item removes every thread that references it.
//
// The Linker is the two-state gesture that creates threads (Idle, Linking).
//
// # Usage Example
//
//	import "github.com/dyluth/compass/pkg/canvas"
//
//	p := canvas.NewProject("Soil carbon", canvas.DefaultTemplate())
//
//	p, item, err := canvas.AddItem(p, canvas.BlockRisks, "Funding lapse")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	var l canvas.Linker
//	l.Start(item.ID)
//	p, outcome := l.End(p, otherItemID)
//
//	// Project AI input: block id -> item texts
//	snap := canvas.SnapshotOf(p)
//
// # Schema Versions
//
// Snapshots record the block schema version they were written under. Older
// snapshots (the 15-block 1.x schema) are upgraded best-effort on load by
// Migrate: missing blocks are filled from the template, unknown blocks are
// dropped, and dangling threads are pruned.
package canvas
