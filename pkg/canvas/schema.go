package canvas

// Static block schema
//
// The set of blocks and their space assignments is configuration, not runtime
// state. Every Project carries exactly these blocks, keyed by BlockID.
//
// Schema history:
//   - 1.x: 15 blocks (no prior_work, current_solutions, data, contingencies, access)
//   - 2.x: 20 blocks, the table below

// SchemaVersion is the block schema version written into new snapshots.
const SchemaVersion = "2.0.0"

const (
	BlockProblemContext      BlockID = "problem_context"
	BlockPriorWork           BlockID = "prior_work"
	BlockGapsLimits          BlockID = "gaps_limits"
	BlockCurrentSolutions    BlockID = "current_solutions"
	BlockQuestionsHypotheses BlockID = "questions_hypotheses"
	BlockAimsObjectives      BlockID = "aims_objectives"
	BlockNovelty             BlockID = "novelty"
	BlockStakeholders        BlockID = "stakeholders"
	BlockImpact              BlockID = "impact"
	BlockMethodology         BlockID = "methodology"
	BlockData                BlockID = "data"
	BlockResources           BlockID = "resources"
	BlockEvidenceCriteria    BlockID = "evidence_criteria"
	BlockMilestones          BlockID = "milestones"
	BlockRisks               BlockID = "risks"
	BlockContingencies       BlockID = "contingencies"
	BlockTimeline            BlockID = "timeline"
	BlockBudget              BlockID = "budget"
	BlockEthics              BlockID = "ethics"
	BlockAccess              BlockID = "access"
)

// BlockDef is one row of the static block table.
type BlockDef struct {
	ID          BlockID
	Title       string
	Description string
	Category    SpaceID
}

var blockTable = []BlockDef{
	{BlockProblemContext, "Problem Context", "Broader setting or situation.", SpaceProblem},
	{BlockPriorWork, "Prior Work", "What exists? Key references.", SpaceProblem},
	{BlockGapsLimits, "Gaps & Limits", "What's missing or broken?", SpaceProblem},
	{BlockCurrentSolutions, "Current Solutions", "How is it done today?", SpaceProblem},

	{BlockQuestionsHypotheses, "Questions & Hypotheses", "Q: What are you asking? H: What do you predict?", SpaceClaim},
	{BlockAimsObjectives, "Aims & Objectives", "Measurable project goals.", SpaceClaim},
	{BlockNovelty, "New Approach, Insight, Innovation", "What is NEW in your approach?", SpaceClaim},

	{BlockStakeholders, "Target Audience", "Who cares? Who will benefit?", SpaceValue},
	{BlockImpact, "Significance & Impact", "What VALUE does this add?", SpaceValue},

	{BlockMethodology, "Methodology", "Key Methods, strategy, experiments, controls.", SpaceExecution},
	{BlockData, "Data", "Sources. have / need", SpaceExecution},
	{BlockResources, "Resources", "Compute, skills, collaborators.", SpaceExecution},

	{BlockEvidenceCriteria, "Evidence Criteria", "What proves/disproves each claim?", SpaceValidation},

	{BlockMilestones, "Milestones", "Timeline checkpoints.", SpaceRisk},
	{BlockRisks, "Risks", "What could fail?", SpaceRisk},
	{BlockContingencies, "Contingencies", "Backup plans.", SpaceRisk},

	{BlockTimeline, "Timeline", "Deadlines...", SpaceConstraints},
	{BlockBudget, "Budget", "Funding limits...", SpaceConstraints},
	{BlockEthics, "Ethics/IRB", "Approvals needed...", SpaceConstraints},
	{BlockAccess, "Access", "Restricted resources...", SpaceConstraints},
}

var blockIndex = func() map[BlockID]int {
	idx := make(map[BlockID]int, len(blockTable))
	for i, def := range blockTable {
		idx[def.ID] = i
	}
	return idx
}()

// BlockIDs returns every block id in display order.
func BlockIDs() []BlockID {
	ids := make([]BlockID, len(blockTable))
	for i, def := range blockTable {
		ids[i] = def.ID
	}
	return ids
}

// BlockDefs returns a copy of the static block table in display order.
func BlockDefs() []BlockDef {
	defs := make([]BlockDef, len(blockTable))
	copy(defs, blockTable)
	return defs
}

// BlocksInSpace returns the block ids of one space, in display order.
func BlocksInSpace(space SpaceID) []BlockID {
	var ids []BlockID
	for _, def := range blockTable {
		if def.Category == space {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// Lookup returns the table row for id.
func Lookup(id BlockID) (BlockDef, bool) {
	i, ok := blockIndex[id]
	if !ok {
		return BlockDef{}, false
	}
	return blockTable[i], true
}

// Template is a full set of blocks used to seed new projects.
type Template map[BlockID]Block

// DefaultTemplate returns a fresh template with every block empty.
// Each call returns a new map, so callers may modify it freely.
func DefaultTemplate() Template {
	t := make(Template, len(blockTable))
	for _, def := range blockTable {
		t[def.ID] = Block{
			ID:          def.ID,
			Title:       def.Title,
			Description: def.Description,
			Category:    def.Category,
			Items:       []Item{},
		}
	}
	return t
}
