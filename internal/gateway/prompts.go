package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dyluth/compass/pkg/canvas"
)

// extractionGroup is one slice of the block table sent in a single extraction request.
type extractionGroup struct {
	Name   string
	Blocks []canvas.BlockID
}

// extractionGroups split document extraction into three requests so each
// reply stays focused and small.
var extractionGroups = []extractionGroup{
	{
		Name: "Background & Core Claims",
		Blocks: []canvas.BlockID{
			canvas.BlockProblemContext, canvas.BlockPriorWork, canvas.BlockGapsLimits,
			canvas.BlockQuestionsHypotheses, canvas.BlockAimsObjectives, canvas.BlockNovelty,
		},
	},
	{
		Name: "Execution & Logistics",
		Blocks: []canvas.BlockID{
			canvas.BlockMethodology, canvas.BlockData, canvas.BlockResources, canvas.BlockMilestones,
		},
	},
	{
		Name: "Value, Strategy & Constraints",
		Blocks: []canvas.BlockID{
			canvas.BlockStakeholders, canvas.BlockImpact, canvas.BlockEvidenceCriteria,
			canvas.BlockRisks, canvas.BlockContingencies, canvas.BlockTimeline,
			canvas.BlockBudget, canvas.BlockEthics, canvas.BlockAccess,
		},
	},
}

// logicChain describes which blocks should support which. It anchors the gap audit.
const logicChain = `Expected logic chain:
Why (the niche)
1. Problem Context and Prior Work establish the Gaps & Limits.
2. Gaps & Limits together with Current Solutions justify the Novelty.
What (the research spine)
3. Gaps & Limits motivate the Questions & Hypotheses.
4. Each hypothesis is tested by a specific Aim or Objective.
5. Each Aim has Evidence Criteria that prove it succeeded.
How (execution)
6. Methodology is chosen to achieve the Aims.
7. Methodology determines the Data and Resources required.
8. Constraints (timeline, budget, ethics, access) limit which methods are viable.
So what (value)
9. Novelty determines the Stakeholders and the Impact.
Reality check
10. Every Risk has a matching Contingency.`

func diagnosePrompt(snap canvas.BlockTexts) string {
	return fmt.Sprintf(`Audit the logical structure of this research canvas and identify the %d most critical structural gaps.

Look in particular for:
- risks with no matching contingency
- hypotheses with no methodology step that tests them
- gaps with no research question addressing them
- aims with no evidence criteria

%s

Canvas (block id -> items): %s

Reply with a JSON array of at most %d strings. Be technical and specific.`,
		MaxFindings, logicChain, mustJSON(snap), MaxFindings)
}

func refinePrompt(snap canvas.BlockTexts) string {
	return fmt.Sprintf(`You are a scientific editor. Refine the research canvas below.

1. Improve wording and framing for clarity and academic tone.
2. Merge redundant or overlapping items within the same block into single statements.
3. Never change the intent, meaning or specific data points of the original items.

Reply with a JSON object mapping each block id given to its new array of refined strings.

Canvas: %s`, mustJSON(snap))
}

func fixGapPrompt(snap canvas.BlockTexts, warning string) string {
	return fmt.Sprintf(`This research canvas has a logical gap: %q

Resolve the gap by rewriting only the blocks that need to change. For every block you
include, return its complete new list of items, keeping the existing items that still apply.

%s

Canvas: %s

Reply with a JSON object mapping block ids to arrays of strings.`, warning, logicChain, mustJSON(snap))
}

func extractPrompt(group extractionGroup) string {
	return fmt.Sprintf(`You are a research analyst. From the attached document, extract technical details for these blocks: %s.

Block meanings:
%s
Reply with JSON only, covering every listed block as fully as the document allows.`,
		joinIDs(group.Blocks), describeBlocks(group.Blocks))
}

func mapAnswerPrompt(q canvas.WizardQuestion, answer string) string {
	return fmt.Sprintf(`A researcher answered a planning question. Split the answer into short canvas items
and place each item in the most fitting of these blocks: %s.

Block meanings:
%s
Question: %q
Answer: %q

Reply with a JSON object mapping block ids to arrays of strings. Omit blocks the answer does not address.`,
		joinIDs(q.TargetBlocks), describeBlocks(q.TargetBlocks), q.Question, answer)
}

func draftPrompt(kind DraftKind, projectName string, snap canvas.BlockTexts) string {
	if kind == DraftGrant {
		return fmt.Sprintf(`Write a grant proposal outline for %q from the research canvas below.

A strong project description:
- opens with a compelling problem statement and why it matters now
- positions the work in the current literature and names a real gap
- states specific, testable hypotheses or research questions
- flows from aims to methods to expected outcomes, with a realistic timeline
- anticipates challenges and describes alternative approaches
- addresses rigor, controls, validation, and data management
- integrates broader impacts with specific, measurable activities

Use these headings: Introduction / Project Overview; Background and Rationale;
Preliminary Studies; Research Plan (one subsection per aim); Expected Outcomes and
Significance; Timeline; Broader Impacts.

Use the specific details from the canvas. Format the outline in Markdown.

Canvas: %s`, projectName, mustJSON(snap))
	}

	return fmt.Sprintf(`Write a concise scientific abstract (about 250 words) for %q using the research canvas below.
Cover context, gap, hypothesis, approach, and expected impact, in that order.

Canvas: %s`, projectName, mustJSON(snap))
}

func jargonPrompt(text string) string {
	return fmt.Sprintf(`Find jargon and buzzwords in this research statement and suggest plainer alternatives.
Reply with a JSON array of objects with "term" and "alternative".

Statement: %q`, text)
}

func falsifiabilityPrompt(hypothesis string) string {
	return fmt.Sprintf(`Judge whether this hypothesis is falsifiable. If it is vague, suggest a version with a measurable metric.
Reply with a JSON object with "isFalsifiable" (boolean) and "suggestion" (string).

Hypothesis: %q`, hypothesis)
}

func joinIDs(ids []canvas.BlockID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

func describeBlocks(ids []canvas.BlockID) string {
	var b strings.Builder
	for _, id := range ids {
		def, ok := canvas.Lookup(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", id, def.Title, def.Description)
	}
	return b.String()
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
