package canvas

// Guided wizard
//
// The wizard walks the user through one question per topic. Each answer is
// sent to the AI gateway together with the question's target blocks, and the
// returned texts are appended to those blocks.

// WizardQuestion is one step of the guided wizard.
type WizardQuestion struct {
	ID           int
	Question     string
	Description  string
	TargetBlocks []BlockID
	Hints        []string
}

// WizardQuestions returns the wizard steps in the order they are asked.
func WizardQuestions() []WizardQuestion {
	out := make([]WizardQuestion, len(wizardTable))
	for i, q := range wizardTable {
		q.TargetBlocks = append([]BlockID(nil), q.TargetBlocks...)
		q.Hints = append([]string(nil), q.Hints...)
		out[i] = q
	}
	return out
}

// WizardQuestionByID returns the step with the given id.
func WizardQuestionByID(id int) (WizardQuestion, bool) {
	for _, q := range WizardQuestions() {
		if q.ID == id {
			return q, true
		}
	}
	return WizardQuestion{}, false
}

var wizardTable = []WizardQuestion{
	{
		ID:           1,
		Question:     "What is the current scientific, technical, or societal landscape? Why is this area critical now?",
		Description:  "Establish the 'macro' view and contemporary relevance of this field.",
		TargetBlocks: []BlockID{BlockProblemContext},
		Hints: []string{
			"Societal pressures or emerging global trends.",
			"Technological maturity or theoretical readiness in the field.",
			"Urgency: Why is a solution needed now vs. 10 years ago?",
		},
	},
	{
		ID:           2,
		Question:     "What foundational knowledge (empirical findings, theoretical proofs, or engineering standards) does this project build upon?",
		Description:  "Identify the established baseline or state-of-the-art foundation.",
		TargetBlocks: []BlockID{BlockPriorWork},
		Hints: []string{
			"Seminal papers, patents, or industry standards.",
			"Previous experimental results or mathematical lemmas.",
			"Existing prototypes or pilot study outcomes.",
		},
	},
	{
		ID:           3,
		Question:     "What is the fundamental bottleneck, knowledge gap, or unresolved anomaly in current research?",
		Description:  "Identify the critical friction point your project intends to resolve.",
		TargetBlocks: []BlockID{BlockGapsLimits},
		Hints: []string{
			"Technical: Computational complexity, signal-to-noise ratio, or material fatigue.",
			"Theoretical: Inconsistencies in models or lack of formal proofs.",
			"Empirical: Biological pathways unknown or data resolution limits.",
		},
	},
	{
		ID:           4,
		Question:     "How is this problem currently managed? What are the standard benchmarks or 'status quo' approaches?",
		Description:  "Describe existing solutions and their inherent limitations.",
		TargetBlocks: []BlockID{BlockCurrentSolutions},
		Hints: []string{
			"Ad-hoc methods, brute force, or expensive legacy systems.",
			"Current 'Gold Standard' assays or algorithms.",
			"Why do these fail to address the gap identified in the previous step?",
		},
	},
	{
		ID:           5,
		Question:     "What is your central research question, and what is your falsifiable hypothesis or predicted outcome?",
		Description:  "State exactly what you are testing. What specific system behavior do you predict?",
		TargetBlocks: []BlockID{BlockQuestionsHypotheses},
		Hints: []string{
		},
	},
	{
		ID:           6,
		Question:     "What is new or unique about your approach? What fundamentally differentiates it from prior work?",
		Description:  "Define your unique technical angle or 'Secret Sauce'.",
		TargetBlocks: []BlockID{BlockNovelty},
		Hints: []string{
			"Cross-disciplinary synthesis (e.g., applying Physics methods to Biology).",
			"New order of magnitude in precision, scale, or speed.",
			"A shift in theoretical paradigm or a new synthesis of existing data.",
		},
	},
	{
		ID:           7,
		Question:     "What are your specific technical objectives? What concrete milestones define success for this claim?",
		Description:  "State the measurable outcomes required to validate your hypothesis.",
		TargetBlocks: []BlockID{BlockAimsObjectives},
		Hints: []string{
		},
	},
	{
		ID:           8,
		Question:     "What is the high-level strategy for your investigation? Describe your specific methods and controls.",
		Description:  "The 'How': Key Methods, strategy, experiments, and protocols.",
		TargetBlocks: []BlockID{BlockMethodology},
		Hints: []string{
			"Computational: Algorithmic design, Big-O analysis, simulation parameters.",
			"Experimental: Assay protocols, material synthesis, controlled trials.",
			"Theoretical: Formal derivation strategies or proof-by-induction frameworks.",
		},
	},
	{
		ID:           9,
		Question:     "What data or physical materials are required? What do you already possess vs. what must be acquired?",
		Description:  "Inventory of your information assets and raw inputs.",
		TargetBlocks: []BlockID{BlockData},
		Hints: []string{
			"Instrument readouts, synthetic datasets, or archival records.",
			"Reagents, transgenic models, or specific material alloys.",
			"Open-source libraries vs. proprietary data streams.",
		},
	},
	{
		ID:           10,
		Question:     "What specialized operational infrastructure or collaborations are essential for success?",
		Description:  "The physical and human fuel for your research.",
		TargetBlocks: []BlockID{BlockResources},
		Hints: []string{
			"HPC clusters, cleanroom access, or specific lab equipment (e.g., NMR, Cryo-EM).",
			"Subject matter experts (SMEs) or external industry partners.",
			"Specialized technicians or software engineering support.",
		},
	},
	{
		ID:           11,
		Question:     "What specific metrics, p-values, or benchmarks will serve as definitive verification of your claims?",
		Description:  "The verification framework: When do you declare 'Proof'?",
		TargetBlocks: []BlockID{BlockEvidenceCriteria},
		Hints: []string{
			"Statistical significance thresholds.",
			"Accuracy, precision, and recall benchmarks.",
			"Repeatability standards across independent trials.",
		},
	},
	{
		ID:           13,
		Question:     "Who are the direct beneficiaries: stakeholders, industries, or communities of practice?",
		Description:  "Identify your immediate audience and translation partners.",
		TargetBlocks: []BlockID{BlockStakeholders},
		Hints: []string{
			"Other academic labs or specific industry R&D departments.",
			"Regulatory bodies or policy makers.",
			"End-users (e.g., patients, software developers, field engineers).",
		},
	},
	{
		ID:           14,
		Question:     "If this project succeeds perfectly, what is the 'big picture' translational vision or societal impact?",
		Description:  "The long-term transformation or legacy of the work.",
		TargetBlocks: []BlockID{BlockImpact},
		Hints: []string{
			"Environmental sustainability or public health transformation.",
			"Economic shifts or disruptive technological breakthroughs.",
			"Advancing human knowledge or ethical standards.",
		},
	},
	{
		ID:           15,
		Question:     "What are the most probable technical hazards or external risks that could compromise the project?",
		Description:  "Honest assessment of failure modes and danger zones.",
		TargetBlocks: []BlockID{BlockRisks},
		Hints: []string{
			"Instrument downtime or material shortages.",
			"Data sparsity, bias, or loss of signal.",
			"Key personnel departure or shifting regulatory requirements.",
		},
	},
	{
		ID:           16,
		Question:     "What are the strategic redundancies and 'Plan B' contingencies for the hazards identified?",
		Description:  "The safety net and mitigation strategies.",
		TargetBlocks: []BlockID{BlockContingencies},
		Hints: []string{
			"Alternative data sources or surrogate model systems.",
			"Backup lab facilities or distributed compute resources.",
			"Reduced scope 'minimum viable research' pathways.",
		},
	},
	{
		ID:           17,
		Question:     "What are the critical temporal checkpoints or milestones for this project?",
		Description:  "The project roadmap and execution timeline.",
		TargetBlocks: []BlockID{BlockMilestones},
		Hints: []string{
			"Phase 1 complete: Data acquisition and cleanup.",
			"Phase 2 complete: Initial prototype/model verification.",
			"Phase 3: Final analysis and manuscript submission.",
		},
	},
	{
		ID:           19,
		Question:     "What are the hard parameters regarding project timeline, funding caps, and ethical/IRB requirements?",
		Description:  "The fixed boundaries of the research project.",
		TargetBlocks: []BlockID{BlockTimeline, BlockBudget, BlockEthics, BlockAccess},
		Hints: []string{
			"Grant duration (e.g., 24 months) and total cost limits.",
			"Institutional Review Board (IRB) or animal welfare approvals.",
			"Security clearances or restricted data access protocols.",
		},
	},
}
