// Package workers defines the three research worker variants.
package workers

import (
	"context"
	"fmt"

	"atlas/pkg/agent"
	"atlas/pkg/templates"
	"atlas/pkg/toolloop"
	"atlas/pkg/tools"
)

// ID identifies a worker variant. These values appear verbatim in the
// router's classification payload.
type ID string

const (
	// SupportEngineer handles triage and handoff research (no infrastructure access).
	SupportEngineer ID = "support_engineer"
	// SeniorEngineer handles deep technical investigation with the full knowledge menu.
	SeniorEngineer ID = "senior_engineer"
	// SREEngineer handles infrastructure incidents with event and metrics tools.
	SREEngineer ID = "sre_engineer"
)

// Variant is one fixed configuration of the tool-dispatch loop. Variants hold
// no state across invocations.
type Variant struct {
	ID   ID
	Name string
	Role string
	Menu string

	systemTemplate     templates.PromptTemplate
	seedPrefix         string
	focusLine          string
	summaryInstruction string
	exhaustedSentinel  string
	maxIterations      int
}

// Display returns the credit line identity, e.g. "Alex (Support Engineer)".
func (v *Variant) Display() string {
	return fmt.Sprintf("%s (%s)", v.Name, v.Role)
}

// Research runs one round of the tool-dispatch loop for this variant.
// hint is the persona/source prefix, injected only on round 0 by the caller.
func (v *Variant) Research(ctx context.Context, client agent.LLMClient, registry *tools.Registry,
	renderer *templates.Renderer, question string, knowledge []string, feedback, hint string,
) (string, error) {
	systemPrompt, err := renderer.RenderStatic(v.systemTemplate)
	if err != nil {
		return "", err
	}

	return toolloop.Run(ctx, client, registry, toolloop.Config{
		SystemPrompt:       systemPrompt,
		SeedPrompt:         hint + v.seedPrefix + question,
		PriorKnowledge:     knowledge,
		Feedback:           feedback,
		FocusLine:          v.focusLine,
		Menu:               registry.Menu(v.Menu),
		SummaryInstruction: v.summaryInstruction,
		ExhaustedSentinel:  v.exhaustedSentinel,
		MaxIterations:      v.maxIterations,
	})
}

// New builds the three variants with a shared iteration budget.
func New(maxIterations int) map[ID]*Variant {
	return map[ID]*Variant{
		SupportEngineer: {
			ID:             SupportEngineer,
			Name:           "Alex",
			Role:           "Support Engineer",
			Menu:           tools.MenuTriage,
			systemTemplate: templates.SupportEngineerSystem,
			seedPrefix:     "Gather information to support the requester (engineer or TechOps). Question: ",
			focusLine:      "Focus on filling these gaps.",
			summaryInstruction: "You have used all your iterations. Summarize your findings NOW " +
				"using the structured format (SOURCES, KEY FINDINGS, CONFIDENCE, GAPS).",
			exhaustedSentinel: "No findings after exhausting iterations.",
			maxIterations:     maxIterations,
		},
		SeniorEngineer: {
			ID:             SeniorEngineer,
			Name:           "Sam",
			Role:           "Senior Engineer",
			Menu:           tools.MenuInvestigation,
			systemTemplate: templates.SeniorEngineerSystem,
			seedPrefix:     "Research this question: ",
			focusLine:      "Focus on filling these gaps. Try different search terms.",
			summaryInstruction: "You have used all your search iterations. Summarize your findings NOW " +
				"using the structured format (SOURCES, KEY FINDINGS, CONFIDENCE, GAPS).",
			exhaustedSentinel: "No findings after exhausting search iterations.",
			maxIterations:     maxIterations,
		},
		SREEngineer: {
			ID:             SREEngineer,
			Name:           "Riley",
			Role:           "SRE Engineer",
			Menu:           tools.MenuIncident,
			systemTemplate: templates.SRESystem,
			seedPrefix:     "Investigate this infrastructure/incident question: ",
			focusLine:      "Focus on filling these gaps. Try different search terms or tools.",
			summaryInstruction: "You have used all your iterations. Summarize your findings NOW " +
				"using the structured format (TIMELINE, ROOT CAUSE HYPOTHESIS, AFFECTED COMPONENTS, " +
				"EVIDENCE, RECOMMENDED ACTIONS, CONFIDENCE, GAPS).",
			exhaustedSentinel: "No findings after exhausting investigation iterations.",
			maxIterations:     maxIterations,
		},
	}
}
