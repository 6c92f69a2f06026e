package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/agent"
	"atlas/pkg/templates"
	"atlas/pkg/tools"
)

func TestNewDefinesAllVariants(t *testing.T) {
	variants := New(5)
	require.Len(t, variants, 3)

	assert.Equal(t, "Alex (Support Engineer)", variants[SupportEngineer].Display())
	assert.Equal(t, "Sam (Senior Engineer)", variants[SeniorEngineer].Display())
	assert.Equal(t, "Riley (SRE Engineer)", variants[SREEngineer].Display())

	assert.Equal(t, tools.MenuTriage, variants[SupportEngineer].Menu)
	assert.Equal(t, tools.MenuInvestigation, variants[SeniorEngineer].Menu)
	assert.Equal(t, tools.MenuIncident, variants[SREEngineer].Menu)
}

func TestVariantSeedPrefixes(t *testing.T) {
	variants := New(5)
	assert.Equal(t,
		"Gather information to support the requester (engineer or TechOps). Question: ",
		variants[SupportEngineer].seedPrefix)
	assert.Equal(t, "Research this question: ", variants[SeniorEngineer].seedPrefix)
	assert.Equal(t,
		"Investigate this infrastructure/incident question: ",
		variants[SREEngineer].seedPrefix)
}

func TestVariantExhaustedSentinelsDiffer(t *testing.T) {
	variants := New(5)
	sentinels := map[string]bool{}
	for _, v := range variants {
		sentinels[v.exhaustedSentinel] = true
	}
	assert.Len(t, sentinels, 3)
}

func TestResearchSeedsWithHintAndPrefix(t *testing.T) {
	renderer, err := templates.NewRenderer()
	require.NoError(t, err)

	reg := tools.NewRegistry()
	require.NoError(t, reg.DefineMenu(tools.MenuInvestigation, nil))

	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "findings"},
	}, nil)

	variant := New(5)[SeniorEngineer]
	findings, err := variant.Research(context.Background(), client, reg, renderer,
		"why is it slow?", nil, "", "Requester: Engineering. ")
	require.NoError(t, err)
	assert.Equal(t, "findings", findings)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	seed := reqs[0].Messages[len(reqs[0].Messages)-1].Content
	assert.Contains(t, seed, "Requester: Engineering. Research this question: why is it slow?")
}
