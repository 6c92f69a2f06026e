package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllTemplatesRender(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	names := []PromptTemplate{
		SupportEngineerSystem,
		SeniorEngineerSystem,
		SRESystem,
		RouterSystem,
		EvaluatorSystem,
		ResponderSystem,
		ConversationSummary,
		QueryRewrite,
	}
	for _, name := range names {
		out, err := r.Render(name, &PromptData{
			RequesterParagraph: "The requester is from **Engineering**.",
			TicketPolicy:       "The user is NOT authorized to create Jira tickets.",
			BotName:            "Atlas",
		})
		require.NoError(t, err, "template %s", name)
		assert.NotEmpty(t, out, "template %s", name)
	}
}

func TestResponderTemplateInjectsData(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(ResponderSystem, &PromptData{
		RequesterParagraph: "The requester is **Ana**, from **Engineering**.",
		TicketPolicy:       "The user IS authorized to create Jira tickets.",
		BotName:            "Atlas",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Atlas")
	assert.Contains(t, out, "The requester is **Ana**, from **Engineering**.")
	assert.Contains(t, out, "Ticket policy:\nThe user IS authorized to create Jira tickets.")
}

func TestRouterTemplateListsVariantIDs(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.RenderStatic(RouterSystem)
	require.NoError(t, err)
	assert.Contains(t, out, "support_engineer")
	assert.Contains(t, out, "senior_engineer")
	assert.Contains(t, out, "sre_engineer")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.RenderStatic(PromptTemplate("ghost.tpl.md"))
	assert.Error(t, err)
}
