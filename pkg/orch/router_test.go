package orch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/agent"
	"atlas/pkg/templates"
	"atlas/pkg/workers"
)

func newTestRenderer(t *testing.T) *templates.Renderer {
	t.Helper()
	renderer, err := templates.NewRenderer()
	require.NoError(t, err)
	return renderer
}

func TestRouterSelectsNamedVariant(t *testing.T) {
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: `Routing decision: {"agent": "sre_engineer", "reason": "mentions restarts"}`},
	}, nil)
	router := NewRouter(client, newTestRenderer(t))

	id := router.Select(context.Background(), "why does backend-core keep restarting?", "Engineering")
	assert.Equal(t, workers.SREEngineer, id)
}

func TestRouterDefaultsOnUnknownVariant(t *testing.T) {
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: `{"agent": "staff_engineer", "reason": "made up"}`},
	}, nil)
	router := NewRouter(client, newTestRenderer(t))

	id := router.Select(context.Background(), "q", "Other")
	assert.Equal(t, workers.SupportEngineer, id)
}

func TestRouterDefaultsOnMalformedPayload(t *testing.T) {
	for _, content := range []string{"no json at all", `{"agent": `, ""} {
		client := agent.NewMockLLMClient([]agent.CompletionResponse{{Content: content}}, nil)
		router := NewRouter(client, newTestRenderer(t))

		id := router.Select(context.Background(), "q", "Other")
		assert.Equal(t, workers.SupportEngineer, id, "content=%q", content)
	}
}

func TestRouterDefaultsOnCallFailure(t *testing.T) {
	client := agent.NewMockLLMClient(nil, []error{errors.New("service unavailable")})
	router := NewRouter(client, newTestRenderer(t))

	id := router.Select(context.Background(), "q", "Other")
	assert.Equal(t, workers.SupportEngineer, id)
}

func TestExtractJSONObject(t *testing.T) {
	payload, ok := extractJSONObject(`prefix {"a": 1} suffix`)
	require.True(t, ok)
	assert.Equal(t, `{"a": 1}`, payload)

	_, ok = extractJSONObject("nothing here")
	assert.False(t, ok)
}
