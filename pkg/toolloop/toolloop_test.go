package toolloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/agent"
	"atlas/pkg/tools"
)

func echoTool(name string) tools.Tool {
	return tools.NewTool(tools.ToolDefinition{
		Name:        name,
		Description: "echoes its input",
		InputSchema: tools.InputSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"query": {Type: "string"},
			},
		},
	}, func(_ context.Context, args map[string]any) (string, error) {
		return "echo: " + tools.StringArg(args, "query"), nil
	})
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	reg.Register(echoTool("search_docs"))
	require.NoError(t, reg.DefineMenu("test", []string{"search_docs"}))
	return reg
}

func baseConfig(reg *tools.Registry) Config {
	return Config{
		SystemPrompt:       "You are a researcher.",
		SeedPrompt:         "Research this question: why is the sky blue?",
		Menu:               reg.Menu("test"),
		SummaryInstruction: "Summarize your findings NOW.",
	}
}

func TestRunReturnsFreeTextImmediately(t *testing.T) {
	reg := newTestRegistry(t)
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "Rayleigh scattering."},
	}, nil)

	findings, err := Run(context.Background(), client, reg, baseConfig(reg))
	require.NoError(t, err)
	assert.Equal(t, "Rayleigh scattering.", findings)
	assert.Equal(t, 1, client.CallCount())
}

func TestRunExecutesRequestedToolAndFeedsResultBack(t *testing.T) {
	reg := newTestRegistry(t)
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{ToolCalls: []agent.ToolCall{{ID: "c1", Name: "search_docs", Parameters: map[string]any{"query": "sky"}}}},
		{Content: "Found it."},
	}, nil)

	findings, err := Run(context.Background(), client, reg, baseConfig(reg))
	require.NoError(t, err)
	assert.Equal(t, "Found it.", findings)

	reqs := client.Requests()
	require.Len(t, reqs, 2)
	// The second request must carry the tool result from the first.
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	require.Len(t, last.ToolResults, 1)
	assert.Equal(t, "echo: sky", last.ToolResults[0].Content)
	assert.Equal(t, "c1", last.ToolResults[0].ToolCallID)
}

func TestRunUnknownToolBecomesTextResult(t *testing.T) {
	reg := newTestRegistry(t)
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{ToolCalls: []agent.ToolCall{{Name: "no_such_tool"}}},
		{Content: "done"},
	}, nil)

	findings, err := Run(context.Background(), client, reg, baseConfig(reg))
	require.NoError(t, err)
	assert.Equal(t, "done", findings)

	reqs := client.Requests()
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	require.Len(t, last.ToolResults, 1)
	assert.Equal(t, "Unknown tool: no_such_tool", last.ToolResults[0].Content)
}

func TestRunForcesSummaryAfterBudget(t *testing.T) {
	reg := newTestRegistry(t)
	call := agent.CompletionResponse{
		ToolCalls: []agent.ToolCall{{Name: "search_docs", Parameters: map[string]any{"query": "x"}}},
	}
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		call, call, call, call, call,
		{Content: "SOURCES: docs. KEY FINDINGS: none."},
	}, nil)

	cfg := baseConfig(reg)
	findings, err := Run(context.Background(), client, reg, cfg)
	require.NoError(t, err)
	assert.Equal(t, "SOURCES: docs. KEY FINDINGS: none.", findings)
	assert.Equal(t, DefaultMaxIterations+1, client.CallCount())

	// The forced call offers no tools and carries the summary instruction.
	reqs := client.Requests()
	forced := reqs[len(reqs)-1]
	assert.Empty(t, forced.Tools)
	last := forced.Messages[len(forced.Messages)-1]
	assert.Equal(t, cfg.SummaryInstruction, last.Content)
}

func TestRunEmptyForcedSummaryReturnsSentinel(t *testing.T) {
	reg := newTestRegistry(t)
	call := agent.CompletionResponse{
		ToolCalls: []agent.ToolCall{{Name: "search_docs", Parameters: map[string]any{"query": "x"}}},
	}
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		call, call, call, call, call,
		{Content: "   "},
	}, nil)

	findings, err := Run(context.Background(), client, reg, baseConfig(reg))
	require.NoError(t, err)
	assert.Equal(t, DefaultExhaustedSentinel, findings)
}

func TestRunEmptyFreeTextReturnsSentinel(t *testing.T) {
	reg := newTestRegistry(t)
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: ""},
	}, nil)

	findings, err := Run(context.Background(), client, reg, baseConfig(reg))
	require.NoError(t, err)
	assert.Equal(t, DefaultEmptySentinel, findings)
}

func TestSeedMessageIncludesKnowledgeAndFeedback(t *testing.T) {
	cfg := Config{
		SeedPrompt:     "Research this question: q",
		PriorKnowledge: []string{"first", "second"},
		Feedback:       "missing root cause",
		FocusLine:      "Focus on filling these gaps.",
	}
	seed := cfg.seedMessage()
	assert.Contains(t, seed, "Previous research already found:\nfirst\n---\nsecond")
	assert.Contains(t, seed, "A quality review flagged these gaps: missing root cause")
	assert.Contains(t, seed, "Focus on filling these gaps.")
}
