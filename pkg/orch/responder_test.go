package orch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/agent"
	"atlas/pkg/contextmgr"
	"atlas/pkg/persona"
	"atlas/pkg/tools"
)

func newTestResponder(t *testing.T, client agent.LLMClient, reg *tools.Registry) *Responder {
	t.Helper()
	ctxmgr, err := contextmgr.NewManager()
	require.NoError(t, err)
	return NewResponder(client, reg, newTestRenderer(t), ctxmgr, "Atlas", "lead@example.com", "Jordan")
}

// actionRegistry wires the real tracker connector's action tools so the
// authorization check runs the production path. The authorized path never
// reaches HTTP in these tests; the refusal short-circuits before any request.
func actionRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	tracker := tools.NewTrackerConnector("http://tracker.invalid", "bot", "token", "lead@example.com", "Jordan")
	reg.RegisterAll(tracker.ActionTools()...)
	require.NoError(t, reg.DefineMenu(tools.MenuAction, []string{"jira_create_issue"}))
	return reg
}

func TestCompileReturnsTextWithCredit(t *testing.T) {
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "The deploy failed because of a bad migration."},
	}, nil)
	r := newTestResponder(t, client, actionRegistry(t))

	reply, err := r.Compile(context.Background(), "why did the deploy fail?",
		[]string{"findings"}, "user@example.com", nil, persona.Neutral(), "Sam (Senior Engineer)")
	require.NoError(t, err)
	assert.Equal(t, "**Sam (Senior Engineer)** led this analysis.\n\nThe deploy failed because of a bad migration.", reply)

	// The request offers only the action menu.
	reqs := client.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "jira_create_issue", reqs[0].Tools[0].Name)
}

func TestCompileOmitsCreditWithoutDisplay(t *testing.T) {
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "Answer text."},
	}, nil)
	r := newTestResponder(t, client, actionRegistry(t))

	reply, err := r.Compile(context.Background(), "q", []string{"f"}, "", nil, persona.Neutral(), "")
	require.NoError(t, err)
	assert.Equal(t, "Answer text.", reply)
}

func TestCompileEmptyResponseEscalates(t *testing.T) {
	client := agent.NewMockLLMClient([]agent.CompletionResponse{{Content: "  "}}, nil)
	r := newTestResponder(t, client, actionRegistry(t))

	reply, err := r.Compile(context.Background(), "q", []string{"f"}, "", nil, persona.Neutral(), "Alex (Support Engineer)")
	require.NoError(t, err)
	assert.Equal(t, escalationSentence, reply)
}

func TestCompileTicketPathUnauthorized(t *testing.T) {
	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{ToolCalls: []agent.ToolCall{{
			ID:   "c1",
			Name: "jira_create_issue",
			Parameters: map[string]any{
				"project_key": "OPS",
				"summary":     "backend-core OOM",
			},
		}}},
		{Content: "Sorry, I can't create tickets for you."},
	}, nil)
	r := newTestResponder(t, client, actionRegistry(t))

	reply, err := r.Compile(context.Background(), "create a ticket for this",
		[]string{"findings"}, "user@example.com", nil, persona.Neutral(), "Alex (Support Engineer)")
	require.NoError(t, err)
	assert.Equal(t, "**Alex (Support Engineer)** led this analysis.\n\nSorry, I can't create tickets for you.", reply)

	// The follow-up call carries the refusal as the tool result and offers no
	// tools.
	reqs := client.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[1].Tools)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	require.Len(t, last.ToolResults, 1)
	assert.Equal(t, "c1", last.ToolResults[0].ToolCallID)
	assert.Equal(t, "UNAUTHORIZED: Only Jordan can create tickets.", last.ToolResults[0].Content)
}

func TestCompileTicketPathEmptyFollowUpUsesToolResult(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewTool(tools.ToolDefinition{
		Name:        "jira_create_issue",
		Description: "create issue",
		InputSchema: tools.InputSchema{Type: "object", Properties: map[string]tools.Property{}},
	}, func(_ context.Context, _ map[string]any) (string, error) {
		return "Created OPS-7: http://tracker/OPS-7", nil
	}))
	require.NoError(t, reg.DefineMenu(tools.MenuAction, []string{"jira_create_issue"}))

	client := agent.NewMockLLMClient([]agent.CompletionResponse{
		{ToolCalls: []agent.ToolCall{{ID: "c1", Name: "jira_create_issue"}}},
		{Content: ""},
	}, nil)
	r := newTestResponder(t, client, reg)

	reply, err := r.Compile(context.Background(), "create a ticket",
		[]string{"findings"}, "lead@example.com", nil, persona.Neutral(), "Alex (Support Engineer)")
	require.NoError(t, err)
	assert.Equal(t, "**Alex (Support Engineer)** led this analysis.\n\nCreated OPS-7: http://tracker/OPS-7", reply)
}

func TestTicketPolicyByEmail(t *testing.T) {
	r := newTestResponder(t, agent.NewMockLLMClient(nil, nil), actionRegistry(t))

	assert.Contains(t, r.ticketPolicy("lead@example.com"), "IS authorized")
	assert.Contains(t, r.ticketPolicy("someone@example.com"), "NOT authorized")
	assert.Contains(t, r.ticketPolicy("someone@example.com"), "only Jordan can do that")
	assert.Contains(t, r.ticketPolicy(""), "NOT authorized")
}

func TestSeedHistoryDeduplicatesTrailingQuestion(t *testing.T) {
	r := newTestResponder(t, agent.NewMockLLMClient(nil, nil), actionRegistry(t))

	history := []contextmgr.Message{
		{Role: "user", Text: "is backend-core down?"},
		{Role: "assistant", Text: "Looking into it."},
		{Role: "user", Text: "why does it restart?"},
	}

	// Current question repeats the last user message: no extra turn appended.
	messages := r.seedHistory("why does it restart?", history)
	require.Len(t, messages, 3)
	assert.Equal(t, agent.RoleAssistant, messages[1].Role)

	// A new question is appended after the replayed history.
	messages = r.seedHistory("what about staging?", history)
	require.Len(t, messages, 4)
	assert.Equal(t, "what about staging?", messages[3].Content)

	// No history seeds just the question.
	messages = r.seedHistory("q", nil)
	require.Len(t, messages, 1)
	assert.Equal(t, "q", messages[0].Content)
}
