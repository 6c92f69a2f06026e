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

// researchRegistry builds a registry with one tool per menu so every variant
// and the responder have something to offer the model.
func researchRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	reg.RegisterAll(
		staticOrchTool("confluence_search", "wiki hit"),
		staticOrchTool("jira_create_issue", "Created OPS-1"),
	)
	for _, menu := range []string{tools.MenuTriage, tools.MenuInvestigation, tools.MenuIncident} {
		require.NoError(t, reg.DefineMenu(menu, []string{"confluence_search"}))
	}
	require.NoError(t, reg.DefineMenu(tools.MenuAction, []string{"jira_create_issue"}))
	return reg
}

func staticOrchTool(name, result string) tools.Tool {
	return tools.NewTool(tools.ToolDefinition{
		Name:        name,
		Description: "test tool",
		InputSchema: tools.InputSchema{Type: "object", Properties: map[string]tools.Property{}},
	}, func(_ context.Context, _ map[string]any) (string, error) {
		return result, nil
	})
}

func newTestOrchestrator(t *testing.T, research, routing *agent.MockLLMClient) *Orchestrator {
	t.Helper()
	ctxmgr, err := contextmgr.NewManager()
	require.NoError(t, err)

	o, err := New(Options{
		ResearchClient:       research,
		RoutingClient:        routing,
		Registry:             researchRegistry(t),
		Renderer:             newTestRenderer(t),
		Resolver:             persona.NewResolver("", 0),
		CtxMgr:               ctxmgr,
		BotName:              "Atlas",
		TicketAuthorizedUser: "lead@example.com",
		TicketAuthorizedName: "Jordan",
	})
	require.NoError(t, err)
	return o
}

func TestRunTwoRoundsThenSatisfied(t *testing.T) {
	routing := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: `{"agent": "senior_engineer", "reason": "needs deep investigation"}`},
	}, nil)
	research := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "KEY FINDINGS: pod restarts every 5m."},
		{Content: `{"satisfied": false, "feedback": "no memory data", "follow_up_queries": ["memory limits", "OOM"]}`},
		{Content: "KEY FINDINGS: memory limit is 256Mi, usage peaks at 300Mi."},
		{Content: `{"satisfied": true, "answer": "The pod is OOM-killed; raise the memory limit."}`},
	}, nil)

	o := newTestOrchestrator(t, research, routing)
	reply, err := o.Run(context.Background(), Turn{ID: "t1", RawMessage: "why does backend-core restart?"})
	require.NoError(t, err)
	assert.Equal(t, "**Sam (Senior Engineer)** led this analysis.\n\nThe pod is OOM-killed; raise the memory limit.", reply)
	assert.Equal(t, 4, research.CallCount())

	reqs := research.Requests()

	// Round 0 seeds with the persona hint; round 1 carries evaluator feedback
	// and suggested terms instead.
	round0 := reqs[0].Messages[len(reqs[0].Messages)-1].Content
	assert.Contains(t, round0, "Requester: Other department")
	assert.Contains(t, round0, "Research this question: why does backend-core restart?")

	round1 := reqs[2].Messages[len(reqs[2].Messages)-1].Content
	assert.NotContains(t, round1, "Requester:")
	assert.Contains(t, round1, "Previous research already found:")
	assert.Contains(t, round1, "A quality review flagged these gaps: no memory data")
	assert.Contains(t, round1, "Suggested search terms: memory limits, OOM")
}

func TestRunClarificationShortCircuits(t *testing.T) {
	routing := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: `{"agent": "support_engineer", "reason": "triage"}`},
	}, nil)
	research := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "KEY FINDINGS: two services share that name."},
		{Content: `{"satisfied": false, "clarification_needed": true, "clarification_question": "Which environment do you mean?"}`},
	}, nil)

	o := newTestOrchestrator(t, research, routing)
	reply, err := o.Run(context.Background(), Turn{ID: "t2", RawMessage: "is the service down?"})
	require.NoError(t, err)
	assert.Equal(t, "To give you a better answer, could you clarify: Which environment do you mean?", reply)
	assert.Equal(t, 2, research.CallCount())
}

func TestRunExhaustionFallsThroughToResponder(t *testing.T) {
	routing := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: `{"agent": "support_engineer", "reason": "triage"}`},
	}, nil)
	research := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "No findings."},
		{Content: `{"satisfied": false, "feedback": "nothing found"}`},
		{Content: "No findings."},
		{Content: `{"satisfied": false, "feedback": "still nothing"}`},
		{Content: ""}, // responder produces nothing either
	}, nil)

	o := newTestOrchestrator(t, research, routing)
	reply, err := o.Run(context.Background(), Turn{ID: "t3", RawMessage: "what is flurbomatic?"})
	require.NoError(t, err)
	assert.Equal(t, escalationSentence, reply)
	assert.Equal(t, 5, research.CallCount())
}

func TestRunResponderCompilesPartialFindings(t *testing.T) {
	routing := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: `{"agent": "sre_engineer", "reason": "incident"}`},
	}, nil)
	research := agent.NewMockLLMClient([]agent.CompletionResponse{
		{Content: "TIMELINE: restarts began 03:00."},
		{Content: `{"satisfied": false, "feedback": "no root cause"}`},
		{Content: "EVIDENCE: OOMKilling events."},
		{Content: `{"satisfied": false, "feedback": "unconfirmed"}`},
		{Content: "Restarts are caused by OOM kills starting 03:00."},
	}, nil)

	o := newTestOrchestrator(t, research, routing)
	reply, err := o.Run(context.Background(), Turn{ID: "t4", RawMessage: "backend-core keeps restarting"})
	require.NoError(t, err)
	assert.Equal(t, "**Riley (SRE Engineer)** led this analysis.\n\nRestarts are caused by OOM kills starting 03:00.", reply)

	// The responder call sees both research rounds in the knowledge dump.
	reqs := research.Requests()
	final := reqs[len(reqs)-1].Messages
	dump := final[len(final)-1].Content
	assert.Contains(t, dump, "conducted by **Riley (SRE Engineer)**")
	assert.Contains(t, dump, "Research round 1")
	assert.Contains(t, dump, "Research round 2")
	assert.Contains(t, dump, "TIMELINE: restarts began 03:00.")
	assert.Contains(t, dump, "EVIDENCE: OOMKilling events.")
}

func TestRoundZeroHintCombinesPersonaAndSource(t *testing.T) {
	pctx := persona.Context{PersonaLabel: persona.LabelTechOps}
	hint := roundZeroHint(pctx, "please check freshdesk ticket 42")
	assert.Contains(t, hint, "Requester: TechOps")
	assert.Contains(t, hint, "User asked only about the helpdesk; use only helpdesk tools for this request.")

	hint = roundZeroHint(pctx, "check the jira board")
	assert.NotContains(t, hint, "helpdesk tools")
}

func TestSourceHint(t *testing.T) {
	assert.NotEmpty(t, sourceHint("what does freshdesk say?"))
	assert.NotEmpty(t, sourceHint("any helpdesk tickets about this?"))
	assert.Empty(t, sourceHint("freshdesk ticket plus the jira issue"))
	assert.Empty(t, sourceHint("how do I deploy?"))
}

func TestContextualizedQuery(t *testing.T) {
	assert.Equal(t, "q", contextualizedQuery(" q ", ""))
	assert.Equal(t,
		"q\n\nConversation summary (prior discussion in this thread):\nwe discussed backend-core",
		contextualizedQuery("q", "we discussed backend-core"))
}
