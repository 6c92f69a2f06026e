package orch

import (
	"context"
	"encoding/json"
	"strings"

	"atlas/pkg/agent"
	"atlas/pkg/logx"
	"atlas/pkg/templates"
	"atlas/pkg/workers"
)

// Router picks the worker variant for a query with one classification call.
type Router struct {
	client   agent.LLMClient
	renderer *templates.Renderer
	logger   *logx.Logger
}

// NewRouter creates a router.
func NewRouter(client agent.LLMClient, renderer *templates.Renderer) *Router {
	return &Router{
		client:   client,
		renderer: renderer,
		logger:   logx.NewLogger("router"),
	}
}

type routerChoice struct {
	Agent  string `json:"agent"`
	Reason string `json:"reason"`
}

// Select classifies the query. Unknown identifiers, malformed payloads, and
// call failures all fall back to the support engineer, the lowest-capability
// variant.
func (r *Router) Select(ctx context.Context, query, personaLabel string) workers.ID {
	systemPrompt, err := r.renderer.RenderStatic(templates.RouterSystem)
	if err != nil {
		r.logger.Error("router template failed, defaulting to support_engineer: %v", err)
		return workers.SupportEngineer
	}

	userMessage := "Question: " + query + "\nPersona: " + personaLabel
	r.logger.Debug("input: %s", logx.Preview(userMessage, 50))

	resp, err := r.client.Complete(ctx, agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(systemPrompt),
		agent.NewUserMessage(userMessage),
	}))
	if err != nil {
		r.logger.Error("classification call failed, defaulting to support_engineer: %v", err)
		return workers.SupportEngineer
	}

	payload, ok := extractJSONObject(resp.Content)
	if !ok {
		r.logger.Warn("no JSON payload in router response, defaulting to support_engineer")
		return workers.SupportEngineer
	}

	var choice routerChoice
	if err := json.Unmarshal([]byte(payload), &choice); err != nil {
		r.logger.Warn("malformed router payload, defaulting to support_engineer: %v", err)
		return workers.SupportEngineer
	}

	switch id := workers.ID(strings.ToLower(choice.Agent)); id {
	case workers.SupportEngineer, workers.SeniorEngineer, workers.SREEngineer:
		r.logger.Info("chose %s | reason: %s", id, choice.Reason)
		return id
	default:
		r.logger.Warn("unknown agent id %q, defaulting to support_engineer", choice.Agent)
		return workers.SupportEngineer
	}
}

// extractJSONObject returns the first brace-delimited substring of text.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
