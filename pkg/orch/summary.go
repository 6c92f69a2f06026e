package orch

import (
	"context"
	"strings"

	"atlas/pkg/agent"
	"atlas/pkg/contextmgr"
	"atlas/pkg/logx"
	"atlas/pkg/templates"
)

// summarizeThread condenses the thread history for follow-up messages. Only
// called when the thread has 2+ messages; returns "" on failure so callers
// degrade gracefully.
func (o *Orchestrator) summarizeThread(ctx context.Context, history []contextmgr.Message) string {
	if len(history) < 2 {
		return ""
	}

	systemPrompt, err := o.renderer.RenderStatic(templates.ConversationSummary)
	if err != nil {
		o.logger.Warn("summary template failed, continuing without summary: %v", err)
		return ""
	}

	formatted := make([]string, 0, len(history))
	for _, msg := range history {
		speaker := "User"
		if msg.Role == "assistant" {
			speaker = o.botName
		}
		formatted = append(formatted, speaker+": "+strings.TrimSpace(msg.Text))
	}

	resp, err := o.routingClient.Complete(ctx, agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(systemPrompt),
		agent.NewUserMessage(strings.Join(formatted, "\n\n")),
	}))
	if err != nil {
		o.logger.Warn("conversation summary failed, continuing without summary: %v", err)
		return ""
	}

	summary := strings.TrimSpace(resp.Content)
	o.logger.Debug("conversation summary: %s (length=%d)", logx.Preview(summary, 50), len(summary))
	return summary
}

// rewriteQuery rewrites the raw message into a self-contained question
// (thinking mode). Falls back to the raw message on failure or empty output.
func (o *Orchestrator) rewriteQuery(ctx context.Context, rawMessage, conversationSummary string) string {
	raw := strings.TrimSpace(rawMessage)
	if raw == "" {
		return raw
	}

	systemPrompt, err := o.renderer.RenderStatic(templates.QueryRewrite)
	if err != nil {
		o.logger.Warn("rewrite template failed, using original message: %v", err)
		return raw
	}

	text := raw
	if conversationSummary != "" {
		text += "\n\nContext from prior conversation:\n" + conversationSummary
	}

	resp, err := o.routingClient.Complete(ctx, agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(systemPrompt),
		agent.NewUserMessage(text),
	}))
	if err != nil {
		o.logger.Warn("query rewrite failed, using original message: %v", err)
		return raw
	}

	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return raw
	}
	o.logger.Debug("rewritten query: %s", logx.Preview(rewritten, 50))
	return rewritten
}

// contextualizedQuery appends the conversation summary so downstream calls
// can resolve references from prior turns.
func contextualizedQuery(query, conversationSummary string) string {
	query = strings.TrimSpace(query)
	if conversationSummary == "" {
		return query
	}
	return query + "\n\nConversation summary (prior discussion in this thread):\n" + conversationSummary
}

// sourceHint steers research to the helpdesk when the user asked only about it.
func sourceHint(query string) string {
	q := strings.ToLower(query)
	mentionsHelpdesk := strings.Contains(q, "freshdesk") || strings.Contains(q, "fresh desk") ||
		strings.Contains(q, "helpdesk")
	mentionsOther := strings.Contains(q, "confluence") || strings.Contains(q, "jira")
	if mentionsHelpdesk && !mentionsOther {
		return "User asked only about the helpdesk; use only helpdesk tools for this request."
	}
	return ""
}
