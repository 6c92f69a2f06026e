package orch

import (
	"context"
	"strings"

	"atlas/pkg/agent"
	"atlas/pkg/contextmgr"
	"atlas/pkg/logx"
	"atlas/pkg/persona"
	"atlas/pkg/templates"
	"atlas/pkg/tools"
)

// escalationSentence is the reply of last resort when even the responder's
// final call produces nothing.
const escalationSentence = "I wasn't able to find a clear answer after extensive research. " +
	"Your request has been escalated to the engineering team for further assistance."

// responderBridge is the fixed assistant turn between thread history and the
// research dump.
const responderBridge = "I've finished researching. Let me compile my findings."

// createIssueTool is the one action the responder may take instead of answering.
const createIssueTool = "jira_create_issue"

// Responder compiles the best-effort final answer once the round budget is
// exhausted, with a side path for the authorized create-ticket action.
type Responder struct {
	client          agent.LLMClient
	registry        *tools.Registry
	renderer        *templates.Renderer
	ctxmgr          *contextmgr.Manager
	logger          *logx.Logger
	botName         string
	authorizedEmail string
	authorizedName  string
}

// NewResponder creates a responder.
func NewResponder(client agent.LLMClient, registry *tools.Registry, renderer *templates.Renderer,
	ctxmgr *contextmgr.Manager, botName, authorizedEmail, authorizedName string,
) *Responder {
	return &Responder{
		client:          client,
		registry:        registry,
		renderer:        renderer,
		ctxmgr:          ctxmgr,
		logger:          logx.NewLogger("responder"),
		botName:         botName,
		authorizedEmail: authorizedEmail,
		authorizedName:  authorizedName,
	}
}

func (r *Responder) ticketPolicy(senderEmail string) string {
	if senderEmail != "" && senderEmail == r.authorizedEmail {
		return "The user IS authorized to create Jira tickets.\n" +
			"When asked, extract the project key, summary, and description, then use jira_create_issue.\n" +
			"Confirm the created ticket key and URL."
	}
	return "The user is NOT authorized to create Jira tickets.\n" +
		"If they ask, politely decline and say only " + r.authorizedName + " can do that."
}

// Compile builds the final answer from all accumulated knowledge.
func (r *Responder) Compile(ctx context.Context, question string, knowledge []string,
	senderEmail string, history []contextmgr.Message, pctx persona.Context, display string,
) (string, error) {
	r.logger.Debug("start: %s (knowledge_blobs=%d)", logx.Preview(question, 50), len(knowledge))

	systemPrompt, err := r.renderer.Render(templates.ResponderSystem, &templates.PromptData{
		RequesterParagraph: pctx.ResponderParagraph(),
		TicketPolicy:       r.ticketPolicy(senderEmail),
		BotName:            r.botName,
	})
	if err != nil {
		return "", err
	}

	ledByLine := ""
	if strings.TrimSpace(display) != "" {
		ledByLine = "The research for this request was conducted by **" + strings.TrimSpace(display) + "**. "
	}

	messages := append([]agent.CompletionMessage{agent.NewSystemMessage(systemPrompt)},
		r.seedHistory(question, history)...)
	messages = append(messages,
		agent.NewAssistantMessage(responderBridge),
		agent.NewUserMessage(ledByLine+"Here is everything the research agent found:\n\n"+
			r.ctxmgr.KnowledgeDump(knowledge)+
			"\n\nUsing ONLY the research above and the conversation so far, give the best possible answer. "+
			"Resolve references like \"this service\", \"it\", or \"the outage\" from the conversation context above. "+
			"Lead with concrete facts, cite sources at the end. Keep the message scannable. "+
			"If the user asked to create a Jira ticket instead of asking a question, do that."),
	)

	req := agent.NewCompletionRequest(messages)
	req.Tools = r.registry.Menu(tools.MenuAction)

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return "", logx.Wrap(err, "responder call failed")
	}

	if len(resp.ToolCalls) > 0 && resp.ToolCalls[0].Name == createIssueTool {
		return r.handleTicketPath(ctx, messages, resp.ToolCalls[0], senderEmail, display)
	}

	finalText := strings.TrimSpace(resp.Content)
	if finalText == "" {
		return escalationSentence, nil
	}
	if ledByLine != "" {
		return "**" + display + "** led this analysis.\n\n" + finalText, nil
	}
	return finalText, nil
}

// handleTicketPath executes the create-issue action (the tool itself enforces
// authorization against the sender email) and asks for one tool-free follow-up.
func (r *Responder) handleTicketPath(ctx context.Context, messages []agent.CompletionMessage,
	call agent.ToolCall, senderEmail, display string,
) (string, error) {
	result := r.registry.Dispatch(tools.WithSenderEmail(ctx, senderEmail), call.Name, call.Parameters)
	r.logger.Info("ticket path: %s", logx.Preview(result, 15))

	messages = append(messages,
		agent.CompletionMessage{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{call}},
		agent.NewToolResultMessage(agent.ToolResult{ToolCallID: call.ID, Content: result}),
	)

	followUp, err := r.client.Complete(ctx, agent.NewCompletionRequest(messages))
	if err != nil {
		return "", logx.Wrap(err, "responder follow-up call failed")
	}

	reply := strings.TrimSpace(followUp.Content)
	if reply == "" {
		reply = result
	}
	if strings.TrimSpace(display) != "" && reply != "" {
		reply = "**" + display + "** led this analysis.\n\n" + reply
	}
	return reply, nil
}

// seedHistory replays the thread, deduplicating a trailing repeat of the
// current question.
func (r *Responder) seedHistory(question string, history []contextmgr.Message) []agent.CompletionMessage {
	history = r.ctxmgr.TrimHistory(history)
	if len(history) == 0 {
		return []agent.CompletionMessage{agent.NewUserMessage(question)}
	}

	var messages []agent.CompletionMessage
	for _, msg := range history {
		if msg.Role == "assistant" {
			messages = append(messages, agent.NewAssistantMessage(msg.Text))
		} else {
			messages = append(messages, agent.NewUserMessage(msg.Text))
		}
	}

	var lastUser string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != "assistant" {
			lastUser = strings.TrimSpace(history[i].Text)
			break
		}
	}
	if current := strings.TrimSpace(question); current != "" && current != lastUser {
		messages = append(messages, agent.NewUserMessage(question))
	}
	return messages
}
