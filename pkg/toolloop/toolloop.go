// Package toolloop implements the generic tool-dispatch research loop.
package toolloop

import (
	"context"
	"strings"

	"atlas/pkg/agent"
	"atlas/pkg/logx"
	"atlas/pkg/tools"
)

// DefaultMaxIterations bounds reasoning calls per loop invocation.
const DefaultMaxIterations = 5

// Fallback sentinels returned when the model produces no text.
const (
	DefaultEmptySentinel     = "No findings."
	DefaultExhaustedSentinel = "No findings after exhausting search iterations."
)

// Config describes one loop invocation. Workers differ only in the prompt
// fields and the menu.
type Config struct {
	// SystemPrompt is the worker's system instruction.
	SystemPrompt string
	// SeedPrompt opens the conversation (persona hint prefix included).
	SeedPrompt string
	// PriorKnowledge carries findings from earlier rounds.
	PriorKnowledge []string
	// Feedback is the evaluator's gap report from the previous round.
	Feedback string
	// FocusLine follows the feedback block (e.g. "Focus on filling these gaps.").
	FocusLine string
	// Menu is the fixed tool set offered on every iteration.
	Menu []tools.ToolDefinition
	// SummaryInstruction forces a structured summary once the budget is spent.
	SummaryInstruction string
	// MaxIterations caps reasoning calls before the forced summary.
	// Zero means DefaultMaxIterations.
	MaxIterations int
	// ExhaustedSentinel replaces an empty forced summary.
	// Empty means DefaultExhaustedSentinel.
	ExhaustedSentinel string
}

func (c *Config) seedMessage() string {
	var sb strings.Builder
	sb.WriteString(c.SeedPrompt)
	if len(c.PriorKnowledge) > 0 {
		sb.WriteString("\n\nPrevious research already found:\n")
		sb.WriteString(strings.Join(c.PriorKnowledge, "\n---\n"))
	}
	if c.Feedback != "" {
		sb.WriteString("\n\nA quality review flagged these gaps: ")
		sb.WriteString(c.Feedback)
		if c.FocusLine != "" {
			sb.WriteString("\n")
			sb.WriteString(c.FocusLine)
		}
	}
	return sb.String()
}

// Run executes the loop: offer the menu, execute whichever tool the model
// requests, feed the result back, and stop when the model answers in text.
// Tool failures become text results via the registry, never loop failures.
func Run(ctx context.Context, client agent.LLMClient, registry *tools.Registry, cfg Config) (string, error) {
	logger := logx.NewLogger("toolloop")

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	exhaustedSentinel := cfg.ExhaustedSentinel
	if exhaustedSentinel == "" {
		exhaustedSentinel = DefaultExhaustedSentinel
	}

	messages := []agent.CompletionMessage{
		agent.NewSystemMessage(cfg.SystemPrompt),
		agent.NewUserMessage(cfg.seedMessage()),
	}

	for i := 0; i < maxIterations; i++ {
		req := agent.NewCompletionRequest(messages)
		req.Tools = cfg.Menu

		resp, err := client.Complete(ctx, req)
		if err != nil {
			return "", logx.Wrap(err, "tool loop reasoning call failed")
		}

		if len(resp.ToolCalls) > 0 {
			call := resp.ToolCalls[0]
			logger.Info("iter %d: tool=%s", i, call.Name)
			logger.Debug("iter %d: args=%v", i, call.Parameters)

			result := registry.Dispatch(ctx, call.Name, call.Parameters)
			logger.Debug("iter %d: result=%s", i, logx.Preview(result, 15))

			messages = append(messages,
				agent.CompletionMessage{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{call}},
				agent.NewToolResultMessage(agent.ToolResult{ToolCallID: call.ID, Content: result}),
			)
			continue
		}

		logger.Info("completed at iter %d", i)
		text := strings.TrimSpace(resp.Content)
		if text == "" {
			return DefaultEmptySentinel, nil
		}
		return text, nil
	}

	// Budget spent without a text answer. One last call, no tools offered.
	logger.Info("iteration budget exhausted, forcing summary")
	messages = append(messages, agent.NewUserMessage(cfg.SummaryInstruction))

	forced, err := client.Complete(ctx, agent.NewCompletionRequest(messages))
	if err != nil {
		return "", logx.Wrap(err, "forced summary call failed")
	}
	text := strings.TrimSpace(forced.Content)
	if text == "" {
		return exhaustedSentinel, nil
	}
	return text, nil
}
