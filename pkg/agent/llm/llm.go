// Package llm defines the shared types for reasoning model client
// implementations. It exists so the provider implementations under
// pkg/agent/internal/llmimpl can share these types with pkg/agent
// without an import cycle.
package llm

import (
	"context"

	"atlas/pkg/tools"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the model.
	RoleAssistant CompletionRole = "assistant"
)

const (
	// DefaultMaxTokens is the default completion budget per request.
	DefaultMaxTokens = 4096

	// TemperatureDefault is the default temperature for research and judgment calls.
	TemperatureDefault = 0.3
)

// ToolCall represents a tool call requested by the model.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// ToolResult carries the outcome of one executed tool call back to the model.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// CompletionMessage represents a message in a completion request.
// A message carries either plain content, tool calls (assistant), or
// tool results (user), mirroring the provider wire formats.
type CompletionMessage struct {
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
	Role        CompletionRole
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tools       []tools.ToolDefinition
	MaxTokens   int
	Temperature float32
}

// CompletionResponse represents a response from a completion request.
// Providers surface exactly one of Content / ToolCalls per completion.
type CompletionResponse struct {
	ToolCalls []ToolCall
	Content   string
}

// LLMClient defines the interface for reasoning model interactions.
type LLMClient interface { //nolint:revive // Established name across the codebase
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}
