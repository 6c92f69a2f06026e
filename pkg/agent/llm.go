// Package agent provides interfaces and types for reasoning model client implementations.
package agent

import (
	"atlas/pkg/agent/llm"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole = llm.CompletionRole

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem = llm.RoleSystem
	// RoleUser indicates a message from the human user.
	RoleUser = llm.RoleUser
	// RoleAssistant indicates a message from the model.
	RoleAssistant = llm.RoleAssistant
)

const (
	// DefaultMaxTokens is the default completion budget per request.
	DefaultMaxTokens = llm.DefaultMaxTokens

	// TemperatureDefault is the default temperature for research and judgment calls.
	TemperatureDefault = llm.TemperatureDefault
)

// ToolCall represents a tool call requested by the model.
type ToolCall = llm.ToolCall

// ToolResult carries the outcome of one executed tool call back to the model.
type ToolResult = llm.ToolResult

// CompletionMessage represents a message in a completion request.
// A message carries either plain content, tool calls (assistant), or
// tool results (user), mirroring the provider wire formats.
type CompletionMessage = llm.CompletionMessage

// CompletionRequest represents a request to generate a completion.
type CompletionRequest = llm.CompletionRequest

// CompletionResponse represents a response from a completion request.
// Providers surface exactly one of Content / ToolCalls per completion.
type CompletionResponse = llm.CompletionResponse

// LLMClient defines the interface for reasoning model interactions.
type LLMClient = llm.LLMClient //nolint:revive // Established name across the codebase

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}

// NewToolResultMessage creates a user message carrying tool results.
func NewToolResultMessage(results ...ToolResult) CompletionMessage {
	return CompletionMessage{Role: RoleUser, ToolResults: results}
}
