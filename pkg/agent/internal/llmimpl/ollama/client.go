// Package ollama provides the Ollama client implementation for the LLM interface.
// Ollama is a local runtime for open-source models, used for offline development.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"atlas/pkg/agent/llm"
	"atlas/pkg/agent/llmerrors"
	"atlas/pkg/tools"
)

// Client wraps the Ollama API client to implement llm.LLMClient.
type Client struct {
	client *api.Client
	model  string
}

// NewClient creates a new Ollama client for the given model.
// hostURL should be the Ollama server URL (e.g., "http://localhost:11434").
func NewClient(hostURL, model string) llm.LLMClient {
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	return &Client{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Complete implements the llm.LLMClient interface.
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "message conversion error")
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	if len(in.Tools) > 0 {
		req.Tools = convertTools(in.Tools)
	}

	var response api.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	if len(response.Message.ToolCalls) > 0 {
		return llm.CompletionResponse{
			ToolCalls: convertToolCalls(response.Message.ToolCalls),
		}, nil
	}
	return llm.CompletionResponse{Content: response.Message.Content}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

// convertMessages converts our message format to Ollama's Message format.
// Tool results become separate messages with role "tool".
func convertMessages(messages []llm.CompletionMessage) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("message list cannot be empty")
	}

	result := make([]api.Message, 0, len(messages))

	for i := range messages {
		msg := &messages[i]

		ollamaMsg := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		if len(msg.ToolCalls) > 0 {
			ollamaMsg.ToolCalls = make([]api.ToolCall, len(msg.ToolCalls))
			for j := range msg.ToolCalls {
				tc := &msg.ToolCalls[j]
				ollamaMsg.ToolCalls[j] = api.ToolCall{
					ID: tc.ID,
					Function: api.ToolCallFunction{
						Name:      tc.Name,
						Arguments: api.ToolCallFunctionArguments(tc.Parameters),
					},
				}
			}
		}

		if len(msg.ToolResults) > 0 {
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				result = append(result, api.Message{
					Role:       "tool",
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
			if msg.Content != "" {
				result = append(result, ollamaMsg)
			}
			continue
		}

		result = append(result, ollamaMsg)
	}

	return result, nil
}

// convertTools converts our tool definitions to Ollama's Tool format.
func convertTools(toolDefs []tools.ToolDefinition) api.Tools {
	ollamaTools := make(api.Tools, len(toolDefs))

	for i := range toolDefs {
		td := &toolDefs[i]
		properties := make(map[string]api.ToolProperty)
		for name := range td.InputSchema.Properties {
			prop := td.InputSchema.Properties[name]
			properties[name] = convertProperty(&prop)
		}

		ollamaTools[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        td.Name,
				Description: td.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       td.InputSchema.Type,
					Properties: properties,
					Required:   td.InputSchema.Required,
				},
			},
		}
	}

	return ollamaTools
}

// convertProperty converts a tool property to Ollama format.
func convertProperty(prop *tools.Property) api.ToolProperty {
	ollamaProp := api.ToolProperty{
		Type:        api.PropertyType{prop.Type},
		Description: prop.Description,
	}

	if len(prop.Enum) > 0 {
		enumVals := make([]any, len(prop.Enum))
		for i, v := range prop.Enum {
			enumVals[i] = v
		}
		ollamaProp.Enum = enumVals
	}

	if prop.Items != nil {
		ollamaProp.Items = convertProperty(prop.Items)
	}

	return ollamaProp
}

// convertToolCalls extracts tool calls from an Ollama response.
func convertToolCalls(calls []api.ToolCall) []llm.ToolCall {
	result := make([]llm.ToolCall, len(calls))

	for i := range calls {
		call := &calls[i]
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		result[i] = llm.ToolCall{
			ID:         id,
			Name:       call.Function.Name,
			Parameters: map[string]any(call.Function.Arguments),
		}
	}

	return result
}

// classifyError converts Ollama errors to our error types.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "Ollama server not reachable")
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "Ollama model not found")
	case strings.Contains(errStr, "context canceled"), strings.Contains(errStr, "timeout"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request interrupted")
	default:
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, "Ollama API error")
	}
}
