// Package openai provides the OpenAI client implementation using the official OpenAI Go package.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"atlas/pkg/agent/llm"
	"atlas/pkg/agent/llmerrors"
	"atlas/pkg/tools"
)

// Client wraps the official OpenAI Go client to implement llm.LLMClient.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a new OpenAI client for the given model.
func NewClient(apiKey, model string) llm.LLMClient {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// convertPropertyToSchema recursively converts a Property to OpenAI schema format.
func convertPropertyToSchema(prop *tools.Property) map[string]any {
	schema := map[string]any{
		"type":        prop.Type,
		"description": prop.Description,
	}

	if len(prop.Enum) > 0 {
		schema["enum"] = prop.Enum
	}
	if prop.Type == "array" && prop.Items != nil {
		schema["items"] = convertPropertyToSchema(prop.Items)
	}
	if prop.Type == "object" && prop.Properties != nil {
		properties := make(map[string]any)
		for name, childProp := range prop.Properties {
			if childProp != nil {
				properties[name] = convertPropertyToSchema(childProp)
			}
		}
		schema["properties"] = properties
	}

	return schema
}

// Complete implements the llm.LLMClient interface using the Responses API.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	// The Responses API takes a single input string; flatten the conversation,
	// including tool calls and their results, into labeled sections.
	var inputText string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case llm.RoleUser:
			if msg.Content != "" {
				inputText += msg.Content + "\n\n"
			}
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				inputText += fmt.Sprintf("Tool result (%s): %s\n\n", tr.ToolCallID, tr.Content)
			}
		case llm.RoleAssistant:
			if msg.Content != "" {
				inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
			}
			for j := range msg.ToolCalls {
				tc := &msg.ToolCalls[j]
				args, _ := json.Marshal(tc.Parameters)
				inputText += fmt.Sprintf("Assistant called tool %s with %s\n\n", tc.Name, args)
			}
		}
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	if len(in.Tools) > 0 {
		toolParams := make([]responses.ToolUnionParam, len(in.Tools))
		for i := range in.Tools {
			tool := &in.Tools[i]
			properties := make(map[string]any)
			for name, prop := range tool.InputSchema.Properties {
				properties[name] = convertPropertyToSchema(&prop)
			}

			toolParams[i] = responses.ToolUnionParam{
				OfFunction: &responses.FunctionToolParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters: openai.FunctionParameters(map[string]any{
						"type":       "object",
						"properties": properties,
						"required":   tool.InputSchema.Required,
					}),
				},
			}
		}
		params.Tools = toolParams
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(fmt.Errorf("OpenAI Responses API failed: %w", err))
	}
	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	var toolCalls []llm.ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		funcItem := item.AsFunctionCall()
		var parameters map[string]any
		if funcItem.Arguments != "" {
			if err := json.Unmarshal([]byte(funcItem.Arguments), &parameters); err != nil {
				// Unparseable arguments; skip this call rather than failing the turn.
				continue
			}
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:         funcItem.ID,
			Name:       funcItem.Name,
			Parameters: parameters,
		})
	}

	if len(toolCalls) > 0 {
		return llm.CompletionResponse{ToolCalls: toolCalls}, nil
	}
	return llm.CompletionResponse{Content: resp.OutputText()}, nil
}

// GetModelName returns the model name for this client.
func (c *Client) GetModelName() string {
	return c.model
}
