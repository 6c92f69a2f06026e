// Package anthropic provides the Anthropic Claude client implementation for the LLM interface.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"atlas/pkg/agent/llm"
	"atlas/pkg/agent/llmerrors"
)

// ClaudeClient wraps the Anthropic API client to implement llm.LLMClient.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClient creates a new Claude client for the given model.
func NewClient(apiKey, model string) llm.LLMClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeClient{
		client: client,
		model:  anthropic.Model(model),
	}
}

// Complete implements the llm.LLMClient interface.
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, messages, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "message conversion error")
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	if len(in.Tools) > 0 {
		toolParams := make([]anthropic.ToolUnionParam, 0, len(in.Tools))
		for i := range in.Tools {
			tool := &in.Tools[i]

			var properties any
			if len(tool.InputSchema.Properties) > 0 {
				props := make(map[string]any)
				for name := range tool.InputSchema.Properties {
					prop := tool.InputSchema.Properties[name]
					propMap := map[string]any{"type": prop.Type}
					if prop.Description != "" {
						propMap["description"] = prop.Description
					}
					if len(prop.Enum) > 0 {
						propMap["enum"] = prop.Enum
					}
					props[name] = propMap
				}
				properties = props
			}

			schema := anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   tool.InputSchema.Required,
			}
			toolParams = append(toolParams, anthropic.ToolUnionParamOfTool(schema, tool.Name))
		}
		params.Tools = toolParams
		// Claude decides when to call tools; the loop needs free-text answers.
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var responseText string
	var toolCalls []llm.ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			responseText += textBlock.Text
		case "tool_use":
			toolUseBlock := block.AsToolUse()
			var callParams map[string]any
			if err := json.Unmarshal(toolUseBlock.Input, &callParams); err != nil {
				return llm.CompletionResponse{}, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:         toolUseBlock.ID,
				Name:       toolUseBlock.Name,
				Parameters: callParams,
			})
		}
	}

	// Surface exactly one of text / tool calls.
	if len(toolCalls) > 0 {
		return llm.CompletionResponse{ToolCalls: toolCalls}, nil
	}
	return llm.CompletionResponse{Content: responseText}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// convertMessages extracts system messages into the top-level system parameter
// and converts the rest into Anthropic content blocks, preserving structured
// tool calls and results.
func convertMessages(messages []llm.CompletionMessage) (string, []anthropic.MessageParam, error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	converted := make([]anthropic.MessageParam, 0, len(messages))

	for i := range messages {
		msg := &messages[i]

		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}
		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Parameters,
				},
			})
		}
		for j := range msg.ToolResults {
			tr := &msg.ToolResults[j]
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: tr.ToolCallID,
					IsError:   anthropic.Bool(tr.IsError),
					Content: []anthropic.ToolResultBlockParamContentUnion{
						{OfText: &anthropic.TextBlockParam{Text: tr.Content, Type: "text"}},
					},
				},
			})
		}
		if len(blocks) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == llm.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		converted = append(converted, anthropic.MessageParam{
			Role:    role,
			Content: blocks,
		})
	}

	if len(converted) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	return strings.Join(systemParts, "\n\n"), converted, nil
}

var statusCodeRe = regexp.MustCompile(`\b([45]\d{2})\b`)

// classifyError maps Anthropic SDK errors to structured error types.
func classifyError(err error) *llmerrors.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "request canceled")
	}

	// The SDK includes the HTTP status in the error text.
	if match := statusCodeRe.FindString(err.Error()); match != "" {
		if code, convErr := strconv.Atoi(match); convErr == nil {
			return llmerrors.NewErrorWithCause(llmerrors.ClassifyHTTPStatus(code), err, err.Error())
		}
	}

	return llmerrors.Classify(err)
}
