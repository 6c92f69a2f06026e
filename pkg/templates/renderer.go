// Package templates provides embedded prompt templates for the research pipeline.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// PromptTemplate names one embedded prompt file.
type PromptTemplate string

const (
	// SupportEngineerSystem is the triage worker's system prompt.
	SupportEngineerSystem PromptTemplate = "support_engineer_system.tpl.md"
	// SeniorEngineerSystem is the deep investigation worker's system prompt.
	SeniorEngineerSystem PromptTemplate = "senior_engineer_system.tpl.md"
	// SRESystem is the infrastructure incident worker's system prompt.
	SRESystem PromptTemplate = "sre_system.tpl.md"
	// RouterSystem is the worker classification prompt.
	RouterSystem PromptTemplate = "router_system.tpl.md"
	// EvaluatorSystem is the findings judgment prompt.
	EvaluatorSystem PromptTemplate = "evaluator_system.tpl.md"
	// ResponderSystem is the fallback answer compiler prompt. It carries the
	// requester paragraph and the ticket authorization policy.
	ResponderSystem PromptTemplate = "responder_system.tpl.md"
	// ConversationSummary condenses thread history for follow-up messages.
	ConversationSummary PromptTemplate = "conversation_summary.tpl.md"
	// QueryRewrite is the thinking-mode single-sentence rewrite prompt.
	QueryRewrite PromptTemplate = "query_rewrite.tpl.md"
)

// PromptData holds the fields the prompt templates can reference.
type PromptData struct {
	// RequesterParagraph is the persona-specific paragraph for the responder.
	RequesterParagraph string
	// TicketPolicy states whether this requester may create tracker tickets.
	TicketPolicy string
	// BotName is the chat display name of the assistant.
	BotName string
}

// Renderer renders embedded prompt templates.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

// NewRenderer parses every embedded prompt template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[PromptTemplate]*template.Template)}

	names := []PromptTemplate{
		SupportEngineerSystem,
		SeniorEngineerSystem,
		SRESystem,
		RouterSystem,
		EvaluatorSystem,
		ResponderSystem,
		ConversationSummary,
		QueryRewrite,
	}
	for _, name := range names {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render renders the named template with the given data.
func (r *Renderer) Render(name PromptTemplate, data *PromptData) (string, error) {
	tmpl, exists := r.templates[name]
	if !exists {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderStatic renders a template that takes no data.
func (r *Renderer) RenderStatic(name PromptTemplate) (string, error) {
	return r.Render(name, &PromptData{})
}
