package orch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"atlas/pkg/agent"
	"atlas/pkg/logx"
	"atlas/pkg/templates"
)

// verdictSchema validates the evaluator's JSON payload before decoding.
// Anything that fails validation takes the explicit fallback branch.
const verdictSchema = `{
	"type": "object",
	"properties": {
		"satisfied": {"type": "boolean"},
		"answer": {"type": "string"},
		"feedback": {"type": "string"},
		"follow_up_queries": {"type": "array", "items": {"type": "string"}},
		"clarification_needed": {"type": "boolean"},
		"clarification_question": {"type": "string"}
	},
	"required": ["satisfied"]
}`

// Evaluator judges accumulated findings against the original question.
type Evaluator struct {
	client   agent.LLMClient
	renderer *templates.Renderer
	schema   *gojsonschema.Schema
	logger   *logx.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(client agent.LLMClient, renderer *templates.Renderer) (*Evaluator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(verdictSchema))
	if err != nil {
		return nil, logx.Wrap(err, "failed to compile verdict schema")
	}
	return &Evaluator{
		client:   client,
		renderer: renderer,
		schema:   schema,
		logger:   logx.NewLogger("evaluator"),
	}, nil
}

// Evaluate produces a fresh verdict from the full knowledge. A response that
// is not a valid verdict payload becomes an unsatisfied verdict carrying the
// raw text as feedback; only the reasoning call itself can fail.
func (e *Evaluator) Evaluate(ctx context.Context, question string, knowledge []string) (Verdict, error) {
	systemPrompt, err := e.renderer.RenderStatic(templates.EvaluatorSystem)
	if err != nil {
		return Verdict{}, err
	}

	prompt := "Original question: " + question +
		"\n\nAccumulated research findings:\n\n" + strings.Join(knowledge, "\n\n---\n\n")
	e.logger.Debug("input: %s", logx.Preview(prompt, 50))

	resp, err := e.client.Complete(ctx, agent.NewCompletionRequest([]agent.CompletionMessage{
		agent.NewSystemMessage(systemPrompt),
		agent.NewUserMessage(prompt),
	}))
	if err != nil {
		return Verdict{}, logx.Wrap(err, "evaluator call failed")
	}

	text := strings.TrimSpace(resp.Content)
	e.logger.Debug("response: %s (length=%d)", logx.Preview(text, 50), len(text))

	verdict, ok := e.decodeVerdict(text)
	if !ok {
		return fallbackVerdict(text), nil
	}
	return verdict, nil
}

// decodeVerdict extracts, schema-validates, and decodes the verdict payload.
func (e *Evaluator) decodeVerdict(text string) (Verdict, bool) {
	payload, ok := extractJSONObject(text)
	if !ok {
		e.logger.Warn("no JSON payload in evaluator response")
		return Verdict{}, false
	}

	result, err := e.schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		e.logger.Warn("verdict payload is not valid JSON: %v", err)
		return Verdict{}, false
	}
	if !result.Valid() {
		e.logger.Warn("verdict payload failed schema validation: %v", result.Errors())
		return Verdict{}, false
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		e.logger.Warn("verdict decode failed: %v", err)
		return Verdict{}, false
	}

	// A clarification claim without a question is not actionable.
	verdict.ClarificationQuestion = strings.TrimSpace(verdict.ClarificationQuestion)
	if verdict.ClarificationQuestion == "" {
		verdict.ClarificationNeeded = false
	}
	return verdict, true
}

// fallbackVerdict is the explicit parse-failure branch: unsatisfied, with the
// raw text as feedback for the next round.
func fallbackVerdict(text string) Verdict {
	feedback := text
	if feedback == "" {
		feedback = "Could not evaluate findings. Try different search terms."
	}
	return Verdict{Satisfied: false, Feedback: feedback}
}
