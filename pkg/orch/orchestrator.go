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
	"atlas/pkg/workers"
)

// DefaultMaxRounds bounds research/evaluation cycles per turn. Two rounds is
// an availability and cost tradeoff, not a claim that two rounds suffice.
const DefaultMaxRounds = 2

// Options wires an orchestrator.
type Options struct {
	// ResearchClient serves worker rounds, evaluation, and the responder.
	ResearchClient agent.LLMClient
	// RoutingClient serves the cheap calls: routing, summary, rewrite.
	RoutingClient agent.LLMClient
	Registry      *tools.Registry
	Renderer      *templates.Renderer
	Resolver      *persona.Resolver
	CtxMgr        *contextmgr.Manager

	BotName              string
	TicketAuthorizedUser string
	TicketAuthorizedName string
	MaxRounds            int
	MaxSearchIterations  int
	ThinkingMode         bool
}

// Orchestrator runs the round loop: route once, then alternate worker
// research and evaluation until satisfied, clarifying, or exhausted.
type Orchestrator struct {
	researchClient agent.LLMClient
	routingClient  agent.LLMClient
	registry       *tools.Registry
	renderer       *templates.Renderer
	resolver       *persona.Resolver
	ctxmgr         *contextmgr.Manager
	router         *Router
	evaluator      *Evaluator
	responder      *Responder
	variants       map[workers.ID]*workers.Variant
	logger         *logx.Logger
	botName        string
	maxRounds      int
	thinkingMode   bool
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	evaluator, err := NewEvaluator(opts.ResearchClient, opts.Renderer)
	if err != nil {
		return nil, err
	}

	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	return &Orchestrator{
		researchClient: opts.ResearchClient,
		routingClient:  opts.RoutingClient,
		registry:       opts.Registry,
		renderer:       opts.Renderer,
		resolver:       opts.Resolver,
		ctxmgr:         opts.CtxMgr,
		router:         NewRouter(opts.RoutingClient, opts.Renderer),
		evaluator:      evaluator,
		responder: NewResponder(opts.ResearchClient, opts.Registry, opts.Renderer, opts.CtxMgr,
			opts.BotName, opts.TicketAuthorizedUser, opts.TicketAuthorizedName),
		variants:     workers.New(opts.MaxSearchIterations),
		logger:       logx.NewLogger("orch"),
		botName:      opts.BotName,
		maxRounds:    maxRounds,
		thinkingMode: opts.ThinkingMode,
	}, nil
}

// Run processes one turn to completion and returns the final reply text.
func (o *Orchestrator) Run(ctx context.Context, turn Turn) (string, error) {
	conversationSummary := o.summarizeThread(ctx, turn.PriorMessages)

	effectiveQuery := strings.TrimSpace(turn.RawMessage)
	if o.thinkingMode {
		effectiveQuery = o.rewriteQuery(ctx, turn.RawMessage, conversationSummary)
	}
	if effectiveQuery == "" {
		effectiveQuery = strings.TrimSpace(turn.RawMessage)
	}

	pctx := o.resolver.Resolve(ctx, turn.RequesterID)
	query := contextualizedQuery(effectiveQuery, conversationSummary)
	o.logger.Debug("turn %s query: %s", turn.ID, logx.Preview(query, 50))

	variant := o.variants[o.router.Select(ctx, query, pctx.PersonaLabel)]
	o.logger.Info("turn %s: selected %s (%s)", turn.ID, variant.ID, variant.Display())

	var knowledge []string
	feedback := ""

	for round := 0; round < o.maxRounds; round++ {
		o.logger.Info("turn %s: round %d", turn.ID, round)

		// Persona and source hints steer round 0 only; later rounds are
		// steered purely by evaluator feedback.
		hint := ""
		if round == 0 {
			hint = roundZeroHint(pctx, effectiveQuery)
		}

		findings, err := variant.Research(ctx, o.researchClient, o.registry, o.renderer,
			query, knowledge, feedback, hint)
		if err != nil {
			return "", err
		}
		knowledge = append(knowledge, findings)
		o.logger.Info("turn %s: round %d findings length %d", turn.ID, round, len(findings))

		verdict, err := o.evaluator.Evaluate(ctx, query, knowledge)
		if err != nil {
			return "", err
		}
		o.logger.Info("turn %s: round %d satisfied=%t", turn.ID, round, verdict.Satisfied)

		if verdict.Satisfied && verdict.Answer != "" {
			return "**" + variant.Display() + "** led this analysis.\n\n" + verdict.Answer, nil
		}
		if verdict.ClarificationNeeded && verdict.ClarificationQuestion != "" {
			return "To give you a better answer, could you clarify: " + verdict.ClarificationQuestion, nil
		}

		feedback = verdict.Feedback
		if len(verdict.FollowUpQueries) > 0 {
			feedback += "\nSuggested search terms: " + strings.Join(verdict.FollowUpQueries, ", ")
		}
	}

	return o.responder.Compile(ctx, effectiveQuery, knowledge, turn.RequesterID,
		turn.PriorMessages, pctx, variant.Display())
}

// roundZeroHint joins the persona hint and the source hint for the first
// research call.
func roundZeroHint(pctx persona.Context, query string) string {
	parts := []string{}
	if h := pctx.SearchHint(); h != "" {
		parts = append(parts, h)
	}
	if h := sourceHint(query); h != "" {
		parts = append(parts, h+" ")
	}
	return strings.Join(parts, "")
}
