// Package orch implements the round-bounded research orchestrator: router,
// worker rounds, evaluator, and responder fallback.
package orch

import (
	"atlas/pkg/contextmgr"
)

// Turn is one inbound user message plus its thread context, the unit of work
// consumed exactly once per queue drain.
type Turn struct {
	ID            string               `json:"id"`
	SpaceID       string               `json:"space_id"`
	ThreadID      string               `json:"thread_id"`
	RawMessage    string               `json:"raw_message"`
	RequesterID   string               `json:"requester_id"`
	PriorMessages []contextmgr.Message `json:"prior_messages,omitempty"`
}

// Verdict is the evaluator's structured judgment of accumulated findings.
type Verdict struct {
	Satisfied             bool     `json:"satisfied"`
	Answer                string   `json:"answer"`
	Feedback              string   `json:"feedback"`
	FollowUpQueries       []string `json:"follow_up_queries"`
	ClarificationNeeded   bool     `json:"clarification_needed"`
	ClarificationQuestion string   `json:"clarification_question"`
}
