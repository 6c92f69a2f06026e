// Package contextmgr assembles reasoning conversations under a token budget.
package contextmgr

import (
	"fmt"
	"strings"

	"atlas/pkg/utils"
)

// Token budgets for the pieces of a research conversation. Knowledge dumps
// and thread history are the two unbounded inputs; everything else is small.
const (
	KnowledgeTokenBudget = 8000
	HistoryTokenBudget   = 3000
)

// Message is one entry of thread history, transport-agnostic.
type Message struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// Manager truncates conversation inputs to fit model context windows.
type Manager struct {
	counter *utils.TokenCounter
}

// NewManager creates a context manager. A nil token counter falls back to
// character-based estimation inside TokenCounter itself.
func NewManager() (*Manager, error) {
	counter, err := utils.NewTokenCounter()
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	return &Manager{counter: counter}, nil
}

// CountTokens exposes the underlying counter.
func (m *Manager) CountTokens(text string) int {
	return m.counter.CountTokens(text)
}

// KnowledgeDump joins accumulated findings into a single labeled block,
// truncated to the knowledge budget. Earlier rounds are dropped first since
// later findings supersede them.
func (m *Manager) KnowledgeDump(knowledge []string) string {
	if len(knowledge) == 0 {
		return ""
	}

	blocks := make([]string, len(knowledge))
	for i, k := range knowledge {
		blocks[i] = fmt.Sprintf("--- Research round %d ---\n%s", i+1, k)
	}

	// Drop oldest rounds until the dump fits, keeping at least the last one.
	for len(blocks) > 1 && m.counter.CountTokens(strings.Join(blocks, "\n\n")) > KnowledgeTokenBudget {
		blocks = blocks[1:]
	}

	dump := strings.Join(blocks, "\n\n")
	return m.counter.TruncateToTokenLimit(dump, KnowledgeTokenBudget)
}

// TrimHistory drops the oldest thread messages until the history fits its
// budget, and truncates any single oversized message.
func (m *Manager) TrimHistory(history []Message) []Message {
	if len(history) == 0 {
		return nil
	}

	trimmed := append([]Message(nil), history...)
	for len(trimmed) > 1 && m.historyTokens(trimmed) > HistoryTokenBudget {
		trimmed = trimmed[1:]
	}
	for i := range trimmed {
		trimmed[i].Text = m.counter.TruncateToTokenLimit(trimmed[i].Text, HistoryTokenBudget)
	}
	return trimmed
}

func (m *Manager) historyTokens(history []Message) int {
	total := 0
	for _, msg := range history {
		total += m.counter.CountTokens(msg.Text)
	}
	return total
}
