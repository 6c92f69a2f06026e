package contextmgr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager()
	require.NoError(t, err)
	return m
}

func TestKnowledgeDumpLabelsRounds(t *testing.T) {
	m := newTestManager(t)

	dump := m.KnowledgeDump([]string{"first findings", "second findings"})
	assert.Contains(t, dump, "--- Research round 1 ---\nfirst findings")
	assert.Contains(t, dump, "--- Research round 2 ---\nsecond findings")

	assert.Empty(t, m.KnowledgeDump(nil))
}

func TestKnowledgeDumpDropsOldestRoundsFirst(t *testing.T) {
	m := newTestManager(t)
	big := strings.Repeat("kubernetes pod restart memory limit ", 1200)

	dump := m.KnowledgeDump([]string{big, big})
	assert.NotContains(t, dump, "--- Research round 1 ---")
	assert.Contains(t, dump, "--- Research round 2 ---")
	assert.LessOrEqual(t, m.CountTokens(dump), KnowledgeTokenBudget)
}

func TestKnowledgeDumpKeepsLastRoundTruncated(t *testing.T) {
	m := newTestManager(t)
	huge := strings.Repeat("incident timeline evidence hypothesis ", 4000)

	dump := m.KnowledgeDump([]string{huge})
	assert.NotEmpty(t, dump)
	assert.LessOrEqual(t, m.CountTokens(dump), KnowledgeTokenBudget)
}

func TestTrimHistoryDropsOldestMessages(t *testing.T) {
	m := newTestManager(t)
	long := strings.Repeat("deploy pipeline failure ", 700)

	trimmed := m.TrimHistory([]Message{
		{Role: "user", Text: long},
		{Role: "assistant", Text: long},
		{Role: "user", Text: "short follow-up"},
	})
	require.NotEmpty(t, trimmed)
	assert.Equal(t, "short follow-up", trimmed[len(trimmed)-1].Text)
	assert.Less(t, len(trimmed), 3)
}

func TestTrimHistoryTruncatesOversizedMessage(t *testing.T) {
	m := newTestManager(t)
	huge := strings.Repeat("stack trace line ", 2000)

	trimmed := m.TrimHistory([]Message{{Role: "user", Text: huge}})
	require.Len(t, trimmed, 1)
	assert.LessOrEqual(t, m.CountTokens(trimmed[0].Text), HistoryTokenBudget)
}

func TestTrimHistoryEmpty(t *testing.T) {
	m := newTestManager(t)
	assert.Nil(t, m.TrimHistory(nil))
}
