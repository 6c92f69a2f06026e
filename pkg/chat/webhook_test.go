package chat

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/orch"
)

type captureQueue struct {
	turns []orch.Turn
	err   error
}

func (q *captureQueue) Enqueue(turn orch.Turn) error {
	if q.err != nil {
		return q.err
	}
	q.turns = append(q.turns, turn)
	return nil
}

func (q *captureQueue) DequeueOne() (orch.Turn, bool, error) {
	return orch.Turn{}, false, nil
}

func postEvent(t *testing.T, w *Webhook, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	w.ServeHTTP(rec, req)
	return rec
}

// Events without a thread name skip the history fetch, so no chat API stub is
// needed for the enqueue tests.
const eventBody = `{
	"type": "MESSAGE",
	"space": {"name": "spaces/AAA"},
	"message": {"text": "<users/12345> why does backend-core restart?"},
	"user": {"email": "Dev@Example.com"}
}`

func TestStripBotMention(t *testing.T) {
	assert.Equal(t, "hello", StripBotMention("<users/12345> hello"))
	assert.Equal(t, "hello there", StripBotMention("hello <users/bot> there"))
	assert.Equal(t, "no mention", StripBotMention("no mention"))
	assert.Equal(t, "", StripBotMention("<users/12345>"))
}

func TestWebhookRejectsNonPost(t *testing.T) {
	w := NewWebhook(&captureQueue{}, NewClient("http://chat.invalid", ""), nil, nil, 10)
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	w.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhookEnqueuesStrippedTurn(t *testing.T) {
	queue := &captureQueue{}
	w := NewWebhook(queue, NewClient("http://chat.invalid", ""), nil, nil, 10)

	rec := postEvent(t, w, eventBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ackReply)

	require.Len(t, queue.turns, 1)
	turn := queue.turns[0]
	assert.NotEmpty(t, turn.ID)
	assert.Equal(t, "spaces/AAA", turn.SpaceID)
	assert.Equal(t, "why does backend-core restart?", turn.RawMessage)
	assert.Equal(t, "dev@example.com", turn.RequesterID)
}

func TestWebhookEmptyMessageAcksWithoutEnqueue(t *testing.T) {
	queue := &captureQueue{}
	w := NewWebhook(queue, NewClient("http://chat.invalid", ""), nil, nil, 10)

	rec := postEvent(t, w, `{"space": {"name": "spaces/AAA"}, "message": {"text": "<users/12345>"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, queue.turns)

	// No space name at all: same empty ack.
	rec = postEvent(t, w, `{"message": {"text": "hi"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, queue.turns)
}

func TestWebhookUserWhitelist(t *testing.T) {
	queue := &captureQueue{}
	w := NewWebhook(queue, NewClient("http://chat.invalid", ""), nil, []string{"Lead@Example.com"}, 10)

	rec := postEvent(t, w, eventBody)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), whitelistReply)
	assert.Empty(t, queue.turns)

	allowed := strings.Replace(eventBody, "Dev@Example.com", "lead@example.com", 1)
	postEvent(t, w, allowed)
	assert.Len(t, queue.turns, 1)
}

func TestWebhookSpaceWhitelist(t *testing.T) {
	queue := &captureQueue{}
	w := NewWebhook(queue, NewClient("http://chat.invalid", ""), []string{"spaces/OTHER"}, nil, 10)

	rec := postEvent(t, w, eventBody)
	assert.Contains(t, rec.Body.String(), whitelistReply)
	assert.Empty(t, queue.turns)
}

func TestWebhookEnqueueFailureIsLoud(t *testing.T) {
	queue := &captureQueue{err: errors.New("queue lock wait timed out")}
	w := NewWebhook(queue, NewClient("http://chat.invalid", ""), nil, nil, 10)

	rec := postEvent(t, w, eventBody)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), ackReply)
}

func TestWebhookBadPayload(t *testing.T) {
	w := NewWebhook(&captureQueue{}, NewClient("http://chat.invalid", ""), nil, nil, 10)
	rec := postEvent(t, w, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
