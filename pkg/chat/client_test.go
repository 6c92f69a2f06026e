package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyPostsIntoThread(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret-token")
	err := c.Reply(context.Background(), "spaces/AAA", "spaces/AAA/threads/BBB", "all done")
	require.NoError(t, err)

	assert.Equal(t, "/v1/spaces/AAA/messages?messageReplyOption=REPLY_MESSAGE_FALLBACK_TO_NEW_THREAD", gotPath)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "all done", gotBody["text"])
	assert.Equal(t, map[string]any{"name": "spaces/AAA/threads/BBB"}, gotBody["thread"])
}

func TestReplyWithoutThreadOmitsThreadField(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL, "").Reply(context.Background(), "spaces/AAA", "", "hi"))
	_, hasThread := gotBody["thread"]
	assert.False(t, hasThread)
}

func TestReplySurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewClient(server.URL, "").Reply(context.Background(), "spaces/AAA", "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestThreadHistoryMapsRolesAndOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "filter=")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{"text": "Checking now.", "sender": map[string]string{"type": "BOT"}, "createTime": "2026-08-31T10:01:00Z"},
				{"text": "<users/12345> is backend-core down?", "sender": map[string]string{"type": "HUMAN"}, "createTime": "2026-08-31T10:00:00Z"},
				{"text": "   ", "sender": map[string]string{"type": "HUMAN"}, "createTime": "2026-08-31T10:02:00Z"},
			},
		})
	}))
	defer server.Close()

	history := NewClient(server.URL, "").ThreadHistory(context.Background(), "spaces/AAA", "threads/BBB", 10)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "is backend-core down?", history[0].Text)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "Checking now.", history[1].Text)
}

func TestThreadHistoryKeepsLastN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{"text": "one", "createTime": "2026-08-31T10:00:00Z"},
				{"text": "two", "createTime": "2026-08-31T10:01:00Z"},
				{"text": "three", "createTime": "2026-08-31T10:02:00Z"},
			},
		})
	}))
	defer server.Close()

	history := NewClient(server.URL, "").ThreadHistory(context.Background(), "spaces/AAA", "threads/BBB", 2)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].Text)
	assert.Equal(t, "three", history[1].Text)
}

func TestThreadHistoryDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	assert.Nil(t, c.ThreadHistory(context.Background(), "spaces/AAA", "threads/BBB", 10))
	assert.Nil(t, c.ThreadHistory(context.Background(), "", "threads/BBB", 10))
	assert.Nil(t, c.ThreadHistory(context.Background(), "spaces/AAA", "", 10))
}
