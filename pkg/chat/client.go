// Package chat is the transport boundary: webhook handler for inbound turns
// and a REST client for posting replies and reading thread history.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"atlas/pkg/contextmgr"
	"atlas/pkg/logx"
)

// Client talks to the chat service's REST API.
type Client struct {
	httpClient *http.Client
	logger     *logx.Logger
	baseURL    string
	token      string
}

// NewClient creates a chat API client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logx.NewLogger("chat"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Reply posts a text message into a thread. Chat-native formatting only:
// *bold*, _italic_, `monospace`, bullet lists, [label](url).
func (c *Client) Reply(ctx context.Context, spaceID, threadID, text string) error {
	msg := map[string]any{"text": text}
	if threadID != "" {
		msg["thread"] = map[string]string{"name": threadID}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize reply: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/%s/messages?messageReplyOption=REPLY_MESSAGE_FALLBACK_TO_NEW_THREAD",
		c.baseURL, spaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reply request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reply failed with status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

type chatMessage struct {
	Text   string `json:"text"`
	Sender struct {
		Type string `json:"type"`
	} `json:"sender"`
	CreateTime string `json:"createTime"`
}

type messageListResponse struct {
	Messages      []chatMessage `json:"messages"`
	NextPageToken string        `json:"nextPageToken"`
}

// ThreadHistory fetches thread messages in chronological order, mapped to
// user/assistant roles. Failures degrade to an empty history; a missing
// thread context never blocks a turn.
func (c *Client) ThreadHistory(ctx context.Context, spaceID, threadID string, limit int) []contextmgr.Message {
	if spaceID == "" || threadID == "" {
		return nil
	}

	var all []chatMessage
	pageToken := ""
	for page := 0; page < 5; page++ {
		reqURL := fmt.Sprintf("%s/v1/%s/messages?pageSize=100&filter=%s", c.baseURL, spaceID,
			url.QueryEscape(fmt.Sprintf("thread.name=%q", threadID)))
		if pageToken != "" {
			reqURL += "&pageToken=" + url.QueryEscape(pageToken)
		}

		body, err := c.get(ctx, reqURL)
		if err != nil {
			c.logger.Warn("thread history fetch failed: %v", err)
			break
		}
		var list messageListResponse
		if err := json.Unmarshal(body, &list); err != nil {
			c.logger.Warn("thread history decode failed: %v", err)
			break
		}

		all = append(all, list.Messages...)
		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreateTime < all[j].CreateTime })

	var history []contextmgr.Message
	for _, msg := range all {
		text := strings.TrimSpace(msg.Text)
		role := "user"
		if msg.Sender.Type == "BOT" {
			role = "assistant"
		} else {
			text = StripBotMention(text)
		}
		if text == "" {
			continue
		}
		history = append(history, contextmgr.Message{Role: role, Text: text})
	}

	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(snippet))
	}
	return io.ReadAll(resp.Body)
}
