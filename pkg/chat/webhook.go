package chat

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"atlas/pkg/dispatch"
	"atlas/pkg/logx"
	"atlas/pkg/orch"
)

// Fixed transport replies.
const (
	ackReply       = "🔍 Looking into it…"
	whitelistReply = "This is currently in the POC phase, and only requests initiated by " +
		"whitelisted users are allowed."
)

var mentionRe = regexp.MustCompile(`<users/[^>]+>`)

// StripBotMention removes chat mention markup from a message.
func StripBotMention(text string) string {
	return strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
}

// webhookEvent is the inbound message event payload.
type webhookEvent struct {
	Type  string `json:"type"`
	Space struct {
		Name string `json:"name"`
	} `json:"space"`
	Message struct {
		Text   string `json:"text"`
		Thread struct {
			Name string `json:"name"`
		} `json:"thread"`
	} `json:"message"`
	User struct {
		Email string `json:"email"`
	} `json:"user"`
}

// Webhook accepts inbound message events: strip the bot mention, check the
// whitelist, fetch thread history, enqueue a turn, and acknowledge. Actual
// processing happens asynchronously in the dispatcher.
type Webhook struct {
	queue         dispatch.Queue
	client        *Client
	logger        *logx.Logger
	allowedSpaces map[string]bool
	allowedUsers  map[string]bool
	historySize   int
}

// NewWebhook creates the inbound event handler. Empty whitelists allow everyone.
func NewWebhook(queue dispatch.Queue, client *Client, allowedSpaces, allowedUsers []string, historySize int) *Webhook {
	return &Webhook{
		queue:         queue,
		client:        client,
		logger:        logx.NewLogger("webhook"),
		allowedSpaces: toSet(allowedSpaces),
		allowedUsers:  toSet(allowedUsers),
		historySize:   historySize,
	}
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

// ServeHTTP handles one inbound event. The response body is the immediate
// ack; the real answer arrives later via the reply client.
func (w *Webhook) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event webhookEvent
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		http.Error(rw, "bad request", http.StatusBadRequest)
		return
	}
	if event.Space.Name == "" {
		writeAck(rw, "")
		return
	}

	message := StripBotMention(event.Message.Text)
	if message == "" {
		writeAck(rw, "")
		return
	}

	sender := strings.ToLower(strings.TrimSpace(event.User.Email))
	if !w.allowed(event.Space.Name, sender) {
		w.logger.Warn("rejected event from %s in %s", sender, event.Space.Name)
		writeAck(rw, whitelistReply)
		return
	}

	history := w.client.ThreadHistory(req.Context(), event.Space.Name, event.Message.Thread.Name, w.historySize)

	turn := orch.Turn{
		ID:            uuid.New().String(),
		SpaceID:       event.Space.Name,
		ThreadID:      event.Message.Thread.Name,
		RawMessage:    message,
		RequesterID:   sender,
		PriorMessages: history,
	}

	if err := w.queue.Enqueue(turn); err != nil {
		// Lock timeout or storage failure: fail the event loudly rather than
		// silently dropping the turn.
		w.logger.Error("enqueue failed for turn %s: %v", turn.ID, err)
		http.Error(rw, "failed to accept message", http.StatusServiceUnavailable)
		return
	}

	w.logger.Info("enqueued turn %s from %s (history=%d)", turn.ID, sender, len(history))
	writeAck(rw, ackReply)
}

func (w *Webhook) allowed(spaceID, sender string) bool {
	if w.allowedSpaces != nil && !w.allowedSpaces[strings.ToLower(spaceID)] {
		return false
	}
	if w.allowedUsers != nil && !w.allowedUsers[sender] {
		return false
	}
	return true
}

func writeAck(rw http.ResponseWriter, text string) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]string{"text": text})
}
