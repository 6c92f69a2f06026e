package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HelpdeskConnector exposes the Freshdesk-style ticket system as research tools.
type HelpdeskConnector struct {
	client *restClient
}

// NewHelpdeskConnector creates the helpdesk connector. Freshdesk-style APIs
// use the API key as the basic-auth user with a fixed password.
func NewHelpdeskConnector(baseURL, apiKey string) *HelpdeskConnector {
	return &HelpdeskConnector{client: newRESTClient(baseURL, apiKey, "X")}
}

// Tools returns the helpdesk tool set.
func (h *HelpdeskConnector) Tools() []Tool {
	return []Tool{
		NewTool(ToolDefinition{
			Name:        "freshdesk_get_ticket",
			Description: "Get full details of a Freshdesk ticket by numeric ID. Use when the user shares a Freshdesk URL or a ticket ID. Returns subject, description, status, priority, requester, and URL.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"ticket_id": {Type: "string", Description: "The numeric Freshdesk ticket ID (e.g. 1502184)"},
				},
				Required: []string{"ticket_id"},
			},
		}, h.getTicket),
		NewTool(ToolDefinition{
			Name:        "freshdesk_list_conversations",
			Description: "List conversations (replies and notes) for a Freshdesk ticket. Use after freshdesk_get_ticket when more context from the thread is needed.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"ticket_id": {Type: "string", Description: "The numeric Freshdesk ticket ID"},
				},
				Required: []string{"ticket_id"},
			},
		}, h.listConversations),
		NewTool(ToolDefinition{
			Name:        "freshdesk_search_tickets",
			Description: "Search Freshdesk for user-reported problems. For RECENT PROBLEMS or problems in the last N days/weeks, pass days_back (e.g. 49 for 7 weeks) or created_after (YYYY-MM-DD) and do NOT pass a free-text query. For a SPECIFIC TICKET use freshdesk_get_ticket instead. Optional query: requester_id:NNNN to list tickets from that requester.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query":         {Type: "string", Description: "Optional. Use requester_id:12345 to list tickets from that requester. Leave empty when using days_back or created_after."},
					"days_back":     {Type: "number", Description: "Number of days to look back (e.g. 49 for 7 weeks, 30 for 1 month). Returns only tickets created within this window."},
					"created_after": {Type: "string", Description: "Explicit start date in YYYY-MM-DD format. Alternative to days_back. Returns only tickets created after this date."},
				},
			},
		}, h.searchTickets),
		NewTool(ToolDefinition{
			Name:        "freshdesk_search_solutions",
			Description: "Search the Freshdesk knowledge base (Solutions) for articles by keyword. Use for common questions, how-tos, and FAQs before or alongside tickets and Confluence.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Search keywords (e.g. 'password reset', 'how to export')"},
				},
				Required: []string{"query"},
			},
		}, h.searchSolutions),
	}
}

// Freshdesk status/priority codes.
var (
	helpdeskStatusNames   = map[int]string{2: "Open", 3: "Pending", 4: "Resolved", 5: "Closed"} //nolint:gochecknoglobals // Static lookup table
	helpdeskPriorityNames = map[int]string{1: "Low", 2: "Medium", 3: "High", 4: "Urgent"}       //nolint:gochecknoglobals // Static lookup table
)

func helpdeskName(table map[int]string, code int) string {
	if name, ok := table[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

type helpdeskTicket struct {
	ID              int    `json:"id"`
	Subject         string `json:"subject"`
	DescriptionText string `json:"description_text"`
	Status          int    `json:"status"`
	Priority        int    `json:"priority"`
	RequesterID     int64  `json:"requester_id"`
	CreatedAt       string `json:"created_at"`
}

func (h *HelpdeskConnector) ticketID(args map[string]any) (string, error) {
	id := StringArg(args, "ticket_id")
	if id == "" {
		if n := IntArg(args, "ticket_id", 0); n > 0 {
			id = strconv.Itoa(n)
		}
	}
	if id == "" {
		return "", fmt.Errorf("missing required parameter %q", "ticket_id")
	}
	return id, nil
}

func (h *HelpdeskConnector) getTicket(ctx context.Context, args map[string]any) (string, error) {
	id, err := h.ticketID(args)
	if err != nil {
		return "", err
	}

	var ticket helpdeskTicket
	if err := h.client.getJSON(ctx, "/api/v2/tickets/"+id, &ticket); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket #%d: %s\n", ticket.ID, ticket.Subject)
	fmt.Fprintf(&sb, "Status: %s | Priority: %s | Requester: %d | Created: %s\n",
		helpdeskName(helpdeskStatusNames, ticket.Status),
		helpdeskName(helpdeskPriorityNames, ticket.Priority),
		ticket.RequesterID, ticket.CreatedAt)
	fmt.Fprintf(&sb, "URL: %s/a/tickets/%d\n\n%s", h.client.baseURL, ticket.ID, ticket.DescriptionText)
	return sb.String(), nil
}

type helpdeskConversation struct {
	BodyText  string `json:"body_text"`
	Incoming  bool   `json:"incoming"`
	Private   bool   `json:"private"`
	CreatedAt string `json:"created_at"`
}

func (h *HelpdeskConnector) listConversations(ctx context.Context, args map[string]any) (string, error) {
	id, err := h.ticketID(args)
	if err != nil {
		return "", err
	}

	var conversations []helpdeskConversation
	if err := h.client.getJSON(ctx, "/api/v2/tickets/"+id+"/conversations?per_page=20", &conversations); err != nil {
		return "", err
	}
	if len(conversations) == 0 {
		return "Ticket has no conversations.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Conversations for ticket %s:\n", id)
	for _, c := range conversations {
		kind := "reply"
		if c.Private {
			kind = "note"
		}
		direction := "agent"
		if c.Incoming {
			direction = "requester"
		}
		body := c.BodyText
		if len(body) > 400 {
			body = body[:400] + "..."
		}
		fmt.Fprintf(&sb, "- [%s, %s, %s] %s\n", c.CreatedAt, direction, kind, body)
	}
	return sb.String(), nil
}

type helpdeskSearchResponse struct {
	Results []helpdeskTicket `json:"results"`
	Total   int              `json:"total"`
}

func (h *HelpdeskConnector) searchTickets(ctx context.Context, args map[string]any) (string, error) {
	var clauses []string

	if query := StringArg(args, "query"); query != "" {
		if strings.HasPrefix(query, "requester_id:") {
			clauses = append(clauses, query)
		} else {
			clauses = append(clauses, fmt.Sprintf("subject:'%s'", strings.ReplaceAll(query, "'", "")))
		}
	}

	createdAfter := StringArg(args, "created_after")
	if daysBack := IntArg(args, "days_back", 0); daysBack > 0 && createdAfter == "" {
		createdAfter = time.Now().UTC().AddDate(0, 0, -daysBack).Format("2006-01-02")
	}
	if createdAfter != "" {
		clauses = append(clauses, fmt.Sprintf("created_at:>'%s'", createdAfter))
	}

	if len(clauses) == 0 {
		return "Provide a query, days_back, or created_after to search tickets.", nil
	}

	query := url.QueryEscape(`"` + strings.Join(clauses, " AND ") + `"`)
	var resp helpdeskSearchResponse
	if err := h.client.getJSON(ctx, "/api/v2/search/tickets?query="+query, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "No tickets found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d tickets (showing %d):\n", resp.Total, len(resp.Results))
	for i := range resp.Results {
		ticket := &resp.Results[i]
		fmt.Fprintf(&sb, "- #%d [%s/%s] %s (created %s)\n",
			ticket.ID,
			helpdeskName(helpdeskStatusNames, ticket.Status),
			helpdeskName(helpdeskPriorityNames, ticket.Priority),
			ticket.Subject, ticket.CreatedAt)
	}
	return sb.String(), nil
}

type helpdeskArticle struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	DescText    string `json:"description_text"`
}

func (h *HelpdeskConnector) searchSolutions(ctx context.Context, args map[string]any) (string, error) {
	query, err := RequiredStringArg(args, "query")
	if err != nil {
		return "", err
	}

	var articles []helpdeskArticle
	if err := h.client.getJSON(ctx, "/api/v2/search/solutions?term="+url.QueryEscape(query), &articles); err != nil {
		return "", err
	}
	if len(articles) == 0 {
		return "No knowledge base articles found for: " + query, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d articles:\n", len(articles))
	for _, a := range articles {
		summary := a.DescText
		if len(summary) > 200 {
			summary = summary[:200] + "..."
		}
		fmt.Fprintf(&sb, "- [%d] %s: %s\n", a.ID, a.Title, summary)
	}
	return sb.String(), nil
}
