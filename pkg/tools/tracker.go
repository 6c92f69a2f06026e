package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TrackerConnector exposes the Jira-style issue tracker as research tools,
// plus the single action tool for creating issues.
type TrackerConnector struct {
	client          *restClient
	authorizedEmail string
	authorizedName  string
}

// NewTrackerConnector creates the tracker connector. authorizedEmail is the
// only identity allowed to create issues; authorizedName is used in the
// refusal text shown to everyone else.
func NewTrackerConnector(baseURL, user, token, authorizedEmail, authorizedName string) *TrackerConnector {
	return &TrackerConnector{
		client:          newRESTClient(baseURL, user, token),
		authorizedEmail: authorizedEmail,
		authorizedName:  authorizedName,
	}
}

// SearchTools returns the read-only tracker tool set.
func (t *TrackerConnector) SearchTools() []Tool {
	noParams := InputSchema{Type: "object", Properties: map[string]Property{}}

	return []Tool{
		NewTool(ToolDefinition{
			Name:        "jira_list_projects",
			Description: "List Jira projects (key and name). Use before searching to confirm project keys for JQL (e.g. project = NC).",
			InputSchema: noParams,
		}, t.listProjects),
		NewTool(ToolDefinition{
			Name:        "jira_list_boards",
			Description: "List Jira agile boards (Scrum/Kanban). Optionally filter by project key or ID. Returns board ID, name, type. Use board ID for jira_list_sprints or board-scoped queries.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"project": {Type: "string", Description: "Optional. Project key (e.g. NC) or project ID to filter boards."},
				},
			},
		}, t.listBoards),
		NewTool(ToolDefinition{
			Name:        "jira_list_sprints",
			Description: "List sprints for a Jira board. Use after jira_list_boards to get board ID. Optional state: active, future, or closed.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"board_id": {Type: "string", Description: "Board ID from jira_list_boards"},
					"state":    {Type: "string", Description: "Optional. active, future, or closed"},
				},
				Required: []string{"board_id"},
			},
		}, t.listSprints),
		NewTool(ToolDefinition{
			Name:        "jira_search",
			Description: "Search Jira issues by JQL or keywords. IMPORTANT: before building JQL with field names you are unsure about, use jira_discover_fields to look up correct JQL clause names. The system 'priority' field has values like Highest, High, Medium, Low, Lowest. Use jira_list_projects or jira_list_boards first if you need project keys or board context.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "JQL (e.g. project = NC AND priority in (High, Highest)) or search keywords"},
				},
				Required: []string{"query"},
			},
		}, t.search),
		NewTool(ToolDefinition{
			Name:        "jira_discover_fields",
			Description: "Search Jira field definitions by keyword. Returns field names, JQL clause names, and whether they are system or custom fields. Use BEFORE building JQL queries when unsure about field names (e.g. search 'severity' to find if it exists and its correct JQL clause).",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {Type: "string", Description: "Keyword to search field names (e.g. 'severity', 'priority', 'sprint', 'epic'). Leave empty to list common fields."},
				},
			},
		}, t.discoverFields),
		NewTool(ToolDefinition{
			Name:        "jira_list_priorities",
			Description: "List all available Jira priority values. Use to discover valid values for the 'priority' field in JQL (e.g. priority = High).",
			InputSchema: noParams,
		}, t.listPriorities),
		NewTool(ToolDefinition{
			Name:        "jira_list_statuses",
			Description: "List all available Jira statuses. Use to discover valid values for the 'status' field in JQL (e.g. status = 'In Progress').",
			InputSchema: noParams,
		}, t.listStatuses),
		NewTool(ToolDefinition{
			Name:        "jira_list_issue_types",
			Description: "List all available Jira issue types. Use to discover valid values for the 'issuetype' field in JQL (e.g. issuetype = Bug).",
			InputSchema: noParams,
		}, t.listIssueTypes),
		NewTool(ToolDefinition{
			Name:        "jira_get_issue",
			Description: "Read full details of a Jira issue by key (e.g. PROJ-123). Includes description, comments, assignee, and status.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"issue_key": {Type: "string", Description: "The Jira issue key (e.g. PROJ-123)"},
				},
				Required: []string{"issue_key"},
			},
		}, t.getIssue),
	}
}

// ActionTools returns the mutating tracker tool set.
func (t *TrackerConnector) ActionTools() []Tool {
	return []Tool{
		NewTool(ToolDefinition{
			Name:        "jira_create_issue",
			Description: "Create a new Jira issue. Only works for authorized users.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"project_key": {Type: "string", Description: "The Jira project key (e.g. PROJ)"},
					"summary":     {Type: "string", Description: "Issue title/summary"},
					"description": {Type: "string", Description: "Detailed description of the issue"},
				},
				Required: []string{"project_key", "summary"},
			},
		}, t.createIssue),
	}
}

type trackerProjectsResponse struct {
	Values []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"values"`
}

func (t *TrackerConnector) listProjects(ctx context.Context, _ map[string]any) (string, error) {
	var resp trackerProjectsResponse
	if err := t.client.getJSON(ctx, "/rest/api/3/project/search?maxResults=50", &resp); err != nil {
		return "", err
	}
	if len(resp.Values) == 0 {
		return "No Jira projects found.", nil
	}

	var sb strings.Builder
	sb.WriteString("Jira projects:\n")
	for _, p := range resp.Values {
		fmt.Fprintf(&sb, "- %s: %s\n", p.Key, p.Name)
	}
	return sb.String(), nil
}

type trackerBoardsResponse struct {
	Values []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"values"`
}

func (t *TrackerConnector) listBoards(ctx context.Context, args map[string]any) (string, error) {
	path := "/rest/agile/1.0/board?maxResults=50"
	if project := StringArg(args, "project"); project != "" {
		path += "&projectKeyOrId=" + url.QueryEscape(project)
	}

	var resp trackerBoardsResponse
	if err := t.client.getJSON(ctx, path, &resp); err != nil {
		return "", err
	}
	if len(resp.Values) == 0 {
		return "No boards found.", nil
	}

	var sb strings.Builder
	sb.WriteString("Boards:\n")
	for _, b := range resp.Values {
		fmt.Fprintf(&sb, "- [%d] %s (%s)\n", b.ID, b.Name, b.Type)
	}
	return sb.String(), nil
}

type trackerSprintsResponse struct {
	Values []struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		State     string `json:"state"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"values"`
}

func (t *TrackerConnector) listSprints(ctx context.Context, args map[string]any) (string, error) {
	boardID := StringArg(args, "board_id")
	if boardID == "" {
		if n := IntArg(args, "board_id", 0); n > 0 {
			boardID = strconv.Itoa(n)
		}
	}
	if boardID == "" {
		return "", fmt.Errorf("missing required parameter %q", "board_id")
	}

	path := "/rest/agile/1.0/board/" + url.PathEscape(boardID) + "/sprint?maxResults=25"
	if state := StringArg(args, "state"); state != "" {
		path += "&state=" + url.QueryEscape(state)
	}

	var resp trackerSprintsResponse
	if err := t.client.getJSON(ctx, path, &resp); err != nil {
		return "", err
	}
	if len(resp.Values) == 0 {
		return "No sprints found for board " + boardID + ".", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sprints for board %s:\n", boardID)
	for _, s := range resp.Values {
		fmt.Fprintf(&sb, "- [%d] %s (%s) %s -> %s\n", s.ID, s.Name, s.State, s.StartDate, s.EndDate)
	}
	return sb.String(), nil
}

type trackerIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		Assignee struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Description any `json:"description"`
		Comment     struct {
			Comments []struct {
				Author struct {
					DisplayName string `json:"displayName"`
				} `json:"author"`
				Created string `json:"created"`
				Body    any    `json:"body"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

type trackerSearchResponse struct {
	Issues []trackerIssue `json:"issues"`
}

// looksLikeJQL reports whether a query already contains JQL syntax.
func looksLikeJQL(query string) bool {
	lowered := strings.ToLower(query)
	for _, marker := range []string{"=", "~", " and ", " or ", "order by"} {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func (t *TrackerConnector) search(ctx context.Context, args map[string]any) (string, error) {
	query, err := RequiredStringArg(args, "query")
	if err != nil {
		return "", err
	}

	jql := query
	if !looksLikeJQL(query) {
		jql = fmt.Sprintf(`text ~ "%s"`, strings.ReplaceAll(query, `"`, ""))
	}

	var resp trackerSearchResponse
	path := "/rest/api/3/search?maxResults=10&jql=" + url.QueryEscape(jql)
	if err := t.client.getJSON(ctx, path, &resp); err != nil {
		return "", err
	}
	if len(resp.Issues) == 0 {
		return "No Jira issues found for: " + query, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d issues:\n", len(resp.Issues))
	for i := range resp.Issues {
		issue := &resp.Issues[i]
		fmt.Fprintf(&sb, "- %s [%s, %s] %s\n",
			issue.Key, issue.Fields.Status.Name, issue.Fields.Priority.Name, issue.Fields.Summary)
	}
	return sb.String(), nil
}

type trackerField struct {
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
	Schema struct {
		Type string `json:"type"`
	} `json:"schema"`
	ClauseNames []string `json:"clauseNames"`
}

func (t *TrackerConnector) discoverFields(ctx context.Context, args map[string]any) (string, error) {
	var fields []trackerField
	if err := t.client.getJSON(ctx, "/rest/api/3/field", &fields); err != nil {
		return "", err
	}

	query := strings.ToLower(StringArg(args, "query"))
	var sb strings.Builder
	matched := 0
	for i := range fields {
		f := &fields[i]
		if query != "" && !strings.Contains(strings.ToLower(f.Name), query) {
			continue
		}
		kind := "system"
		if f.Custom {
			kind = "custom"
		}
		fmt.Fprintf(&sb, "- %s (%s, jql: %s)\n", f.Name, kind, strings.Join(f.ClauseNames, ", "))
		matched++
		if matched >= 25 {
			break
		}
	}
	if matched == 0 {
		return "No Jira fields match: " + query, nil
	}
	return "Jira fields:\n" + sb.String(), nil
}

func (t *TrackerConnector) listNamed(ctx context.Context, path, label string) (string, error) {
	var items []struct {
		Name string `json:"name"`
	}
	if err := t.client.getJSON(ctx, path, &items); err != nil {
		return "", err
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return label + ": " + strings.Join(names, ", "), nil
}

func (t *TrackerConnector) listPriorities(ctx context.Context, _ map[string]any) (string, error) {
	return t.listNamed(ctx, "/rest/api/3/priority", "Priorities")
}

func (t *TrackerConnector) listStatuses(ctx context.Context, _ map[string]any) (string, error) {
	return t.listNamed(ctx, "/rest/api/3/status", "Statuses")
}

func (t *TrackerConnector) listIssueTypes(ctx context.Context, _ map[string]any) (string, error) {
	return t.listNamed(ctx, "/rest/api/3/issuetype", "Issue types")
}

func (t *TrackerConnector) getIssue(ctx context.Context, args map[string]any) (string, error) {
	issueKey, err := RequiredStringArg(args, "issue_key")
	if err != nil {
		return "", err
	}

	var issue trackerIssue
	path := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "?fields=summary,status,priority,assignee,description,comment"
	if err := t.client.getJSON(ctx, path, &issue); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", issue.Key, issue.Fields.Summary)
	fmt.Fprintf(&sb, "Status: %s | Priority: %s | Assignee: %s\n",
		issue.Fields.Status.Name, issue.Fields.Priority.Name, issue.Fields.Assignee.DisplayName)
	if desc := extractDocText(issue.Fields.Description); desc != "" {
		fmt.Fprintf(&sb, "\n%s\n", desc)
	}

	comments := issue.Fields.Comment.Comments
	if len(comments) > 0 {
		fmt.Fprintf(&sb, "\nComments (%d):\n", len(comments))
		// Last three comments carry the freshest context.
		start := len(comments) - 3
		if start < 0 {
			start = 0
		}
		for _, c := range comments[start:] {
			body := extractDocText(c.Body)
			if len(body) > 300 {
				body = body[:300]
			}
			fmt.Fprintf(&sb, "- %s (%s): %s\n", c.Author.DisplayName, c.Created, body)
		}
	}
	return sb.String(), nil
}

type trackerCreateResponse struct {
	Key  string `json:"key"`
	Self string `json:"self"`
}

func (t *TrackerConnector) createIssue(ctx context.Context, args map[string]any) (string, error) {
	if SenderEmailFromContext(ctx) != t.authorizedEmail {
		return fmt.Sprintf("UNAUTHORIZED: Only %s can create tickets.", t.authorizedName), nil
	}

	projectKey := StringArg(args, "project_key")
	summary := StringArg(args, "summary")
	if projectKey == "" || summary == "" {
		return "Missing required fields: project_key and summary are required.", nil
	}
	description := StringArg(args, "description")
	if description == "" {
		description = "Created by Support Assistant"
	}

	payload := map[string]any{
		"fields": map[string]any{
			"project": map[string]any{"key": projectKey},
			"summary": summary,
			"description": map[string]any{
				"version": 1,
				"type":    "doc",
				"content": []any{map[string]any{
					"type":    "paragraph",
					"content": []any{map[string]any{"type": "text", "text": description}},
				}},
			},
			"issuetype": map[string]any{"name": "Task"},
		},
	}

	var resp trackerCreateResponse
	if err := t.client.postJSON(ctx, "/rest/api/3/issue", payload, &resp); err != nil {
		return "Failed to create ticket: " + err.Error(), nil
	}
	return fmt.Sprintf("Created ticket %s (%s)", resp.Key, resp.Self), nil
}

// extractDocText pulls plain text out of an Atlassian Document Format tree.
func extractDocText(node any) string {
	switch v := node.(type) {
	case string:
		return v
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
		if content, ok := v["content"].([]any); ok {
			parts := make([]string, 0, len(content))
			for _, child := range content {
				if part := extractDocText(child); part != "" {
					parts = append(parts, part)
				}
			}
			return strings.Join(parts, " ")
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, child := range v {
			if part := extractDocText(child); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
