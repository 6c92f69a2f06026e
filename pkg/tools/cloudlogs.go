package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CloudLogsConnector queries a Cloud-Logging-style backend. The same backend
// serves both raw application logs (gcloud_* tools) and Kubernetes lifecycle
// events (k8s_* tools, see kube.go).
type CloudLogsConnector struct {
	client  *restClient
	project string
}

// NewCloudLogsConnector creates the log backend connector.
func NewCloudLogsConnector(baseURL, token, project string) *CloudLogsConnector {
	return &CloudLogsConnector{
		client:  newRESTClient(baseURL, "", token),
		project: project,
	}
}

// Tools returns the application log tool set.
func (l *CloudLogsConnector) Tools() []Tool {
	return []Tool{
		NewTool(ToolDefinition{
			Name:        "gcloud_list_applications",
			Description: "List application/container names running in a Kubernetes environment. Use this first when the user asks about logs but the exact application name is unknown.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name, e.g. hb-prod, hb-it, dg-prod, dg-pta, hb-pta"},
				},
				Required: []string{"environment"},
			},
		}, l.listApplications),
		NewTool(ToolDefinition{
			Name:        "gcloud_read_logs",
			Description: "Read log entries from a specific application in a Kubernetes environment. Filter by severity, search text, and time range. For incident windows use start_time and end_time (ISO 8601 UTC). Use gcloud_list_applications first if unsure of the application name.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name (e.g. hb-prod, dg-pta)"},
					"application": {Type: "string", Description: "Container/application name from gcloud_list_applications (e.g. backend-core, ocs-proxy)"},
					"severity":    {Type: "string", Description: "Optional. Minimum severity: DEBUG, INFO, WARNING, ERROR, CRITICAL"},
					"search_text": {Type: "string", Description: "Optional. Text to search for in log messages"},
					"hours_ago":   {Type: "number", Description: "Optional. How far back to look in hours (default 1). Ignored when start_time is set."},
					"limit":       {Type: "number", Description: "Optional. Max entries to return (default 20, max 50)"},
					"start_time":  {Type: "string", Description: "Optional. ISO 8601 start time in UTC (e.g. 2025-02-15T20:00:00Z). Convert user timezones to UTC."},
					"end_time":    {Type: "string", Description: "Optional. ISO 8601 end time in UTC. Pair with start_time to define an incident window."},
				},
				Required: []string{"environment", "application"},
			},
		}, l.readLogs),
	}
}

type logEntry struct {
	Timestamp   string `json:"timestamp"`
	Severity    string `json:"severity"`
	TextPayload string `json:"textPayload"`
	JSONPayload struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"jsonPayload"`
	Resource struct {
		Labels map[string]string `json:"labels"`
	} `json:"resource"`
}

func (e *logEntry) message() string {
	if e.TextPayload != "" {
		return e.TextPayload
	}
	return e.JSONPayload.Message
}

type logListRequest struct {
	ResourceNames []string `json:"resourceNames"`
	Filter        string   `json:"filter"`
	OrderBy       string   `json:"orderBy"`
	PageSize      int      `json:"pageSize"`
}

type logListResponse struct {
	Entries []logEntry `json:"entries"`
}

// queryEntries runs an entries:list call against the log backend.
func (l *CloudLogsConnector) queryEntries(ctx context.Context, filter string, pageSize int) ([]logEntry, error) {
	req := logListRequest{
		ResourceNames: []string{"projects/" + l.project},
		Filter:        filter,
		OrderBy:       "timestamp desc",
		PageSize:      pageSize,
	}
	var resp logListResponse
	if err := l.client.postJSON(ctx, "/v2/entries:list", req, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// timeWindowFilter builds the timestamp clause from the shared window args.
func timeWindowFilter(args map[string]any, defaultHours int) string {
	startTime := StringArg(args, "start_time")
	endTime := StringArg(args, "end_time")
	if startTime != "" {
		clause := fmt.Sprintf(`timestamp >= "%s"`, startTime)
		if endTime != "" {
			clause += fmt.Sprintf(` AND timestamp <= "%s"`, endTime)
		}
		return clause
	}
	hoursAgo := IntArg(args, "hours_ago", defaultHours)
	since := time.Now().UTC().Add(-time.Duration(hoursAgo) * time.Hour).Format(time.RFC3339)
	return fmt.Sprintf(`timestamp >= "%s"`, since)
}

func (l *CloudLogsConnector) listApplications(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}

	filter := fmt.Sprintf(`resource.type="k8s_container" AND resource.labels.cluster_name="%s" AND %s`,
		environment, timeWindowFilter(map[string]any{}, 1))
	entries, err := l.queryEntries(ctx, filter, 200)
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{})
	for i := range entries {
		if name := entries[i].Resource.Labels["container_name"]; name != "" {
			seen[name] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return "No applications found in environment " + environment + ".", nil
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("Applications in %s:\n- %s", environment, strings.Join(names, "\n- ")), nil
}

func (l *CloudLogsConnector) readLogs(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}
	application, err := RequiredStringArg(args, "application")
	if err != nil {
		return "", err
	}

	limit := IntArg(args, "limit", 20)
	if limit > 50 {
		limit = 50
	}

	clauses := []string{
		`resource.type="k8s_container"`,
		fmt.Sprintf(`resource.labels.cluster_name="%s"`, environment),
		fmt.Sprintf(`resource.labels.container_name="%s"`, application),
		timeWindowFilter(args, 1),
	}
	if severity := StringArg(args, "severity"); severity != "" {
		clauses = append(clauses, fmt.Sprintf(`severity >= %s`, strings.ToUpper(severity)))
	}
	if text := StringArg(args, "search_text"); text != "" {
		clauses = append(clauses, fmt.Sprintf(`textPayload:"%s" OR jsonPayload.message:"%s"`, text, text))
	}

	entries, err := l.queryEntries(ctx, strings.Join(clauses, " AND "), limit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No log entries for %s in %s within the requested window.", application, environment), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d log entries for %s in %s (newest first):\n", len(entries), application, environment)
	for i := range entries {
		e := &entries[i]
		msg := e.message()
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		fmt.Fprintf(&sb, "- [%s %s] %s\n", e.Timestamp, e.Severity, msg)
	}
	return sb.String(), nil
}
