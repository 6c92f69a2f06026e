package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// KubeTools returns the Kubernetes event tool set. Events are served by the
// same log backend as gcloud_read_logs, filtered to k8s event resources.
func (l *CloudLogsConnector) KubeTools() []Tool {
	return []Tool{
		NewTool(ToolDefinition{
			Name:        "k8s_get_pod_events",
			Description: "Get Kubernetes pod lifecycle events (Unhealthy, Killing, BackOff, OOMKilling, Failed, Scheduled, Started) for an environment. Essential for diagnosing crashes, restarts, OOM kills, and failed health checks. Use for questions like 'why did X restart' or 'is something crashing'.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name (e.g. hb-prod, dg-pta)"},
					"application": {Type: "string", Description: "Optional. Filter events to pods of this application. Omit to see events across the whole environment."},
					"hours_ago":   {Type: "number", Description: "Optional. How far back to look in hours (default 24)"},
				},
				Required: []string{"environment"},
			},
		}, l.getPodEvents),
		NewTool(ToolDefinition{
			Name:        "k8s_get_deployment_events",
			Description: "Get deployment/release events (FluxCD HelmRelease events like UpgradeSucceeded, InstallFailed, HelmChartConfigured) for an environment. Use for 'when was X deployed' or 'did a release break something'.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name (e.g. hb-prod, dg-pta)"},
					"application": {Type: "string", Description: "Optional. Filter to releases of this application."},
					"hours_ago":   {Type: "number", Description: "Optional. How far back to look in hours (default 168, one week)"},
				},
				Required: []string{"environment"},
			},
		}, l.getDeploymentEvents),
		NewTool(ToolDefinition{
			Name:        "k8s_discover_pods",
			Description: "Discover the current pod names of an application in an environment. Use before event tools when the exact pod name matters, or to verify an application is running.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name (e.g. hb-prod, dg-pta)"},
					"application": {Type: "string", Description: "Application name (e.g. backend-core)"},
				},
				Required: []string{"environment", "application"},
			},
		}, l.discoverPods),
	}
}

var podEventReasons = []string{"Unhealthy", "Killing", "BackOff", "OOMKilling", "Failed", "Scheduled", "Started"}

func reasonClause(reasons []string) string {
	quoted := make([]string, len(reasons))
	for i, r := range reasons {
		quoted[i] = fmt.Sprintf(`jsonPayload.reason="%s"`, r)
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

func (l *CloudLogsConnector) getPodEvents(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}

	clauses := []string{
		`resource.type="k8s_pod"`,
		fmt.Sprintf(`resource.labels.cluster_name="%s"`, environment),
		`logName:"events"`,
		reasonClause(podEventReasons),
		timeWindowFilter(map[string]any{"hours_ago": IntArg(args, "hours_ago", 24)}, 24),
	}
	if application := StringArg(args, "application"); application != "" {
		clauses = append(clauses, fmt.Sprintf(`resource.labels.pod_name:"%s"`, application))
	}

	entries, err := l.queryEntries(ctx, strings.Join(clauses, " AND "), 50)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No pod events in %s within the requested window.", environment), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d pod events in %s (newest first):\n", len(entries), environment)
	for i := range entries {
		e := &entries[i]
		pod := e.Resource.Labels["pod_name"]
		fmt.Fprintf(&sb, "- [%s] %s pod=%s: %s\n", e.Timestamp, e.JSONPayload.Reason, pod, e.message())
	}
	return sb.String(), nil
}

var deploymentEventReasons = []string{"UpgradeSucceeded", "InstallFailed", "HelmChartConfigured", "UpgradeFailed", "InstallSucceeded"}

func (l *CloudLogsConnector) getDeploymentEvents(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}

	clauses := []string{
		fmt.Sprintf(`resource.labels.cluster_name="%s"`, environment),
		`logName:"events"`,
		reasonClause(deploymentEventReasons),
		timeWindowFilter(map[string]any{"hours_ago": IntArg(args, "hours_ago", 168)}, 168),
	}
	if application := StringArg(args, "application"); application != "" {
		clauses = append(clauses, fmt.Sprintf(`jsonPayload.involvedObject.name:"%s"`, application))
	}

	entries, err := l.queryEntries(ctx, strings.Join(clauses, " AND "), 50)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No deployment events in %s within the requested window.", environment), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d deployment events in %s (newest first):\n", len(entries), environment)
	for i := range entries {
		e := &entries[i]
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", e.Timestamp, e.JSONPayload.Reason, e.message())
	}
	return sb.String(), nil
}

func (l *CloudLogsConnector) discoverPods(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}
	application, err := RequiredStringArg(args, "application")
	if err != nil {
		return "", err
	}

	filter := strings.Join([]string{
		`resource.type="k8s_container"`,
		fmt.Sprintf(`resource.labels.cluster_name="%s"`, environment),
		fmt.Sprintf(`resource.labels.container_name="%s"`, application),
		timeWindowFilter(map[string]any{}, 1),
	}, " AND ")

	entries, err := l.queryEntries(ctx, filter, 100)
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{})
	for i := range entries {
		if pod := entries[i].Resource.Labels["pod_name"]; pod != "" {
			seen[pod] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return fmt.Sprintf("No running pods found for %s in %s. The application may be down or the name may be wrong; try gcloud_list_applications.", application, environment), nil
	}

	pods := make([]string, 0, len(seen))
	for pod := range seen {
		pods = append(pods, pod)
	}
	sort.Strings(pods)
	return fmt.Sprintf("Pods for %s in %s:\n- %s", application, environment, strings.Join(pods, "\n- ")), nil
}
