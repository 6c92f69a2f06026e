package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// MonitoringConnector answers restart and resource questions from a
// Prometheus-compatible metrics backend.
type MonitoringConnector struct {
	api promv1.API
}

// NewMonitoringConnector creates the metrics connector.
func NewMonitoringConnector(endpoint string) (*MonitoringConnector, error) {
	client, err := api.NewClient(api.Config{Address: endpoint})
	if err != nil {
		return nil, fmt.Errorf("monitoring client: %w", err)
	}
	return &MonitoringConnector{api: promv1.NewAPI(client)}, nil
}

// Tools returns the monitoring tool set.
func (m *MonitoringConnector) Tools() []Tool {
	return []Tool{
		NewTool(ToolDefinition{
			Name:        "monitoring_restart_count",
			Description: "Get the container restart count for an application in an environment over the last 24 hours. Use to confirm whether an application is crash-looping.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name (e.g. hb-prod, dg-pta)"},
					"application": {Type: "string", Description: "Application/container name (e.g. backend-core)"},
				},
				Required: []string{"environment", "application"},
			},
		}, m.restartCount),
		NewTool(ToolDefinition{
			Name:        "monitoring_resource_usage",
			Description: "Get current resource usage for an application in an environment. metric_type selects memory (working set bytes), cpu (cores), or uptime (seconds since container start).",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name (e.g. hb-prod, dg-pta)"},
					"application": {Type: "string", Description: "Application/container name"},
					"metric_type": {Type: "string", Description: "Which metric to read", Enum: []string{"memory", "cpu", "uptime"}},
				},
				Required: []string{"environment", "application", "metric_type"},
			},
		}, m.resourceUsage),
		NewTool(ToolDefinition{
			Name:        "monitoring_restart_count_all",
			Description: "Get restart counts for ALL applications in an environment over the last 24 hours, sorted by restart count descending. Use during incident triage to find which application is unstable.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"environment": {Type: "string", Description: "Environment name (e.g. hb-prod, dg-pta)"},
				},
				Required: []string{"environment"},
			},
		}, m.restartCountAll),
	}
}

func (m *MonitoringConnector) query(ctx context.Context, promql string) (model.Vector, error) {
	result, warnings, err := m.api.Query(ctx, promql, time.Now())
	if err != nil {
		return nil, fmt.Errorf("monitoring query: %w", err)
	}
	_ = warnings
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("monitoring query: unexpected result type %s", result.Type())
	}
	return vector, nil
}

func (m *MonitoringConnector) restartCount(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}
	application, err := RequiredStringArg(args, "application")
	if err != nil {
		return "", err
	}

	promql := fmt.Sprintf(
		`sum(increase(kube_pod_container_status_restarts_total{cluster="%s",container="%s"}[24h]))`,
		environment, application)
	vector, err := m.query(ctx, promql)
	if err != nil {
		return "", err
	}
	if len(vector) == 0 {
		return fmt.Sprintf("No restart data for %s in %s. Verify the application name with gcloud_list_applications.", application, environment), nil
	}

	restarts := int(vector[0].Value)
	if restarts == 0 {
		return fmt.Sprintf("%s in %s: 0 restarts in the last 24h. The application looks stable.", application, environment), nil
	}
	return fmt.Sprintf("%s in %s: %d restarts in the last 24h.", application, environment, restarts), nil
}

func (m *MonitoringConnector) resourceUsage(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}
	application, err := RequiredStringArg(args, "application")
	if err != nil {
		return "", err
	}
	metricType, err := RequiredStringArg(args, "metric_type")
	if err != nil {
		return "", err
	}

	var promql string
	switch metricType {
	case "memory":
		promql = fmt.Sprintf(`sum by (pod) (container_memory_working_set_bytes{cluster="%s",container="%s"})`, environment, application)
	case "cpu":
		promql = fmt.Sprintf(`sum by (pod) (rate(container_cpu_usage_seconds_total{cluster="%s",container="%s"}[5m]))`, environment, application)
	case "uptime":
		promql = fmt.Sprintf(`time() - max by (pod) (container_start_time_seconds{cluster="%s",container="%s"})`, environment, application)
	default:
		return fmt.Sprintf("Unknown metric_type %q: use memory, cpu, or uptime.", metricType), nil
	}

	vector, err := m.query(ctx, promql)
	if err != nil {
		return "", err
	}
	if len(vector) == 0 {
		return fmt.Sprintf("No %s data for %s in %s.", metricType, application, environment), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s usage for %s in %s:\n", metricType, application, environment)
	for _, sample := range vector {
		pod := string(sample.Metric["pod"])
		switch metricType {
		case "memory":
			fmt.Fprintf(&sb, "- %s: %.1f MiB\n", pod, float64(sample.Value)/(1024*1024))
		case "cpu":
			fmt.Fprintf(&sb, "- %s: %.3f cores\n", pod, float64(sample.Value))
		case "uptime":
			fmt.Fprintf(&sb, "- %s: up %s\n", pod, (time.Duration(sample.Value) * time.Second).Round(time.Minute))
		}
	}
	return sb.String(), nil
}

func (m *MonitoringConnector) restartCountAll(ctx context.Context, args map[string]any) (string, error) {
	environment, err := RequiredStringArg(args, "environment")
	if err != nil {
		return "", err
	}

	promql := fmt.Sprintf(
		`sum by (container) (increase(kube_pod_container_status_restarts_total{cluster="%s"}[24h]))`,
		environment)
	vector, err := m.query(ctx, promql)
	if err != nil {
		return "", err
	}
	if len(vector) == 0 {
		return "No restart data for environment " + environment + ".", nil
	}

	type row struct {
		name     string
		restarts int
	}
	rows := make([]row, 0, len(vector))
	for _, sample := range vector {
		rows = append(rows, row{name: string(sample.Metric["container"]), restarts: int(sample.Value)})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].restarts != rows[j].restarts {
			return rows[i].restarts > rows[j].restarts
		}
		return rows[i].name < rows[j].name
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Restarts in %s over the last 24h (highest first):\n", environment)
	for _, r := range rows {
		fmt.Fprintf(&sb, "- %s: %d\n", r.name, r.restarts)
	}
	return sb.String(), nil
}
