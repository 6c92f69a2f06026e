// Package metrics provides Prometheus-based metrics recording for LLM operations.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"atlas/pkg/agent"
	"atlas/pkg/agent/llmerrors"
)

// Recorder records LLM request outcomes.
type Recorder interface {
	ObserveRequest(model, component string, success bool, errorType string, duration time.Duration)
}

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, component, and status",
			},
			[]string{"model", "component", "status", "error_type"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "component"},
		),
	}
}

// ObserveRequest records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveRequest(model, component string, success bool, errorType string, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, component, status, errorType).Inc()
	p.requestDuration.WithLabelValues(model, component).Observe(duration.Seconds())
}

// instrumentedClient wraps an LLMClient and records per-request metrics.
type instrumentedClient struct {
	inner     agent.LLMClient
	recorder  Recorder
	component string
}

// Wrap returns an LLMClient that records request metrics under the given
// component label. A nil recorder returns the inner client unchanged.
func Wrap(inner agent.LLMClient, recorder Recorder, component string) agent.LLMClient {
	if recorder == nil {
		return inner
	}
	return &instrumentedClient{
		inner:     inner,
		recorder:  recorder,
		component: component,
	}
}

// Complete implements the agent.LLMClient interface.
func (c *instrumentedClient) Complete(ctx context.Context, in agent.CompletionRequest) (agent.CompletionResponse, error) {
	start := time.Now()
	resp, err := c.inner.Complete(ctx, in)
	duration := time.Since(start)

	errorType := ""
	if err != nil {
		errorType = llmerrors.TypeOf(err).String()
	}
	c.recorder.ObserveRequest(c.inner.GetModelName(), c.component, err == nil, errorType, duration)

	return resp, err
}

// GetModelName returns the model name of the wrapped client.
func (c *instrumentedClient) GetModelName() string {
	return c.inner.GetModelName()
}
