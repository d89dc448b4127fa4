// Package metrics collects and exposes Prometheus metrics for the inference
// client and the journal pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records inference and pipeline metrics.
type Collector struct {
	registry       *prometheus.Registry
	inferenceCalls *prometheus.CounterVec
	tokensUsed     prometheus.Counter
	pipelineStages *prometheus.CounterVec
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		inferenceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindscribe_inference_calls_total",
			Help: "Inference service calls by outcome (ok, transport, safety_blocked, empty).",
		}, []string{"outcome"}),
		tokensUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mindscribe_tokens_total",
			Help: "Total tokens reported by the inference service.",
		}),
		pipelineStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mindscribe_pipeline_stage_total",
			Help: "Journal pipeline stage executions by stage and outcome (ok, degraded, failed).",
		}, []string{"stage", "outcome"}),
	}
	reg.MustRegister(c.inferenceCalls, c.tokensUsed, c.pipelineStages)
	return c
}

func (c *Collector) RecordInferenceCall(outcome string) {
	c.inferenceCalls.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordTokens(n int64) {
	if n > 0 {
		c.tokensUsed.Add(float64(n))
	}
}

func (c *Collector) RecordStage(stage, outcome string) {
	c.pipelineStages.WithLabelValues(stage, outcome).Inc()
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
