package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry        *prom.Registry
	operations      *prom.CounterVec
	commandDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg. A
// nil reg gets a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svn_action",
			Name:      "operations_total",
			Help:      "Checkout and copy operations by outcome",
		}, []string{"operation", "outcome"}),
		commandDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "svn_action",
			Name:      "command_duration_seconds",
			Help:      "Duration of svn invocations",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(pr.operations, pr.commandDuration)
	return pr
}

func (p *PrometheusRecorder) IncOperation(operation string, outcome OutcomeLabel) {
	if p == nil || p.operations == nil {
		return
	}
	p.operations.WithLabelValues(operation, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveCommand(kind string, d time.Duration, success bool) {
	if p == nil || p.commandDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.commandDuration.WithLabelValues(kind, res).Observe(d.Seconds())
}

// WriteTextfile writes the gathered metrics in the text exposition format,
// suitable for the node_exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if p == nil || p.registry == nil {
		return nil
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
