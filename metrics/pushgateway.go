// Package metrics pushes per-run uploader telemetry to a Prometheus
// Pushgateway. A batch run exits before any scraper could reach it, so the
// collectors live in a private registry that is pushed once at the end.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher collects stage and record metrics for one run.
type Pusher struct {
	gatewayURL string
	job        string
	reason     string
	reg        *prometheus.Registry

	stageCounter  *prometheus.CounterVec // zupload_stage_total
	stageDuration *prometheus.SummaryVec // zupload_stage_duration_seconds
	recordCounter *prometheus.CounterVec // zupload_records_total
}

// NewPusher builds a Pusher. reason becomes a grouping label so runs for
// different reasons do not overwrite each other on the gateway.
func NewPusher(gatewayURL, job, reason string) (*Pusher, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("metrics: pushgateway URL is required")
	}
	if job == "" {
		job = "zupload"
	}
	reg := prometheus.NewRegistry()

	stageCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zupload_stage_total",
			Help: "Stage executions, partitioned by stage and status.",
		},
		[]string{"stage", "status"},
	)
	stageDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "zupload_stage_duration_seconds",
			Help:       "Stage duration in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"stage"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zupload_records_total",
			Help: "Records handled per kind (archived, try_ingested, data_uploaded, ...).",
		},
		[]string{"kind"},
	)

	for name, c := range map[string]prometheus.Collector{
		"stage counter":  stageCounter,
		"stage summary":  stageDuration,
		"record counter": recordCounter,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}

	return &Pusher{
		gatewayURL:    gatewayURL,
		job:           job,
		reason:        reason,
		reg:           reg,
		stageCounter:  stageCounter,
		stageDuration: stageDuration,
		recordCounter: recordCounter,
	}, nil
}

func (p *Pusher) ObserveStage(stage, status string, d time.Duration) {
	p.stageCounter.WithLabelValues(stage, status).Inc()
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *Pusher) AddRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	p.recordCounter.WithLabelValues(kind).Add(float64(n))
}

// Push replaces this job's group on the gateway with the current registry.
func (p *Pusher) Push(ctx context.Context) error {
	pusher := push.New(p.gatewayURL, p.job).Gatherer(p.reg)
	if p.reason != "" {
		pusher = pusher.Grouping("reason", p.reason)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", p.gatewayURL, err)
	}
	return nil
}
