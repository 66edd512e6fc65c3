package uploader

import (
	"context"
	"time"
)

// Metrics receives run telemetry. The metrics package implements it with a
// Prometheus Pushgateway.
type Metrics interface {
	ObserveStage(stage, status string, d time.Duration)
	AddRecords(kind string, n int)
	Push(ctx context.Context) error
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(string, string, time.Duration) {}
func (nopMetrics) AddRecords(string, int)                     {}
func (nopMetrics) Push(context.Context) error                 { return nil }
