package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Durations records operation latencies through the OTel metric API. These
// flow to whatever exporter Init installed; with output "off" they are no-ops.
type Durations struct {
	resolve metric.Float64Histogram
}

// NewDurations creates the latency instruments under the engine's meter.
func NewDurations() (*Durations, error) {
	meter := otel.Meter(tracerName)

	resolve, err := meter.Float64Histogram(
		"warden.resolve.duration",
		metric.WithDescription("Policy resolution latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &Durations{resolve: resolve}, nil
}

// RecordResolve records one resolution latency. Nil-safe.
func (d *Durations) RecordResolve(ctx context.Context, elapsed time.Duration) {
	if d == nil {
		return
	}
	d.resolve.Record(ctx, elapsed.Seconds())
}
