package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("reading-metrics")

// ReadingMetrics provides metrics collection for reading sessions
type ReadingMetrics struct {
	readingsStartedCounter   metric.Int64Counter
	readingsCompletedCounter metric.Int64Counter
	readingsFailedCounter    metric.Int64Counter
	readingDurationHistogram metric.Float64Histogram
	readingsActiveGauge      metric.Int64UpDownCounter
}

// NewReadingMetrics creates a new reading metrics collector
func NewReadingMetrics() (*ReadingMetrics, error) {
	readingsStartedCounter, err := meter.Int64Counter(
		"tarot.readings.started",
		metric.WithDescription("Total number of reading sessions started"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	readingsCompletedCounter, err := meter.Int64Counter(
		"tarot.readings.completed",
		metric.WithDescription("Total number of reading sessions completed successfully"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	readingsFailedCounter, err := meter.Int64Counter(
		"tarot.readings.failed",
		metric.WithDescription("Total number of reading sessions that failed"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	readingDurationHistogram, err := meter.Float64Histogram(
		"tarot.reading.duration",
		metric.WithDescription("Duration of reading sessions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	readingsActiveGauge, err := meter.Int64UpDownCounter(
		"tarot.readings.active",
		metric.WithDescription("Number of currently active reading sessions"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	return &ReadingMetrics{
		readingsStartedCounter:   readingsStartedCounter,
		readingsCompletedCounter: readingsCompletedCounter,
		readingsFailedCounter:    readingsFailedCounter,
		readingDurationHistogram: readingDurationHistogram,
		readingsActiveGauge:      readingsActiveGauge,
	}, nil
}

// RecordReadingStarted records a new reading session. The active gauge
// carries no attributes: the spread a session ends with can differ from
// the one it was requested with, and both sides of the up-down counter
// must land on the same stream.
func (rm *ReadingMetrics) RecordReadingStarted(ctx context.Context, spreadType string) {
	rm.readingsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("spread.type", spreadType),
		),
	)
	rm.readingsActiveGauge.Add(ctx, 1)
}

// RecordReadingCompleted records a successful reading session
func (rm *ReadingMetrics) RecordReadingCompleted(ctx context.Context, spreadType string, duration time.Duration) {
	rm.readingsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("spread.type", spreadType),
			attribute.String("status", "completed"),
		),
	)
	rm.readingDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("spread.type", spreadType),
			attribute.String("status", "completed"),
		),
	)
	rm.readingsActiveGauge.Add(ctx, -1)
}

// RecordReadingFailed records a failed reading session
func (rm *ReadingMetrics) RecordReadingFailed(ctx context.Context, spreadType, errorType string, duration time.Duration) {
	rm.readingsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("spread.type", spreadType),
			attribute.String("status", "failed"),
			attribute.String("error.type", errorType),
		),
	)
	rm.readingDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("spread.type", spreadType),
			attribute.String("status", "failed"),
		),
	)
	rm.readingsActiveGauge.Add(ctx, -1)
}
