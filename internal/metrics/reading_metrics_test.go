package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// installManualReader points the global meter provider at a manual reader
// so recorded values can be collected and inspected.
func installManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })
	return reader
}

// activeGaugePoints returns the datapoints of the active-readings gauge.
func activeGaugePoints(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "tarot.readings.active" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "active gauge must be an int64 sum")
			return sum.DataPoints
		}
	}
	return nil
}

func TestReadingMetrics_Creation(t *testing.T) {
	t.Run("successfully create reading metrics", func(t *testing.T) {
		metrics, err := NewReadingMetrics()
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.readingsStartedCounter)
		assert.NotNil(t, metrics.readingsCompletedCounter)
		assert.NotNil(t, metrics.readingsFailedCounter)
		assert.NotNil(t, metrics.readingDurationHistogram)
		assert.NotNil(t, metrics.readingsActiveGauge)
	})
}

func TestReadingMetrics_RecordReadingStarted(t *testing.T) {
	metrics, err := NewReadingMetrics()
	require.NoError(t, err)

	t.Run("record reading start", func(t *testing.T) {
		ctx := context.Background()

		// Should not panic
		assert.NotPanics(t, func() {
			metrics.RecordReadingStarted(ctx, "three_card")
		})
	})

	t.Run("record starts for both spreads", func(t *testing.T) {
		ctx := context.Background()

		for _, spread := range []string{"three_card", "celtic_cross"} {
			metrics.RecordReadingStarted(ctx, spread)
		}
	})
}

func TestReadingMetrics_RecordReadingCompleted(t *testing.T) {
	metrics, err := NewReadingMetrics()
	require.NoError(t, err)

	t.Run("record completion with duration", func(t *testing.T) {
		ctx := context.Background()

		assert.NotPanics(t, func() {
			metrics.RecordReadingCompleted(ctx, "three_card", 45*time.Second)
		})
	})

	t.Run("record completion with various durations", func(t *testing.T) {
		ctx := context.Background()
		durations := []time.Duration{
			500 * time.Millisecond,
			5 * time.Second,
			30 * time.Second,
			2 * time.Minute,
		}

		for _, duration := range durations {
			metrics.RecordReadingCompleted(ctx, "celtic_cross", duration)
		}
	})
}

func TestReadingMetrics_RecordReadingFailed(t *testing.T) {
	metrics, err := NewReadingMetrics()
	require.NoError(t, err)

	t.Run("record failure with error type", func(t *testing.T) {
		ctx := context.Background()

		assert.NotPanics(t, func() {
			metrics.RecordReadingFailed(ctx, "three_card", "upstream_generation", 3*time.Second)
		})
	})

	t.Run("record failures with different error types", func(t *testing.T) {
		ctx := context.Background()
		errorTypes := []string{
			"validation",
			"upstream_generation",
			"upstream_retrieval",
			"abandoned",
			"internal",
		}

		for i, errorType := range errorTypes {
			duration := time.Duration(i+1) * time.Second
			metrics.RecordReadingFailed(ctx, "celtic_cross", errorType, duration)
		}
	})
}

func TestReadingMetrics_ActiveReadingsGauge(t *testing.T) {
	metrics, err := NewReadingMetrics()
	require.NoError(t, err)

	t.Run("active readings gauge increments and decrements", func(t *testing.T) {
		ctx := context.Background()

		// Start (increments active gauge), complete (decrements).
		metrics.RecordReadingStarted(ctx, "three_card")
		metrics.RecordReadingCompleted(ctx, "three_card", 2*time.Second)
	})

	t.Run("active readings with failures", func(t *testing.T) {
		ctx := context.Background()

		metrics.RecordReadingStarted(ctx, "celtic_cross")
		metrics.RecordReadingFailed(ctx, "celtic_cross", "internal", time.Second)
	})
}

func TestReadingMetrics_ActiveGaugeBalancesAcrossSpreadResolution(t *testing.T) {
	reader := installManualReader(t)

	metrics, err := NewReadingMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	// A session requested as "auto" resolves to a concrete spread by the
	// time it completes; the gauge must still return to zero.
	metrics.RecordReadingStarted(ctx, "auto")
	metrics.RecordReadingCompleted(ctx, "three_card", 3*time.Second)

	metrics.RecordReadingStarted(ctx, "auto")
	metrics.RecordReadingFailed(ctx, "celtic_cross", "upstream_generation", time.Second)

	points := activeGaugePoints(t, reader)
	require.Len(t, points, 1, "increments and decrements must land on one stream")
	assert.Equal(t, int64(0), points[0].Value)
	assert.Equal(t, 0, points[0].Attributes.Len())
}

func TestReadingMetrics_ConcurrentRecording(t *testing.T) {
	metrics, err := NewReadingMetrics()
	require.NoError(t, err)

	t.Run("handle concurrent metric recording", func(t *testing.T) {
		ctx := context.Background()
		done := make(chan bool)

		for i := 0; i < 10; i++ {
			go func(id int) {
				spread := "three_card"
				if id%3 == 0 {
					spread = "celtic_cross"
				}

				metrics.RecordReadingStarted(ctx, spread)

				duration := time.Duration(id) * 100 * time.Millisecond
				if id%2 == 0 {
					metrics.RecordReadingCompleted(ctx, spread, duration)
				} else {
					metrics.RecordReadingFailed(ctx, spread, "upstream_generation", duration)
				}

				done <- true
			}(i)
		}

		for i := 0; i < 10; i++ {
			<-done
		}
	})
}
