package ecs

import (
	"bytes"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorWritesExposition(t *testing.T) {
	collector := NewMetricsCollector(MetricsCollectorOptions{
		DurationBuckets: []time.Duration{time.Millisecond, 10 * time.Millisecond},
	})

	collector.StageCompleted(StageSummary{
		Stage:           "movement",
		Tick:            42,
		Duration:        5 * time.Millisecond,
		SystemsTotal:    2,
		SystemsExecuted: 2,
		Batches:         1,
	})

	var buf bytes.Buffer
	require.NoError(t, collector.WriteMetrics(&buf))
	metrics := buf.String()
	require.Contains(t, metrics, "ecs_stage_duration_seconds_sum")
	require.Contains(t, metrics, "ecs_stage_systems_executed_total")
	require.Contains(t, metrics, `stage="movement"`)
}

func TestMetricsCollectorCountsErrors(t *testing.T) {
	collector := NewMetricsCollector(MetricsCollectorOptions{})

	collector.StageCompleted(StageSummary{Stage: "combat", Error: ErrWorkerPoolClosed})

	var buf bytes.Buffer
	require.NoError(t, collector.WriteMetrics(&buf))
	require.Contains(t, buf.String(), `ecs_stage_errors_total{stage="combat"} 1.0`)
}

func TestTraceExporterWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewTraceExporter(&buf, "ecs-test")

	exporter.StageCompleted(StageSummary{
		Stage:           "combat",
		Tick:            13,
		Duration:        10 * time.Millisecond,
		SystemsTotal:    1,
		SystemsExecuted: 1,
		ResourceReads:   []string{"clock"},
	})

	require.NotZero(t, buf.Len())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	require.Equal(t, "ecs-test", payload["service_name"])

	attrs, ok := payload["attributes"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "combat", attrs["stage"])
}

func TestLoggingObserverEmitsStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	observer := NewLoggingObserver(zerolog.New(&buf))

	observer.StageCompleted(StageSummary{
		Stage:           "movement",
		SystemsTotal:    1,
		SystemsExecuted: 1,
	})

	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	require.Equal(t, "movement", payload["stage"])
	require.Equal(t, "stage completed", payload["message"])
}

func TestCompositeObserverFansOut(t *testing.T) {
	var first, second int
	obs := NewCompositeObserver(
		observerFunc(func(StageSummary) { first++ }),
		nil,
		observerFunc(func(StageSummary) { second++ }),
	)

	obs.StageCompleted(StageSummary{Stage: "s"})
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)
}

type observerFunc func(StageSummary)

func (f observerFunc) StageCompleted(summary StageSummary) { f(summary) }
