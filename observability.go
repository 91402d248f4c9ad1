package ecs

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// NewCompositeObserver fans stage summaries out to several observers.
func NewCompositeObserver(observers ...StageObserver) StageObserver {
	kept := make([]StageObserver, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	switch len(kept) {
	case 0:
		return noopObserver{}
	case 1:
		return kept[0]
	default:
		return compositeObserver{observers: kept}
	}
}

type compositeObserver struct {
	observers []StageObserver
}

func (c compositeObserver) StageCompleted(summary StageSummary) {
	for _, observer := range c.observers {
		observer.StageCompleted(summary)
	}
}

// NewLoggingObserver emits one structured log event per stage run.
func NewLoggingObserver(logger zerolog.Logger) StageObserver {
	return loggingObserver{logger: logger}
}

type loggingObserver struct {
	logger zerolog.Logger
}

func (o loggingObserver) StageCompleted(summary StageSummary) {
	event := o.logger.Info()
	if summary.Error != nil {
		event = o.logger.Error().Err(summary.Error)
	}
	event.
		Str("stage", summary.Stage).
		Uint64("tick", summary.Tick).
		Dur("duration", summary.Duration).
		Int("systems_total", summary.SystemsTotal).
		Int("systems_executed", summary.SystemsExecuted).
		Int("batches", summary.Batches).
		Strs("component_reads", componentTypesToStrings(summary.ComponentReads)).
		Strs("component_writes", componentTypesToStrings(summary.ComponentWrites)).
		Strs("resource_reads", summary.ResourceReads).
		Strs("resource_writes", summary.ResourceWrites).
		Msg("stage completed")
}

// MetricsCollectorOptions configures the stage metrics collector.
type MetricsCollectorOptions struct {
	// Writer, when set, receives a fresh exposition after every observation.
	Writer          io.Writer
	DurationBuckets []time.Duration
}

// MetricsCollector aggregates stage summaries into a Prometheus-style text
// exposition.
type MetricsCollector struct {
	options MetricsCollectorOptions
	mu      sync.Mutex
	samples map[string]*metricsSample
}

type metricsSample struct {
	durationSum   float64
	durationCount float64
	buckets       []float64
	executed      float64
	errors        float64
}

// NewMetricsCollector constructs a collector keyed by stage name.
func NewMetricsCollector(opts MetricsCollectorOptions) *MetricsCollector {
	return &MetricsCollector{
		options: opts,
		samples: make(map[string]*metricsSample),
	}
}

func (c *MetricsCollector) StageCompleted(summary StageSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample, ok := c.samples[summary.Stage]
	if !ok {
		sample = &metricsSample{}
		if buckets := c.options.DurationBuckets; len(buckets) > 0 {
			sample.buckets = make([]float64, len(buckets))
		}
		c.samples[summary.Stage] = sample
	}
	durSeconds := summary.Duration.Seconds()
	sample.durationSum += durSeconds
	sample.durationCount++
	for i := range sample.buckets {
		if durSeconds <= c.options.DurationBuckets[i].Seconds() {
			sample.buckets[i]++
		}
	}
	sample.executed += float64(summary.SystemsExecuted)
	if summary.Error != nil {
		sample.errors++
	}

	if writer := c.options.Writer; writer != nil {
		_ = c.writeMetricsLocked(writer)
	}
}

// WriteMetrics renders the current exposition to w.
func (c *MetricsCollector) WriteMetrics(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeMetricsLocked(w)
}

func (c *MetricsCollector) writeMetricsLocked(w io.Writer) error {
	if w == nil {
		return nil
	}
	var buf bytes.Buffer
	keys := make([]string, 0, len(c.samples))
	for key := range c.samples {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buf.WriteString("# HELP ecs_stage_duration_seconds Stage execution duration.\n")
	buf.WriteString("# TYPE ecs_stage_duration_seconds summary\n")
	for _, key := range keys {
		sample := c.samples[key]
		labels := fmt.Sprintf("stage=%q", key)
		fmt.Fprintf(&buf, "ecs_stage_duration_seconds_sum{%s} %f\n", labels, sample.durationSum)
		fmt.Fprintf(&buf, "ecs_stage_duration_seconds_count{%s} %f\n", labels, sample.durationCount)
		for i, bucket := range sample.buckets {
			le := c.options.DurationBuckets[i].Seconds()
			fmt.Fprintf(&buf, "ecs_stage_duration_seconds_bucket{%s,le=\"%.6f\"} %f\n", labels, le, bucket)
		}
	}

	buf.WriteString("# HELP ecs_stage_systems_executed_total Systems executed per stage.\n")
	buf.WriteString("# TYPE ecs_stage_systems_executed_total counter\n")
	for _, key := range keys {
		fmt.Fprintf(&buf, "ecs_stage_systems_executed_total{stage=%q} %f\n", key, c.samples[key].executed)
	}

	buf.WriteString("# HELP ecs_stage_errors_total Stage error count.\n")
	buf.WriteString("# TYPE ecs_stage_errors_total counter\n")
	for _, key := range keys {
		fmt.Fprintf(&buf, "ecs_stage_errors_total{stage=%q} %f\n", key, c.samples[key].errors)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

var _ StageObserver = (*MetricsCollector)(nil)

// TraceExporter writes one JSON line per stage run, suitable for ingestion
// by span-based tooling.
type TraceExporter struct {
	mu          sync.Mutex
	writer      io.Writer
	serviceName string
}

// NewTraceExporter constructs an exporter targeting w.
func NewTraceExporter(w io.Writer, serviceName string) *TraceExporter {
	if serviceName == "" {
		serviceName = "ecs-stage"
	}
	return &TraceExporter{writer: w, serviceName: serviceName}
}

func (e *TraceExporter) StageCompleted(summary StageSummary) {
	if e.writer == nil {
		return
	}
	span := map[string]any{
		"service_name": e.serviceName,
		"name":         fmt.Sprintf("stage:%s", summary.Stage),
		"timestamp":    time.Now().UnixNano(),
		"duration_ms":  float64(summary.Duration) / float64(time.Millisecond),
		"attributes": map[string]any{
			"stage":            summary.Stage,
			"tick":             summary.Tick,
			"batches":          summary.Batches,
			"systems_total":    summary.SystemsTotal,
			"systems_executed": summary.SystemsExecuted,
			"component_reads":  summary.ComponentReads,
			"component_writes": summary.ComponentWrites,
			"resource_reads":   summary.ResourceReads,
			"resource_writes":  summary.ResourceWrites,
		},
	}
	if summary.Error != nil {
		span["error"] = summary.Error.Error()
	}
	payload, err := json.Marshal(span)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.writer.Write(append(payload, '\n'))
}

var _ StageObserver = (*TraceExporter)(nil)

func componentTypesToStrings(types []ComponentType) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
