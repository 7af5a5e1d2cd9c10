package observability

import (
	"context"
	"fmt"
	"time"

	"recruitflow/internal/ai"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Metrics holds the application instruments.
type Metrics struct {
	// Model calls
	ModelCallDuration metric.Float64Histogram
	ModelCalls        metric.Int64Counter
	ModelErrors       metric.Int64Counter
	ModelTokens       metric.Int64Histogram

	// Pipeline
	StageDuration   metric.Float64Histogram
	StageRuns       metric.Int64Counter
	ItemsProcessed  metric.Int64Counter
	CandidateScores metric.Float64Histogram
	Recommendations metric.Int64Counter

	RateLimitHits metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.ModelCallDuration, err = meter.Float64Histogram(
		"recruitflow_model_call_duration_seconds",
		metric.WithDescription("Time spent waiting for model responses"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create model call duration metric: %w", err)
	}
	if m.ModelCalls, err = meter.Int64Counter(
		"recruitflow_model_calls_total",
		metric.WithDescription("Total number of model calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create model call count metric: %w", err)
	}
	if m.ModelErrors, err = meter.Int64Counter(
		"recruitflow_model_errors_total",
		metric.WithDescription("Total number of failed model calls"),
	); err != nil {
		return nil, fmt.Errorf("failed to create model error count metric: %w", err)
	}
	if m.ModelTokens, err = meter.Int64Histogram(
		"recruitflow_model_token_usage",
		metric.WithDescription("Token usage of model calls (input, output, total)"),
		metric.WithUnit("tokens"),
	); err != nil {
		return nil, fmt.Errorf("failed to create model token usage metric: %w", err)
	}

	if m.StageDuration, err = meter.Float64Histogram(
		"recruitflow_stage_duration_seconds",
		metric.WithDescription("Duration of pipeline stages"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create stage duration metric: %w", err)
	}
	if m.StageRuns, err = meter.Int64Counter(
		"recruitflow_stage_runs_total",
		metric.WithDescription("Pipeline stages executed, by stage and status"),
	); err != nil {
		return nil, fmt.Errorf("failed to create stage run metric: %w", err)
	}
	if m.ItemsProcessed, err = meter.Int64Counter(
		"recruitflow_items_processed_total",
		metric.WithDescription("Documents and candidates processed, by stage and outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create processed items metric: %w", err)
	}
	if m.CandidateScores, err = meter.Float64Histogram(
		"recruitflow_candidate_overall_score",
		metric.WithDescription("Overall candidate scores"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 100),
	); err != nil {
		return nil, fmt.Errorf("failed to create candidate score metric: %w", err)
	}
	if m.Recommendations, err = meter.Int64Counter(
		"recruitflow_recommendations_total",
		metric.WithDescription("Scored candidates by recommendation"),
	); err != nil {
		return nil, fmt.Errorf("failed to create recommendation metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"recruitflow_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}
	return m, nil
}

func (m *Manager) recording() bool {
	return m.Enabled() && m.metrics != nil
}

// ObserveModelCall records one model call. It implements ai.Observer.
func (m *Manager) ObserveModelCall(ctx context.Context, operation string, duration time.Duration, usage *ai.TokenUsage, err error) {
	if !m.recording() || !m.settings.AIMetrics.Enabled {
		return
	}

	attrs := successAttrs("operation", operation, err == nil)
	opt := metric.WithAttributes(attrs...)

	_, span := m.Tracer("recruitflow.ai").Start(ctx, "ai."+operation,
		oteltrace.WithTimestamp(time.Now().Add(-duration)),
		oteltrace.WithAttributes(attrs...))
	defer span.End()

	m.metrics.ModelCalls.Add(ctx, 1, opt)
	if m.settings.AIMetrics.TrackDuration {
		m.metrics.ModelCallDuration.Record(ctx, duration.Seconds(), opt)
	}
	if err != nil {
		m.metrics.ModelErrors.Add(ctx, 1, opt)
		span.RecordError(err)
	}

	if usage == nil {
		return
	}
	span.SetAttributes(
		attribute.Int64("ai.tokens.input", usage.InputTokens),
		attribute.Int64("ai.tokens.output", usage.OutputTokens),
		attribute.Int64("ai.tokens.total", usage.TotalTokens),
	)
	if !m.settings.AIMetrics.TrackTokenUsage {
		return
	}
	for _, tokens := range []struct {
		kind  string
		value int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	} {
		m.metrics.ModelTokens.Record(ctx, tokens.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", tokens.kind),
		))
	}
}

// RecordStage records one executed pipeline stage.
func (m *Manager) RecordStage(ctx context.Context, stage string, status string, duration time.Duration) {
	if !m.recording() || !m.settings.PipelineMetrics.Enabled {
		return
	}
	opt := metric.WithAttributes(attribute.String("stage", stage), attribute.String("status", status))
	m.metrics.StageRuns.Add(ctx, 1, opt)
	if m.settings.PipelineMetrics.TrackStageDuration {
		m.metrics.StageDuration.Record(ctx, duration.Seconds(), opt)
	}
}

// RecordItem records one processed document or candidate.
func (m *Manager) RecordItem(ctx context.Context, stage string, success bool) {
	if !m.recording() || !m.settings.PipelineMetrics.Enabled {
		return
	}
	m.metrics.ItemsProcessed.Add(ctx, 1, metric.WithAttributes(successAttrs("stage", stage, success)...))
}

// RecordScore records the overall score of one candidate.
func (m *Manager) RecordScore(ctx context.Context, score float64, recommendation string) {
	if !m.recording() || !m.settings.PipelineMetrics.Enabled || !m.settings.PipelineMetrics.TrackScores {
		return
	}
	m.metrics.CandidateScores.Record(ctx, score)
	m.metrics.Recommendations.Add(ctx, 1, metric.WithAttributes(attribute.String("recommendation", recommendation)))
}

// RecordRateLimitHit records a rejected API request.
func (m *Manager) RecordRateLimitHit(ctx context.Context, limiter string) {
	if !m.recording() || !m.settings.TrackRateLimits {
		return
	}
	m.metrics.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiter)))
}
