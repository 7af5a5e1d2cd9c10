package observability

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	_ ai.Observer       = (*Manager)(nil)
	_ pipeline.Recorder = (*Manager)(nil)
)

func testSettings() Settings {
	s := SettingsFrom(nil, "test")
	s.ConsoleOutput = false
	return s
}

func newTestManager(t *testing.T, settings Settings) (*Manager, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := newManager(settings, nil, reader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func counterTotal(t *testing.T, data metricdata.Aggregation, match func(attribute.Set) bool) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		if match == nil || match(dp.Attributes) {
			total += dp.Value
		}
	}
	return total
}

func histogramCount(t *testing.T, data metricdata.Aggregation) uint64 {
	t.Helper()
	var count uint64
	switch h := data.(type) {
	case metricdata.Histogram[float64]:
		for _, dp := range h.DataPoints {
			count += dp.Count
		}
	case metricdata.Histogram[int64]:
		for _, dp := range h.DataPoints {
			count += dp.Count
		}
	default:
		t.Fatalf("expected a histogram, got %T", data)
	}
	return count
}

func hasValue(key, want string) func(attribute.Set) bool {
	return func(set attribute.Set) bool {
		v, ok := set.Value(attribute.Key(key))
		return ok && v.AsString() == want
	}
}

func TestObserveModelCall(t *testing.T) {
	m, reader := newTestManager(t, testSettings())
	ctx := context.Background()

	usage := &ai.TokenUsage{InputTokens: 120, OutputTokens: 30, TotalTokens: 150}
	m.ObserveModelCall(ctx, "extract", 800*time.Millisecond, usage, nil)
	m.ObserveModelCall(ctx, "assess", time.Second, nil, stderrors.New("quota exceeded"))

	got := collect(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, got["recruitflow_model_calls_total"], nil))
	assert.Equal(t, int64(1), counterTotal(t, got["recruitflow_model_errors_total"], hasValue("operation", "assess")))
	assert.Equal(t, uint64(2), histogramCount(t, got["recruitflow_model_call_duration_seconds"]))
	assert.Equal(t, uint64(3), histogramCount(t, got["recruitflow_model_token_usage"]), "input, output and total")
}

func TestObserveModelCallHonorsToggles(t *testing.T) {
	settings := testSettings()
	settings.AIMetrics.TrackDuration = false
	settings.AIMetrics.TrackTokenUsage = false
	m, reader := newTestManager(t, settings)

	m.ObserveModelCall(context.Background(), "extract", time.Second, &ai.TokenUsage{TotalTokens: 10}, nil)

	got := collect(t, reader)
	assert.Equal(t, int64(1), counterTotal(t, got["recruitflow_model_calls_total"], nil))
	assert.NotContains(t, got, "recruitflow_model_call_duration_seconds")
	assert.NotContains(t, got, "recruitflow_model_token_usage")
}

func TestPipelineRecorder(t *testing.T) {
	m, reader := newTestManager(t, testSettings())
	ctx := context.Background()

	m.RecordStage(ctx, "parse", "completed", 2*time.Second)
	m.RecordStage(ctx, "score", "failed", time.Second)
	m.RecordItem(ctx, "parse", true)
	m.RecordItem(ctx, "parse", false)
	m.RecordItem(ctx, "score", true)
	m.RecordScore(ctx, 91, "Highly Recommended")
	m.RecordScore(ctx, 55, "Consider")
	m.RecordRateLimitHit(ctx, "ip")

	got := collect(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, got["recruitflow_stage_runs_total"], nil))
	assert.Equal(t, int64(1), counterTotal(t, got["recruitflow_stage_runs_total"], hasValue("status", "failed")))
	assert.Equal(t, uint64(2), histogramCount(t, got["recruitflow_stage_duration_seconds"]))
	assert.Equal(t, int64(2), counterTotal(t, got["recruitflow_items_processed_total"], hasValue("stage", "parse")))
	assert.Equal(t, uint64(2), histogramCount(t, got["recruitflow_candidate_overall_score"]))
	assert.Equal(t, int64(1), counterTotal(t, got["recruitflow_recommendations_total"], hasValue("recommendation", "Consider")))
	assert.Equal(t, int64(1), counterTotal(t, got["recruitflow_rate_limit_hits_total"], nil))
}

func TestPipelineRecorderHonorsToggles(t *testing.T) {
	settings := testSettings()
	settings.PipelineMetrics.TrackScores = false
	settings.TrackRateLimits = false
	m, reader := newTestManager(t, settings)
	ctx := context.Background()

	m.RecordScore(ctx, 91, "Highly Recommended")
	m.RecordRateLimitHit(ctx, "api_key")
	m.RecordItem(ctx, "shortlist", true)

	got := collect(t, reader)
	assert.NotContains(t, got, "recruitflow_candidate_overall_score")
	assert.NotContains(t, got, "recruitflow_rate_limit_hits_total")
	assert.Equal(t, int64(1), counterTotal(t, got["recruitflow_items_processed_total"], nil))
}

func TestDisabledAndNilManager(t *testing.T) {
	settings := testSettings()
	settings.Enabled = false
	disabled, err := NewManager(settings, nil)
	require.NoError(t, err)

	var nilManager *Manager
	for name, m := range map[string]*Manager{"disabled": disabled, "nil": nilManager} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.False(t, m.Enabled())
			assert.NotPanics(t, func() {
				m.ObserveModelCall(ctx, "extract", time.Second, &ai.TokenUsage{}, nil)
				m.RecordStage(ctx, "parse", "completed", time.Second)
				m.RecordItem(ctx, "parse", true)
				m.RecordScore(ctx, 80, "Recommended")
				m.RecordRateLimitHit(ctx, "ip")
			})
			assert.Nil(t, m.PrometheusHandler())
			assert.NotNil(t, m.Tracer("test"))
			assert.NoError(t, m.Shutdown(ctx))

			handler := m.HTTPMiddleware()(nil)
			assert.Nil(t, handler, "disabled middleware passes the handler through")
		})
	}
}

func TestSettingsFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.ServiceVersion = ""
	cfg.Observability.Metrics.CollectionInterval = 0
	cfg.Observability.Prometheus.Enabled = true
	cfg.Observability.Prometheus.Port = "9999"

	s := SettingsFrom(cfg, "1.2.3")
	assert.Equal(t, "1.2.3", s.ServiceVersion)
	assert.Equal(t, 15*time.Second, s.Interval)
	assert.True(t, s.Prometheus.Enabled)
	assert.Equal(t, "9999", s.Prometheus.Port)
	assert.Equal(t, cfg.Observability.ServiceName, s.ServiceName)

	defaults := SettingsFrom(nil, "dev")
	assert.Equal(t, "recruitflow", defaults.ServiceName)
	assert.True(t, defaults.Enabled)
}

func TestSetupPrometheusExporter(t *testing.T) {
	reader, mux, err := SetupPrometheusExporter(PrometheusConfig{Enabled: true})
	require.NoError(t, err)
	assert.NotNil(t, reader)
	require.NotNil(t, mux)

	_, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "/metrics", pattern)
}
