package observability

import (
	"time"

	"recruitflow/internal/config"
)

// Settings is the flattened observability configuration of one process.
type Settings struct {
	ServiceName     string
	ServiceVersion  string
	ServiceInstance string
	Enabled         bool
	ConsoleOutput   bool
	PrettyPrint     bool
	SampleRate      float64
	Interval        time.Duration

	AIMetrics       config.AIOperationsMetricsConfig
	PipelineMetrics config.PipelineMetricsConfig
	TrackRateLimits bool
	Prometheus      PrometheusConfig
	OTLP            config.OTLPConfig
}

// SettingsFrom derives settings from the application config. The application
// version is used when no service version is configured.
func SettingsFrom(cfg *config.Config, version string) Settings {
	if cfg == nil {
		return Settings{
			ServiceName:     "recruitflow",
			ServiceVersion:  version,
			ServiceInstance: "recruitflow-1",
			Enabled:         true,
			ConsoleOutput:   true,
			PrettyPrint:     true,
			SampleRate:      1.0,
			Interval:        15 * time.Second,
			AIMetrics:       config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true},
			PipelineMetrics: config.PipelineMetricsConfig{Enabled: true, TrackStageDuration: true, TrackScores: true},
			TrackRateLimits: true,
			Prometheus:      PrometheusConfig{Endpoint: "/metrics", Port: "9090"},
		}
	}

	obs := cfg.Observability
	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}
	interval := obs.Metrics.CollectionInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return Settings{
		ServiceName:     obs.ServiceName,
		ServiceVersion:  serviceVersion,
		ServiceInstance: obs.ServiceInstance,
		Enabled:         obs.Enabled,
		ConsoleOutput:   obs.ConsoleOutput,
		PrettyPrint:     obs.Console.PrettyPrint,
		SampleRate:      obs.SampleRate,
		Interval:        interval,
		AIMetrics:       obs.CustomMetrics.AIOperations,
		PipelineMetrics: obs.CustomMetrics.PipelineMetrics,
		TrackRateLimits: obs.CustomMetrics.TrackRateLimits,
		Prometheus: PrometheusConfig{
			Enabled:  obs.Prometheus.Enabled,
			Endpoint: obs.Prometheus.Endpoint,
			Port:     obs.Prometheus.Port,
		},
		OTLP: obs.OTLP,
	}
}
