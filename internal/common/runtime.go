package common

import (
	"context"
	"net/http"
	"slices"

	"recruitflow/internal/ai"
	"recruitflow/internal/artifacts"
	"recruitflow/internal/config"
	"recruitflow/internal/document"
	"recruitflow/internal/errors"
	"recruitflow/internal/observability"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/storage"
	"recruitflow/internal/types"
)

// RuntimeOptions selects the collaborators a command needs.
type RuntimeOptions struct {
	Version string
	// Offline skips the model service; extraction falls back to patterns.
	Offline bool
	// RunStore connects the run store (Postgres when enabled, memory otherwise).
	RunStore bool
}

// Runtime holds the collaborators shared by the commands of one process.
type Runtime struct {
	Config    *config.Config
	Logger    *errors.Logger
	Telemetry *observability.Manager
	Model     *ai.Service
	Bucket    *storage.Bucket
	Store     storage.RunStore

	converter *document.Converter
	closers   []func(context.Context) error
}

// NewRuntime sets up telemetry, the model service and the configured storage.
// A missing model API key is not an error: the pipeline runs without a model.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts RuntimeOptions) (*Runtime, error) {
	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		converter: document.NewConverter(cfg.Pipeline.AllowedFormats, cfg.Pipeline.MaxFileSize),
	}

	telemetry, err := observability.NewManager(observability.SettingsFrom(cfg, opts.Version), logger)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize observability", err)
	}
	rt.Telemetry = telemetry
	rt.closers = append(rt.closers, telemetry.Shutdown)

	if !opts.Offline {
		if err := rt.connectModel(ctx); err != nil {
			rt.Close(ctx)
			return nil, err
		}
	}

	if cfg.Storage.S3.Enabled {
		bucket, err := storage.NewBucket(ctx, cfg.Storage.S3, logger)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		rt.Bucket = bucket
	}

	if opts.RunStore {
		if err := rt.connectStore(ctx); err != nil {
			rt.Close(ctx)
			return nil, err
		}
	}
	return rt, nil
}

func (rt *Runtime) connectModel(ctx context.Context) error {
	model, err := ai.NewService(ctx, rt.Config, rt.Logger)
	if errors.Code(err) == errors.ErrCodeMissingAPIKey {
		rt.Logger.Warn("No model API key configured, running with pattern extraction and default assessments")
		return nil
	}
	if err != nil {
		return err
	}
	model.SetObserver(rt.Telemetry)
	rt.Model = model
	rt.closers = append(rt.closers, func(context.Context) error { return model.Close() })
	return nil
}

func (rt *Runtime) connectStore(ctx context.Context) error {
	if !rt.Config.Storage.Postgres.Enabled {
		rt.Store = storage.NewMemoryStore()
		return nil
	}
	store, err := storage.ConnectPostgres(ctx, rt.Config.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	rt.Store = store
	rt.closers = append(rt.closers, func(context.Context) error {
		store.Close()
		return nil
	})
	return nil
}

// Completer returns the model, or nil when none is configured.
func (rt *Runtime) Completer() ai.Completer {
	if rt.Model == nil {
		return nil
	}
	return rt.Model
}

// Options returns the stage capabilities for single-stage commands.
func (rt *Runtime) Options() (pipeline.Options, error) {
	return pipeline.NewOptions(rt.Config, rt.Completer(), rt.Telemetry, rt.Logger)
}

// Sequencer builds the pipeline sequencer.
func (rt *Runtime) Sequencer(observers ...pipeline.ProgressFunc) (*pipeline.Sequencer, error) {
	return pipeline.Build(rt.Config, rt.Completer(), rt.Telemetry, rt.Logger, observers...)
}

// Converter returns the document converter of the configured formats.
func (rt *Runtime) Converter() *document.Converter {
	return rt.converter
}

// FileProcessor returns a file processor that can read S3 sources.
func (rt *Runtime) FileProcessor() *FileProcessor {
	return NewFileProcessor(rt.Logger, rt.converter, rt.OpenBucket)
}

// OpenBucket returns the configured bucket, or a client for another bucket
// using the configured region and credentials.
func (rt *Runtime) OpenBucket(ctx context.Context, name string) (DocumentLister, error) {
	if rt.Bucket != nil && rt.Bucket.Name() == name {
		return rt.Bucket, nil
	}
	cfg := rt.Config.Storage.S3
	cfg.Bucket = name
	cfg.Prefix = ""
	return storage.NewBucket(ctx, cfg, rt.Logger)
}

// Sinks returns where the artifacts of a run are written: the output
// directory and, when S3 is enabled, the run's folder in the bucket.
func (rt *Runtime) Sinks(runID string) []artifacts.Sink {
	sinks := []artifacts.Sink{artifacts.LocalSink{Dir: rt.Config.Pipeline.OutputDir}}
	if rt.Bucket != nil {
		sinks = append(sinks, rt.Bucket.RunSink(runID))
	}
	return sinks
}

// WriteArtifacts writes the result files of a finished run to every sink.
func (rt *Runtime) WriteArtifacts(ctx context.Context, state pipeline.State, job types.JobRequirement) error {
	written, err := artifacts.Write(ctx, state, job, rt.Sinks(state.RunID)...)
	if err != nil {
		return err
	}
	rt.Logger.Info("Run artifacts written", "run_id", state.RunID, "files", len(written), "output_dir", rt.Config.Pipeline.OutputDir)
	return nil
}

// Track persists the progress of run in the run store, when one is connected.
func (rt *Runtime) Track(run *pipeline.Run) {
	if rt.Store == nil {
		return
	}
	run.Observe(storage.NewTracker(rt.Store, run.Snapshot, rt.Logger).Observe)
}

// LogProgress is a progress observer that logs every step.
func (rt *Runtime) LogProgress(event pipeline.Event) {
	rt.Logger.Info("Pipeline progress",
		"run_id", event.RunID,
		"step", string(event.Step),
		"progress", event.Progress,
		"message", event.Message)
}

// ServeMetrics starts the Prometheus scrape server when it is enabled.
func (rt *Runtime) ServeMetrics() {
	mux := rt.Telemetry.PrometheusHandler()
	if mux == nil {
		return
	}
	server := observability.StartPrometheusServer(mux, rt.Config.Observability.Prometheus.Port, rt.Logger)
	rt.closers = append(rt.closers, func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

// Close releases every collaborator in reverse order of creation.
func (rt *Runtime) Close(ctx context.Context) {
	for _, closeFn := range slices.Backward(rt.closers) {
		if err := closeFn(ctx); err != nil {
			rt.Logger.LogError(err, "Failed to release resource")
		}
	}
	rt.closers = nil
}

// LoadJob reads the job requirement file, or returns the demo job.
func LoadJob(path string, demo bool) (types.JobRequirement, error) {
	if demo {
		return types.DemoJob(), nil
	}
	if path == "" {
		return types.JobRequirement{}, errors.NewValidationError(errors.ErrCodeMissingJob,
			"a job requirement is needed: pass --job <file> or --demo-job", nil)
	}
	return types.LoadJobRequirement(path)
}
