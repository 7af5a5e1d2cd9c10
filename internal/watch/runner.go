package watch

import (
	"context"

	"recruitflow/internal/document"
	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/types"
)

// ResultFunc receives the outcome of the run started for one batch.
type ResultFunc func(ctx context.Context, state pipeline.State, err error)

// Runner runs the pipeline against a fixed job for each batch of files.
type Runner struct {
	ctx    context.Context
	seq    *pipeline.Sequencer
	job    types.JobRequirement
	result ResultFunc
	logger *errors.Logger
}

// NewRunner creates a runner. ctx bounds every run it starts.
func NewRunner(ctx context.Context, seq *pipeline.Sequencer, job types.JobRequirement, result ResultFunc, logger *errors.Logger) *Runner {
	return &Runner{ctx: ctx, seq: seq, job: job, result: result, logger: logger}
}

// HandleBatch is a BatchFunc. Files that left the inbox before they were read
// are skipped; files that cannot be read fail as items of the run.
func (r *Runner) HandleBatch(paths []string) {
	docs := make([]types.Document, 0, len(paths))
	for _, doc := range document.LoadFiles(paths...) {
		if errors.Code(doc.Err) == errors.ErrCodeFileNotFound {
			r.logger.LogError(doc.Err, "Skipping vanished inbox file", "file", doc.Name)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return
	}

	state, err := r.seq.Run(r.ctx, r.job, docs)
	if err != nil {
		r.logger.LogError(err, "Inbox run failed", "files", len(docs))
	}
	if r.result != nil {
		r.result(r.ctx, state, err)
	}
}
