package pipeline

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"recruitflow/internal/errors"
	"recruitflow/internal/types"

	"github.com/google/uuid"
)

// Extractor turns one document into a candidate record.
type Extractor interface {
	Extract(ctx context.Context, doc types.Document) (types.CandidateRecord, error)
}

// Scorer scores one candidate against a job.
type Scorer interface {
	Score(ctx context.Context, candidate types.CandidateRecord, job types.JobRequirement) (types.ScoreResult, error)
}

// Ranker selects the shortlist from scored candidates.
type Ranker interface {
	Rank(scored []types.ScoredCandidate) types.Shortlist
}

// QuestionGenerator prepares interview questions for a shortlisted candidate.
type QuestionGenerator interface {
	Generate(ctx context.Context, candidate types.CandidateRecord, score types.ScoreResult, job types.JobRequirement) (types.QuestionSet, error)
}

// EmailDrafter drafts one candidate email.
type EmailDrafter interface {
	Draft(ctx context.Context, emailType types.EmailType, candidate types.CandidateRecord, score types.ScoreResult, job types.JobRequirement) types.EmailDraft
}

// Recorder receives pipeline measurements.
type Recorder interface {
	RecordStage(ctx context.Context, stage string, status string, duration time.Duration)
	RecordItem(ctx context.Context, stage string, success bool)
	RecordScore(ctx context.Context, score float64, recommendation string)
}

// Options wires the capabilities of a Sequencer. Extractor, Scorer and
// Ranker are required; Questions and Emails are optional.
type Options struct {
	Extractor Extractor
	Scorer    Scorer
	Ranker    Ranker
	Questions QuestionGenerator
	Emails    EmailDrafter

	Workers     int
	ItemTimeout time.Duration

	Recorder Recorder
	Logger   *errors.Logger
}

// Sequencer runs the parse, score, shortlist and generate stages in order.
// A Sequencer is immutable and may start any number of runs.
type Sequencer struct {
	opts      Options
	observers []ProgressFunc
}

const defaultItemTimeout = 90 * time.Second

// New creates a sequencer. Observers receive the events of every run.
func New(opts Options, observers ...ProgressFunc) (*Sequencer, error) {
	if opts.Extractor == nil || opts.Scorer == nil || opts.Ranker == nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"pipeline requires an extractor, a scorer and a ranker", nil)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = defaultItemTimeout
	}
	return &Sequencer{opts: opts, observers: observers}, nil
}

// NewRun validates the inputs of a run and prepares it without starting it.
// Invalid inputs are fatal and no stage runs.
func (s *Sequencer) NewRun(job types.JobRequirement, docs []types.Document, observers ...ProgressFunc) (*Run, error) {
	return s.NewRunWithID("", job, docs, observers...)
}

// NewRunWithID is NewRun with a caller-chosen run ID, used when the ID was
// assigned upstream such as in a queued request. An empty id gets a new UUID.
func (s *Sequencer) NewRunWithID(id string, job types.JobRequirement, docs []types.Document, observers ...ProgressFunc) (*Run, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "no documents supplied", nil)
	}

	if id == "" {
		id = uuid.NewString()
	}
	return &Run{
		id:        id,
		seq:       s,
		job:       job,
		docs:      docs,
		observers: append(append([]ProgressFunc(nil), s.observers...), observers...),
		logger:    s.opts.Logger.With("run_id", id),
		state:     newState(id, job, len(docs)),
	}, nil
}

// Run is a convenience for NewRun followed by Execute.
func (s *Sequencer) Run(ctx context.Context, job types.JobRequirement, docs []types.Document, observers ...ProgressFunc) (State, error) {
	run, err := s.NewRun(job, docs, observers...)
	if err != nil {
		return State{}, err
	}
	return run.Execute(ctx)
}

// Run is one execution of the pipeline over one job and one document batch.
type Run struct {
	id        string
	seq       *Sequencer
	job       types.JobRequirement
	docs      []types.Document
	observers []ProgressFunc
	logger    *errors.Logger

	mu    sync.RWMutex
	state State
	once  sync.Once
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Job returns the job requirement of the run.
func (r *Run) Job() types.JobRequirement {
	return r.job
}

// Observe adds an observer to the run. Observers added after Execute has
// started may miss events.
func (r *Run) Observe(fn ProgressFunc) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Snapshot returns a copy of the current state. It is safe to call from any
// goroutine while the run executes.
func (r *Run) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Clone()
}

type stageFunc func(ctx context.Context, in State) (State, error)

// Execute runs every stage in order and returns the final state. A failed
// stage stops the run; the returned error names that stage. A run executes
// at most once; later calls return the current state.
func (r *Run) Execute(ctx context.Context) (State, error) {
	err := errors.NewInternalError(errors.ErrCodeStageFailed, "run already executed", nil)
	r.once.Do(func() {
		err = r.execute(ctx)
	})
	return r.Snapshot(), err
}

func (r *Run) execute(ctx context.Context) error {
	r.mu.Lock()
	r.state.StartedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info("Pipeline run started", "job", r.job.Title, "documents", len(r.docs))
	r.advance("", StepStarted, fmt.Sprintf("Processing %d documents", len(r.docs)))

	stages := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageParse, r.parse},
		{StageScore, r.score},
		{StageShortlist, r.shortlist},
		{StageGenerate, r.generate},
	}

	for _, st := range stages {
		r.setStatus(st.stage, StatusRunning)
		in := r.Snapshot()

		start := time.Now()
		out, err := st.fn(ctx, in)
		duration := time.Since(start)

		status := StatusDone
		if err != nil {
			status = StatusFailed
			out.Errors = append(out.Errors, StageError{Stage: st.stage, Code: errors.Code(err), Reason: err.Error()})
		}
		r.commit(st.stage, status, out)
		if rec := r.seq.opts.Recorder; rec != nil {
			rec.RecordStage(ctx, string(st.stage), string(status), duration)
		}

		if err != nil {
			r.finish(StepFailed, fmt.Sprintf("%s stage failed: %v", st.stage, err))
			r.logger.LogError(err, "Pipeline stage failed", "stage", string(st.stage))
			return errors.NewInternalError(errors.ErrCodeStageFailed,
				fmt.Sprintf("%s stage failed", st.stage), err).
				WithContext("stage", string(st.stage)).
				WithContext("run_id", r.id)
		}
		r.logger.Debug("Pipeline stage completed", "stage", string(st.stage), "duration_ms", duration.Milliseconds())
	}

	final := r.Snapshot()
	r.finish(StepCompleted, fmt.Sprintf("Shortlisted %d of %d candidates", len(final.Shortlist.Entries), len(final.Scores)))
	r.logger.Info("Pipeline run completed",
		"parsed", len(final.Candidates),
		"scored", len(final.Scores),
		"shortlisted", len(final.Shortlist.Entries),
		"errors", len(final.Errors),
		"warnings", len(final.Warnings))
	return nil
}

func (r *Run) setStatus(stage Stage, status Status) {
	r.mu.Lock()
	r.state.Stages = maps.Clone(r.state.Stages)
	r.state.Stages[stage] = status
	r.state.CurrentStage = stage
	r.mu.Unlock()
}

// commit publishes a stage's output together with its status delta. Fields
// owned by the run itself are kept from the current state.
func (r *Run) commit(stage Stage, status Status, out State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out.RunID = r.state.RunID
	out.JobTitle = r.state.JobTitle
	out.Documents = r.state.Documents
	out.StartedAt = r.state.StartedAt
	out.Step = r.state.Step
	out.Progress = r.state.Progress
	out.CurrentStage = stage
	out.Stages = maps.Clone(r.state.Stages)
	out.Stages[stage] = status
	r.state = out
}

// advance records that the run reached step and notifies observers.
func (r *Run) advance(stage Stage, step Step, message string) {
	r.mu.Lock()
	r.state.Step = step
	if p := step.Progress(); p >= 0 {
		r.state.Progress = p
	}
	event := Event{
		RunID:    r.id,
		Stage:    stage,
		Step:     step,
		Progress: r.state.Progress,
		Message:  message,
		Time:     time.Now(),
	}
	observers := r.observers
	r.mu.Unlock()

	for _, observe := range observers {
		observe(event)
	}
}

func (r *Run) finish(step Step, message string) {
	r.mu.Lock()
	r.state.FinishedAt = time.Now()
	stage := r.state.CurrentStage
	r.mu.Unlock()
	r.advance(stage, step, message)
}
