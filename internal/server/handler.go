package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"

	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/shortlist"
	"recruitflow/internal/storage"
	"recruitflow/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "recruitflow.api"

// runRegistry holds the runs executing in this process.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*pipeline.Run
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*pipeline.Run)}
}

// add registers run unless a run with the same ID is already live.
func (rr *runRegistry) add(run *pipeline.Run) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if _, exists := rr.runs[run.ID()]; exists {
		return false
	}
	rr.runs[run.ID()] = run
	return true
}

func (rr *runRegistry) get(id string) (*pipeline.Run, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	run, ok := rr.runs[id]
	return run, ok
}

func (rr *runRegistry) remove(id string) {
	rr.mu.Lock()
	delete(rr.runs, id)
	rr.mu.Unlock()
}

func (rr *runRegistry) len() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.runs)
}

func (s *Server) tracer() trace.Tracer {
	return s.deps.Telemetry.Tracer(tracerName)
}

// failRequest records err on span and writes the matching error response.
func failRequest(w http.ResponseWriter, span trace.Span, title string, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.code", errors.Code(err)))
	writeAppError(w, title, err)
}

// createRunHandler starts a pipeline run in the background and answers 202.
func (s *Server) createRunHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer().Start(r.Context(), "api.runs.create")
	defer span.End()

	var req RunRequest
	if err := parseJSONRequest(r, &req); err != nil {
		failRequest(w, span, "Invalid request body", err)
		return
	}

	docs := make([]types.Document, 0, len(req.Documents))
	for i, payload := range req.Documents {
		if strings.TrimSpace(payload.Name) == "" {
			failRequest(w, span, "Invalid document", errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("document %d has no name", i+1), nil))
			return
		}
		docs = append(docs, types.Document{Name: payload.Name, Data: payload.Content})
	}

	if req.RunID != "" {
		if _, err := s.deps.Store.Get(ctx, req.RunID); err == nil {
			writeConflict(w, span, req.RunID)
			return
		}
	}

	run, err := s.deps.Sequencer.NewRunWithID(req.RunID, req.Job, docs)
	if err != nil {
		failRequest(w, span, "Run rejected", err)
		return
	}
	if !s.runs.add(run) {
		writeConflict(w, span, run.ID())
		return
	}
	run.Observe(storage.NewTracker(s.deps.Store, run.Snapshot, s.Logger).Observe)

	span.SetAttributes(
		attribute.String("run.id", run.ID()),
		attribute.String("job.title", req.Job.Title),
		attribute.Int("run.documents", len(docs)),
	)

	s.inflight.Add(1)
	go s.execute(run)

	s.Logger.Info("Run accepted", "run_id", run.ID(), "job", req.Job.Title, "documents", len(docs))
	writeJSON(w, http.StatusAccepted, RunAccepted{
		RunID:     run.ID(),
		Status:    string(pipeline.StepPending),
		StatusURL: "/runs/" + run.ID(),
		ResultURL: "/runs/" + run.ID() + "/result",
	})
}

// execute runs one accepted run to completion under the server's run context.
func (s *Server) execute(run *pipeline.Run) {
	defer s.inflight.Done()
	defer s.runs.remove(run.ID())

	state, err := run.Execute(s.runCtx)
	if err != nil {
		s.Logger.LogError(err, "Run failed", "run_id", run.ID())
	}
	if s.deps.OnResult == nil {
		return
	}
	if err := s.deps.OnResult(context.WithoutCancel(s.runCtx), state, run.Job()); err != nil {
		s.Logger.LogError(err, "Failed to handle run result", "run_id", run.ID())
	}
}

// writeConflict rejects a run whose ID is already taken.
func writeConflict(w http.ResponseWriter, span trace.Span, id string) {
	err := errors.NewValidationError(errors.ErrCodeInvalidRequest,
		fmt.Sprintf("run %s already exists", id), nil).WithContext("run_id", id)
	span.RecordError(err)
	writeJSON(w, http.StatusConflict, ErrorResponse{Error: "Run already exists", Message: err.Error(), Code: errors.Code(err)})
}

// lookupRun returns the live state of a run, or its stored record.
func (s *Server) lookupRun(ctx context.Context, id string) (report pipeline.Report, result *pipeline.State, err error) {
	if run, ok := s.runs.get(id); ok {
		snapshot := run.Snapshot()
		if snapshot.Completed() || snapshot.Failed() {
			return snapshot.Report(), &snapshot, nil
		}
		return snapshot.Report(), nil, nil
	}
	record, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return pipeline.Report{}, nil, err
	}
	return record.Report, record.Result, nil
}

// getRunHandler reports the progress of a run.
func (s *Server) getRunHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer().Start(r.Context(), "api.runs.get")
	defer span.End()

	id := r.PathValue("id")
	span.SetAttributes(attribute.String("run.id", id))

	report, _, err := s.lookupRun(ctx, id)
	if err != nil {
		failRequest(w, span, "Run not available", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// getRunResultHandler returns the final state of a finished run.
func (s *Server) getRunResultHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer().Start(r.Context(), "api.runs.result")
	defer span.End()

	id := r.PathValue("id")
	span.SetAttributes(attribute.String("run.id", id))

	report, result, err := s.lookupRun(ctx, id)
	if err != nil {
		failRequest(w, span, "Run not available", err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Run in progress",
			Message: fmt.Sprintf("run %s is at step %s (%d%%)", id, report.Step, report.Progress),
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// scoreHandler scores extracted candidates against a job synchronously.
func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer().Start(r.Context(), "api.score")
	defer span.End()

	var req ScoreRequest
	if err := parseJSONRequest(r, &req); err != nil {
		failRequest(w, span, "Invalid request body", err)
		return
	}
	if err := req.Job.Validate(); err != nil {
		failRequest(w, span, "Invalid job requirement", err)
		return
	}
	if len(req.Candidates) == 0 {
		failRequest(w, span, "Missing candidates", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"candidates field is required", nil))
		return
	}
	span.SetAttributes(
		attribute.String("job.title", req.Job.Title),
		attribute.Int("request.candidates", len(req.Candidates)),
	)

	resp := ScoreResponse{Scores: []types.ScoredCandidate{}, Errors: []pipeline.StageError{}}
	for _, candidate := range req.Candidates {
		result, err := s.deps.Scorer.Score(ctx, candidate, req.Job)
		s.deps.Telemetry.RecordItem(ctx, string(pipeline.StageScore), err == nil)
		if err != nil {
			s.Logger.LogError(err, "Candidate scoring failed", "candidate", candidate.Name)
			resp.Errors = append(resp.Errors, pipeline.StageError{
				Stage: pipeline.StageScore, Item: candidate.Name, Code: errors.Code(err), Reason: err.Error(),
			})
			continue
		}
		s.deps.Telemetry.RecordScore(ctx, result.OverallScore, result.Recommendation)
		resp.Scores = append(resp.Scores, types.ScoredCandidate{Candidate: candidate, Score: result})
	}

	span.SetAttributes(attribute.Int("response.scored", len(resp.Scores)))
	if len(resp.Scores) == 0 {
		failRequest(w, span, "Scoring failed", errors.NewExternalServiceError(errors.ErrCodeModelFailed,
			fmt.Sprintf("none of %d candidates could be scored", len(req.Candidates)), nil))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// shortlistHandler ranks scored candidates.
func (s *Server) shortlistHandler(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer().Start(r.Context(), "api.shortlist")
	defer span.End()

	var req ShortlistRequest
	if err := parseJSONRequest(r, &req); err != nil {
		failRequest(w, span, "Invalid request body", err)
		return
	}

	minimum := s.AppConfig.Pipeline.MinimumScore
	if req.MinimumScore != nil {
		minimum = *req.MinimumScore
	}
	maxCount := s.AppConfig.Pipeline.MaxCandidates
	if req.MaxCandidates != nil {
		maxCount = *req.MaxCandidates
	}
	if minimum < 0 || math.IsNaN(minimum) {
		failRequest(w, span, "Invalid shortlist limits", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("minimum_score cannot be negative, got %.1f", minimum), nil))
		return
	}

	result := shortlist.Rank(req.Scores, minimum, maxCount)
	span.SetAttributes(
		attribute.Int("request.scores", len(req.Scores)),
		attribute.Int("response.selected", result.Summary.CountSelected),
	)
	writeJSON(w, http.StatusOK, result)
}
