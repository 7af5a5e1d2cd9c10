package scoring

import (
	"context"
	stderrors "errors"
	"fmt"

	"recruitflow/internal/errors"
	"recruitflow/internal/types"
)

// Scorer combines the model assessment with the deterministic engine.
type Scorer struct {
	engine   *Engine
	assessor *Assessor
	fallback bool
	logger   *errors.Logger
}

// NewScorer creates a scorer. A nil assessor scores without model input.
// When fallback is set, failed assessments other than timeouts are replaced
// by FallbackAssessment instead of failing the candidate.
func NewScorer(engine *Engine, assessor *Assessor, fallback bool, logger *errors.Logger) *Scorer {
	return &Scorer{engine: engine, assessor: assessor, fallback: fallback, logger: logger}
}

// Engine returns the underlying engine.
func (s *Scorer) Engine() *Engine {
	return s.engine
}

// Score scores one candidate. A returned error is a per-candidate failure.
func (s *Scorer) Score(ctx context.Context, candidate types.CandidateRecord, job types.JobRequirement) (types.ScoreResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ScoreResult{}, timeoutError(err)
	}

	var assessment *types.Assessment
	if s.assessor != nil {
		var err error
		assessment, err = s.assessor.Assess(ctx, candidate, job)
		if err != nil {
			if isTimeout(ctx, err) || !s.fallback {
				return types.ScoreResult{}, withCandidate(err, candidate)
			}
			s.logger.Warn("Assessment failed, using default cultural fit",
				"candidate", candidate.Name,
				"error_code", errors.Code(err),
				"error", err.Error())
			assessment = FallbackAssessment()
		}
	}

	result := s.engine.Score(candidate, job, assessment)
	if assessment != nil && assessment.Reasoning == "" {
		assessment.Reasoning = fmt.Sprintf("Overall score: %.1f/100", result.OverallScore)
	}
	return result, nil
}

func isTimeout(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		errors.Code(err) == errors.ErrCodeModelTimeout
}

func timeoutError(cause error) error {
	return errors.NewExternalServiceError(errors.ErrCodeModelTimeout, "scoring deadline exceeded", cause)
}

func withCandidate(err error, candidate types.CandidateRecord) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.WithContext("candidate", candidate.Name)
	}
	return errors.NewExternalServiceError(errors.ErrCodeModelFailed, "assessment failed", err).
		WithContext("candidate", candidate.Name)
}
