package scoring

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/errors"
	"recruitflow/internal/extraction"
	"recruitflow/internal/types"
)

// Assessor asks the model for a qualitative review of a candidate.
type Assessor struct {
	model ai.Completer
}

// NewAssessor creates an assessor backed by model.
func NewAssessor(model ai.Completer) *Assessor {
	return &Assessor{model: model}
}

type modelAssessment struct {
	CulturalFitScore json.RawMessage `json:"cultural_fit_score"`
	Strengths        []string        `json:"strengths"`
	Weaknesses       []string        `json:"weaknesses"`
	Reasoning        string          `json:"reasoning"`
	KeyHighlights    []string        `json:"key_highlights"`
	Concerns         []string        `json:"concerns"`
}

// Assess returns the model's assessment of candidate for job. Model failures
// and unusable output are external service errors.
func (a *Assessor) Assess(ctx context.Context, candidate types.CandidateRecord, job types.JobRequirement) (*types.Assessment, error) {
	response, err := a.model.Complete(ctx, config.OperationAssess, ai.PromptData{
		Candidate: candidate.Profile(),
		Job:       job.Summary(),
	})
	if err != nil {
		return nil, err
	}
	return ParseAssessment(response)
}

// ParseAssessment decodes the JSON object embedded in a model response.
func ParseAssessment(response string) (*types.Assessment, error) {
	raw, ok := extraction.ExtractJSONObject(response)
	if !ok {
		return nil, errors.NewExternalServiceError(errors.ErrCodeInvalidModelOutput,
			"assessment response contains no JSON object", nil)
	}

	var ma modelAssessment
	if err := json.Unmarshal([]byte(raw), &ma); err != nil {
		return nil, errors.NewExternalServiceError(errors.ErrCodeInvalidModelOutput,
			"assessment response is not valid JSON", err)
	}

	assessment := &types.Assessment{
		Strengths:     cleanList(ma.Strengths),
		Weaknesses:    cleanList(ma.Weaknesses),
		Reasoning:     strings.TrimSpace(ma.Reasoning),
		KeyHighlights: cleanList(ma.KeyHighlights),
		Concerns:      cleanList(ma.Concerns),
	}
	if score, ok := parseScore(ma.CulturalFitScore); ok {
		assessment.CulturalFitScore = &score
	}
	return assessment, nil
}

// parseScore accepts a number or a numeric string such as "75" or "75/100".
func parseScore(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return clamp(n), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "/% "); i > 0 {
		s = s[:i]
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return clamp(n), true
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FallbackAssessment stands in for a failed assessment. It carries no
// cultural fit score so the engine default applies.
func FallbackAssessment() *types.Assessment {
	return &types.Assessment{
		Strengths:  []string{"Unable to analyze"},
		Weaknesses: []string{"Analysis unavailable"},
		Reasoning:  "Qualitative assessment unavailable; default cultural fit applied.",
		Fallback:   true,
	}
}
