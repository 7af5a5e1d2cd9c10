package generation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/errors"
	"recruitflow/internal/extraction"
	"recruitflow/internal/types"
)

const defaultDifficulty = "medium"

// QuestionGenerator prepares tailored interview questions per category.
type QuestionGenerator struct {
	model  ai.Completer
	counts config.QuestionsConfig
	logger *errors.Logger
}

// NewQuestionGenerator creates a generator asking for counts questions per category.
func NewQuestionGenerator(model ai.Completer, counts config.QuestionsConfig, logger *errors.Logger) *QuestionGenerator {
	return &QuestionGenerator{model: model, counts: counts, logger: logger}
}

// Generate prepares the question set of one shortlisted candidate. The set is
// always usable; a failed category is left empty and reported in the
// returned error.
func (g *QuestionGenerator) Generate(ctx context.Context, candidate types.CandidateRecord, score types.ScoreResult, job types.JobRequirement) (types.QuestionSet, error) {
	set := types.QuestionSet{
		CandidateID:   candidate.ID,
		CandidateName: candidate.Name,
		Technical:     []types.InterviewQuestion{},
		Behavioral:    []types.InterviewQuestion{},
		RoleSpecific:  []types.InterviewQuestion{},
	}

	data := ai.PromptData{
		Candidate: candidateContext(candidate, score),
		Job:       job.Summary(),
	}

	var failures []error
	for _, c := range []struct {
		category string
		count    int
		target   *[]types.InterviewQuestion
	}{
		{types.QuestionTechnical, g.counts.Technical, &set.Technical},
		{types.QuestionBehavioral, g.counts.Behavioral, &set.Behavioral},
		{types.QuestionRoleSpecific, g.counts.RoleSpecific, &set.RoleSpecific},
	} {
		if c.count <= 0 {
			continue
		}
		questions, err := g.generateCategory(ctx, data, c.category, c.count)
		if err != nil {
			g.logger.Warn("Question generation failed",
				"candidate", candidate.Name,
				"category", c.category,
				"error_code", errors.Code(err),
				"error", err.Error())
			failures = append(failures, err)
			continue
		}
		*c.target = questions
	}
	return set, stderrors.Join(failures...)
}

func (g *QuestionGenerator) generateCategory(ctx context.Context, data ai.PromptData, category string, count int) ([]types.InterviewQuestion, error) {
	data.Category = category
	data.Count = count
	response, err := g.model.Complete(ctx, config.OperationInterview, data)
	if err != nil {
		return nil, err
	}
	questions, err := ParseQuestions(response, category)
	if err != nil {
		return nil, err
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

type modelQuestion struct {
	Question             string   `json:"question"`
	Category             string   `json:"category"`
	Difficulty           string   `json:"difficulty"`
	ExpectedAnswerPoints []string `json:"expected_answer_points"`
}

// ParseQuestions decodes the JSON array of questions in a model response.
// Missing categories default to category and missing difficulties to medium.
// Entries without question text are dropped.
func ParseQuestions(response, category string) ([]types.InterviewQuestion, error) {
	raw, ok := extraction.ExtractJSONArray(response)
	if !ok {
		return nil, errors.NewExternalServiceError(errors.ErrCodeInvalidModelOutput,
			"question response contains no JSON array", nil).WithContext("category", category)
	}

	var parsed []modelQuestion
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, errors.NewExternalServiceError(errors.ErrCodeInvalidModelOutput,
			"question response is not a valid JSON array", err).WithContext("category", category)
	}

	questions := make([]types.InterviewQuestion, 0, len(parsed))
	for _, q := range parsed {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		iq := types.InterviewQuestion{
			Question:             text,
			Category:             strings.TrimSpace(q.Category),
			Difficulty:           strings.ToLower(strings.TrimSpace(q.Difficulty)),
			ExpectedAnswerPoints: q.ExpectedAnswerPoints,
		}
		if iq.Category == "" {
			iq.Category = category
		}
		if iq.Difficulty == "" {
			iq.Difficulty = defaultDifficulty
		}
		if iq.ExpectedAnswerPoints == nil {
			iq.ExpectedAnswerPoints = []string{}
		}
		questions = append(questions, iq)
	}
	return questions, nil
}
