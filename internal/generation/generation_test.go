package generation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/errors"
	"recruitflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []ai.PromptData
}

func (m *scriptedModel) Complete(ctx context.Context, operation string, data ai.PromptData) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, data)

	key := operation + ":" + data.Category + data.EmailType
	if err := m.failures[key]; err != nil {
		return "", err
	}
	return m.responses[key], nil
}

func sampleCandidate() (types.CandidateRecord, types.ScoreResult) {
	candidate := types.CandidateRecord{ID: "c1", Name: "Jane Doe", Skills: []string{"Python", "SQL"}}
	score := types.ScoreResult{
		CandidateID:    "c1",
		CandidateName:  "Jane Doe",
		OverallScore:   82.5,
		Recommendation: "Recommended",
		MatchedSkills:  []string{"Python", "SQL"},
		MissingSkills:  []string{"React", "Git", "AWS", "Docker"},
		Assessment:     &types.Assessment{Strengths: []string{"Data modelling", "Mentoring"}},
	}
	return candidate, score
}

func TestParseQuestions(t *testing.T) {
	response := "Here you go:\n```json\n[" +
		`{"question": "Explain Go interfaces", "difficulty": "Hard", "expected_answer_points": ["implicit"]},` +
		`{"question": "Describe a conflict", "category": "behavioral"},` +
		`{"question": "  "}` +
		"]\n```"

	questions, err := ParseQuestions(response, types.QuestionTechnical)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	assert.Equal(t, "Explain Go interfaces", questions[0].Question)
	assert.Equal(t, types.QuestionTechnical, questions[0].Category)
	assert.Equal(t, "hard", questions[0].Difficulty)
	assert.Equal(t, []string{"implicit"}, questions[0].ExpectedAnswerPoints)

	assert.Equal(t, "behavioral", questions[1].Category)
	assert.Equal(t, "medium", questions[1].Difficulty)
	assert.Equal(t, []string{}, questions[1].ExpectedAnswerPoints)
}

func TestParseQuestionsInvalid(t *testing.T) {
	for _, response := range []string{"no questions today", `[{"question": }]`} {
		_, err := ParseQuestions(response, types.QuestionBehavioral)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeInvalidModelOutput, errors.Code(err))
	}
}

func TestQuestionGenerator(t *testing.T) {
	candidate, score := sampleCandidate()
	model := &scriptedModel{
		responses: map[string]string{
			"interview:technical":     `[{"question": "Q1"}, {"question": "Q2"}, {"question": "Q3"}]`,
			"interview:role_specific": `[{"question": "Why this role?"}]`,
		},
		failures: map[string]error{
			"interview:behavioral": errors.NewExternalServiceError(errors.ErrCodeModelTimeout, "model call timed out", context.DeadlineExceeded),
		},
	}

	gen := NewQuestionGenerator(model, config.QuestionsConfig{Technical: 2, Behavioral: 3, RoleSpecific: 2}, errors.Discard())
	set, err := gen.Generate(context.Background(), candidate, score, types.DemoJob())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeModelTimeout, errors.Code(err))

	assert.Equal(t, "c1", set.CandidateID)
	assert.Len(t, set.Technical, 2, "capped at the requested count")
	assert.Empty(t, set.Behavioral)
	assert.NotNil(t, set.Behavioral)
	require.Len(t, set.RoleSpecific, 1)
	assert.Equal(t, types.QuestionRoleSpecific, set.RoleSpecific[0].Category)
	assert.Equal(t, 3, set.Total())

	require.Len(t, model.calls, 3)
	assert.Equal(t, 2, model.calls[0].Count)
	assert.Contains(t, model.calls[0].Candidate, "Missing Skills: React, Git, AWS, Docker")
	assert.Contains(t, model.calls[0].Candidate, "Strengths: Data modelling, Mentoring")
	assert.Contains(t, model.calls[0].Job, "Job Title: Senior Software Engineer")
}

func TestQuestionGeneratorSkipsZeroCounts(t *testing.T) {
	candidate, score := sampleCandidate()
	model := &scriptedModel{responses: map[string]string{"interview:technical": `[{"question": "Q1"}]`}}

	gen := NewQuestionGenerator(model, config.QuestionsConfig{Technical: 1}, nil)
	set, err := gen.Generate(context.Background(), candidate, score, types.DemoJob())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Total())
	assert.Len(t, model.calls, 1)
}

func TestParseEmail(t *testing.T) {
	tests := []struct {
		name            string
		response        string
		expectedSubject string
		expectedBody    string
	}{
		{
			name:            "marked subject and body",
			response:        "SUBJECT: Interview Invitation\n\nBODY:\nDear Jane,\n\nWelcome.\n",
			expectedSubject: "Interview Invitation",
			expectedBody:    "Dear Jane,\n\nWelcome.",
		},
		{
			name:            "indented markers",
			response:        "  SUBJECT: Hello\n  BODY: Dear Jane,\nSee you soon.",
			expectedSubject: "Hello",
			expectedBody:    "Dear Jane,\nSee you soon.",
		},
		{
			name:            "no markers uses first line",
			response:        "Your application\nDear Jane,\nThanks.",
			expectedSubject: "Your application",
			expectedBody:    "Dear Jane,\nThanks.",
		},
		{
			name:            "subject only",
			response:        "SUBJECT: Update",
			expectedSubject: "Update",
			expectedBody:    defaultBody,
		},
		{
			name:            "empty response",
			response:        "   ",
			expectedSubject: defaultSubject,
			expectedBody:    defaultBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := ParseEmail(tt.response)
			assert.Equal(t, tt.expectedSubject, subject)
			assert.Equal(t, tt.expectedBody, body)
		})
	}
}

func TestEmailDrafter(t *testing.T) {
	candidate, score := sampleCandidate()
	job := types.DemoJob()
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	t.Run("invitation from model", func(t *testing.T) {
		model := &scriptedModel{responses: map[string]string{
			"email:interview_invitation": "SUBJECT: Let's talk\nBODY:\nDear Jane,\nJoin us.",
		}}
		drafter := NewEmailDrafter(model, nil)
		drafter.now = func() time.Time { return now }

		draft := drafter.Draft(context.Background(), types.EmailInterviewInvitation, candidate, score, job)
		assert.Equal(t, "Let's talk", draft.Subject)
		assert.Equal(t, "Dear Jane,\nJoin us.", draft.Body)
		assert.Equal(t, "Monday, March 09, 2026", draft.InterviewDate)
		assert.Equal(t, "[To be scheduled]", draft.InterviewTime)
		assert.Equal(t, "jane.doe@email.com", draft.RecipientEmail)
		assert.False(t, draft.Fallback)

		require.Len(t, model.calls, 1)
		assert.Contains(t, model.calls[0].Details, "Suggested interview date: Monday, March 09, 2026")
		assert.Contains(t, model.calls[0].Details, "Candidate strengths: Data modelling, Mentoring")
	})

	t.Run("rejection falls back to template", func(t *testing.T) {
		model := &scriptedModel{failures: map[string]error{
			"email:rejection": errors.NewExternalServiceError(errors.ErrCodeModelUnavailable, "circuit open", nil),
		}}
		drafter := NewEmailDrafter(model, errors.Discard())

		draft := drafter.Draft(context.Background(), types.EmailRejection, candidate, score, job)
		assert.True(t, draft.Fallback)
		assert.Equal(t, "Update on Your Application - Senior Software Engineer Position", draft.Subject)
		assert.Contains(t, draft.Body, "Dear Jane Doe,")
		assert.Contains(t, draft.Body, "position at TechCorp Solutions")
		assert.True(t, strings.HasSuffix(draft.Body, "Best regards,\nHR Team"))
		assert.Empty(t, draft.InterviewDate)
	})

	t.Run("follow-up lists top missing skills", func(t *testing.T) {
		model := &scriptedModel{responses: map[string]string{"email:follow_up": "SUBJECT: More info\nBODY:\nPlease send details."}}
		drafter := NewEmailDrafter(model, nil)

		candidate := candidate
		candidate.Email = "jane@example.org"
		draft := drafter.Draft(context.Background(), types.EmailFollowUp, candidate, score, job)
		assert.Equal(t, "jane@example.org", draft.RecipientEmail)
		require.Len(t, model.calls, 1)
		assert.Equal(t, "Missing information: React, Git, AWS", model.calls[0].Details)
	})

	t.Run("no model", func(t *testing.T) {
		draft := NewEmailDrafter(nil, nil).Draft(context.Background(), types.EmailFollowUp, candidate, score, job)
		assert.True(t, draft.Fallback)
		assert.Equal(t, "Additional Information Needed - Senior Software Engineer Position", draft.Subject)
	})
}

func TestRecipientEmail(t *testing.T) {
	assert.Equal(t, "mary.ann.smith@email.com", RecipientEmail(types.CandidateRecord{Name: "Mary Ann Smith"}))
	assert.Equal(t, "x@y.io", RecipientEmail(types.CandidateRecord{Name: "X", Email: " x@y.io "}))
}

func TestParseEmailType(t *testing.T) {
	typ, err := ParseEmailType("Rejection")
	require.NoError(t, err)
	assert.Equal(t, types.EmailRejection, typ)

	_, err = ParseEmailType("welcome")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
