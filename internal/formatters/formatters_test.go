package formatters

import (
	"encoding/json"
	"testing"
	"time"

	"recruitflow/internal/pipeline"
	"recruitflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScore(name string, overall float64) types.ScoreResult {
	return types.ScoreResult{
		CandidateID:      name + "-id",
		CandidateName:    name,
		SkillsMatchScore: 80,
		ExperienceScore:  100,
		EducationScore:   100,
		CulturalFitScore: 70,
		OverallScore:     overall,
		MatchedSkills:    []string{"python", "sql"},
		MissingSkills:    []string{"react"},
		Recommendation:   "Recommended",
	}
}

func sampleState() pipeline.State {
	jane := types.CandidateRecord{ID: "jane-id", Name: "Jane | Doe", Email: "jane@example.com", ExperienceYears: 6, Skills: []string{"python"}}
	return pipeline.State{
		RunID:    "run-1",
		JobTitle: "Software Engineer",
		Stages: map[pipeline.Stage]pipeline.Status{
			pipeline.StageParse:     pipeline.StatusDone,
			pipeline.StageScore:     pipeline.StatusDone,
			pipeline.StageShortlist: pipeline.StatusDone,
			pipeline.StageGenerate:  pipeline.StatusDone,
		},
		Step:       pipeline.StepCompleted,
		Progress:   100,
		Documents:  2,
		Candidates: []types.CandidateRecord{jane},
		Scores:     []types.ScoredCandidate{{Candidate: jane, Score: sampleScore("Jane | Doe", 78.5)}},
		Shortlist: types.Shortlist{
			Entries: []types.ShortlistEntry{{Rank: 1, Candidate: jane, Score: sampleScore("Jane | Doe", 78.5)}},
			Summary: types.ShortlistSummary{CountConsidered: 1, CountPassing: 1, CountSelected: 1, MinThreshold: 60, MaxCount: 10, MinScore: 78.5, MaxScore: 78.5, MeanScore: 78.5},
		},
		Questions: []types.QuestionSet{{
			CandidateID:   "jane-id",
			CandidateName: "Jane | Doe",
			Technical:     []types.InterviewQuestion{{Question: "Explain Python generators.", Category: types.QuestionTechnical, Difficulty: "medium"}},
		}},
		Emails: []types.EmailDraft{{
			CandidateName:  "Jane | Doe",
			RecipientEmail: "jane@example.com",
			Type:           types.EmailInterviewInvitation,
			Subject:        "Interview for Software Engineer",
			Body:           "Dear Jane,",
		}},
		Warnings:  []pipeline.StageError{{Stage: pipeline.StageParse, Item: "broken.pdf", Reason: "no text"}},
		StartedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewFormatterRegistry()
	state := sampleState()

	tests := []struct {
		name     string
		data     any
		format   string
		contains []string
	}{
		{"run text", state, "text", []string{"=== RUN STATUS ===", "Step: completed (100%)", "#1 Jane | Doe: 78.5 (Recommended)", "Explain Python generators.", "Subject: Interview for Software Engineer", "=== WARNINGS ==="}},
		{"run markdown", state, "markdown", []string{"# Recruitment Run: Software Engineer", "| 1 | Jane \\| Doe | 78.5 |", "## Interview Questions", "## Email Drafts", "## Warnings"}},
		{"report text", state.Report(), "text", []string{"Run: run-1", "Documents: 2, parsed: 1, scored: 1, shortlisted: 1"}},
		{"report markdown", state.Report(), "markdown", []string{"# Run run-1", "| parse | done |"}},
		{"candidates text", state.Candidates, "text", []string{"PARSED CANDIDATES (1)", "<jane@example.com>", "Experience: 6.0 years"}},
		{"candidates markdown", state.Candidates, "markdown", []string{"# Parsed Candidates", "| Jane \\| Doe | jane@example.com |"}},
		{"scores text", state.Scores, "text", []string{"CANDIDATE SCORES (1)", "Missing: react"}},
		{"scores markdown", state.Scores, "markdown", []string{"# Candidate Scores", "|---|", "| Jane \\| Doe | 78.5 | 80.0 |"}},
		{"shortlist text", state.Shortlist, "text", []string{"Selected 1 of 1 passing", "mean 78.5"}},
		{"shortlist markdown", state.Shortlist, "markdown", []string{"# Shortlist", "Selected **1** of 1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := registry.Format(tt.data, tt.format)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestJSONFormatterHandlesAnyType(t *testing.T) {
	out, err := GlobalRegistry.Format(sampleState().Report(), "json")
	require.NoError(t, err)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 1, report.Shortlisted)
}

func TestEmptyShortlist(t *testing.T) {
	out, err := GlobalRegistry.Format(types.Shortlist{}, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "No candidates met the threshold.")
}

func TestUnknownFormat(t *testing.T) {
	_, err := GlobalRegistry.Format(sampleState(), "xml")
	assert.EqualError(t, err, "no formatter found for format 'xml' and type 'State'")

	_, err = GlobalRegistry.Format(map[string]int{}, "text")
	assert.Error(t, err, "text has no generic fallback")
}

func TestFormatterTypeMismatch(t *testing.T) {
	_, err := (&ShortlistTextFormatter{}).Format("not a shortlist")
	assert.EqualError(t, err, "expected Shortlist, got string")
	assert.ElementsMatch(t, []string{"json", "text", "markdown"}, GlobalRegistry.GetSupportedFormats())
}
