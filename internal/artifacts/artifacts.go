// Package artifacts writes the result files of a finished pipeline run.
package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/report"
	"recruitflow/internal/types"
	"recruitflow/internal/utils"
)

// Artifact file names.
const (
	ParsedCandidates = "parsed_cvs.json"
	CandidateScores  = "candidate_scores.json"
	Shortlisted      = "shortlisted_candidates.json"
	Questions        = "interview_questions.json"
	Emails           = "email_drafts.json"
	Summary          = "shortlist_summary.json"
	Workbook         = "shortlist.xlsx"
)

const (
	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Sink stores one named artifact.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// LocalSink writes artifacts into a directory.
type LocalSink struct {
	Dir string
}

// Put writes data to Dir/name, creating Dir when missing.
func (s LocalSink) Put(_ context.Context, name string, data []byte, _ string) error {
	if err := utils.EnsureDir(s.Dir); err != nil {
		return errors.NewIOError(errors.ErrCodeStorageFailed, "cannot create output directory", err)
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeStorageFailed, fmt.Sprintf("cannot write %s", path), err)
	}
	return nil
}

// RunSummary is the content of shortlist_summary.json.
type RunSummary struct {
	RunID      string                             `json:"run_id"`
	Job        types.JobRequirement               `json:"job"`
	Summary    types.ShortlistSummary             `json:"summary"`
	Stages     map[pipeline.Stage]pipeline.Status `json:"stages"`
	Errors     []pipeline.StageError              `json:"errors"`
	Warnings   []pipeline.StageError              `json:"warnings"`
	StartedAt  time.Time                          `json:"started_at"`
	FinishedAt time.Time                          `json:"finished_at,omitzero"`
}

// Write stores every artifact of state in each sink and returns the names
// written. A failed sink stops the write; artifacts already stored stay.
func Write(ctx context.Context, state pipeline.State, job types.JobRequirement, sinks ...Sink) ([]string, error) {
	files, err := Render(state, job)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		for _, sink := range sinks {
			if err := sink.Put(ctx, f.Name, f.Data, f.ContentType); err != nil {
				return names, err
			}
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// File is one rendered artifact.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render encodes the artifacts of state without storing them.
func Render(state pipeline.State, job types.JobRequirement) ([]File, error) {
	scores := make([]types.ScoreResult, 0, len(state.Scores))
	for _, sc := range state.Scores {
		scores = append(scores, sc.Score)
	}

	documents := []struct {
		name  string
		value any
	}{
		{ParsedCandidates, state.Candidates},
		{CandidateScores, scores},
		{Shortlisted, state.Shortlist.Entries},
		{Questions, state.Questions},
		{Emails, state.Emails},
		{Summary, RunSummary{
			RunID:      state.RunID,
			Job:        job,
			Summary:    state.Shortlist.Summary,
			Stages:     state.Stages,
			Errors:     state.Errors,
			Warnings:   state.Warnings,
			StartedAt:  state.StartedAt,
			FinishedAt: state.FinishedAt,
		}},
	}

	files := make([]File, 0, len(documents)+1)
	for _, doc := range documents {
		data, err := json.MarshalIndent(doc.value, "", "  ")
		if err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeStorageFailed, fmt.Sprintf("cannot encode %s", doc.name), err)
		}
		files = append(files, File{Name: doc.name, ContentType: contentTypeJSON, Data: data})
	}

	xlsx, err := report.Workbook(report.Input{
		RunID:     state.RunID,
		JobTitle:  job.Title,
		Company:   job.Company,
		Scores:    state.Scores,
		Shortlist: state.Shortlist,
	})
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeStorageFailed, "cannot render shortlist workbook", err)
	}
	return append(files, File{Name: Workbook, ContentType: contentTypeXLSX, Data: xlsx}), nil
}
