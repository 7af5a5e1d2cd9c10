package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"recruitflow/internal/types"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageParse     Stage = "parse"
	StageScore     Stage = "score"
	StageShortlist Stage = "shortlist"
	StageGenerate  Stage = "generate"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageParse, StageScore, StageShortlist, StageGenerate}

// Status is the state of one stage.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// StageError records one failure against a stage. Item is empty when the
// whole stage failed.
type StageError struct {
	Stage  Stage  `json:"stage"`
	Item   string `json:"item,omitempty"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

func (e StageError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Item, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

// State is the value threaded through the stages. Each stage receives a copy
// of its predecessor's output and returns a new State, so no State is ever
// modified after it has been published.
type State struct {
	RunID        string           `json:"run_id"`
	JobTitle     string           `json:"job_title"`
	CurrentStage Stage            `json:"current_stage,omitempty"`
	Stages       map[Stage]Status `json:"stages"`
	Step         Step             `json:"step"`
	Progress     int              `json:"progress"`
	Documents    int              `json:"documents"`

	Candidates []types.CandidateRecord `json:"candidates"`
	Scores     []types.ScoredCandidate `json:"scores"`
	Shortlist  types.Shortlist         `json:"shortlist"`
	Questions  []types.QuestionSet     `json:"questions"`
	Emails     []types.EmailDraft      `json:"emails"`

	Errors   []StageError `json:"errors"`
	Warnings []StageError `json:"warnings"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func newState(runID string, job types.JobRequirement, documents int) State {
	stages := make(map[Stage]Status, len(Stages))
	for _, st := range Stages {
		stages[st] = StatusPending
	}
	return State{
		RunID:      runID,
		JobTitle:   job.Title,
		Stages:     stages,
		Step:       StepPending,
		Documents:  documents,
		Candidates: []types.CandidateRecord{},
		Scores:     []types.ScoredCandidate{},
		Shortlist:  types.Shortlist{Entries: []types.ShortlistEntry{}},
		Questions:  []types.QuestionSet{},
		Emails:     []types.EmailDraft{},
		Errors:     []StageError{},
		Warnings:   []StageError{},
	}
}

// Clone returns a copy that shares no slices or maps with s. Records inside
// the slices are immutable and are shared.
func (s State) Clone() State {
	s.Stages = maps.Clone(s.Stages)
	s.Candidates = slices.Clone(s.Candidates)
	s.Scores = slices.Clone(s.Scores)
	s.Shortlist.Entries = slices.Clone(s.Shortlist.Entries)
	s.Questions = slices.Clone(s.Questions)
	s.Emails = slices.Clone(s.Emails)
	s.Errors = slices.Clone(s.Errors)
	s.Warnings = slices.Clone(s.Warnings)
	return s
}

// Failed reports whether any stage failed.
func (s State) Failed() bool {
	for _, status := range s.Stages {
		if status == StatusFailed {
			return true
		}
	}
	return false
}

// Completed reports whether every stage is done.
func (s State) Completed() bool {
	for _, st := range Stages {
		if s.Stages[st] != StatusDone {
			return false
		}
	}
	return true
}

// Report is the compact run status served to monitors.
type Report struct {
	RunID        string           `json:"run_id"`
	JobTitle     string           `json:"job_title"`
	CurrentStage Stage            `json:"current_stage,omitempty"`
	Stages       map[Stage]Status `json:"stages"`
	Step         Step             `json:"step"`
	Progress     int              `json:"progress"`
	Documents    int              `json:"documents"`
	Parsed       int              `json:"parsed"`
	Scored       int              `json:"scored"`
	Shortlisted  int              `json:"shortlisted"`
	Errors       []StageError     `json:"errors"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at,omitzero"`
}

// Report summarizes s.
func (s State) Report() Report {
	return Report{
		RunID:        s.RunID,
		JobTitle:     s.JobTitle,
		CurrentStage: s.CurrentStage,
		Stages:       maps.Clone(s.Stages),
		Step:         s.Step,
		Progress:     s.Progress,
		Documents:    s.Documents,
		Parsed:       len(s.Candidates),
		Scored:       len(s.Scores),
		Shortlisted:  len(s.Shortlist.Entries),
		Errors:       slices.Clone(s.Errors),
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
	}
}
