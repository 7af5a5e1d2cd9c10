package pipeline

import (
	"time"
)

// Step is a named point in a run with a fixed progress percentage.
type Step string

const (
	StepPending            Step = "pending"
	StepStarted            Step = "started"
	StepParsing            Step = "parsing"
	StepParsed             Step = "parsed"
	StepScoring            Step = "scoring"
	StepScored             Step = "scored"
	StepShortlisting       Step = "shortlisting"
	StepShortlisted        Step = "shortlisted"
	StepGeneratingQuestion Step = "generating_questions"
	StepQuestionsGenerated Step = "questions_generated"
	StepDraftingEmails     Step = "drafting_emails"
	StepEmailsDrafted      Step = "emails_drafted"
	StepCompleted          Step = "completed"
	StepFailed             Step = "failed"
)

var stepProgress = map[Step]int{
	StepPending:            0,
	StepStarted:            0,
	StepParsing:            10,
	StepParsed:             20,
	StepScoring:            30,
	StepScored:             50,
	StepShortlisting:       60,
	StepShortlisted:        70,
	StepGeneratingQuestion: 80,
	StepQuestionsGenerated: 85,
	StepDraftingEmails:     90,
	StepEmailsDrafted:      95,
	StepCompleted:          100,
}

// Progress returns the percentage reached at step. A failed run keeps the
// percentage of its last step, so StepFailed reports -1.
func (s Step) Progress() int {
	if p, ok := stepProgress[s]; ok {
		return p
	}
	return -1
}

// Event reports that a run reached a step.
type Event struct {
	RunID    string    `json:"run_id"`
	Stage    Stage     `json:"stage,omitempty"`
	Step     Step      `json:"step"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// ProgressFunc observes run events. It is called synchronously from the
// goroutine executing the run and must not block for long.
type ProgressFunc func(Event)
