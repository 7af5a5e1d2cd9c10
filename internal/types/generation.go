package types

// Interview question categories.
const (
	QuestionTechnical    = "technical"
	QuestionBehavioral   = "behavioral"
	QuestionRoleSpecific = "role_specific"
)

// InterviewQuestion is one generated question.
type InterviewQuestion struct {
	Question             string   `json:"question"`
	Category             string   `json:"category"`
	Difficulty           string   `json:"difficulty"`
	ExpectedAnswerPoints []string `json:"expected_answer_points"`
}

// QuestionSet holds the questions prepared for one shortlisted candidate.
type QuestionSet struct {
	CandidateID   string              `json:"candidate_id"`
	CandidateName string              `json:"candidate_name"`
	Technical     []InterviewQuestion `json:"technical"`
	Behavioral    []InterviewQuestion `json:"behavioral"`
	RoleSpecific  []InterviewQuestion `json:"role_specific"`
}

// Total returns the number of questions in the set.
func (q QuestionSet) Total() int {
	return len(q.Technical) + len(q.Behavioral) + len(q.RoleSpecific)
}

// EmailType selects the kind of draft.
type EmailType string

const (
	EmailInterviewInvitation EmailType = "interview_invitation"
	EmailRejection           EmailType = "rejection"
	EmailFollowUp            EmailType = "follow_up"
)

// EmailDraft is a generated email awaiting review.
type EmailDraft struct {
	CandidateID    string    `json:"candidate_id"`
	CandidateName  string    `json:"candidate_name"`
	RecipientEmail string    `json:"recipient_email"`
	Type           EmailType `json:"email_type"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	InterviewDate  string    `json:"interview_date,omitempty"`
	InterviewTime  string    `json:"interview_time,omitempty"`
	Fallback       bool      `json:"fallback,omitempty"`
}
