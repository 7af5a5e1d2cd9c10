package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recruitflow/internal/ai"
	"recruitflow/internal/config"
	"recruitflow/internal/errors"
	"recruitflow/internal/types"
)

const (
	defaultSubject        = "Regarding Your Application"
	defaultBody           = "Thank you for your interest in our position."
	interviewDateLayout   = "Monday, January 02, 2006"
	interviewTimePending  = "[To be scheduled]"
	interviewLeadTime     = 7 * 24 * time.Hour
	placeholderMailDomain = "email.com"
)

// EmailDrafter drafts candidate emails. Drafts are never sent.
type EmailDrafter struct {
	model  ai.Completer
	now    func() time.Time
	logger *errors.Logger
}

// NewEmailDrafter creates a drafter. A nil model always yields the fixed templates.
func NewEmailDrafter(model ai.Completer, logger *errors.Logger) *EmailDrafter {
	return &EmailDrafter{model: model, now: time.Now, logger: logger}
}

// Draft writes one email of kind emailType. On model failure it falls back to a
// fixed template and marks the draft as such, so Draft always returns a usable draft.
func (d *EmailDrafter) Draft(ctx context.Context, emailType types.EmailType, candidate types.CandidateRecord, score types.ScoreResult, job types.JobRequirement) types.EmailDraft {
	draft := types.EmailDraft{
		CandidateID:    candidate.ID,
		CandidateName:  candidate.Name,
		RecipientEmail: RecipientEmail(candidate),
		Type:           emailType,
	}

	var details string
	switch emailType {
	case types.EmailInterviewInvitation:
		draft.InterviewDate = d.now().Add(interviewLeadTime).Format(interviewDateLayout)
		draft.InterviewTime = interviewTimePending
		strengths := "Strong background"
		if score.Assessment != nil && !score.Assessment.Fallback && len(score.Assessment.Strengths) > 0 {
			strengths = strings.Join(firstN(score.Assessment.Strengths, 3), ", ")
		}
		details = fmt.Sprintf("Candidate strengths: %s\nSuggested interview date: %s", strengths, draft.InterviewDate)
	case types.EmailRejection:
		details = fmt.Sprintf("Candidate score: %.1f/100\nReason for decision: %s", score.OverallScore, score.Recommendation)
	default:
		missing := "Additional details needed"
		if len(score.MissingSkills) > 0 {
			missing = strings.Join(firstN(score.MissingSkills, 3), ", ")
		}
		details = "Missing information: " + missing
	}

	if d.model != nil {
		response, err := d.model.Complete(ctx, config.OperationEmail, ai.PromptData{
			Candidate: candidateContext(candidate, score),
			Job:       job.Summary(),
			EmailType: string(emailType),
			Details:   details,
		})
		if err == nil {
			draft.Subject, draft.Body = ParseEmail(response)
			return draft
		}
		d.logger.Warn("Email drafting failed, using template",
			"candidate", candidate.Name,
			"email_type", string(emailType),
			"error_code", errors.Code(err),
			"error", err.Error())
	}

	draft.Subject, draft.Body = FallbackEmail(emailType, candidate.Name, job)
	draft.Fallback = true
	return draft
}

// ParseEmail splits a model response into subject and body. It reads
// "SUBJECT:" and "BODY:" markers and otherwise uses the first line as the
// subject.
func ParseEmail(response string) (subject, body string) {
	lines := strings.Split(strings.TrimSpace(response), "\n")

	var bodyLines []string
	inBody := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "SUBJECT:"):
			subject = strings.TrimSpace(strings.TrimPrefix(trimmed, "SUBJECT:"))
		case strings.HasPrefix(trimmed, "BODY:"):
			inBody = true
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "BODY:")); rest != "" {
				bodyLines = append(bodyLines, rest)
			}
		case inBody:
			bodyLines = append(bodyLines, line)
		}
	}

	if subject == "" && len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		subject = strings.TrimSpace(lines[0])
		bodyLines = lines[1:]
	}

	body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
	if subject == "" {
		subject = defaultSubject
	}
	if body == "" {
		body = defaultBody
	}
	return subject, body
}

// FallbackEmail returns the fixed template for emailType. Unknown types use
// the follow-up template.
func FallbackEmail(emailType types.EmailType, name string, job types.JobRequirement) (subject, body string) {
	switch emailType {
	case types.EmailInterviewInvitation:
		return fmt.Sprintf("Interview Invitation - %s Position", job.Title),
			fmt.Sprintf("Dear %s,\n\nThank you for your interest in the %s position at %s. We would like to invite you for an interview.\n\nWe will contact you shortly to schedule a convenient time.\n\nBest regards,\nHR Team",
				name, job.Title, job.Company)
	case types.EmailRejection:
		return fmt.Sprintf("Update on Your Application - %s Position", job.Title),
			fmt.Sprintf("Dear %s,\n\nThank you for your interest in the %s position at %s. After careful consideration, we have decided to move forward with other candidates.\n\nWe encourage you to apply for future opportunities.\n\nBest regards,\nHR Team",
				name, job.Title, job.Company)
	default:
		return fmt.Sprintf("Additional Information Needed - %s Position", job.Title),
			fmt.Sprintf("Dear %s,\n\nThank you for your application for the %s position. We would like to request some additional information to complete our review.\n\nPlease respond at your earliest convenience.\n\nBest regards,\nHR Team",
				name, job.Title)
	}
}

// RecipientEmail returns the candidate's email, or a placeholder address
// derived from the name when the CV had none.
func RecipientEmail(candidate types.CandidateRecord) string {
	if email := strings.TrimSpace(candidate.Email); email != "" {
		return email
	}
	local := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(candidate.Name), " ", "."))
	return local + "@" + placeholderMailDomain
}

// ParseEmailType maps a name to an email type.
func ParseEmailType(name string) (types.EmailType, error) {
	switch t := types.EmailType(strings.ToLower(strings.TrimSpace(name))); t {
	case types.EmailInterviewInvitation, types.EmailRejection, types.EmailFollowUp:
		return t, nil
	}
	return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
		fmt.Sprintf("unknown email type %q", name), nil)
}
