package ai

import (
	"fmt"
	"strings"
	"text/template"

	"recruitflow/internal/config"
)

// PromptData is the template data available to every prompt. Each operation
// reads the fields it needs.
type PromptData struct {
	// Text is the cleaned CV text (extract).
	Text string
	// Candidate is the rendered candidate profile (assess, interview, email).
	Candidate string
	// Job is the rendered job requirement (assess, interview, email).
	Job string
	// Category is the question category: technical, behavioral or role_specific (interview).
	Category string
	// Count is the number of questions wanted (interview).
	Count int
	// EmailType is interview_invitation, rejection or follow_up (email).
	EmailType string
	// Details carries extra instructions such as a suggested interview date (email).
	Details string
}

// jsonOperations answer with JSON; email answers with SUBJECT:/BODY: text.
var jsonOperations = map[string]bool{
	config.OperationExtract:   true,
	config.OperationAssess:    true,
	config.OperationInterview: true,
}

// DefaultPrompts are the built-in prompts per operation. User prompts are
// text/template sources over PromptData.
var DefaultPrompts = map[string]config.PromptConfig{
	config.OperationExtract: {
		System: `You are an expert CV parser. Extract structured information from the CV text you are given and return it as one JSON object.

Fields:
- name: full name of the candidate
- email, phone, location
- current_role: current or most recent job title
- experience_years: total years of professional experience as a number
- skills: list of technical and professional skills
- education: list of {"degree", "institution", "field", "year"}
- certifications: list of professional certifications
- work_experience: list of {"company", "role", "duration", "duration_months", "responsibilities"}
- languages: list of spoken languages
- summary: professional summary or objective

Return ONLY the JSON object. Use null or an empty array when a field is not present in the CV. Never invent information.`,
		User: `Parse the following CV text and extract structured information:

{{.Text}}`,
	},

	config.OperationAssess: {
		System: `You are an expert HR recruiter. Evaluate how well a candidate fits a job.

Return a JSON object with this structure:
{
  "cultural_fit_score": 75,
  "strengths": ["..."],
  "weaknesses": ["..."],
  "reasoning": "...",
  "key_highlights": ["..."],
  "concerns": ["..."]
}

cultural_fit_score is a number from 0 to 100. Consider alignment of background with the role, relevant achievements, likely cultural fit and development areas. Be honest and constructive.`,
		User: `Analyze this candidate against the job requirements.

CANDIDATE PROFILE:
{{.Candidate}}

JOB REQUIREMENTS:
{{.Job}}

Provide your analysis as a JSON object.`,
	},

	config.OperationInterview: {
		System: `You are an expert interviewer. Generate interview questions tailored to one candidate and one role.

Return a JSON array of objects with this structure:
[
  {
    "question": "...",
    "category": "technical|behavioral|role_specific",
    "difficulty": "easy|medium|hard",
    "expected_answer_points": ["...", "..."]
  }
]`,
		User: `Generate {{.Count}} {{.Category}} interview questions.
{{if eq .Category "technical"}}
The questions should test the candidate's claimed technical skills, stay relevant to the required skills, mix easy, medium and hard difficulty, and favour practical application over theory. Probe any missing required skills.
{{else if eq .Category "behavioral"}}
Use the STAR method (Situation, Task, Action, Result) and the "Tell me about a time when..." format. Cover competencies such as leadership, problem solving and teamwork, taking the candidate's strengths and weaknesses into account.
{{else}}
The questions should test understanding of this specific role and its challenges, industry knowledge, motivation and genuine interest in the position.
{{end}}
CANDIDATE PROFILE:
{{.Candidate}}

JOB REQUIREMENTS:
{{.Job}}

Return only the JSON array.`,
	},

	config.OperationEmail: {
		System: `You are an HR professional drafting emails to job candidates. Emails are professional, warm, personalized and concise. Never promise anything that is not stated in the request.`,
		User: `{{if eq .EmailType "interview_invitation"}}Draft an interview invitation email. Express enthusiasm, mention the candidate's relevant qualifications and give clear next steps with a placeholder for interview details.
{{else if eq .EmailType "rejection"}}Draft a respectful rejection email. Thank the candidate, keep an empathetic tone and encourage future applications.
{{else}}Draft a follow-up email requesting additional information about the candidate's background. Explain what is needed and set expectations for the timeline.
{{end}}
CANDIDATE:
{{.Candidate}}

POSITION:
{{.Job}}
{{if .Details}}
{{.Details}}
{{end}}
Format the response as:
SUBJECT: [Email subject line]
BODY:
[Email body content]`,
	},
}

// promptSet is the parsed prompt pair of one operation.
type promptSet struct {
	system string
	user   *template.Template
}

// newPromptSet resolves configured prompts over the defaults and parses the user template.
func newPromptSet(operation string, custom config.PromptConfig) (*promptSet, error) {
	defaults := DefaultPrompts[operation]

	system := resolvePrompt(custom.System, defaults.System)
	userSource := resolvePrompt(custom.User, defaults.User)
	if userSource == "" {
		return nil, fmt.Errorf("no user prompt for operation %q", operation)
	}

	user, err := template.New(operation).Option("missingkey=error").Parse(userSource)
	if err != nil {
		return nil, fmt.Errorf("invalid %s user prompt: %w", operation, err)
	}
	return &promptSet{system: system, user: user}, nil
}

func (p *promptSet) render(data PromptData) (Prompt, error) {
	var sb strings.Builder
	if err := p.user.Execute(&sb, data); err != nil {
		return Prompt{}, err
	}
	return Prompt{System: p.system, User: strings.TrimSpace(sb.String())}, nil
}

// resolvePrompt prefers the configured prompt, which already has file content loaded.
func resolvePrompt(configured, fallback string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return fallback
}
