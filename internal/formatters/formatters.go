package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"recruitflow/internal/pipeline"
	"recruitflow/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "State", &RunTextFormatter{})
	registry.RegisterFormatter("markdown", "State", &RunMarkdownFormatter{})
	registry.RegisterFormatter("text", "Report", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "Report", &ReportMarkdownFormatter{})
	registry.RegisterFormatter("text", "Candidates", &CandidatesTextFormatter{})
	registry.RegisterFormatter("markdown", "Candidates", &CandidatesMarkdownFormatter{})
	registry.RegisterFormatter("text", "Scores", &ScoresTextFormatter{})
	registry.RegisterFormatter("markdown", "Scores", &ScoresMarkdownFormatter{})
	registry.RegisterFormatter("text", "Shortlist", &ShortlistTextFormatter{})
	registry.RegisterFormatter("markdown", "Shortlist", &ShortlistMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case pipeline.State:
		return "State"
	case pipeline.Report:
		return "Report"
	case []types.CandidateRecord:
		return "Candidates"
	case []types.ScoredCandidate:
		return "Scores"
	case types.Shortlist:
		return "Shortlist"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// RunTextFormatter renders a whole run result
type RunTextFormatter struct{}

func (rtf *RunTextFormatter) Format(data any) (string, error) {
	state, ok := data.(pipeline.State)
	if !ok {
		return "", fmt.Errorf("expected State, got %T", data)
	}

	var output strings.Builder
	output.WriteString(reportText(state.Report()))
	output.WriteString("\n")
	output.WriteString(shortlistText(state.Shortlist))

	if len(state.Questions) > 0 {
		output.WriteString("\n=== INTERVIEW QUESTIONS ===\n")
		for _, set := range state.Questions {
			output.WriteString(fmt.Sprintf("\n%s (%d questions)\n", set.CandidateName, set.Total()))
			writeQuestions(&output, "Technical", set.Technical, "  ")
			writeQuestions(&output, "Behavioral", set.Behavioral, "  ")
			writeQuestions(&output, "Role-specific", set.RoleSpecific, "  ")
		}
	}

	if len(state.Emails) > 0 {
		output.WriteString("\n=== EMAIL DRAFTS ===\n")
		for _, email := range state.Emails {
			output.WriteString(fmt.Sprintf("\nTo: %s <%s> [%s]\n", email.CandidateName, email.RecipientEmail, email.Type))
			output.WriteString("Subject: " + email.Subject + "\n\n")
			output.WriteString(email.Body)
			output.WriteString("\n")
		}
	}

	writeIssues(&output, "WARNINGS", state.Warnings)
	return output.String(), nil
}

func (rtf *RunTextFormatter) SupportedType() string {
	return "State"
}

// RunMarkdownFormatter renders a whole run result as markdown
type RunMarkdownFormatter struct{}

func (rmf *RunMarkdownFormatter) Format(data any) (string, error) {
	state, ok := data.(pipeline.State)
	if !ok {
		return "", fmt.Errorf("expected State, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# Recruitment Run: %s\n\n", state.JobTitle))
	output.WriteString(reportMarkdownBody(state.Report()))
	output.WriteString("\n## Shortlist\n\n")
	output.WriteString(shortlistMarkdownBody(state.Shortlist))

	if len(state.Questions) > 0 {
		output.WriteString("\n## Interview Questions\n")
		for _, set := range state.Questions {
			output.WriteString(fmt.Sprintf("\n### %s\n\n", set.CandidateName))
			for _, group := range []struct {
				title     string
				questions []types.InterviewQuestion
			}{
				{"Technical", set.Technical},
				{"Behavioral", set.Behavioral},
				{"Role-specific", set.RoleSpecific},
			} {
				if len(group.questions) == 0 {
					continue
				}
				output.WriteString(fmt.Sprintf("**%s**\n\n", group.title))
				for i, q := range group.questions {
					output.WriteString(fmt.Sprintf("%d. %s _(%s)_\n", i+1, q.Question, q.Difficulty))
				}
				output.WriteString("\n")
			}
		}
	}

	if len(state.Emails) > 0 {
		output.WriteString("\n## Email Drafts\n")
		for _, email := range state.Emails {
			output.WriteString(fmt.Sprintf("\n### %s: %s\n\n", email.CandidateName, email.Subject))
			output.WriteString(fmt.Sprintf("**To:** %s  \n**Type:** %s\n\n", email.RecipientEmail, email.Type))
			output.WriteString(email.Body)
			output.WriteString("\n")
		}
	}

	if len(state.Warnings) > 0 {
		output.WriteString("\n## Warnings\n\n")
		for _, w := range state.Warnings {
			output.WriteString("- " + w.Error() + "\n")
		}
	}
	return output.String(), nil
}

func (rmf *RunMarkdownFormatter) SupportedType() string {
	return "State"
}

// ReportTextFormatter renders the status of a run
type ReportTextFormatter struct{}

func (r *ReportTextFormatter) Format(data any) (string, error) {
	report, ok := data.(pipeline.Report)
	if !ok {
		return "", fmt.Errorf("expected Report, got %T", data)
	}
	return reportText(report), nil
}

func (r *ReportTextFormatter) SupportedType() string {
	return "Report"
}

// ReportMarkdownFormatter renders the status of a run as markdown
type ReportMarkdownFormatter struct{}

func (r *ReportMarkdownFormatter) Format(data any) (string, error) {
	report, ok := data.(pipeline.Report)
	if !ok {
		return "", fmt.Errorf("expected Report, got %T", data)
	}
	return fmt.Sprintf("# Run %s\n\n", report.RunID) + reportMarkdownBody(report), nil
}

func (r *ReportMarkdownFormatter) SupportedType() string {
	return "Report"
}

// CandidatesTextFormatter lists parsed candidate records
type CandidatesTextFormatter struct{}

func (c *CandidatesTextFormatter) Format(data any) (string, error) {
	candidates, ok := data.([]types.CandidateRecord)
	if !ok {
		return "", fmt.Errorf("expected []CandidateRecord, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== PARSED CANDIDATES (%d) ===\n\n", len(candidates)))
	for i, c := range candidates {
		output.WriteString(fmt.Sprintf("%d. %s", i+1, c.Name))
		if c.Email != "" {
			output.WriteString(" <" + c.Email + ">")
		}
		output.WriteString("\n")
		output.WriteString(fmt.Sprintf("   Experience: %.1f years\n", c.ExperienceYears))
		output.WriteString(fmt.Sprintf("   Education: %s\n", c.HighestEducation()))
		output.WriteString("   Skills: " + listOr(c.Skills) + "\n")
		output.WriteString(fmt.Sprintf("   Source: %s (%s)", c.FileName, c.ExtractionMethod))
		if c.LowConfidence {
			output.WriteString(" [low confidence]")
		}
		output.WriteString("\n\n")
	}
	return output.String(), nil
}

func (c *CandidatesTextFormatter) SupportedType() string {
	return "Candidates"
}

// CandidatesMarkdownFormatter lists parsed candidate records as a table
type CandidatesMarkdownFormatter struct{}

func (c *CandidatesMarkdownFormatter) Format(data any) (string, error) {
	candidates, ok := data.([]types.CandidateRecord)
	if !ok {
		return "", fmt.Errorf("expected []CandidateRecord, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Parsed Candidates\n\n")
	output.WriteString("| Name | Email | Experience | Education | Skills | Source |\n")
	output.WriteString("|---|---|---|---|---|---|\n")
	for _, c := range candidates {
		source := c.FileName
		if c.LowConfidence {
			source += " (low confidence)"
		}
		output.WriteString(fmt.Sprintf("| %s | %s | %.1f years | %s | %s | %s |\n",
			cell(c.Name), cell(c.Email), c.ExperienceYears, c.HighestEducation(), cell(listOr(c.Skills)), cell(source)))
	}
	return output.String(), nil
}

func (c *CandidatesMarkdownFormatter) SupportedType() string {
	return "Candidates"
}

// ScoresTextFormatter lists candidate scores
type ScoresTextFormatter struct{}

func (s *ScoresTextFormatter) Format(data any) (string, error) {
	scores, ok := data.([]types.ScoredCandidate)
	if !ok {
		return "", fmt.Errorf("expected []ScoredCandidate, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== CANDIDATE SCORES (%d) ===\n\n", len(scores)))
	for _, sc := range scores {
		writeScoreText(&output, sc.Score)
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (s *ScoresTextFormatter) SupportedType() string {
	return "Scores"
}

// ScoresMarkdownFormatter lists candidate scores as a table
type ScoresMarkdownFormatter struct{}

func (s *ScoresMarkdownFormatter) Format(data any) (string, error) {
	scores, ok := data.([]types.ScoredCandidate)
	if !ok {
		return "", fmt.Errorf("expected []ScoredCandidate, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Candidate Scores\n\n")
	output.WriteString(scoreTableHeader)
	output.WriteString(scoreTableRule)
	for _, sc := range scores {
		output.WriteString(scoreRow("", sc.Score))
	}
	return output.String(), nil
}

func (s *ScoresMarkdownFormatter) SupportedType() string {
	return "Scores"
}

// ShortlistTextFormatter renders the ranked shortlist
type ShortlistTextFormatter struct{}

func (s *ShortlistTextFormatter) Format(data any) (string, error) {
	shortlist, ok := data.(types.Shortlist)
	if !ok {
		return "", fmt.Errorf("expected Shortlist, got %T", data)
	}
	return shortlistText(shortlist), nil
}

func (s *ShortlistTextFormatter) SupportedType() string {
	return "Shortlist"
}

// ShortlistMarkdownFormatter renders the ranked shortlist as markdown
type ShortlistMarkdownFormatter struct{}

func (s *ShortlistMarkdownFormatter) Format(data any) (string, error) {
	shortlist, ok := data.(types.Shortlist)
	if !ok {
		return "", fmt.Errorf("expected Shortlist, got %T", data)
	}
	return "# Shortlist\n\n" + shortlistMarkdownBody(shortlist), nil
}

func (s *ShortlistMarkdownFormatter) SupportedType() string {
	return "Shortlist"
}

func reportText(report pipeline.Report) string {
	var output strings.Builder
	output.WriteString("=== RUN STATUS ===\n\n")
	output.WriteString(fmt.Sprintf("Run: %s\n", report.RunID))
	output.WriteString(fmt.Sprintf("Job: %s\n", report.JobTitle))
	output.WriteString(fmt.Sprintf("Step: %s (%d%%)\n", report.Step, report.Progress))
	output.WriteString("Stages:\n")
	for _, stage := range pipeline.Stages {
		output.WriteString(fmt.Sprintf("  %-10s %s\n", stage, report.Stages[stage]))
	}
	output.WriteString(fmt.Sprintf("Documents: %d, parsed: %d, scored: %d, shortlisted: %d\n",
		report.Documents, report.Parsed, report.Scored, report.Shortlisted))

	writeIssues(&output, "ERRORS", report.Errors)
	return output.String()
}

func reportMarkdownBody(report pipeline.Report) string {
	var output strings.Builder
	output.WriteString(fmt.Sprintf("**Job:** %s  \n", report.JobTitle))
	output.WriteString(fmt.Sprintf("**Step:** %s (%d%%)\n\n", report.Step, report.Progress))
	output.WriteString("| Stage | Status |\n|---|---|\n")
	for _, stage := range pipeline.Stages {
		output.WriteString(fmt.Sprintf("| %s | %s |\n", stage, report.Stages[stage]))
	}
	output.WriteString(fmt.Sprintf("\n%d documents, %d parsed, %d scored, %d shortlisted.\n",
		report.Documents, report.Parsed, report.Scored, report.Shortlisted))

	if len(report.Errors) > 0 {
		output.WriteString("\n### Errors\n\n")
		for _, e := range report.Errors {
			output.WriteString("- " + e.Error() + "\n")
		}
	}
	return output.String()
}

func shortlistText(shortlist types.Shortlist) string {
	var output strings.Builder
	sum := shortlist.Summary
	output.WriteString("=== SHORTLIST ===\n\n")
	output.WriteString(fmt.Sprintf("Selected %d of %d passing (%d considered, threshold %.0f, limit %d)\n",
		sum.CountSelected, sum.CountPassing, sum.CountConsidered, sum.MinThreshold, sum.MaxCount))
	if sum.CountSelected > 0 {
		output.WriteString(fmt.Sprintf("Scores: min %.1f, max %.1f, mean %.1f\n", sum.MinScore, sum.MaxScore, sum.MeanScore))
	}
	output.WriteString("\n")

	if len(shortlist.Entries) == 0 {
		output.WriteString("No candidates met the threshold.\n")
		return output.String()
	}
	for _, entry := range shortlist.Entries {
		output.WriteString(fmt.Sprintf("#%d ", entry.Rank))
		writeScoreText(&output, entry.Score)
		output.WriteString("\n")
	}
	return output.String()
}

func shortlistMarkdownBody(shortlist types.Shortlist) string {
	var output strings.Builder
	sum := shortlist.Summary
	output.WriteString(fmt.Sprintf("Selected **%d** of %d passing candidates (%d considered, threshold %.0f, limit %d).\n\n",
		sum.CountSelected, sum.CountPassing, sum.CountConsidered, sum.MinThreshold, sum.MaxCount))

	if len(shortlist.Entries) == 0 {
		output.WriteString("No candidates met the threshold.\n")
		return output.String()
	}
	output.WriteString("| Rank " + scoreTableHeader[1:])
	output.WriteString("|---" + scoreTableRule)
	for _, entry := range shortlist.Entries {
		output.WriteString(scoreRow(fmt.Sprintf("| %d ", entry.Rank), entry.Score))
	}
	return output.String()
}

const (
	scoreTableHeader = "| Candidate | Overall | Skills | Experience | Education | Cultural Fit | Recommendation |\n"
	scoreTableRule   = "|---|---|---|---|---|---|---|\n"
)

func scoreRow(prefix string, score types.ScoreResult) string {
	return fmt.Sprintf("%s| %s | %.1f | %.1f | %.1f | %.1f | %.1f | %s |\n",
		prefix, cell(score.CandidateName), score.OverallScore, score.SkillsMatchScore,
		score.ExperienceScore, score.EducationScore, score.CulturalFitScore, score.Recommendation)
}

func writeScoreText(output *strings.Builder, score types.ScoreResult) {
	output.WriteString(fmt.Sprintf("%s: %.1f (%s)\n", score.CandidateName, score.OverallScore, score.Recommendation))
	output.WriteString(fmt.Sprintf("   Skills %.1f, experience %.1f, education %.1f, cultural fit %.1f\n",
		score.SkillsMatchScore, score.ExperienceScore, score.EducationScore, score.CulturalFitScore))
	if len(score.MatchedSkills) > 0 {
		output.WriteString("   Matched: " + strings.Join(score.MatchedSkills, ", ") + "\n")
	}
	if len(score.MissingSkills) > 0 {
		output.WriteString("   Missing: " + strings.Join(score.MissingSkills, ", ") + "\n")
	}
	if a := score.Assessment; a != nil && len(a.Strengths) > 0 {
		output.WriteString("   Strengths: " + strings.Join(a.Strengths, "; ") + "\n")
	}
}

func writeQuestions(output *strings.Builder, title string, questions []types.InterviewQuestion, indent string) {
	if len(questions) == 0 {
		return
	}
	output.WriteString(indent + title + ":\n")
	for i, q := range questions {
		output.WriteString(fmt.Sprintf("%s  %d. %s [%s]\n", indent, i+1, q.Question, q.Difficulty))
	}
}

func writeIssues(output *strings.Builder, title string, issues []pipeline.StageError) {
	if len(issues) == 0 {
		return
	}
	output.WriteString(fmt.Sprintf("\n=== %s ===\n", title))
	for _, issue := range issues {
		output.WriteString("- " + issue.Error() + "\n")
	}
}

func listOr(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

// cell escapes table separators.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// GlobalRegistry is the default formatter registry
var GlobalRegistry = NewFormatterRegistry()
