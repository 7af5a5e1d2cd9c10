package generation

import (
	"fmt"
	"strings"

	"recruitflow/internal/types"
)

// candidateContext renders the candidate profile followed by the scoring
// outcome, which the question and email prompts build on.
func candidateContext(candidate types.CandidateRecord, score types.ScoreResult) string {
	var sb strings.Builder
	sb.WriteString(candidate.Profile())
	fmt.Fprintf(&sb, "\nOverall Score: %.1f/100", score.OverallScore)
	if score.Recommendation != "" {
		fmt.Fprintf(&sb, "\nRecommendation: %s", score.Recommendation)
	}
	fmt.Fprintf(&sb, "\nMatched Skills: %s", joinOr(score.MatchedSkills, "None specified"))
	fmt.Fprintf(&sb, "\nMissing Skills: %s", joinOr(score.MissingSkills, "None"))
	if a := score.Assessment; a != nil && !a.Fallback {
		fmt.Fprintf(&sb, "\nStrengths: %s", joinOr(a.Strengths, "None specified"))
		fmt.Fprintf(&sb, "\nWeaknesses: %s", joinOr(a.Weaknesses, "None specified"))
	}
	return sb.String()
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
