package types

// Assessment is the qualitative review returned by the model for one candidate.
type Assessment struct {
	CulturalFitScore *float64 `json:"cultural_fit_score,omitempty"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	Reasoning        string   `json:"reasoning,omitempty"`
	KeyHighlights    []string `json:"key_highlights,omitempty"`
	Concerns         []string `json:"concerns,omitempty"`
	Fallback         bool     `json:"fallback,omitempty"`
}

// ScoreResult is the outcome of scoring one candidate against one job.
type ScoreResult struct {
	CandidateID      string      `json:"candidate_id"`
	CandidateName    string      `json:"candidate_name"`
	SkillsMatchScore float64     `json:"skills_match_score"`
	ExperienceScore  float64     `json:"experience_score"`
	EducationScore   float64     `json:"education_score"`
	CulturalFitScore float64     `json:"cultural_fit_score"`
	OverallScore     float64     `json:"overall_score"`
	MatchedSkills    []string    `json:"matched_skills"`
	MissingSkills    []string    `json:"missing_skills"`
	Recommendation   string      `json:"recommendation"`
	Assessment       *Assessment `json:"assessment,omitempty"`
}

// ScoredCandidate pairs a record with its score.
type ScoredCandidate struct {
	Candidate CandidateRecord `json:"candidate"`
	Score     ScoreResult     `json:"score"`
}

// ShortlistEntry is one selected candidate with its 1-based rank.
type ShortlistEntry struct {
	Rank      int             `json:"rank"`
	Candidate CandidateRecord `json:"candidate"`
	Score     ScoreResult     `json:"score"`
}

// ShortlistSummary describes one shortlisting pass. Score statistics cover
// the selected set only and are zero when nothing was selected.
type ShortlistSummary struct {
	CountConsidered int     `json:"count_considered"`
	CountPassing    int     `json:"count_passing"`
	CountSelected   int     `json:"count_selected"`
	MinThreshold    float64 `json:"min_threshold"`
	MaxCount        int     `json:"max_count"`
	MinScore        float64 `json:"min_score"`
	MaxScore        float64 `json:"max_score"`
	MeanScore       float64 `json:"mean_score"`
}

// Shortlist is a ranked selection plus its summary.
type Shortlist struct {
	Entries []ShortlistEntry `json:"entries"`
	Summary ShortlistSummary `json:"summary"`
}
