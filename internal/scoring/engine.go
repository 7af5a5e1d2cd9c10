package scoring

import (
	"math"
	"strings"

	"recruitflow/internal/config"
	"recruitflow/internal/types"
)

// Weights is the overall score weight vector.
type Weights struct {
	Skills      float64 `json:"skills"`
	Experience  float64 `json:"experience"`
	Education   float64 `json:"education"`
	CulturalFit float64 `json:"cultural_fit"`
}

// Band is one row of the recommendation table. Bands are ordered by
// descending threshold and the lower bound is inclusive.
type Band struct {
	Threshold float64 `json:"threshold"`
	Label     string  `json:"label"`
}

// Engine computes deterministic sub-scores and the overall score.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	weights            Weights
	bands              []Band
	educationPenalty   float64
	defaultCulturalFit float64
	requiredWeight     float64
	preferredWeight    float64
}

// NewEngine validates the scoring configuration and builds an engine.
func NewEngine(cfg config.ScoringConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bands := make([]Band, len(cfg.Bands))
	for i, b := range cfg.Bands {
		bands[i] = Band{Threshold: b.Threshold, Label: b.Label}
	}
	return &Engine{
		weights: Weights{
			Skills:      cfg.Weights.Skills,
			Experience:  cfg.Weights.Experience,
			Education:   cfg.Weights.Education,
			CulturalFit: cfg.Weights.CulturalFit,
		},
		bands:              bands,
		educationPenalty:   cfg.EducationPenalty,
		defaultCulturalFit: cfg.DefaultCulturalFit,
		requiredWeight:     cfg.RequiredSkillWeight,
		preferredWeight:    cfg.PreferredSkillWeight,
	}, nil
}

// DefaultEngine returns an engine with the default configuration.
func DefaultEngine() *Engine {
	engine, err := NewEngine(config.Default().Scoring)
	if err != nil {
		panic("scoring: invalid default configuration: " + err.Error())
	}
	return engine
}

// Weights returns the configured weight vector.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Bands returns a copy of the recommendation table.
func (e *Engine) Bands() []Band {
	return append([]Band(nil), e.bands...)
}

// Score scores one candidate against one job. assessment may be nil, in which
// case the default cultural fit applies. Score never fails.
func (e *Engine) Score(candidate types.CandidateRecord, job types.JobRequirement, assessment *types.Assessment) types.ScoreResult {
	skills, matched, missing := e.SkillsMatch(candidate.Skills, job)
	result := types.ScoreResult{
		CandidateID:      candidate.ID,
		CandidateName:    candidate.Name,
		SkillsMatchScore: skills,
		ExperienceScore:  ExperienceScore(candidate.TotalExperienceMonths(), job.MinExperienceYears),
		EducationScore:   e.EducationScore(candidate.HighestEducation(), job.RequiredEducation()),
		CulturalFitScore: e.CulturalFit(assessment),
		MatchedSkills:    matched,
		MissingSkills:    missing,
		Assessment:       assessment,
	}
	result.OverallScore = e.Overall(result)
	result.Recommendation = e.Recommend(result.OverallScore)
	return result
}

// jobSkill is one deduplicated job skill with its tier weight.
type jobSkill struct {
	name   string
	weight float64
}

// jobSkills lists required then preferred skills once each. A skill named in
// both tiers counts as required.
func (e *Engine) jobSkills(job types.JobRequirement) []jobSkill {
	seen := make(map[string]struct{})
	var out []jobSkill
	add := func(skills []string, weight float64) {
		for _, s := range skills {
			s = strings.TrimSpace(s)
			key := strings.ToLower(s)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, jobSkill{name: s, weight: weight})
		}
	}
	add(job.RequiredSkills, e.requiredWeight)
	add(job.PreferredSkills, e.preferredWeight)
	return out
}

// SkillsMatch returns the weighted share of job skills the candidate has,
// scaled to [0, 100], and the matched and missing skills in job order.
// A job without skills scores 100.
func (e *Engine) SkillsMatch(candidateSkills []string, job types.JobRequirement) (float64, []string, []string) {
	skills := e.jobSkills(job)
	matched := []string{}
	missing := []string{}
	if len(skills) == 0 {
		return 100, matched, missing
	}

	have := make(map[string]struct{}, len(candidateSkills))
	for _, s := range candidateSkills {
		have[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	var total, got float64
	for _, s := range skills {
		total += s.weight
		if _, ok := have[strings.ToLower(s.name)]; ok {
			got += s.weight
			matched = append(matched, s.name)
		} else {
			missing = append(missing, s.name)
		}
	}
	return clamp(got / total * 100), matched, missing
}

// ExperienceScore is 100 when the candidate meets the minimum and scales
// linearly down to 0 at zero months otherwise.
func ExperienceScore(months int, minYears float64) float64 {
	required := minYears * 12
	if required <= 0 || float64(months) >= required {
		return 100
	}
	if months <= 0 {
		return 0
	}
	return clamp(float64(months) / required * 100)
}

// EducationScore is 100 when the candidate meets the required level and loses
// the configured penalty per missing level, floored at 0.
func (e *Engine) EducationScore(have, required types.EducationLevel) float64 {
	if required <= types.EducationNone || have >= required {
		return 100
	}
	return clamp(100 - e.educationPenalty*float64(required-have))
}

// CulturalFit returns the assessed score, or the default when there is none.
func (e *Engine) CulturalFit(assessment *types.Assessment) float64 {
	if assessment == nil || assessment.CulturalFitScore == nil || math.IsNaN(*assessment.CulturalFitScore) {
		return e.defaultCulturalFit
	}
	return clamp(*assessment.CulturalFitScore)
}

// Overall is the weighted sum of the four sub-scores.
func (e *Engine) Overall(r types.ScoreResult) float64 {
	w := e.weights
	return clamp(r.SkillsMatchScore*w.Skills +
		r.ExperienceScore*w.Experience +
		r.EducationScore*w.Education +
		r.CulturalFitScore*w.CulturalFit)
}

// Recommend maps a score to the first band whose threshold it reaches.
func (e *Engine) Recommend(score float64) string {
	for _, b := range e.bands {
		if score >= b.Threshold {
			return b.Label
		}
	}
	return e.bands[len(e.bands)-1].Label
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
