// Package extraction turns CV text and model output into candidate records.
package extraction

import (
	"math"
	"time"

	"recruitflow/internal/errors"
	"recruitflow/internal/types"
)

// Normalizer builds candidate records from a model response, falling back to
// regular-expression extraction over the raw text.
type Normalizer struct {
	keywords []string
	now      func() time.Time
}

// NewNormalizer creates a normalizer using DefaultSkillKeywords.
func NewNormalizer() *Normalizer {
	return &Normalizer{keywords: DefaultSkillKeywords, now: time.Now}
}

// WithKeywords returns a copy using a different skill keyword list.
func (n *Normalizer) WithKeywords(keywords []string) *Normalizer {
	c := *n
	c.keywords = keywords
	return &c
}

// regexFields holds everything the pattern extractors found in raw text.
type regexFields struct {
	email  string
	phone  string
	skills []string
	years  int
}

func (n *Normalizer) scan(rawText string) regexFields {
	return regexFields{
		email:  ExtractEmail(rawText),
		phone:  ExtractPhone(rawText),
		skills: ExtractSkills(rawText, n.keywords),
		years:  ExtractYearsOfExperience(rawText),
	}
}

// Normalize produces a candidate record from rawText and an optional model
// response. A usable response is enriched by the regex extractors; otherwise
// the record is built from the extractors alone and flagged low confidence.
// An error is returned only when nothing at all can be recovered.
func (n *Normalizer) Normalize(rawText, modelResponse string) (types.CandidateRecord, error) {
	found := n.scan(rawText)

	if modelResponse != "" {
		if rec, err := ParseModelResponse(modelResponse, n.now()); err == nil {
			return n.enrich(rec, found), nil
		}
	}
	return n.fallback(rawText, found)
}

// enrich merges regex results into a structured record. Regex contact details
// and years win; skills are the union.
func (n *Normalizer) enrich(rec types.CandidateRecord, found regexFields) types.CandidateRecord {
	contributed := false

	if found.email != "" && found.email != rec.Email {
		rec.Email = found.email
		contributed = true
	}
	if found.phone != "" && found.phone != rec.Phone {
		rec.Phone = found.phone
		contributed = true
	}
	if found.years > 0 && float64(found.years) != rec.ExperienceYears {
		rec.ExperienceYears = float64(found.years)
		contributed = true
	}

	before := len(rec.Skills)
	rec.Skills = types.NormalizeSkills(append(rec.Skills, found.skills...))
	if len(rec.Skills) > before {
		contributed = true
	}

	hasName := rec.Name != ""
	rec.Name = FormatCandidateName(rec.Name)
	rec.ExperienceYears = math.Min(rec.ExperienceYears, maxPlausibleYears)

	rec.ExtractionMethod = types.ExtractionModel
	if contributed {
		rec.ExtractionMethod = types.ExtractionModelRegex
	}
	if !hasName || !rec.HasSubstance() {
		rec = rec.WithLowConfidence()
	}
	return rec
}

func (n *Normalizer) fallback(rawText string, found regexFields) (types.CandidateRecord, error) {
	name := guessName(rawText)
	if name == "" && found.email == "" && found.phone == "" && len(found.skills) == 0 && found.years == 0 {
		return types.CandidateRecord{}, errors.NewExtractionError(errors.ErrCodeExtractionFailed,
			"no candidate information could be extracted", nil)
	}

	rec := types.CandidateRecord{
		Name:             FormatCandidateName(name),
		Email:            found.email,
		Phone:            found.phone,
		ExperienceYears:  float64(found.years),
		Skills:           types.NormalizeSkills(found.skills),
		ExtractionMethod: types.ExtractionRegex,
	}
	return rec.WithLowConfidence(), nil
}
