package types

import (
	"strings"
)

// Document is one raw input document before text extraction. Err is set
// when the document could not be loaded; the run records it as a failed item.
type Document struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
	Err  error  `json:"-"`
}

// FailedDocument returns a placeholder for a document that could not be loaded.
func FailedDocument(name string, err error) Document {
	return Document{Name: name, Err: err}
}

// ExperienceEntry is one position held by a candidate.
type ExperienceEntry struct {
	Title          string `json:"title"`
	Organization   string `json:"organization"`
	DurationMonths int    `json:"duration_months"`
	Description    string `json:"description,omitempty"`
}

// EducationEntry is one degree or certification course.
type EducationEntry struct {
	Degree         string `json:"degree"`
	Institution    string `json:"institution"`
	Field          string `json:"field,omitempty"`
	GraduationYear int    `json:"graduation_year,omitempty"`
}

// Extraction methods recorded on a candidate record.
const (
	ExtractionModel      = "model"
	ExtractionModelRegex = "model+regex"
	ExtractionRegex      = "regex"
)

// CandidateRecord is the structured form of one parsed CV. It is created once
// by extraction; only the confidence flag may change afterwards.
type CandidateRecord struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Location         string            `json:"location,omitempty"`
	CurrentRole      string            `json:"current_role,omitempty"`
	ExperienceYears  float64           `json:"experience_years"`
	Skills           []string          `json:"skills"`
	Experience       []ExperienceEntry `json:"experience"`
	Education        []EducationEntry  `json:"education"`
	Certifications   []string          `json:"certifications,omitempty"`
	Languages        []string          `json:"languages,omitempty"`
	Summary          string            `json:"summary,omitempty"`
	RawText          string            `json:"raw_text,omitempty"`
	FileName         string            `json:"file_name,omitempty"`
	LowConfidence    bool              `json:"low_confidence"`
	ExtractionMethod string            `json:"extraction_method"`
}

// WithLowConfidence returns a copy flagged as low confidence.
func (c CandidateRecord) WithLowConfidence() CandidateRecord {
	c.LowConfidence = true
	return c
}

// TotalExperienceMonths sums the experience entries. Without entries it falls
// back to the stated years of experience.
func (c CandidateRecord) TotalExperienceMonths() int {
	total := 0
	for _, e := range c.Experience {
		if e.DurationMonths > 0 {
			total += e.DurationMonths
		}
	}
	if total == 0 && c.ExperienceYears > 0 {
		total = int(c.ExperienceYears * 12)
	}
	return total
}

// HighestEducation returns the highest level found across education entries and certifications.
func (c CandidateRecord) HighestEducation() EducationLevel {
	highest := EducationNone
	for _, e := range c.Education {
		if level := ParseEducationLevel(e.Degree); level > highest {
			highest = level
		}
	}
	if highest == EducationNone && len(c.Certifications) > 0 {
		highest = EducationCertificate
	}
	return highest
}

// HasSubstance reports whether the record carries any scoring-relevant field.
func (c CandidateRecord) HasSubstance() bool {
	return len(c.Skills) > 0 || len(c.Experience) > 0 || len(c.Education) > 0
}

// NormalizeSkills trims skills and drops case-insensitive duplicates, keeping
// the first spelling seen.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// CandidateStatus tracks where a candidate stands after a run.
type CandidateStatus string

const (
	StatusPending     CandidateStatus = "pending"
	StatusShortlisted CandidateStatus = "shortlisted"
	StatusRejected    CandidateStatus = "rejected"
	StatusInterviewed CandidateStatus = "interviewed"
)
