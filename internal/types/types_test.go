package types

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recruitflow/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEducationLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected EducationLevel
	}{
		{"", EducationNone},
		{"none", EducationNone},
		{"bachelor", EducationBachelor},
		{"Bachelor of Science in Computer Science", EducationBachelor},
		{"B.Sc. Mathematics", EducationBachelor},
		{"BTech", EducationBachelor},
		{"Master's in Data Science", EducationMaster},
		{"MBA", EducationMaster},
		{"M.Sc Physics", EducationMaster},
		{"PhD in Machine Learning", EducationDoctorate},
		{"Doctor of Philosophy", EducationDoctorate},
		{"AWS Certified Solutions Architect", EducationCertificate},
		{"Associate Degree in Networking", EducationCertificate},
		{"High School", EducationNone},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseEducationLevel(tt.input))
		})
	}
}

func TestEducationLevelOrdering(t *testing.T) {
	assert.Less(t, EducationNone, EducationCertificate)
	assert.Less(t, EducationCertificate, EducationBachelor)
	assert.Less(t, EducationBachelor, EducationMaster)
	assert.Less(t, EducationMaster, EducationDoctorate)
	assert.Equal(t, "master", EducationMaster.String())
}

func TestCandidateRecordDerivedFields(t *testing.T) {
	c := CandidateRecord{
		Experience: []ExperienceEntry{
			{Title: "Engineer", DurationMonths: 24},
			{Title: "Senior Engineer", DurationMonths: 30},
			{Title: "Intern", DurationMonths: -3},
		},
		Education: []EducationEntry{
			{Degree: "BSc Computer Science"},
			{Degree: "MSc Software Engineering"},
		},
	}
	assert.Equal(t, 54, c.TotalExperienceMonths())
	assert.Equal(t, EducationMaster, c.HighestEducation())
	assert.True(t, c.HasSubstance())

	yearsOnly := CandidateRecord{ExperienceYears: 3.5}
	assert.Equal(t, 42, yearsOnly.TotalExperienceMonths())
	assert.Equal(t, EducationNone, yearsOnly.HighestEducation())
	assert.False(t, yearsOnly.HasSubstance())

	certified := CandidateRecord{Certifications: []string{"CKA"}}
	assert.Equal(t, EducationCertificate, certified.HighestEducation())
}

func TestWithLowConfidenceDoesNotMutate(t *testing.T) {
	original := CandidateRecord{Name: "Jane"}
	flagged := original.WithLowConfidence()
	assert.True(t, flagged.LowConfidence)
	assert.False(t, original.LowConfidence)
}

func TestNormalizeSkills(t *testing.T) {
	got := NormalizeSkills([]string{" Python", "python", "SQL", "", "  ", "Go", "PYTHON", "sql"})
	assert.Equal(t, []string{"Python", "SQL", "Go"}, got)
	assert.Empty(t, NormalizeSkills(nil))
}

func TestKnownEducationLevel(t *testing.T) {
	for _, text := range []string{"bachelor", "Bachelor", "Master of Science", "PhD", "none", "Not required"} {
		assert.True(t, KnownEducationLevel(text), text)
	}
	for _, text := range []string{"wizard", "some college maybe"} {
		assert.False(t, KnownEducationLevel(text), text)
	}
}

func TestJobRequirementValidate(t *testing.T) {
	tests := []struct {
		name        string
		job         JobRequirement
		expectError bool
	}{
		{name: "demo job", job: DemoJob()},
		{name: "minimal", job: JobRequirement{Title: "Analyst"}},
		{name: "missing title", job: JobRequirement{RequiredSkills: []string{"SQL"}}, expectError: true},
		{name: "negative experience", job: JobRequirement{Title: "Analyst", MinExperienceYears: -1}, expectError: true},
		{name: "capitalized education level", job: JobRequirement{Title: "Analyst", EducationLevel: "Bachelor"}},
		{name: "free text education", job: JobRequirement{Title: "Analyst", EducationLevel: "Bachelor's degree in CS"}},
		{name: "no degree needed", job: JobRequirement{Title: "Analyst", EducationLevel: "High School"}},
		{name: "unknown education level", job: JobRequirement{Title: "Analyst", EducationLevel: "wizard"}, expectError: true},
		{name: "blank skill", job: JobRequirement{Title: "Analyst", PreferredSkills: []string{"Go", ""}}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if !tt.expectError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeScoringInput))
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestLoadJobRequirement(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
title: Data Engineer
company: Acme
required_skills: [Python, SQL]
preferred_skills:
  - Spark
min_experience_years: 3
education_level: bachelor
`), 0600))

	job, err := LoadJobRequirement(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Data Engineer", job.Title)
	assert.Equal(t, []string{"Python", "SQL"}, job.RequiredSkills)
	assert.Equal(t, []string{"Spark"}, job.PreferredSkills)
	assert.Equal(t, 3.0, job.MinExperienceYears)
	assert.Equal(t, EducationBachelor, job.RequiredEducation())

	jsonPath := filepath.Join(dir, "job.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"title":"QA","required_skills":["Selenium"]}`), 0600))
	job, err = LoadJobRequirement(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "QA", job.Title)

	unknownField := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(unknownField, []byte("title: QA\nsalary: lots\n"), 0600))
	_, err = LoadJobRequirement(unknownField)
	assert.True(t, errors.IsType(err, errors.ErrorTypeScoringInput))

	_, err = LoadJobRequirement("")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMissingJob, errors.Code(err))
}

func TestCandidateProfile(t *testing.T) {
	rec := CandidateRecord{
		Name:            "Jane Doe",
		ExperienceYears: 6,
		Skills:          []string{"Go", "SQL"},
		Experience:      []ExperienceEntry{{Title: "Engineer", Organization: "Acme", DurationMonths: 48}},
		Education:       []EducationEntry{{Degree: "MSc", Institution: "TU Berlin"}},
	}
	profile := rec.Profile()
	assert.Contains(t, profile, "Name: Jane Doe")
	assert.Contains(t, profile, "Experience: 6.0 years")
	assert.Contains(t, profile, "Skills: Go, SQL")
	assert.Contains(t, profile, "- Engineer at Acme (48 months)")
	assert.Contains(t, profile, "Education: MSc, TU Berlin")
	assert.Contains(t, profile, "Current Role: Not specified")

	empty := CandidateRecord{Name: "Unknown Candidate"}.Profile()
	assert.Contains(t, empty, "Skills: Not specified")
	assert.NotContains(t, empty, "Work History")
}

func TestJobSummary(t *testing.T) {
	job := DemoJob()
	job.Description = strings.Repeat("x", 600)

	summary := job.Summary()
	assert.Contains(t, summary, "Job Title: Senior Software Engineer")
	assert.Contains(t, summary, "Required Skills: Python, JavaScript, React, SQL, Git")
	assert.Contains(t, summary, "Min Experience: 5 years")
	assert.Contains(t, summary, strings.Repeat("x", 500)+"...")
	assert.NotContains(t, summary, strings.Repeat("x", 501))
}
