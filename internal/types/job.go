package types

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"recruitflow/internal/errors"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

// JobRequirement is one job description's criteria. Supplied externally and
// never modified by the pipeline.
type JobRequirement struct {
	Title              string   `json:"title" validate:"required"`
	Company            string   `json:"company,omitempty"`
	Location           string   `json:"location,omitempty"`
	RequiredSkills     []string `json:"required_skills" validate:"dive,required"`
	PreferredSkills    []string `json:"preferred_skills" validate:"dive,required"`
	MinExperienceYears float64  `json:"min_experience_years" validate:"gte=0,lte=60"`
	EducationLevel     string   `json:"education_level,omitempty" validate:"omitempty,education"`
	JobType            string   `json:"job_type,omitempty"`
	SalaryRange        string   `json:"salary_range,omitempty"`
	Description        string   `json:"description,omitempty"`
	Responsibilities   []string `json:"responsibilities,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("education", func(fl validator.FieldLevel) bool {
		return KnownEducationLevel(fl.Field().String())
	})
	return v
}

// RequiredEducation returns the required education level.
func (j JobRequirement) RequiredEducation() EducationLevel {
	return ParseEducationLevel(j.EducationLevel)
}

// Validate checks the requirement. A malformed requirement is a scoring input
// error and aborts a run before scoring starts.
func (j JobRequirement) Validate() error {
	err := validate.Struct(j)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewScoringInputError(errors.ErrCodeInvalidJob, "job requirement could not be validated", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return errors.NewScoringInputError(errors.ErrCodeInvalidJob,
		"invalid job requirement: "+strings.Join(problems, "; "), err).
		WithContext("job_title", j.Title)
}

// ParseJobRequirement decodes a requirement from YAML or JSON and validates it.
func ParseJobRequirement(data []byte) (JobRequirement, error) {
	var job JobRequirement
	if err := yaml.UnmarshalStrict(data, &job); err != nil {
		return JobRequirement{}, errors.NewScoringInputError(errors.ErrCodeInvalidJob, "failed to decode job requirement", err)
	}
	if err := job.Validate(); err != nil {
		return JobRequirement{}, err
	}
	return job, nil
}

// LoadJobRequirement reads a YAML or JSON job requirement file.
func LoadJobRequirement(path string) (JobRequirement, error) {
	if path == "" {
		return JobRequirement{}, errors.NewScoringInputError(errors.ErrCodeMissingJob, "no job requirement supplied", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return JobRequirement{}, errors.NewScoringInputError(errors.ErrCodeMissingJob,
			fmt.Sprintf("failed to read job requirement file: %s", path), err)
	}
	return ParseJobRequirement(data)
}

// DemoJob returns the sample requirement used by the CLI demo.
func DemoJob() JobRequirement {
	return JobRequirement{
		Title:              "Senior Software Engineer",
		Company:            "TechCorp Solutions",
		Location:           "San Francisco, CA (Hybrid)",
		RequiredSkills:     []string{"Python", "JavaScript", "React", "SQL", "Git"},
		PreferredSkills:    []string{"AWS", "Docker", "Kubernetes", "TypeScript", "Machine Learning"},
		MinExperienceYears: 5,
		EducationLevel:     "bachelor",
		JobType:            "Full-time",
		SalaryRange:        "$120,000 - $160,000",
		Description: "We are looking for a Senior Software Engineer to join our growing engineering team. " +
			"You will design, build and maintain scalable web applications and mentor junior developers.",
		Responsibilities: []string{
			"Design and implement scalable backend services",
			"Build responsive frontend applications with React",
			"Collaborate with product managers and designers",
			"Mentor junior engineers and conduct code reviews",
			"Participate in architecture decisions",
		},
	}
}
