package types

import (
	"fmt"
	"strings"
)

const notSpecified = "Not specified"

func listOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

// Profile renders the candidate as plain text for model prompts.
func (c CandidateRecord) Profile() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", c.Name)
	fmt.Fprintf(&sb, "Current Role: %s\n", orDefault(c.CurrentRole, notSpecified))
	if c.ExperienceYears > 0 {
		fmt.Fprintf(&sb, "Experience: %.1f years\n", c.ExperienceYears)
	} else {
		fmt.Fprintf(&sb, "Experience: %s\n", notSpecified)
	}
	fmt.Fprintf(&sb, "Skills: %s\n", listOr(c.Skills, notSpecified))

	if len(c.Experience) > 0 {
		sb.WriteString("Work History:\n")
		for _, e := range c.Experience {
			fmt.Fprintf(&sb, "- %s at %s (%d months)\n", orDefault(e.Title, "Unknown role"), orDefault(e.Organization, "unknown organization"), e.DurationMonths)
		}
	}

	degrees := make([]string, 0, len(c.Education))
	for _, e := range c.Education {
		degree := e.Degree
		if e.Institution != "" {
			degree += ", " + e.Institution
		}
		degrees = append(degrees, degree)
	}
	fmt.Fprintf(&sb, "Education: %s\n", listOr(degrees, notSpecified))
	if len(c.Certifications) > 0 {
		fmt.Fprintf(&sb, "Certifications: %s\n", strings.Join(c.Certifications, ", "))
	}
	fmt.Fprintf(&sb, "Summary: %s", orDefault(c.Summary, "Not provided"))
	return sb.String()
}

// descriptionLimit bounds the job description quoted in prompts.
const descriptionLimit = 500

// Summary renders the requirement as plain text for model prompts.
func (j JobRequirement) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Job Title: %s\n", j.Title)
	fmt.Fprintf(&sb, "Company: %s\n", orDefault(j.Company, notSpecified))
	if j.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", j.Location)
	}
	if j.JobType != "" {
		fmt.Fprintf(&sb, "Job Type: %s\n", j.JobType)
	}
	fmt.Fprintf(&sb, "Required Skills: %s\n", listOr(j.RequiredSkills, notSpecified))
	fmt.Fprintf(&sb, "Preferred Skills: %s\n", listOr(j.PreferredSkills, notSpecified))
	if j.MinExperienceYears > 0 {
		fmt.Fprintf(&sb, "Min Experience: %g years\n", j.MinExperienceYears)
	}
	fmt.Fprintf(&sb, "Education: %s\n", orDefault(j.EducationLevel, notSpecified))
	if len(j.Responsibilities) > 0 {
		fmt.Fprintf(&sb, "Key Responsibilities: %s\n", strings.Join(j.Responsibilities, "; "))
	}

	description := j.Description
	if len(description) > descriptionLimit {
		description = strings.ToValidUTF8(description[:descriptionLimit], "") + "..."
	}
	fmt.Fprintf(&sb, "Description: %s", orDefault(description, "Not provided"))
	return sb.String()
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
