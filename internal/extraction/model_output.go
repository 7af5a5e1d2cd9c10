package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"recruitflow/internal/errors"
	"recruitflow/internal/types"

	"github.com/xeipuuv/gojsonschema"
)

// candidateSchema checks the shape of a model response. It only constrains
// types; missing fields are handled by the normalizer.
const candidateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name":             {"type": ["string", "null"]},
    "email":            {"type": ["string", "null"]},
    "phone":            {"type": ["string", "number", "null"]},
    "location":         {"type": ["string", "null"]},
    "current_role":     {"type": ["string", "null"]},
    "experience_years": {"type": ["number", "string", "null"]},
    "skills":           {"type": ["array", "null"], "items": {"type": "string"}},
    "education":        {"type": ["array", "null"], "items": {"type": ["object", "string"]}},
    "certifications":   {"type": ["array", "null"], "items": {"type": ["string", "object", "null"]}},
    "work_experience":  {"type": ["array", "null"], "items": {"type": "object"}},
    "languages":        {"type": ["array", "null"], "items": {"type": ["string", "object", "null"]}},
    "summary":          {"type": ["string", "null"]}
  }
}`

var compiledCandidateSchema = mustCompileSchema(candidateSchema)

func mustCompileSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid candidate schema: %v", err))
	}
	return schema
}

// ExtractJSONObject strips markdown fences and returns the text between the
// first '{' and the last '}'.
func ExtractJSONObject(response string) (string, bool) {
	return extractDelimited(response, "{", "}")
}

// ExtractJSONArray returns the text between the first '[' and the last ']'.
func ExtractJSONArray(response string) (string, bool) {
	return extractDelimited(response, "[", "]")
}

func extractDelimited(response, open, close string) (string, bool) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, open)
	end := strings.LastIndex(cleaned, close)
	if start < 0 || end <= start {
		return "", false
	}
	return cleaned[start : end+1], true
}

// ParseModelResponse validates a model response against the candidate schema
// and converts it to a candidate record. now anchors open-ended date ranges.
func ParseModelResponse(response string, now time.Time) (types.CandidateRecord, error) {
	raw, ok := ExtractJSONObject(response)
	if !ok {
		return types.CandidateRecord{}, errors.NewExtractionError(errors.ErrCodeInvalidModelOutput,
			"model response contains no JSON object", nil)
	}

	result, err := compiledCandidateSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return types.CandidateRecord{}, errors.NewExtractionError(errors.ErrCodeInvalidModelOutput,
			"model response is not valid JSON", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return types.CandidateRecord{}, errors.NewExtractionError(errors.ErrCodeInvalidModelOutput,
			"model response does not match the candidate schema: "+strings.Join(problems, "; "), nil)
	}

	var mc modelCandidate
	if err := json.Unmarshal([]byte(raw), &mc); err != nil {
		return types.CandidateRecord{}, errors.NewExtractionError(errors.ErrCodeInvalidModelOutput,
			"failed to decode model response", err)
	}
	return mc.toRecord(now), nil
}

// modelCandidate is the loosely typed candidate object the model returns.
type modelCandidate struct {
	Name            flexString      `json:"name"`
	Email           flexString      `json:"email"`
	Phone           flexString      `json:"phone"`
	Location        flexString      `json:"location"`
	CurrentRole     flexString      `json:"current_role"`
	ExperienceYears flexFloat       `json:"experience_years"`
	Skills          []string        `json:"skills"`
	Education       []flexEducation `json:"education"`
	Certifications  []flexString    `json:"certifications"`
	WorkExperience  []modelPosition `json:"work_experience"`
	Languages       []flexString    `json:"languages"`
	Summary         flexString      `json:"summary"`
}

type modelPosition struct {
	Company          flexString   `json:"company"`
	Organization     flexString   `json:"organization"`
	Role             flexString   `json:"role"`
	Title            flexString   `json:"title"`
	Duration         flexString   `json:"duration"`
	DurationMonths   flexFloat    `json:"duration_months"`
	Responsibilities []flexString `json:"responsibilities"`
	Description      flexString   `json:"description"`
}

func (mc modelCandidate) toRecord(now time.Time) types.CandidateRecord {
	rec := types.CandidateRecord{
		Name:            strings.TrimSpace(string(mc.Name)),
		Email:           strings.TrimSpace(string(mc.Email)),
		Phone:           strings.TrimSpace(string(mc.Phone)),
		Location:        string(mc.Location),
		CurrentRole:     string(mc.CurrentRole),
		ExperienceYears: math.Max(0, float64(mc.ExperienceYears)),
		Skills:          types.NormalizeSkills(mc.Skills),
		Certifications:  nonEmpty(mc.Certifications),
		Languages:       nonEmpty(mc.Languages),
		Summary:         string(mc.Summary),
	}

	for _, e := range mc.Education {
		if e.Degree == "" && e.Institution == "" {
			continue
		}
		rec.Education = append(rec.Education, types.EducationEntry(e))
	}

	for _, p := range mc.WorkExperience {
		entry := types.ExperienceEntry{
			Title:        firstNonEmpty(string(p.Role), string(p.Title)),
			Organization: firstNonEmpty(string(p.Company), string(p.Organization)),
			Description:  string(p.Description),
		}
		if entry.Description == "" && len(p.Responsibilities) > 0 {
			entry.Description = strings.Join(nonEmpty(p.Responsibilities), "; ")
		}
		if p.DurationMonths > 0 {
			entry.DurationMonths = int(math.Round(float64(p.DurationMonths)))
		} else {
			entry.DurationMonths = ParseDurationMonths(string(p.Duration), now)
		}
		if entry.Title == "" && entry.Organization == "" {
			continue
		}
		rec.Experience = append(rec.Experience, entry)
	}
	return rec
}

var (
	yearRangePattern = regexp.MustCompile(`((?:19|20)\d{2})\s*(?:-|–|—|to|until)\s*((?:19|20)\d{2}|present|current|now|today)`)
	yearsPattern     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:years?|yrs?)`)
	monthsPattern    = regexp.MustCompile(`(\d+)\s*(?:months?|mos?)\b`)
)

// ParseDurationMonths reads durations such as "2019 - 2022", "2020 - Present",
// "3 years" or "1 year 6 months". Unrecognized text yields 0.
func ParseDurationMonths(text string, now time.Time) int {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return 0
	}

	if m := yearRangePattern.FindStringSubmatch(lower); m != nil {
		start, _ := strconv.Atoi(m[1])
		end := now.Year()
		if y, err := strconv.Atoi(m[2]); err == nil {
			end = y
		}
		if end < start {
			return 0
		}
		return (end - start) * 12
	}

	months := 0.0
	if m := yearsPattern.FindStringSubmatch(lower); m != nil {
		years, _ := strconv.ParseFloat(m[1], 64)
		months += years * 12
	}
	if m := monthsPattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		months += float64(n)
	}
	return int(math.Round(months))
}

// flexString decodes a JSON string, number or null. Objects yield their
// "name", "title" or "language" field.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	case len(data) > 0 && data[0] == '{':
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		for _, key := range []string{"name", "title", "language"} {
			if s, ok := obj[key].(string); ok {
				*f = flexString(strings.TrimSpace(s))
				break
			}
		}
	default:
		*f = flexString(string(data))
	}
	return nil
}

var leadingNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// flexFloat decodes a JSON number, a string starting with a number ("5+ years") or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, _ := strconv.ParseFloat(leadingNumber.FindString(s), 64)
		*f = flexFloat(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// flexEducation decodes an education object or a bare degree string.
type flexEducation struct {
	Degree         string
	Institution    string
	Field          string
	GraduationYear int
}

func (f *flexEducation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.Degree = strings.TrimSpace(s)
		return nil
	}

	var obj struct {
		Degree         flexString `json:"degree"`
		Institution    flexString `json:"institution"`
		Field          flexString `json:"field"`
		Year           flexFloat  `json:"year"`
		GraduationYear flexFloat  `json:"graduation_year"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Degree = string(obj.Degree)
	f.Institution = string(obj.Institution)
	f.Field = string(obj.Field)
	f.GraduationYear = int(max(obj.Year, obj.GraduationYear))
	return nil
}

func nonEmpty(values []flexString) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(string(v)); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
