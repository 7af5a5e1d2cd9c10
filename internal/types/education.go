package types

import (
	"fmt"
	"regexp"
	"strings"
)

// EducationLevel is an ordinal degree level.
type EducationLevel int

const (
	EducationNone EducationLevel = iota
	EducationCertificate
	EducationBachelor
	EducationMaster
	EducationDoctorate
)

var educationNames = [...]string{"none", "certificate", "bachelor", "master", "doctorate"}

func (l EducationLevel) String() string {
	if l < EducationNone || l > EducationDoctorate {
		return fmt.Sprintf("EducationLevel(%d)", int(l))
	}
	return educationNames[l]
}

// MarshalText encodes the level by name.
func (l EducationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts a level name or free degree text.
func (l *EducationLevel) UnmarshalText(text []byte) error {
	*l = ParseEducationLevel(string(text))
	return nil
}

// Ordered from most to least specific so "master of business" is not read as a bachelor.
var educationPatterns = []struct {
	level   EducationLevel
	pattern *regexp.Regexp
}{
	{EducationDoctorate, regexp.MustCompile(`\b(doctorate|doctoral|doctor|ph\.?\s?d|d\.?phil|edd)\b`)},
	{EducationMaster, regexp.MustCompile(`\b(master'?s?|mba|m\.?sc|m\.?s|m\.?a|m\.?eng|m\.?tech|mphil)\b`)},
	{EducationBachelor, regexp.MustCompile(`\b(bachelor'?s?|b\.?sc|b\.?s|b\.?a|b\.?eng|b\.?e|b\.?tech|undergraduate)\b`)},
	{EducationCertificate, regexp.MustCompile(`\b(certificate|certification|certified|diploma|associate'?s?|bootcamp)\b`)},
}

// noRequirement lists the texts that state no degree is needed.
var noRequirement = map[string]bool{
	"none": true, "any": true, "not required": true, "no degree": true, "high school": true,
}

// KnownEducationLevel reports whether text names a level or a degree that
// ParseEducationLevel understands.
func KnownEducationLevel(text string) bool {
	if ParseEducationLevel(text) != EducationNone {
		return true
	}
	return noRequirement[strings.ToLower(strings.TrimSpace(text))]
}

// ParseEducationLevel maps a level name or degree text to a level. Unknown
// text maps to EducationNone.
func ParseEducationLevel(text string) EducationLevel {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for i, name := range educationNames {
		if normalized == name {
			return EducationLevel(i)
		}
	}
	for _, p := range educationPatterns {
		if p.pattern.MatchString(normalized) {
			return p.level
		}
	}
	return EducationNone
}
