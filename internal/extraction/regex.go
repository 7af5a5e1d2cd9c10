package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	disallowedChars   = regexp.MustCompile(`[^\p{L}\p{N}_\s\.\,\;\:\-\(\)\@\+\#]`)

	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

	// Tried in order; the first pattern with a match wins.
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?1?[-.\s]?\(?(\d{3})\)?[-.\s]?(\d{3})[-.\s]?(\d{4})`),
		regexp.MustCompile(`\+?(\d{1,3})[-.\s]?(\d{3,4})[-.\s]?(\d{3,4})[-.\s]?(\d{3,4})`),
		regexp.MustCompile(`(\d{10})`),
	}

	// Matched against lowercased text; the largest plausible value wins.
	experiencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*(?:\+)?\s*years?\s*(?:of)?\s*experience`),
		regexp.MustCompile(`experience\s*(?:of)?\s*(\d+)\s*(?:\+)?\s*years?`),
		regexp.MustCompile(`(\d+)\s*(?:\+)?\s*yrs?\s*(?:of)?\s*experience`),
		regexp.MustCompile(`(\d+)\s*(?:\+)?\s*years?\s*in`),
	}
)

// maxPlausibleYears caps years of experience read from free text.
const maxPlausibleYears = 50

// DefaultSkillKeywords is the keyword list used by the skill extractor.
var DefaultSkillKeywords = []string{
	// languages
	"python", "java", "javascript", "c++", "c#", "php", "ruby", "go", "rust", "swift",
	"kotlin", "scala", "r", "matlab", "sql", "html", "css", "typescript",
	// frameworks and libraries
	"react", "angular", "vue", "nodejs", "express", "django", "flask", "spring",
	"laravel", "rails", "tensorflow", "pytorch", "keras", "pandas", "numpy",
	// databases
	"mysql", "postgresql", "mongodb", "redis", "elasticsearch", "oracle", "sqlite",
	// cloud and devops
	"aws", "azure", "gcp", "docker", "kubernetes", "jenkins", "git", "ci/cd",
	"terraform", "ansible",
	// disciplines
	"machine learning", "data science", "artificial intelligence", "blockchain",
	"cybersecurity", "network security", "web development", "mobile development",
	"ui/ux design", "product management", "project management", "agile", "scrum",
}

// CleanText collapses whitespace and replaces characters outside words and
// common punctuation with spaces.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = disallowedChars.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractEmail returns the first email address in text, or "".
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// ExtractPhone returns the digits captured by the first matching phone pattern, or "".
func ExtractPhone(text string) string {
	for _, p := range phonePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.Join(m[1:], "")
		}
	}
	return ""
}

// ExtractYearsOfExperience returns the largest stated number of years of
// experience up to 50, or 0 when none is stated.
func ExtractYearsOfExperience(text string) int {
	lower := strings.ToLower(text)
	best := 0
	for _, p := range experiencePatterns {
		for _, m := range p.FindAllStringSubmatch(lower, -1) {
			years, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if years > best && years <= maxPlausibleYears {
				best = years
			}
		}
	}
	return best
}

// ExtractSkills returns the keywords found in text as whole words, title-cased,
// in keyword order.
func ExtractSkills(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range keywords {
		if containsWord(lower, strings.ToLower(kw)) {
			found = append(found, titleCase(kw))
		}
	}
	return found
}

// containsWord reports whether word occurs in text without a letter or digit
// directly before or after it, so "go" does not match "good".
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if !isWordByte(text, start-1) && !isWordByte(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordByte(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	c := text[i]
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "ci/cd" becomes "Ci/Cd".
func titleCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		sb.WriteRune(r)
		prevLetter = false
	}
	return sb.String()
}

// UnknownCandidate names a candidate whose name could not be extracted.
const UnknownCandidate = "Unknown Candidate"

// FormatCandidateName collapses whitespace and title-cases the name.
func FormatCandidateName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return UnknownCandidate
	}
	return titleCase(name)
}

// guessName treats a short first line made only of letters as the candidate's name.
func guessName(rawText string) string {
	for line := range strings.Lines(rawText) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 || len(line) > 60 {
			return ""
		}
		for _, w := range words {
			for _, r := range w {
				if !unicode.IsLetter(r) && r != '.' && r != '\'' && r != '-' {
					return ""
				}
			}
		}
		return line
	}
	return ""
}
