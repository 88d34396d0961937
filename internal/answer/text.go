package answer

import (
	"regexp"
	"strconv"
	"strings"
)

// reasoningRe matches the <think>…</think> spans some providers emit.
var reasoningRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes reasoning-tag spans and trims the result.
func StripReasoning(s string) string {
	return strings.TrimSpace(reasoningRe.ReplaceAllString(s, ""))
}

// numericKeywords mark questions whose answer must be a bare number.
var numericKeywords = []string{
	"number", "how many", "salary", "euro", "eur", "year", "years", "jahre", "gehalt",
}

// experienceKeywords narrow numeric questions to years-of-experience ones,
// whose answers are clamped to at least 1.
var experienceKeywords = []string{"experience", "erfahrung"}

// IsNumeric reports whether the question expects a numeric answer.
func IsNumeric(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range numericKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func isExperience(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range experienceKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

var numberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// coerceNumber extracts the first decimal number in s. For experience
// questions values below 1 clamp to 1. Returns s unchanged when it carries
// no number.
func coerceNumber(s string, experience bool) string {
	num := numberRe.FindString(s)
	if num == "" {
		return s
	}
	if experience {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", "."), 64); err == nil && v < 1 {
			return "1"
		}
	}
	return num
}
