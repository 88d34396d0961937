// Package classify tags application-form questions with a type, keywords,
// language, and expected answer format using a fast local model, with a
// keyword-heuristic fallback when the model is unavailable.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/applypilot/applypilot/internal/provider"
)

const classifyTimeout = 3 * time.Second

// Question types form a closed enum; anything else collapses to "general".
const (
	TypeLanguageProficiency = "language_proficiency"
	TypeSkillLevel          = "skill_level"
	TypeYearsExperience     = "years_experience"
	TypeEducation           = "education"
	TypePersonal            = "personal"
	TypeSalary              = "salary"
	TypeAvailability        = "availability"
	TypeNoticePeriod        = "notice_period"
	TypeVisaStatus          = "visa_status"
	TypeGeneral             = "general"
)

var knownTypes = map[string]bool{
	TypeLanguageProficiency: true,
	TypeSkillLevel:          true,
	TypeYearsExperience:     true,
	TypeEducation:           true,
	TypePersonal:            true,
	TypeSalary:              true,
	TypeAvailability:        true,
	TypeNoticePeriod:        true,
	TypeVisaStatus:          true,
	TypeGeneral:             true,
}

var knownFormats = map[string]bool{
	"text":      true,
	"number":    true,
	"selection": true,
	"boolean":   true,
}

// Classification is the structured tag attached to one question.
type Classification struct {
	QuestionType   string   `json:"question_type"`
	Keywords       []string `json:"keywords"`
	Language       string   `json:"language"`
	ExpectedFormat string   `json:"expected_format"`
	Confidence     float64  `json:"confidence"`
}

// ValidationError reports a model response that does not match the
// classification schema.
type ValidationError struct {
	Raw string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid classification response: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Classifier tags questions, caching results per normalised question text.
// The cache is process-local and unbounded; Reset clears it on profile reload.
type Classifier struct {
	chatter provider.Chatter
	model   string

	mu    sync.Mutex
	cache map[string]Classification
}

// New creates a Classifier backed by the given chat provider and model.
func New(chatter provider.Chatter, model string) *Classifier {
	return &Classifier{
		chatter: chatter,
		model:   model,
		cache:   make(map[string]Classification),
	}
}

// Classify tags the question. It never fails: on provider or schema errors
// it falls back to keyword heuristics. Results are cached by normalised
// question text, so trailing whitespace and case differences hit the cache.
func (c *Classifier) Classify(ctx context.Context, question string) Classification {
	key := Normalize(question)
	if key == "" {
		return fallback(key)
	}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	result, err := c.classifyRemote(ctx, question)
	if err != nil {
		slog.Debug("classification fell back to heuristics", "error", err)
		result = fallback(key)
	}

	c.mu.Lock()
	c.cache[key] = result
	c.mu.Unlock()
	return result
}

func (c *Classifier) classifyRemote(ctx context.Context, question string) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	raw, err := c.chatter.Chat(ctx, c.model, buildPrompt(question), 0)
	if err != nil {
		return Classification{}, err
	}
	return Parse(raw)
}

// Parse extracts and validates a Classification from a raw model response.
// Only the first {…} span in the response is considered.
func Parse(raw string) (Classification, error) {
	span := firstObject(raw)
	if span == "" {
		return Classification{}, &ValidationError{Raw: raw, Err: fmt.Errorf("no JSON object in response")}
	}
	var result Classification
	if err := json.Unmarshal([]byte(span), &result); err != nil {
		return Classification{}, &ValidationError{Raw: raw, Err: err}
	}
	if result.QuestionType == "" {
		return Classification{}, &ValidationError{Raw: raw, Err: fmt.Errorf("question_type missing")}
	}
	// Unknown types collapse to general rather than failing.
	if !knownTypes[result.QuestionType] {
		result.QuestionType = TypeGeneral
	}
	if !knownFormats[result.ExpectedFormat] {
		result.ExpectedFormat = "text"
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	} else if result.Confidence > 1 {
		result.Confidence = 1
	}
	return result, nil
}

// Reset clears the classification cache.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]Classification)
}

// Normalize canonicalises question text for cache keying: lowercase with
// collapsed whitespace.
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// languageNames drive the heuristic fallback for proficiency questions.
var languageNames = []string{
	"english", "german", "french", "spanish", "italian", "dutch", "polish",
	"portuguese", "russian", "chinese", "japanese",
	"englisch", "deutsch", "französisch", "spanisch", "italienisch",
}

// fallback derives a Classification from keyword heuristics. key is the
// normalised question text.
func fallback(key string) Classification {
	result := Classification{
		QuestionType:   TypeGeneral,
		ExpectedFormat: "text",
		Language:       "en",
		Confidence:     0.3,
	}
	for _, lang := range languageNames {
		if strings.Contains(key, lang) {
			result.QuestionType = TypeLanguageProficiency
			result.Keywords = []string{lang}
			return result
		}
	}
	if strings.Contains(key, "years") || strings.Contains(key, "experience") ||
		strings.Contains(key, "jahre") || strings.Contains(key, "erfahrung") {
		result.QuestionType = TypeYearsExperience
		result.ExpectedFormat = "number"
		return result
	}
	return result
}

// firstObject returns the first balanced {…} span in s, skipping braces
// inside JSON strings.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
