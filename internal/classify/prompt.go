package classify

import "github.com/applypilot/applypilot/internal/provider"

const systemPrompt = `You are a question classification engine for job application forms. Analyze the question and respond with ONLY a single valid JSON object, no other text, prose, or markdown:

{"question_type": "...", "keywords": ["..."], "confidence": 0.0, "language": "..", "expected_format": "..."}

question_type must be one of:
- "language_proficiency": asks about proficiency in a spoken language
- "skill_level": asks about proficiency with a tool or technology
- "years_experience": asks for a number of years of experience
- "education": asks about degrees or fields of study
- "personal": asks for contact or identity details
- "salary": asks about compensation expectations
- "availability": asks about start date or availability
- "notice_period": asks about the current notice period
- "visa_status": asks about work authorization or sponsorship
- "general": anything else

expected_format must be one of "text", "number", "selection", "boolean".
language is the ISO 639-1 code of the question's language.
confidence is your confidence in question_type, between 0 and 1.`

// buildPrompt constructs the chat messages for one classification call.
func buildPrompt(question string) []provider.Message {
	return []provider.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: question},
	}
}
