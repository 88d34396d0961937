package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Providers drift in the shapes they emit. The decoders below try a strict
// parse first, then fall back to the first {…} span in the body, and finally
// synthesise the canonical field from known aliases. Partial data is accepted.

// firstJSONObject returns the first balanced {…} span in s, or "" if none.
// Braces inside JSON strings are skipped.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
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

// looseUnmarshal parses data into v, retrying on the first JSON object span
// when the body carries prose around the payload.
func looseUnmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}
	span := firstJSONObject(string(data))
	if span == "" {
		return fmt.Errorf("no JSON object in response body")
	}
	return json.Unmarshal([]byte(span), v)
}

// chatPayload covers the local chat shape plus the aliases providers emit.
type chatPayload struct {
	Message  *Message `json:"message"`
	Content  string   `json:"content"`
	Text     string   `json:"text"`
	Response string   `json:"response"`
}

// decodeChat extracts assistant content from a local chat response body.
func decodeChat(body []byte) (string, error) {
	var p chatPayload
	if err := looseUnmarshal(body, &p); err != nil {
		return "", err
	}
	if p.Message != nil && p.Message.Content != "" {
		return p.Message.Content, nil
	}
	// Canonical field absent: synthesise from known aliases.
	for _, alt := range []string{p.Content, p.Text, p.Response} {
		if alt != "" {
			return alt, nil
		}
	}
	return "", fmt.Errorf("chat response carries no content")
}

// generatePayload covers the local generate shape plus aliases.
type generatePayload struct {
	Response string   `json:"response"`
	Content  string   `json:"content"`
	Text     string   `json:"text"`
	Message  *Message `json:"message"`
}

// decodeGenerate extracts the completion from a local generate response body.
func decodeGenerate(body []byte) (string, error) {
	var p generatePayload
	if err := looseUnmarshal(body, &p); err != nil {
		return "", err
	}
	if p.Response != "" {
		return p.Response, nil
	}
	for _, alt := range []string{p.Content, p.Text} {
		if alt != "" {
			return alt, nil
		}
	}
	if p.Message != nil && p.Message.Content != "" {
		return p.Message.Content, nil
	}
	return "", fmt.Errorf("generate response carries no content")
}

// embedPayload is the local embeddings response shape.
type embedPayload struct {
	Embedding []float32 `json:"embedding"`
}

// decodeEmbedding extracts the vector from an embeddings response body.
// Unlike chat and generate there is no alias to synthesise from: a missing
// or empty vector is a schema failure.
func decodeEmbedding(body []byte) ([]float32, error) {
	var p embedPayload
	if err := looseUnmarshal(body, &p); err != nil {
		return nil, err
	}
	if len(p.Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response carries no vector")
	}
	return p.Embedding, nil
}

// completionsPayload is the remote chat/completions response shape.
type completionsPayload struct {
	Choices []struct {
		Message *Message `json:"message"`
		Text    string   `json:"text"`
	} `json:"choices"`
	Content  string `json:"content"`
	Response string `json:"response"`
}

// decodeCompletions extracts assistant content from a remote chat response body.
func decodeCompletions(body []byte) (string, error) {
	var p completionsPayload
	if err := looseUnmarshal(body, &p); err != nil {
		return "", err
	}
	if len(p.Choices) > 0 {
		if c := p.Choices[0]; c.Message != nil && c.Message.Content != "" {
			return c.Message.Content, nil
		} else if c.Text != "" {
			return c.Text, nil
		}
	}
	for _, alt := range []string{p.Content, p.Response} {
		if alt != "" {
			return alt, nil
		}
	}
	return "", fmt.Errorf("completions response carries no content")
}
