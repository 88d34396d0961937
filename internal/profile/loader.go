package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"
)

// Load reads a profile document from path, dispatching on the file
// extension: .yaml/.yml, .json, .pdf, or .txt.
func Load(path string) (*Profile, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return loadPDF(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	switch ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	case ".txt":
		return NewText(string(data)), nil
	default:
		return nil, &ParseError{Format: ext, Err: fmt.Errorf("unsupported profile format")}
	}
}

// ParseYAML parses an indent-based mapping document.
func ParseYAML(data []byte) (*Profile, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Format: "yaml", Err: err}
	}
	if root == nil {
		return nil, &ParseError{Format: "yaml", Err: fmt.Errorf("document is empty")}
	}
	return New(normalizeTree(root).(map[string]any)), nil
}

// ParseJSON parses a JSON mapping document.
func ParseJSON(data []byte) (*Profile, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Format: "json", Err: err}
	}
	if len(root) == 0 {
		return nil, &ParseError{Format: "json", Err: fmt.Errorf("document is empty")}
	}
	return New(root), nil
}

// loadPDF extracts the plain text of a PDF resume.
func loadPDF(path string) (*Profile, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, &ParseError{Format: "pdf", Err: err}
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, &ParseError{Format: "pdf", Err: err}
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, &ParseError{Format: "pdf", Err: err}
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, &ParseError{Format: "pdf", Err: fmt.Errorf("document carries no extractable text")}
	}
	return NewText(text), nil
}

// normalizeTree converts yaml.v3 map[any]any nodes (emitted for non-string
// keys) into map[string]any so lookup paths behave uniformly.
func normalizeTree(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeTree(val)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprintf("%v", k)] = normalizeTree(val)
		}
		return m
	case []any:
		for i, val := range x {
			x[i] = normalizeTree(val)
		}
		return x
	default:
		return v
	}
}
