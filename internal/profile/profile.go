// Package profile parses applicant profile documents and answers direct
// field lookups. A profile is a nested mapping with well-known top-level
// keys (personal_information, experiences, education, skills, languages,
// certifications, projects, interests); unknown keys are preserved and
// indexed but never direct-matched.
package profile

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed profile document.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s profile: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Profile is an immutable view of one applicant's profile document.
// Structured documents (YAML, JSON) populate root; free-text documents
// (PDF, TXT) populate text only.
type Profile struct {
	root map[string]any
	text string
}

// New wraps an already-parsed document tree.
func New(root map[string]any) *Profile {
	return &Profile{root: root}
}

// NewText wraps a free-text profile body.
func NewText(text string) *Profile {
	return &Profile{text: strings.TrimSpace(text)}
}

// Root returns the underlying document tree. Nil for free-text profiles.
func (p *Profile) Root() map[string]any { return p.root }

// FreeText returns the free-text body. Empty for structured profiles.
func (p *Profile) FreeText() string { return p.text }

// Lookup resolves a dotted path such as "personal_information.phone" or
// "experiences[2].employment_period" and renders the leaf as a string.
// The second return is false when the path does not resolve to a scalar.
func (p *Profile) Lookup(key string) (string, bool) {
	if p.root == nil || key == "" {
		return "", false
	}
	var cur any = p.root
	for _, seg := range strings.Split(key, ".") {
		name, idx, hasIdx, ok := splitIndex(seg)
		if !ok {
			return "", false
		}
		m, isMap := cur.(map[string]any)
		if !isMap {
			return "", false
		}
		cur, isMap = m[name], true
		if cur == nil {
			return "", false
		}
		if hasIdx {
			arr, isArr := cur.([]any)
			if !isArr || idx < 0 || idx >= len(arr) {
				return "", false
			}
			cur = arr[idx]
		}
	}
	s := RenderScalar(cur)
	if s == "" {
		return "", false
	}
	return s, true
}

// Personal is shorthand for Lookup("personal_information."+field).
func (p *Profile) Personal(field string) string {
	v, _ := p.Lookup("personal_information." + field)
	return v
}

// Salary returns the applicant's expected salary. The profile may carry it
// as either "salary" or "desired_salary"; they are aliases, with "salary"
// winning when both are present.
func (p *Profile) Salary() string {
	if v := p.Personal("salary"); v != "" {
		return v
	}
	return p.Personal("desired_salary")
}

// Phone returns phone_prefix+phone when both are present, otherwise
// whichever of the two is set.
func (p *Profile) Phone() string {
	prefix := p.Personal("phone_prefix")
	number := p.Personal("phone")
	if prefix != "" && number != "" {
		return prefix + number
	}
	if number != "" {
		return number
	}
	return prefix
}

// splitIndex parses a path segment of the form "name" or "name[3]".
func splitIndex(seg string) (name string, idx int, hasIdx, ok bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, 0, false, true
	}
	if !strings.HasSuffix(seg, "]") {
		return "", 0, false, false
	}
	n, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil {
		return "", 0, false, false
	}
	return seg[:open], n, true, true
}

// RenderScalar renders a leaf value as a plain string. Numbers keep their
// shortest decimal form so a salary of 75000 reads "75000", not "75000.00".
func RenderScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return ""
	}
}
