// Package index maintains a flat embedding index over profile content and
// serves nearest-neighbour retrieval for the answer engine.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/applypilot/applypilot/internal/profile"
)

// Entry is one indexed unit of profile content: the originating dotted-path
// key, the rendered text, and the embedding vector. A nil vector marks an
// entry whose embedding failed; such entries are kept but never retrieved.
type Entry struct {
	Key    string    `json:"key"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector,omitempty"`
}

// Top-level collections that additionally get one concatenated aggregate
// entry so broad questions ("describe your experience") retrieve well.
var aggregateKeys = map[string]bool{
	"experiences":    true,
	"education":      true,
	"skills":         true,
	"languages":      true,
	"certifications": true,
	"projects":       true,
	"interests":      true,
}

// fieldSynonyms paraphrases well-known leaf names so semantically equivalent
// question phrasings land on the right entry.
var fieldSynonyms = map[string]string{
	"salary":         "Expected salary / Desired compensation / Annual salary",
	"desired_salary": "Expected salary / Desired compensation / Annual salary",
	"phone":          "Phone number / Mobile number / Telephone",
	"phone_prefix":   "Phone country prefix / Dial code",
	"city":           "City / Location / Place of residence",
	"country":        "Country / Country of residence",
	"visa_required":  "Visa required / Work authorization / Sponsorship needed",
	"citizenship":    "Citizenship / Nationality",
}

// BuildEntries flattens a profile into index entries. Structured profiles
// produce one entry per leaf plus one aggregate per known collection;
// free-text profiles produce one entry per paragraph.
func BuildEntries(p *profile.Profile) []Entry {
	if root := p.Root(); root != nil {
		return buildStructured(root)
	}
	return buildFreeText(p.FreeText())
}

func buildStructured(root map[string]any) []Entry {
	var entries []Entry
	for _, key := range sortedKeys(root) {
		walk(key, root[key], &entries)
		if aggregateKeys[key] {
			if agg := renderValue(root[key]); agg != "" {
				entries = append(entries, Entry{
					Key:  key,
					Text: humanize(key) + ": " + agg,
				})
			}
		}
	}
	return entries
}

// walk emits one entry per scalar leaf, keyed by dotted path with index
// suffixes ("experiences[2].employment_period").
func walk(path string, v any, out *[]Entry) {
	switch x := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(x) {
			walk(path+"."+k, x[k], out)
		}
	case []any:
		for i, item := range x {
			walk(fmt.Sprintf("%s[%d]", path, i), item, out)
		}
	default:
		s := profile.RenderScalar(v)
		if s == "" {
			return
		}
		*out = append(*out, Entry{Key: path, Text: renderLeaf(path, s)})
	}
}

// renderLeaf produces the entry text for a scalar leaf, applying synonym
// paraphrases for well-known field names.
func renderLeaf(path, value string) string {
	leaf := path
	if i := strings.LastIndexByte(leaf, '.'); i >= 0 {
		leaf = leaf[i+1:]
	}
	leaf = strings.TrimRight(leaf, "0123456789[]")
	if syn, ok := fieldSynonyms[leaf]; ok {
		return syn + ": " + value
	}
	return humanize(leaf) + ": " + value
}

// renderValue renders an arbitrary subtree as one delimited line.
func renderValue(v any) string {
	switch x := v.(type) {
	case map[string]any:
		parts := make([]string, 0, len(x))
		for _, k := range sortedKeys(x) {
			if s := renderValue(x[k]); s != "" {
				parts = append(parts, humanize(k)+": "+s)
			}
		}
		return strings.Join(parts, ", ")
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s := renderValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return profile.RenderScalar(v)
	}
}

// buildFreeText splits a free-text resume into paragraph entries.
func buildFreeText(text string) []Entry {
	var entries []Entry
	i := 0
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		entries = append(entries, Entry{
			Key:  fmt.Sprintf("text[%d]", i),
			Text: para,
		})
		i++
	}
	return entries
}

func humanize(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
