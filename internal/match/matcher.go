// Package match coerces a free-form answer into exactly one element of a
// closed option list, as select and radio form controls require.
package match

import "strings"

// similarityThreshold guards the containment rule: weaker matches fall
// through to the default option.
const similarityThreshold = 0.5

// Match returns the option the candidate answer maps to. It never fails:
// when no rule produces a reasonable match, the second option is returned
// (the first is frequently a "please select" placeholder), or the first
// when only one exists. Ties are broken by lowest option index.
func Match(candidate string, options []string) string {
	if len(options) == 0 {
		return ""
	}
	c := strings.ToLower(strings.TrimSpace(candidate))

	// 1. Exact case-insensitive match.
	for _, opt := range options {
		if strings.ToLower(strings.TrimSpace(opt)) == c {
			return opt
		}
	}

	// 2. Country hint: a country named in the candidate picks the option
	// naming the same country in either locale or by dial code.
	if country := countryIn(c); country != nil {
		for _, opt := range options {
			if country.mentionedIn(strings.ToLower(opt)) {
				return opt
			}
		}
	}

	// 3. Bidirectional substring containment, best symmetric score wins.
	best, bestScore := -1, 0.0
	for i, opt := range options {
		o := strings.ToLower(strings.TrimSpace(opt))
		if o == "" || c == "" {
			continue
		}
		if strings.Contains(o, c) || strings.Contains(c, o) {
			score := containmentScore(c, o)
			if score > bestScore {
				best, bestScore = i, score
			}
		}
	}
	// 4. Weak matches fall through to the default.
	if best >= 0 && bestScore > similarityThreshold {
		return options[best]
	}

	// 5. Default: skip the likely placeholder in front.
	if len(options) >= 2 {
		return options[1]
	}
	return options[0]
}

// containmentScore is a symmetric length-based similarity: the length of
// the contained string over the length of the containing one.
func containmentScore(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}
