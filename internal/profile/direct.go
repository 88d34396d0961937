package profile

import "strings"

// Phrase banks for deterministic intent detection. A question direct-matches
// a personal-information field when its lowercased form contains any bank
// phrase. English and German forms are covered.
var (
	emailPhrases     = []string{"email", "e-mail"}
	phonePhrases     = []string{"phone", "mobile", "telefon", "handy"}
	firstNamePhrases = []string{"first name", "given name", "vorname"}
	lastNamePhrases  = []string{"last name", "family name", "surname", "nachname"}
	countryPhrases   = []string{"country", "vorwahl", "wohnsitzland", "welchem land"}
)

// DirectMatch resolves a fixed set of personal-information questions without
// any model involvement. It returns the profile value and true on a hit.
// Country questions containing the word "code" are never direct-matched:
// those are country-code selectors and belong to the option matcher.
func (p *Profile) DirectMatch(question string) (string, bool) {
	q := strings.ToLower(question)
	if q == "" {
		return "", false
	}

	if containsAny(q, emailPhrases) {
		if v := p.Personal("email"); v != "" {
			return v, true
		}
	}
	if containsAny(q, phonePhrases) {
		if v := p.Phone(); v != "" {
			return v, true
		}
	}
	if containsAny(q, firstNamePhrases) {
		if v := p.Personal("name"); v != "" {
			return v, true
		}
	}
	if containsAny(q, lastNamePhrases) {
		if v := p.Personal("surname"); v != "" {
			return v, true
		}
	}
	if containsAny(q, countryPhrases) && !strings.Contains(q, "code") {
		if v := p.Personal("country"); v != "" {
			return v, true
		}
	}
	return "", false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
