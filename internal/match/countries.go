package match

import "strings"

// country carries the hints that identify one country across locales:
// English name, German name, and international dial code.
type country struct {
	en   string
	de   string
	dial string
}

func (c *country) mentionedIn(s string) bool {
	return strings.Contains(s, c.en) || strings.Contains(s, c.de) || strings.Contains(s, c.dial)
}

// countries covers the locales the direct matcher handles plus common
// European application targets.
var countries = []country{
	{"germany", "deutschland", "+49"},
	{"france", "frankreich", "+33"},
	{"austria", "österreich", "+43"},
	{"switzerland", "schweiz", "+41"},
	{"netherlands", "niederlande", "+31"},
	{"spain", "spanien", "+34"},
	{"italy", "italien", "+39"},
	{"poland", "polen", "+48"},
	{"united kingdom", "vereinigtes königreich", "+44"},
	{"united states", "vereinigte staaten", "+1"},
}

// countryIn returns the country hinted at in s (already lowercased), or nil.
func countryIn(s string) *country {
	for i := range countries {
		if countries[i].mentionedIn(s) {
			return &countries[i]
		}
	}
	return nil
}
