package scoring

import (
	"fmt"

	"golang.org/x/text/language"
)

// DefaultLocale is the collation locale of the clinics' display labels.
var DefaultLocale = language.BrazilianPortuguese

// ParseLocale parses a BCP-47 tag, falling back to DefaultLocale when s is empty.
func ParseLocale(s string) (language.Tag, error) {
	if s == "" {
		return DefaultLocale, nil
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("parsing locale %q: %w", s, err)
	}
	return tag, nil
}
