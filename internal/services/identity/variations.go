package identity

import (
	"regexp"
	"strings"
)

// MaxVariations bounds the probe list: four base slugs and their bse- forms.
const MaxVariations = 8

const dualListingPrefix = "bse-"

var (
	unwrapParens = regexp.MustCompile(`\(([^)]*)\)`)
	dropParens   = regexp.MustCompile(`\([^)]*\)`)
	nonSlugChars = regexp.MustCompile(`[^\w\s-]`)
	hyphenRuns   = regexp.MustCompile(`-+`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// Slug converts a company name into a quote-site URL segment.
// Parentheses are unwrapped, not dropped: "Foo (India) Ltd" -> "foo-india-ltd".
func Slug(text string) string {
	text = strings.ToLower(text)
	text = unwrapParens.ReplaceAllString(text, "$1")
	text = nonSlugChars.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, " ", "-")
	text = hyphenRuns.ReplaceAllString(text, "-")
	return strings.Trim(text, "-")
}

// URLVariations returns the ordered, de-duplicated slug candidates for name:
// full slug, parentheses dropped, legal suffix removed, both, then each again with the bse- prefix.
func URLVariations(name string) []string {
	clean := strings.TrimSpace(name)
	withoutSuffix := trimLegalSuffix(clean)

	base := make([]string, 0, MaxVariations/2)
	seen := make(map[string]bool, MaxVariations/2)
	add := func(slug string) {
		if slug == "" || seen[slug] {
			return
		}
		seen[slug] = true
		base = append(base, slug)
	}

	add(Slug(clean))
	add(Slug(withoutParens(clean)))
	add(Slug(withoutSuffix))
	add(Slug(withoutParens(withoutSuffix)))

	variations := make([]string, 0, len(base)*2)
	variations = append(variations, base...)
	for _, slug := range base {
		variations = append(variations, dualListingPrefix+slug)
	}
	return variations
}

func withoutParens(name string) string {
	dropped := strings.TrimSpace(dropParens.ReplaceAllString(name, ""))
	return spaceRuns.ReplaceAllString(dropped, " ")
}

// trimLegalSuffix removes one trailing " Ltd" or " Limited".
func trimLegalSuffix(name string) string {
	if trimmed, ok := strings.CutSuffix(name, " Ltd"); ok {
		return trimmed
	}
	if trimmed, ok := strings.CutSuffix(name, " Limited"); ok {
		return trimmed
	}
	return name
}
