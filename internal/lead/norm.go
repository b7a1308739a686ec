package lead

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeLabel canonicalizes a user-supplied niche label: surrounding
// whitespace trimmed, then Unicode-aware lowercasing. Two requests that
// differ only in case or padding resolve to the same niche row.
func NormalizeLabel(label string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(label))
}
