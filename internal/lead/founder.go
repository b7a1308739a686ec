package lead

import "strings"

// nameSplitters are tried in priority order against a lowercased heading.
// The first one present defines the parsed name as the trimmed prefix
// before its first occurrence.
var nameSplitters = []string{
	"'s post -",
	"posted on",
	"on linkedin",
	"en linkedin",
	"auf linkedin",
	"sur linkedin",
	"-",
	"–", // en-dash, visually close to the hyphen but distinct
	"|",
}

// ParseFounderName extracts a person's name from a result heading.
// Returns "" when no splitter matches.
func ParseFounderName(heading string) string {
	lowered := strings.ToLower(heading)
	for _, splitter := range nameSplitters {
		if before, _, found := strings.Cut(lowered, splitter); found {
			return strings.TrimSpace(before)
		}
	}
	return ""
}

// Candidate carries one permuted address together with its provenance.
type Candidate struct {
	FounderName string
	Domain      string
	Email       string
}

// Permutations generates the six syntactic address shapes for a
// two-token name at a domain, in a fixed order: first, last, firstlast,
// first.last, first+initial-of-last, initial-of-first+last. Names that
// do not tokenize to exactly two words yield nothing.
func Permutations(name, domain string) []Candidate {
	tokens := strings.Fields(name)
	if len(tokens) != 2 {
		return nil
	}

	first := strings.ToLower(tokens[0])
	last := strings.ToLower(tokens[1])
	firstInitial := string([]rune(first)[0])
	lastInitial := string([]rune(last)[0])

	locals := []string{
		first,
		last,
		first + last,
		first + "." + last,
		first + lastInitial,
		firstInitial + last,
	}

	candidates := make([]Candidate, 0, len(locals))
	for _, local := range locals {
		candidates = append(candidates, Candidate{
			FounderName: name,
			Domain:      domain,
			Email:       local + "@" + domain,
		})
	}
	return candidates
}
