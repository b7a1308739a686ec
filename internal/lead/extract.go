// Package lead holds the pure domain logic of the pipeline: reducing
// search-result anchors to company domains, parsing founder names out of
// result headings, and permuting candidate addresses. Everything here is
// deterministic; re-running any function on the same input yields the
// same output.
package lead

import (
	"net/url"
	"strings"
)

// searchHostBlacklist lists exact hosts that are never company domains.
var searchHostBlacklist = map[string]struct{}{
	"support.google.com":  {},
	"www.google.com":      {},
	"accounts.google.com": {},
	"policies.google.com": {},
	"www.amazon.com":      {},
}

// DomainBlacklist lists substrings that disqualify a domain from the
// founder stage. Disqualified domains are still persisted as extracts.
var DomainBlacklist = []string{
	"reddit",
	"youtube",
	"pinterest",
	"amazon",
	"linkedin",
	"github",
	"microsoft",
}

// DomainFromHref reduces a search-result anchor href to a normalized
// company host. A href qualifies iff it begins with "/url?q=", parses as
// a URL, and its host is non-empty, not a blacklisted search host, and
// does not contain "google.com". The host is lowercased and a leading
// "www." is stripped. Returns "" when the href is not reducible.
func DomainFromHref(href string) string {
	raw, ok := strings.CutPrefix(href, "/url?q=")
	if !ok {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := parsed.Hostname()
	if host == "" {
		return ""
	}
	if _, blocked := searchHostBlacklist[host]; blocked {
		return ""
	}
	if strings.Contains(host, "google.com") {
		return ""
	}

	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

// Blacklisted reports whether a normalized domain contains any
// blacklist substring.
func Blacklisted(domain string) bool {
	for _, sub := range DomainBlacklist {
		if strings.Contains(domain, sub) {
			return true
		}
	}
	return false
}

// founderTitles are the role keywords a founder search is fanned out over.
var founderTitles = []string{"founder", "ceo", "owner"}

// FounderQueries builds one LinkedIn-scoped search query per title for a
// domain, in a fixed order.
func FounderQueries(domain string) []string {
	queries := make([]string, 0, len(founderTitles))
	for _, title := range founderTitles {
		queries = append(queries, `site:linkedin.com "`+domain+`" AND "`+title+`"`)
	}
	return queries
}

// ProductQuery derives the domain-search query for a product name.
func ProductQuery(product string) string {
	return strings.ToLower(strings.TrimSpace(product))
}

// CompanyQuery derives the domain-discovery query for a catalog company.
func CompanyQuery(name string) string {
	return `"` + name + `" official website`
}
