package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainFromHref_Reducible(t *testing.T) {
	got := DomainFromHref("/url?q=https://www.verywellfit.com/best-green-teas-5115813")
	assert.Equal(t, "verywellfit.com", got)
}

func TestDomainFromHref_NoPrefix(t *testing.T) {
	// A bare absolute URL never qualifies, blacklisted host or not.
	got := DomainFromHref("https://support.google.com/websearch/answer/181196")
	assert.Equal(t, "", got)
}

func TestDomainFromHref_BlacklistedHosts(t *testing.T) {
	hosts := []string{
		"support.google.com",
		"www.google.com",
		"accounts.google.com",
		"policies.google.com",
		"www.amazon.com",
	}
	for _, h := range hosts {
		got := DomainFromHref("/url?q=https://" + h + "/some/path")
		assert.Equal(t, "", got, "host %s should be rejected", h)
	}
}

func TestDomainFromHref_GoogleSubstringHost(t *testing.T) {
	got := DomainFromHref("/url?q=https://maps.google.com/place/x")
	assert.Equal(t, "", got)
}

func TestDomainFromHref_StripsWWWAndLowercases(t *testing.T) {
	got := DomainFromHref("/url?q=https://WWW.CashKaro.COM/offers")
	assert.Equal(t, "cashkaro.com", got)
}

func TestDomainFromHref_Unparseable(t *testing.T) {
	got := DomainFromHref("/url?q=ht!tp://%zz")
	assert.Equal(t, "", got)
}

func TestDomainFromHref_EmptyHost(t *testing.T) {
	got := DomainFromHref("/url?q=/relative/path")
	assert.Equal(t, "", got)
}

func TestBlacklisted(t *testing.T) {
	cases := []struct {
		domain string
		want   bool
	}{
		{"verywellfit.com", false},
		{"old.reddit.com", true},
		{"youtube.com", true},
		{"pinterest.co.uk", true},
		{"amazon.de", true},
		{"linkedin.com", true},
		{"github.io", true},
		{"microsoft.com", true},
		{"cashkaro.com", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Blacklisted(tc.domain), tc.domain)
	}
}

func TestFounderQueries(t *testing.T) {
	got := FounderQueries("verywellfit.com")
	want := []string{
		`site:linkedin.com "verywellfit.com" AND "founder"`,
		`site:linkedin.com "verywellfit.com" AND "ceo"`,
		`site:linkedin.com "verywellfit.com" AND "owner"`,
	}
	assert.Equal(t, want, got)
}

func TestProductQuery(t *testing.T) {
	assert.Equal(t, "herbal green tea face gel", ProductQuery("  Herbal Green Tea Face Gel "))
}

func TestDomainFromHref_Deterministic(t *testing.T) {
	href := "/url?q=https://www.verywellfit.com/a"
	first := DomainFromHref(href)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DomainFromHref(href))
	}
}
