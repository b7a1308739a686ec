// Package google scrapes Google web search through a rotating proxy
// pool. It is the single chokepoint for the domain and founder stages:
// proxy selection, retry policy, CAPTCHA detection, and response
// classification all live here.
package google

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.google.com"

	// notFoundPhrase is Google's marker for a query with zero hits.
	notFoundPhrase = "did not match any documents"

	// captchaRetries bounds proxy rotation per search. Must be > 0.
	captchaRetries = 10

	readTimeout = 30 * time.Second
)

// Intent selects which tags a search extracts.
type Intent int

const (
	IntentDomain Intent = iota
	IntentFounder
	IntentCompanyName
)

// Outcome classifies a completed search.
type Outcome int

const (
	// OutcomeResults: at least one h3 heading was present.
	OutcomeResults Outcome = iota
	// OutcomeNotFound: the engine explicitly reported no matches.
	OutcomeNotFound
	// OutcomeCaptchaBlocked: every retry came back blocked.
	OutcomeCaptchaBlocked
)

// Request describes one search. NextPageURL, when set, is fetched
// directly instead of the q= endpoint (domain-stage pagination).
type Request struct {
	Query       string
	NextPageURL string
	Intent      Intent
}

// Result is the classified response of one search.
type Result struct {
	Outcome     Outcome
	PageSource  string
	Links       []string // IntentDomain/IntentCompanyName: every a[href] on the page, in order
	Headings    []string // IntentFounder: every h3 text, in order
	NextPageURL string   // IntentDomain: first <a> inside the first <footer>, "" when absent
}

// Client performs classified Google searches.
type Client interface {
	Search(ctx context.Context, req Request) (*Result, error)
}

// Option configures the client.
type Option func(*scrapeClient)

// WithBaseURL overrides the search endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *scrapeClient) { c.baseURL = u }
}

// WithProxies overrides the proxy slate; an empty slate disables
// proxying entirely (tests).
func WithProxies(proxies []string) Option {
	return func(c *scrapeClient) { c.proxies = proxies }
}

// WithLimiter gates each outbound attempt behind a shared rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *scrapeClient) { c.limiter = l }
}

type scrapeClient struct {
	baseURL string
	proxies []string
	limiter *rate.Limiter
}

// NewClient creates a scraping search client using the built-in
// proxy pool.
func NewClient(opts ...Option) Client {
	c := &scrapeClient{
		baseURL: defaultBaseURL,
		proxies: proxyPool,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// newAttemptClient builds a throwaway HTTP client bound to a freshly
// picked proxy for both http and https traffic.
func (c *scrapeClient) newAttemptClient() (*http.Client, error) {
	transport := &http.Transport{}
	if len(c.proxies) > 0 {
		proxyURL, err := url.Parse(c.proxies[rand.IntN(len(c.proxies))])
		if err != nil {
			return nil, eris.Wrap(err, "google: parse proxy url")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   readTimeout,
	}, nil
}

// Search implements Client. One outbound request per retry attempt; a
// blocked or failed attempt rotates to a new proxy and leaks no partial
// results.
func (c *scrapeClient) Search(ctx context.Context, req Request) (*Result, error) {
	for attempt := 0; attempt < captchaRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "google: limiter wait")
			}
		}

		httpClient, err := c.newAttemptClient()
		if err != nil {
			return nil, err
		}

		body, err := c.fetch(ctx, httpClient, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "google: search cancelled")
			}
			zap.L().Warn("search attempt failed",
				zap.String("query", req.Query),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		result, blocked := classify(body, req.Intent)
		if blocked {
			zap.L().Warn("search blocked by captcha",
				zap.String("query", req.Query),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return result, nil
	}

	return &Result{Outcome: OutcomeCaptchaBlocked}, nil
}

func (c *scrapeClient) fetch(ctx context.Context, httpClient *http.Client, req Request) (string, error) {
	target := c.baseURL + "/search?q=" + url.QueryEscape(req.Query)
	if req.NextPageURL != "" {
		target = c.baseURL + req.NextPageURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "google: create request")
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return "", eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "google: read response body")
	}
	return string(body), nil
}

// classify parses a page body into a Result, or reports it as
// CAPTCHA-blocked (no h3 headings and no not-found phrase).
func classify(body string, intent Intent) (*Result, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// An unparseable body is indistinguishable from a block page.
		return nil, true
	}

	headings := make([]string, 0, 10)
	doc.Find("h3").Each(func(_ int, s *goquery.Selection) {
		headings = append(headings, s.Text())
	})

	if len(headings) == 0 {
		if strings.Contains(body, notFoundPhrase) {
			return &Result{Outcome: OutcomeNotFound, PageSource: body}, false
		}
		return nil, true
	}

	result := &Result{Outcome: OutcomeResults, PageSource: body}

	switch intent {
	case IntentDomain, IntentCompanyName:
		doc.Find("a").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				result.Links = append(result.Links, href)
			}
		})
		if intent == IntentDomain {
			if next, ok := doc.Find("footer").First().Find("a").First().Attr("href"); ok {
				result.NextPageURL = next
			}
		}
	case IntentFounder:
		result.Headings = headings
	}

	return result, false
}
