package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const domainPage = `<html><body>
<h3>Best Green Teas</h3>
<a href="/url?q=https://www.verywellfit.com/best-green-teas-5115813">result</a>
<a href="https://support.google.com/websearch/answer/181196">help</a>
<footer><a href="/search?q=green+tea&start=10">Next</a></footer>
</body></html>`

const founderPage = `<html><body>
<h3>Swati Bhargava - CashKaro.com - LinkedIn</h3>
<h3>Dan Go's Post - LinkedIn</h3>
</body></html>`

func newTestClient(serverURL string) Client {
	return NewClient(WithBaseURL(serverURL), WithProxies(nil))
}

func TestSearch_DomainIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "herbal green tea face gel", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(domainPage))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), Request{
		Query:  "herbal green tea face gel",
		Intent: IntentDomain,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeResults, res.Outcome)
	assert.Equal(t, []string{
		"/url?q=https://www.verywellfit.com/best-green-teas-5115813",
		"https://support.google.com/websearch/answer/181196",
		"/search?q=green+tea&start=10",
	}, res.Links)
	assert.Equal(t, "/search?q=green+tea&start=10", res.NextPageURL)
	assert.Equal(t, domainPage, res.PageSource)
}

func TestSearch_FounderIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(founderPage))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), Request{
		Query:  `site:linkedin.com "cashkaro.com" AND "founder"`,
		Intent: IntentFounder,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeResults, res.Outcome)
	assert.Equal(t, []string{
		"Swati Bhargava - CashKaro.com - LinkedIn",
		"Dan Go's Post - LinkedIn",
	}, res.Headings)
	assert.Empty(t, res.Links)
}

func TestSearch_NotFoundNoRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<html><body>Your search did not match any documents</body></html>`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), Request{
		Query:  "zxqv impossible query",
		Intent: IntentDomain,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, int64(1), hits.Load())
}

func TestSearch_CaptchaRetriesThenBlocked(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<html><body>Unusual traffic from your network</body></html>`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), Request{
		Query:  "anything",
		Intent: IntentDomain,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCaptchaBlocked, res.Outcome)
	assert.Equal(t, int64(10), hits.Load())
}

func TestSearch_CaptchaThenSuccess(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			_, _ = w.Write([]byte(`<html><body>blocked</body></html>`))
			return
		}
		_, _ = w.Write([]byte(founderPage))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), Request{
		Query:  "q",
		Intent: IntentFounder,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeResults, res.Outcome)
	assert.Equal(t, int64(3), hits.Load())
}

func TestSearch_NextPageURLFetchedDirectly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("start"))
		_, _ = w.Write([]byte(domainPage))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), Request{
		Query:       "green tea",
		NextPageURL: "/search?q=green+tea&start=10",
		Intent:      IntentDomain,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeResults, res.Outcome)
}

func TestSearch_TransportErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse every connection

	res, err := newTestClient(srv.URL).Search(context.Background(), Request{
		Query:  "q",
		Intent: IntentDomain,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCaptchaBlocked, res.Outcome)
}

func TestClassify_PageWithoutFooter(t *testing.T) {
	res, blocked := classify(`<html><body><h3>Hit</h3><a href="/url?q=https://x.com">x</a></body></html>`, IntentDomain)
	assert.False(t, blocked)
	assert.Equal(t, "", res.NextPageURL)
	assert.Equal(t, []string{"/url?q=https://x.com"}, res.Links)
}
