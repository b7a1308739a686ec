package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/pipeline"
	"github.com/sells-group/leadforge/internal/store"
	"github.com/sells-group/leadforge/pkg/anthropic"
	"github.com/sells-group/leadforge/pkg/google"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubSearch struct{}

func (stubSearch) Search(_ context.Context, req google.Request) (*google.Result, error) {
	if req.Intent == google.IntentFounder {
		if strings.Contains(req.Query, `"founder"`) {
			return &google.Result{
				Outcome:    google.OutcomeResults,
				PageSource: "<html>",
				Headings:   []string{"Dan Go's Post - LinkedIn"},
			}, nil
		}
		return &google.Result{Outcome: google.OutcomeNotFound}, nil
	}
	return &google.Result{
		Outcome:    google.OutcomeResults,
		PageSource: "<html>",
		Links:      []string{"/url?q=https://www.verywellfit.com/x"},
	}, nil
}

type stubProber struct{}

func (stubProber) Probe(_ context.Context, email string) (bool, error) {
	return email == "dan@verywellfit.com", nil
}

func (stubProber) ProbeCatchAll(context.Context, string) (bool, error) {
	return false, nil
}

type stubLLM struct{}

func (stubLLM) CreateMessage(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return &anthropic.MessageResponse{Text: "Green Tea", Model: "stub"}, nil
}

func newServerUnderTest(t *testing.T) (http.Handler, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	p := pipeline.New(st, stubSearch{}, stubProber{}, stubLLM{}, pipeline.Options{Model: "stub"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p.Start(ctx)

	return buildRouter(p, st), st
}

func TestServe_Health(t *testing.T) {
	router, _ := newServerUnderTest(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServe_LeadEndToEnd(t *testing.T) {
	router, _ := newServerUnderTest(t)

	req := httptest.NewRequest(http.MethodGet, "/lead?niche=fitness", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 60*time.Second)
	defer cancel()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	var addresses []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addresses))
	assert.Equal(t, []string{"dan@verywellfit.com"}, addresses)
}

func TestServe_LeadMissingNiche(t *testing.T) {
	router, _ := newServerUnderTest(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lead", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "niche is required", rec.Body.String())
}

func TestServe_LightningCountValidation(t *testing.T) {
	router, _ := newServerUnderTest(t)

	for _, target := range []string{
		"/lightning?niche=fitness",
		"/lightning?niche=fitness&count=0",
		"/lightning?niche=fitness&count=-2",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "count should be > 0", rec.Body.String(), target)
	}
}

func TestServe_LightningStreamsFirstN(t *testing.T) {
	router, _ := newServerUnderTest(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lightning?niche=fitness&count=1", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var addresses []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addresses))
	assert.Equal(t, []string{"dan@verywellfit.com"}, addresses)
}

func TestServe_Stats(t *testing.T) {
	router, _ := newServerUnderTest(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Contains(t, stats, "email")
	assert.Contains(t, stats, "fetched_page")
}
