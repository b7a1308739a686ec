package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadforge/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "leadforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_NicheRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	niche, err := s.GetNiche(ctx, "organic skincare")
	require.NoError(t, err)
	assert.Nil(t, niche)

	require.NoError(t, s.UpsertNicheProducts(ctx, "organic skincare", "p1",
		[]string{"Gel A", "Gel B"}))
	// Second insert unions; duplicates are dropped, the set only grows.
	require.NoError(t, s.UpsertNicheProducts(ctx, "organic skincare", "p2",
		[]string{"Gel B", "Gel C"}))

	niche, err = s.GetNiche(ctx, "organic skincare")
	require.NoError(t, err)
	require.NotNil(t, niche)
	assert.ElementsMatch(t, []string{"Gel A", "Gel B", "Gel C"}, niche.Products)
}

func TestSQLite_PageChainAndFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	err := s.InsertPage(ctx, Page{
		Query:      "gel a",
		Source:     "<html></html>",
		PageNumber: 1,
		Intent:     model.IntentDomain,
		AnyResult:  true,
		Tags: []PageTag{
			{Kind: model.TagA, Content: "/url?q=https://www.a.com",
				ExtractKind: model.ExtractDomain, ExtractValue: "a.com"},
			{Kind: model.TagA, Content: "https://no-extract.example"},
		},
	})
	require.NoError(t, err)

	unscraped, err := s.FilterUnscrapedQueries(ctx, []string{"gel a", "gel b"}, model.IntentDomain)
	require.NoError(t, err)
	assert.Equal(t, []string{"gel b"}, unscraped)

	// Same query under a different intent is still unscraped.
	unscraped, err = s.FilterUnscrapedQueries(ctx, []string{"gel a"}, model.IntentFounderName)
	require.NoError(t, err)
	assert.Equal(t, []string{"gel a"}, unscraped)
}

func TestSQLite_EmailLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	em := model.Email{Address: "dan@verywellfit.com", FounderName: "Dan Go", Domain: "verywellfit.com"}
	require.NoError(t, s.InsertEmail(ctx, em))
	// Unique collision is silently ignored.
	require.NoError(t, s.InsertEmail(ctx, em))

	require.NoError(t, s.UpdateEmailVerified(ctx, "dan@verywellfit.com"))

	// Join chain: email -> domain -> product -> niche.
	require.NoError(t, s.InsertProducts(ctx, "fitness", []model.Product{
		{Label: "Green Tea", Query: "green tea"},
	}))
	host := "verywellfit.com"
	fq := `site:linkedin.com "verywellfit.com" AND "founder"`
	require.NoError(t, s.InsertDomains(ctx, "green tea", []model.Domain{
		{CandidateURL: "/url?q=https://www.verywellfit.com/x", Host: &host, FounderQuery: &fq},
	}))

	leads, err := s.VerifiedLeadsForNiche(ctx, "fitness")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "dan@verywellfit.com", leads[0].Email)
	assert.Equal(t, "Green Tea", leads[0].Product)
	assert.Equal(t, "fitness", leads[0].Niche)
}

func TestSQLite_ConfigDefaultsSeeded(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	depth, err := s.ConfigValue(ctx, KeyPageDepth)
	require.NoError(t, err)
	assert.Equal(t, "1", depth)

	fresh, err := s.ConfigValue(ctx, KeyFreshResults)
	require.NoError(t, err)
	assert.Equal(t, "false", fresh)

	require.NoError(t, s.SetConfigValue(ctx, KeyPageDepth, "3"))
	depth, err = s.ConfigValue(ctx, KeyPageDepth)
	require.NoError(t, err)
	assert.Equal(t, "3", depth)

	missing, err := s.ConfigValue(ctx, "never-set")
	require.NoError(t, err)
	assert.Equal(t, "", missing)
}

func TestSQLite_CatalogClaim(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog_company (name) VALUES ('Acme Corp'), ('Globex')`)
	require.NoError(t, err)

	claimed, err := s.ClaimCatalogCompanies(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// A claimed job is not handed out twice.
	rest, err := s.ClaimCatalogCompanies(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.NotEqual(t, claimed[0].ID, rest[0].ID)
}

func TestSQLite_FoundersAndStats(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	name := "swati bhargava"
	require.NoError(t, s.InsertFounders(ctx, []model.Founder{
		{Domain: "cashkaro.com", Element: "Swati Bhargava - CashKaro.com - LinkedIn", ParsedName: &name},
		{Domain: "cashkaro.com", Element: "no splitter heading"},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["founder"])
	assert.Equal(t, int64(0), stats["email"])
}
