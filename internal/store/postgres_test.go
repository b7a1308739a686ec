package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestGetNiche_Absent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT prompt, generated_product FROM niche`).
		WithArgs("organic skincare").
		WillReturnRows(pgxmock.NewRows([]string{"prompt", "generated_product"}))

	niche, err := s.GetNiche(context.Background(), "organic skincare")
	require.NoError(t, err)
	assert.Nil(t, niche)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNiche_Present(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT prompt, generated_product FROM niche`).
		WithArgs("organic skincare").
		WillReturnRows(pgxmock.NewRows([]string{"prompt", "generated_product"}).
			AddRow("prompt text", "Herbal Green Tea Face Gel").
			AddRow("prompt text", "Natural Aloe Vera Gel"))

	niche, err := s.GetNiche(context.Background(), "organic skincare")
	require.NoError(t, err)
	require.NotNil(t, niche)
	assert.Equal(t, []string{"Herbal Green Tea Face Gel", "Natural Aloe Vera Gel"}, niche.Products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNicheProducts_SetUnion(t *testing.T) {
	s, mock := newMockStore(t)
	for range 2 {
		mock.ExpectExec(`INSERT INTO niche`).
			WithArgs("organic skincare", "p", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	err := s.UpsertNicheProducts(context.Background(), "organic skincare", "p",
		[]string{"Gel A", "Gel B"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPage_TagChainTransactional(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO fetched_page`).
		WithArgs("q", "<html>", 1, "DOMAIN", true).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectQuery(`INSERT INTO html_tag`).
		WithArgs(int64(7), 0, "A", "/url?q=https://www.verywellfit.com/x").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(71)))
	mock.ExpectExec(`INSERT INTO data_extract`).
		WithArgs(int64(71), "DOMAIN", "verywellfit.com").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO html_tag`).
		WithArgs(int64(7), 1, "A", "https://support.google.com/x").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(72)))
	mock.ExpectCommit()

	err := s.InsertPage(context.Background(), Page{
		Query:      "q",
		Source:     "<html>",
		PageNumber: 1,
		Intent:     model.IntentDomain,
		AnyResult:  true,
		Tags: []PageTag{
			{Kind: model.TagA, Content: "/url?q=https://www.verywellfit.com/x",
				ExtractKind: model.ExtractDomain, ExtractValue: "verywellfit.com"},
			{Kind: model.TagA, Content: "https://support.google.com/x"},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPage_EmptyNoResult(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO fetched_page`).
		WithArgs("q", "", 0, "FOUNDER_NAME", false).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	err := s.InsertPage(context.Background(), Page{
		Query:  "q",
		Intent: model.IntentFounderName,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterUnscrapedQueries(t *testing.T) {
	s, mock := newMockStore(t)
	queries := []string{"a", "b", "c"}
	mock.ExpectQuery(`SELECT search_query FROM fetched_page`).
		WithArgs(queries, "DOMAIN").
		WillReturnRows(pgxmock.NewRows([]string{"search_query"}).AddRow("b"))

	got, err := s.FilterUnscrapedQueries(context.Background(), queries, model.IntentDomain)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEmail_UniqueCollisionIgnored(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO email`).
		WithArgs("dan@verywellfit.com", "Dan Go", "verywellfit.com").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := s.InsertEmail(context.Background(), model.Email{
		Address:     "dan@verywellfit.com",
		FounderName: "Dan Go",
		Domain:      "verywellfit.com",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmailVerified(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE email SET verification_status = 'VERIFIED', reachability = 'SAFE'`).
		WithArgs("dan@verywellfit.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateEmailVerified(context.Background(), "dan@verywellfit.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmailUnverified(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE email SET verification_status = 'INVALID', reachability = 'INVALID'`).
		WithArgs("no@verywellfit.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateEmailUnverified(context.Background(), "no@verywellfit.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigValue_Missing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT value FROM configuration`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	v, err := s.ConfigValue(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}
