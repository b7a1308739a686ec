package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadforge/internal/db"
	"github.com/sells-group/leadforge/internal/model"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-index collision.
const uniqueViolation = "23505"

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with the pipeline's pool shape:
// min 5 / max 20 connections, 15 minute idle timeout, no max lifetime.
// Acquisition deadlines are the caller's business via context.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MinConns = 5
	cfg.MaxConns = 20
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.MaxConnLifetime = 0

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (tests use pgxmock here).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS niche (
	user_niche        TEXT NOT NULL,
	prompt            TEXT NOT NULL,
	generated_product TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_niche, generated_product)
);

CREATE TABLE IF NOT EXISTS product (
	id                TEXT PRIMARY KEY,
	niche             TEXT NOT NULL,
	product           TEXT NOT NULL,
	domain_search_query TEXT NOT NULL,
	no_results        BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (niche, product)
);

CREATE TABLE IF NOT EXISTS fetched_page (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	search_query TEXT NOT NULL,
	page_source  TEXT NOT NULL,
	page_number  INT NOT NULL,
	intent       TEXT NOT NULL,
	any_result   BOOLEAN NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_fetched_page_query ON fetched_page(search_query, intent);

CREATE TABLE IF NOT EXISTS html_tag (
	id       BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	page_id  BIGINT NOT NULL REFERENCES fetched_page(id),
	position INT NOT NULL,
	kind     TEXT NOT NULL,
	content  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_html_tag_page ON html_tag(page_id);

CREATE TABLE IF NOT EXISTS data_extract (
	id      BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	tag_id  BIGINT NOT NULL REFERENCES html_tag(id),
	kind    TEXT NOT NULL,
	value   TEXT NOT NULL,
	UNIQUE (tag_id)
);

CREATE TABLE IF NOT EXISTS domain (
	id                   TEXT PRIMARY KEY,
	product_query        TEXT NOT NULL,
	domain_candidate_url TEXT NOT NULL,
	domain               TEXT,
	founder_search_query TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_domain_product_query ON domain(product_query);
CREATE INDEX IF NOT EXISTS idx_domain_domain ON domain(domain);

CREATE TABLE IF NOT EXISTS founder (
	id             TEXT PRIMARY KEY,
	domain         TEXT NOT NULL,
	element_content TEXT NOT NULL,
	founder_name   TEXT,
	no_results     BOOLEAN NOT NULL DEFAULT false,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_founder_domain ON founder(domain);

CREATE TABLE IF NOT EXISTS email (
	email_address       TEXT NOT NULL,
	founder_name        TEXT NOT NULL,
	domain              TEXT NOT NULL,
	verification_status TEXT NOT NULL DEFAULT 'PENDING',
	reachability        TEXT NOT NULL DEFAULT 'UNKNOWN',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_email_address ON email(email_address);

CREATE TABLE IF NOT EXISTS catalog_company (
	id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name          TEXT NOT NULL,
	business_name TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	scraped_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS configuration (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

INSERT INTO configuration (key, value) VALUES
	('google-search-domain-page-depth', '1'),
	('chatgpt-products-for-niche-start', 'Give names of different product examples in the following niche: '),
	('chatgpt-products-for-niche-end', '. Only return around 10 product names, one per line, separated by newlines. Do not number the products.'),
	('fresh-results', 'false')
ON CONFLICT (key) DO NOTHING;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) GetNiche(ctx context.Context, label string) (*model.Niche, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT prompt, generated_product FROM niche WHERE user_niche = $1`,
		label,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get niche %s", label)
	}
	defer rows.Close()

	niche := &model.Niche{Label: label}
	for rows.Next() {
		var product string
		if err := rows.Scan(&niche.Prompt, &product); err != nil {
			return nil, eris.Wrap(err, "postgres: scan niche row")
		}
		niche.Products = append(niche.Products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: niche rows")
	}
	if len(niche.Products) == 0 {
		return nil, nil
	}
	return niche, nil
}

func (s *PostgresStore) UpsertNicheProducts(ctx context.Context, label, prompt string, products []string) error {
	for _, p := range products {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO niche (user_niche, prompt, generated_product)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_niche, generated_product) DO NOTHING`,
			label, prompt, p,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert niche product %s", label)
		}
	}
	return nil
}

func (s *PostgresStore) InsertProducts(ctx context.Context, niche string, products []model.Product) error {
	for _, p := range products {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO product (id, niche, product, domain_search_query)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (niche, product) DO NOTHING`,
			id, niche, p.Label, p.Query,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert product %s", p.Label)
		}
	}
	return nil
}

func (s *PostgresStore) MarkProductNoResults(ctx context.Context, query string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE product SET no_results = true WHERE domain_search_query = $1`,
		query,
	)
	return eris.Wrapf(err, "postgres: mark product no results %s", query)
}

func (s *PostgresStore) InsertPage(ctx context.Context, page Page) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin page insert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var pageID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO fetched_page (search_query, page_source, page_number, intent, any_result)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		page.Query, page.Source, page.PageNumber, string(page.Intent), page.AnyResult,
	).Scan(&pageID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert fetched page")
	}

	for i, tag := range page.Tags {
		var tagID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO html_tag (page_id, position, kind, content)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			pageID, i, string(tag.Kind), tag.Content,
		).Scan(&tagID)
		if err != nil {
			return eris.Wrap(err, "postgres: insert html tag")
		}

		if tag.ExtractValue != "" {
			_, err = tx.Exec(ctx,
				`INSERT INTO data_extract (tag_id, kind, value) VALUES ($1, $2, $3)`,
				tagID, string(tag.ExtractKind), tag.ExtractValue,
			)
			if err != nil {
				return eris.Wrap(err, "postgres: insert data extract")
			}
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit page insert")
}

func (s *PostgresStore) FilterUnscrapedQueries(ctx context.Context, queries []string, intent model.ExtractionIntent) ([]string, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT search_query FROM fetched_page WHERE search_query = ANY($1) AND intent = $2`,
		queries, string(intent),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: filter unscraped queries")
	}
	defer rows.Close()

	scraped := make(map[string]struct{})
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scraped query")
		}
		scraped[q] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: scraped query rows")
	}

	unscraped := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, done := scraped[q]; !done {
			unscraped = append(unscraped, q)
		}
	}
	return unscraped, nil
}

func (s *PostgresStore) InsertDomains(ctx context.Context, productQuery string, domains []model.Domain) error {
	rows := make([][]any, 0, len(domains))
	for _, d := range domains {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, productQuery, d.CandidateURL, d.Host, d.FounderQuery})
	}

	_, err := db.CopyFrom(ctx, s.pool, "domain",
		[]string{"id", "product_query", "domain_candidate_url", "domain", "founder_search_query"},
		rows,
	)
	return eris.Wrapf(err, "postgres: insert domains for %s", productQuery)
}

func (s *PostgresStore) InsertFounders(ctx context.Context, founders []model.Founder) error {
	rows := make([][]any, 0, len(founders))
	for _, f := range founders {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{id, f.Domain, f.Element, f.ParsedName, f.NoResults})
	}

	_, err := db.CopyFrom(ctx, s.pool, "founder",
		[]string{"id", "domain", "element_content", "founder_name", "no_results"},
		rows,
	)
	return eris.Wrap(err, "postgres: insert founders")
}

func (s *PostgresStore) InsertEmail(ctx context.Context, email model.Email) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO email (email_address, founder_name, domain, verification_status, reachability)
		 VALUES ($1, $2, $3, 'PENDING', 'UNKNOWN')`,
		email.Address, email.FounderName, email.Domain,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// The seen-set is best effort; the unique index is truth.
			return nil
		}
		return eris.Wrapf(err, "postgres: insert email %s", email.Address)
	}
	return nil
}

func (s *PostgresStore) PendingEmails(ctx context.Context, limit int) ([]model.Email, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT email_address, founder_name, domain FROM email
		 WHERE verification_status = 'PENDING'
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending emails")
	}
	defer rows.Close()

	var emails []model.Email
	for rows.Next() {
		e := model.Email{Status: model.StatusPending, Reachability: model.ReachUnknown}
		if err := rows.Scan(&e.Address, &e.FounderName, &e.Domain); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending email")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "postgres: pending email rows")
}

func (s *PostgresStore) UpdateEmailVerified(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE email SET verification_status = 'VERIFIED', reachability = 'SAFE'
		 WHERE email_address = $1`,
		address,
	)
	return eris.Wrapf(err, "postgres: update email verified %s", address)
}

func (s *PostgresStore) UpdateEmailUnverified(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE email SET verification_status = 'INVALID', reachability = 'INVALID'
		 WHERE email_address = $1`,
		address,
	)
	return eris.Wrapf(err, "postgres: update email unverified %s", address)
}

const verifiedLeadsSQL = `
SELECT e.email_address, e.founder_name, e.domain,
       COALESCE(p.product, ''), COALESCE(p.niche, '')
FROM email e
LEFT JOIN domain d ON d.domain = e.domain
LEFT JOIN product p ON p.domain_search_query = d.product_query
WHERE e.verification_status = 'VERIFIED'`

func (s *PostgresStore) VerifiedLeadsForNiche(ctx context.Context, niche string) ([]model.VerifiedLead, error) {
	rows, err := s.pool.Query(ctx, verifiedLeadsSQL+` AND p.niche = $1`, niche)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: verified leads for %s", niche)
	}
	return scanLeads(rows)
}

func (s *PostgresStore) VerifiedLeads(ctx context.Context) ([]model.VerifiedLead, error) {
	rows, err := s.pool.Query(ctx, verifiedLeadsSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: verified leads")
	}
	return scanLeads(rows)
}

func scanLeads(rows pgx.Rows) ([]model.VerifiedLead, error) {
	defer rows.Close()

	var leads []model.VerifiedLead
	for rows.Next() {
		var l model.VerifiedLead
		if err := rows.Scan(&l.Email, &l.FounderName, &l.Domain, &l.Product, &l.Niche); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: lead rows")
}

func (s *PostgresStore) ClaimCatalogCompanies(ctx context.Context, n int) ([]model.CatalogCompany, error) {
	rows, err := s.pool.Query(ctx,
		`UPDATE catalog_company SET scraped_at = now()
		 WHERE id IN (
			SELECT id FROM catalog_company WHERE scraped_at IS NULL LIMIT $1
		 )
		 RETURNING id, name, business_name, category`,
		n,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim catalog companies")
	}
	defer rows.Close()

	var companies []model.CatalogCompany
	for rows.Next() {
		var c model.CatalogCompany
		if err := rows.Scan(&c.ID, &c.Name, &c.BusinessName, &c.Category); err != nil {
			return nil, eris.Wrap(err, "postgres: scan catalog company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: catalog rows")
}

func (s *PostgresStore) CompleteCatalogJob(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE catalog_company SET scraped_at = now() WHERE id = $1`,
		id,
	)
	return eris.Wrapf(err, "postgres: complete catalog job %d", id)
}

func (s *PostgresStore) ConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM configuration WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: config value %s", key)
	}
	return value, nil
}

func (s *PostgresStore) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO configuration (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return eris.Wrapf(err, "postgres: set config value %s", key)
}

var statTables = []string{
	"niche", "product", "fetched_page", "html_tag", "data_extract",
	"domain", "founder", "email", "catalog_company",
}

func (s *PostgresStore) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(statTables))
	for _, table := range statTables {
		var count int64
		if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&count); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", table)
		}
		stats[table] = count
	}
	return stats, nil
}
