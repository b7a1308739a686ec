package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // Register the pure-Go SQLite driver.

	"github.com/sells-group/leadforge/internal/model"
)

// SQLiteStore implements Store for local development and tests that
// want a real database without Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path with WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The persistence worker is the only writer; a couple of readers on top.
	sqlDB.SetMaxOpenConns(4)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS niche (
	user_niche        TEXT NOT NULL,
	prompt            TEXT NOT NULL,
	generated_product TEXT NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_niche, generated_product)
);

CREATE TABLE IF NOT EXISTS product (
	id                  TEXT PRIMARY KEY,
	niche               TEXT NOT NULL,
	product             TEXT NOT NULL,
	domain_search_query TEXT NOT NULL,
	no_results          INTEGER NOT NULL DEFAULT 0,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (niche, product)
);

CREATE TABLE IF NOT EXISTS fetched_page (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	search_query TEXT NOT NULL,
	page_source  TEXT NOT NULL,
	page_number  INTEGER NOT NULL,
	intent       TEXT NOT NULL,
	any_result   INTEGER NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_fetched_page_query ON fetched_page(search_query, intent);

CREATE TABLE IF NOT EXISTS html_tag (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id  INTEGER NOT NULL REFERENCES fetched_page(id),
	position INTEGER NOT NULL,
	kind     TEXT NOT NULL,
	content  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_html_tag_page ON html_tag(page_id);

CREATE TABLE IF NOT EXISTS data_extract (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	tag_id INTEGER NOT NULL UNIQUE REFERENCES html_tag(id),
	kind   TEXT NOT NULL,
	value  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS domain (
	id                   TEXT PRIMARY KEY,
	product_query        TEXT NOT NULL,
	domain_candidate_url TEXT NOT NULL,
	domain               TEXT,
	founder_search_query TEXT,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_domain_product_query ON domain(product_query);
CREATE INDEX IF NOT EXISTS idx_domain_domain ON domain(domain);

CREATE TABLE IF NOT EXISTS founder (
	id              TEXT PRIMARY KEY,
	domain          TEXT NOT NULL,
	element_content TEXT NOT NULL,
	founder_name    TEXT,
	no_results      INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_founder_domain ON founder(domain);

CREATE TABLE IF NOT EXISTS email (
	email_address       TEXT NOT NULL UNIQUE,
	founder_name        TEXT NOT NULL,
	domain              TEXT NOT NULL,
	verification_status TEXT NOT NULL DEFAULT 'PENDING',
	reachability        TEXT NOT NULL DEFAULT 'UNKNOWN',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS catalog_company (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	business_name TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	scraped_at    DATETIME
);

CREATE TABLE IF NOT EXISTS configuration (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

INSERT OR IGNORE INTO configuration (key, value) VALUES
	('google-search-domain-page-depth', '1'),
	('chatgpt-products-for-niche-start', 'Give names of different product examples in the following niche: '),
	('chatgpt-products-for-niche-end', '. Only return around 10 product names, one per line, separated by newlines. Do not number the products.'),
	('fresh-results', 'false');
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) GetNiche(ctx context.Context, label string) (*model.Niche, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prompt, generated_product FROM niche WHERE user_niche = ?`, label)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get niche %s", label)
	}
	defer rows.Close() //nolint:errcheck

	niche := &model.Niche{Label: label}
	for rows.Next() {
		var product string
		if err := rows.Scan(&niche.Prompt, &product); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan niche row")
		}
		niche.Products = append(niche.Products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: niche rows")
	}
	if len(niche.Products) == 0 {
		return nil, nil
	}
	return niche, nil
}

func (s *SQLiteStore) UpsertNicheProducts(ctx context.Context, label, prompt string, products []string) error {
	for _, p := range products {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO niche (user_niche, prompt, generated_product) VALUES (?, ?, ?)`,
			label, prompt, p,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert niche product %s", label)
		}
	}
	return nil
}

func (s *SQLiteStore) InsertProducts(ctx context.Context, niche string, products []model.Product) error {
	for _, p := range products {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO product (id, niche, product, domain_search_query) VALUES (?, ?, ?, ?)`,
			id, niche, p.Label, p.Query,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert product %s", p.Label)
		}
	}
	return nil
}

func (s *SQLiteStore) MarkProductNoResults(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE product SET no_results = 1 WHERE domain_search_query = ?`, query)
	return eris.Wrapf(err, "sqlite: mark product no results %s", query)
}

func (s *SQLiteStore) InsertPage(ctx context.Context, page Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin page insert")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO fetched_page (search_query, page_source, page_number, intent, any_result)
		 VALUES (?, ?, ?, ?, ?)`,
		page.Query, page.Source, page.PageNumber, string(page.Intent), page.AnyResult,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert fetched page")
	}
	pageID, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: fetched page id")
	}

	for i, tag := range page.Tags {
		tagRes, err := tx.ExecContext(ctx,
			`INSERT INTO html_tag (page_id, position, kind, content) VALUES (?, ?, ?, ?)`,
			pageID, i, string(tag.Kind), tag.Content,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert html tag")
		}

		if tag.ExtractValue != "" {
			tagID, err := tagRes.LastInsertId()
			if err != nil {
				return eris.Wrap(err, "sqlite: html tag id")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO data_extract (tag_id, kind, value) VALUES (?, ?, ?)`,
				tagID, string(tag.ExtractKind), tag.ExtractValue,
			)
			if err != nil {
				return eris.Wrap(err, "sqlite: insert data extract")
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit page insert")
}

func (s *SQLiteStore) FilterUnscrapedQueries(ctx context.Context, queries []string, intent model.ExtractionIntent) ([]string, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(queries)), ",")
	args := make([]any, 0, len(queries)+1)
	for _, q := range queries {
		args = append(args, q)
	}
	args = append(args, string(intent))

	rows, err := s.db.QueryContext(ctx,
		`SELECT search_query FROM fetched_page WHERE search_query IN (`+placeholders+`) AND intent = ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: filter unscraped queries")
	}
	defer rows.Close() //nolint:errcheck

	scraped := make(map[string]struct{})
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scraped query")
		}
		scraped[q] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: scraped query rows")
	}

	unscraped := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, done := scraped[q]; !done {
			unscraped = append(unscraped, q)
		}
	}
	return unscraped, nil
}

func (s *SQLiteStore) InsertDomains(ctx context.Context, productQuery string, domains []model.Domain) error {
	for _, d := range domains {
		id := d.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO domain (id, product_query, domain_candidate_url, domain, founder_search_query)
			 VALUES (?, ?, ?, ?, ?)`,
			id, productQuery, d.CandidateURL, d.Host, d.FounderQuery,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert domain for %s", productQuery)
		}
	}
	return nil
}

func (s *SQLiteStore) InsertFounders(ctx context.Context, founders []model.Founder) error {
	for _, f := range founders {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO founder (id, domain, element_content, founder_name, no_results)
			 VALUES (?, ?, ?, ?, ?)`,
			id, f.Domain, f.Element, f.ParsedName, f.NoResults,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert founder")
		}
	}
	return nil
}

func (s *SQLiteStore) InsertEmail(ctx context.Context, email model.Email) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO email (email_address, founder_name, domain, verification_status, reachability)
		 VALUES (?, ?, ?, 'PENDING', 'UNKNOWN')`,
		email.Address, email.FounderName, email.Domain,
	)
	return eris.Wrapf(err, "sqlite: insert email %s", email.Address)
}

func (s *SQLiteStore) PendingEmails(ctx context.Context, limit int) ([]model.Email, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email_address, founder_name, domain FROM email
		 WHERE verification_status = 'PENDING'
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending emails")
	}
	defer rows.Close() //nolint:errcheck

	var emails []model.Email
	for rows.Next() {
		e := model.Email{Status: model.StatusPending, Reachability: model.ReachUnknown}
		if err := rows.Scan(&e.Address, &e.FounderName, &e.Domain); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending email")
		}
		emails = append(emails, e)
	}
	return emails, eris.Wrap(rows.Err(), "sqlite: pending email rows")
}

func (s *SQLiteStore) UpdateEmailVerified(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email SET verification_status = 'VERIFIED', reachability = 'SAFE' WHERE email_address = ?`,
		address,
	)
	return eris.Wrapf(err, "sqlite: update email verified %s", address)
}

func (s *SQLiteStore) UpdateEmailUnverified(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email SET verification_status = 'INVALID', reachability = 'INVALID' WHERE email_address = ?`,
		address,
	)
	return eris.Wrapf(err, "sqlite: update email unverified %s", address)
}

const sqliteVerifiedLeadsSQL = `
SELECT e.email_address, e.founder_name, e.domain,
       COALESCE(p.product, ''), COALESCE(p.niche, '')
FROM email e
LEFT JOIN domain d ON d.domain = e.domain
LEFT JOIN product p ON p.domain_search_query = d.product_query
WHERE e.verification_status = 'VERIFIED'`

func (s *SQLiteStore) VerifiedLeadsForNiche(ctx context.Context, niche string) ([]model.VerifiedLead, error) {
	rows, err := s.db.QueryContext(ctx, sqliteVerifiedLeadsSQL+` AND p.niche = ?`, niche)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: verified leads for %s", niche)
	}
	return scanSQLLeads(rows)
}

func (s *SQLiteStore) VerifiedLeads(ctx context.Context) ([]model.VerifiedLead, error) {
	rows, err := s.db.QueryContext(ctx, sqliteVerifiedLeadsSQL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: verified leads")
	}
	return scanSQLLeads(rows)
}

func scanSQLLeads(rows *sql.Rows) ([]model.VerifiedLead, error) {
	defer rows.Close() //nolint:errcheck

	var leads []model.VerifiedLead
	for rows.Next() {
		var l model.VerifiedLead
		if err := rows.Scan(&l.Email, &l.FounderName, &l.Domain, &l.Product, &l.Niche); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: lead rows")
}

func (s *SQLiteStore) ClaimCatalogCompanies(ctx context.Context, n int) ([]model.CatalogCompany, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, business_name, category FROM catalog_company WHERE scraped_at IS NULL LIMIT ?`, n)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim catalog companies")
	}
	defer rows.Close() //nolint:errcheck

	var companies []model.CatalogCompany
	for rows.Next() {
		var c model.CatalogCompany
		if err := rows.Scan(&c.ID, &c.Name, &c.BusinessName, &c.Category); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan catalog company")
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: catalog rows")
	}

	for _, c := range companies {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE catalog_company SET scraped_at = datetime('now') WHERE id = ?`, c.ID); err != nil {
			return nil, eris.Wrapf(err, "sqlite: claim catalog company %d", c.ID)
		}
	}
	return companies, nil
}

func (s *SQLiteStore) CompleteCatalogJob(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE catalog_company SET scraped_at = datetime('now') WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: complete catalog job %d", id)
}

func (s *SQLiteStore) ConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM configuration WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: config value %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO configuration (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return eris.Wrapf(err, "sqlite: set config value %s", key)
}

func (s *SQLiteStore) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(statTables))
	for _, table := range statTables {
		var count int64
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM `+table).Scan(&count); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
		stats[table] = count
	}
	return stats, nil
}
