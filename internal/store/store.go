// Package store is the persistence layer: one interface, a Postgres
// implementation for production and a SQLite one for local development.
// Only the persistence worker writes through it on the hot path.
package store

import (
	"context"

	"github.com/sells-group/leadforge/internal/model"
)

// Configuration row keys the pipeline reads on the hot path.
const (
	KeyPageDepth    = "google-search-domain-page-depth"
	KeyPromptStart  = "chatgpt-products-for-niche-start"
	KeyPromptEnd    = "chatgpt-products-for-niche-end"
	KeyFreshResults = "fresh-results"
)

// PageTag is one captured tag plus its optional derived extract, in page
// order.
type PageTag struct {
	Kind         model.TagKind
	Content      string
	ExtractKind  model.ExtractKind
	ExtractValue string // "" means no extract for this tag
}

// Page bundles one fetched search page with its tags for a single
// transactional insert.
type Page struct {
	Query      string
	Source     string
	PageNumber int
	Intent     model.ExtractionIntent
	AnyResult  bool
	Tags       []PageTag
}

// Store defines persistence for the lead pipeline.
type Store interface {
	// Niche and products
	GetNiche(ctx context.Context, label string) (*model.Niche, error) // nil, nil when absent
	UpsertNicheProducts(ctx context.Context, label, prompt string, products []string) error
	InsertProducts(ctx context.Context, niche string, products []model.Product) error
	MarkProductNoResults(ctx context.Context, query string) error

	// Fetched pages (tags and extracts ride along in one transaction)
	InsertPage(ctx context.Context, page Page) error
	FilterUnscrapedQueries(ctx context.Context, queries []string, intent model.ExtractionIntent) ([]string, error)

	// Domains and founders
	InsertDomains(ctx context.Context, productQuery string, domains []model.Domain) error
	InsertFounders(ctx context.Context, founders []model.Founder) error

	// Emails
	InsertEmail(ctx context.Context, email model.Email) error // unique collisions ignored
	PendingEmails(ctx context.Context, limit int) ([]model.Email, error)
	UpdateEmailVerified(ctx context.Context, address string) error
	UpdateEmailUnverified(ctx context.Context, address string) error
	VerifiedLeadsForNiche(ctx context.Context, niche string) ([]model.VerifiedLead, error)
	VerifiedLeads(ctx context.Context) ([]model.VerifiedLead, error)

	// Company catalog jobs
	ClaimCatalogCompanies(ctx context.Context, n int) ([]model.CatalogCompany, error)
	CompleteCatalogJob(ctx context.Context, id int64) error

	// Configuration rows
	ConfigValue(ctx context.Context, key string) (string, error) // "" when unset
	SetConfigValue(ctx context.Context, key, value string) error

	// Dashboard counts
	Stats(ctx context.Context) (map[string]int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
