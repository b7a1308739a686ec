package pipeline

import "github.com/sells-group/leadforge/internal/lead"

// FounderQuery travels from the domain (or qualifier/catalog) stage to
// the founder stage: the LinkedIn-scoped query plus the domain it was
// built from.
type FounderQuery struct {
	Query  string
	Domain string
}

// DomainPage is one ingested search page from the domain stage. Links
// and Domains are parallel; a "" domain means the link was not
// reducible.
type DomainPage struct {
	Source     string
	PageNumber int
	Links      []string
	Domains    []string
}

// FounderPage is the single ingested page from the founder stage.
// Headings and Names are parallel; a "" name means no splitter matched.
type FounderPage struct {
	Source   string
	Headings []string
	Names    []string
}

// PersistMsg is the tagged union drained by the persistence worker. One
// sum-typed inbox keeps every write serialized through one site.
type PersistMsg interface{ persistMsg() }

// DomainResult carries every page ingested for a product query. An
// empty Pages slice (captcha abort) writes nothing.
type DomainResult struct {
	Query string
	Pages []DomainPage
}

// DomainNoResult records that the engine explicitly reported no matches.
type DomainNoResult struct {
	Query string
}

// FounderResult carries the founder page for one query.
type FounderResult struct {
	Query  string
	Domain string
	Page   FounderPage
}

// FounderNoResult records a founder query with no matches; persistence
// also writes the sentinel empty founder row for the domain.
type FounderNoResult struct {
	Query  string
	Domain string
}

// CompanyNameResult carries a catalog company's discovery page. The
// chosen domain is attached as the page's single extract, on the first
// tag.
type CompanyNameResult struct {
	Query       string
	CompanyName string
	Source      string
	Links       []string
	Domain      string
}

// CompanyNameNoResult records a company query with no matches.
type CompanyNameNoResult struct {
	Query string
}

// InsertEmail inserts a pending address.
type InsertEmail struct {
	Candidate lead.Candidate
}

// EmailVerified flips an address to Verified/Safe.
type EmailVerified struct {
	Address string
}

// EmailUnverified flips an address to Invalid/Invalid.
type EmailUnverified struct {
	Address string
}

// CatalogJobDone marks a catalog row as completed.
type CatalogJobDone struct {
	ID int64
}

func (DomainResult) persistMsg()        {}
func (DomainNoResult) persistMsg()      {}
func (FounderResult) persistMsg()       {}
func (FounderNoResult) persistMsg()     {}
func (CompanyNameResult) persistMsg()   {}
func (CompanyNameNoResult) persistMsg() {}
func (InsertEmail) persistMsg()         {}
func (EmailVerified) persistMsg()       {}
func (EmailUnverified) persistMsg()     {}
func (CatalogJobDone) persistMsg()      {}
