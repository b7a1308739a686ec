// Package model defines the entities the lead pipeline reads and writes.
package model

import "time"

// ExtractionIntent records what a search page was fetched to extract.
type ExtractionIntent string

const (
	IntentDomain      ExtractionIntent = "DOMAIN"
	IntentFounderName ExtractionIntent = "FOUNDER_NAME"
	IntentCompanyName ExtractionIntent = "COMPANY_NAME"
)

// TagKind identifies which HTML element a captured tag came from.
type TagKind string

const (
	TagA         TagKind = "A"
	TagH3        TagKind = "H3"
	TagSpan      TagKind = "SPAN"
	TagNextPageA TagKind = "NEXT_PAGE_A"
)

// ExtractKind identifies what was derived from a tag.
type ExtractKind string

const (
	ExtractDomain      ExtractKind = "DOMAIN"
	ExtractFounderName ExtractKind = "FOUNDER_NAME"
	ExtractCompanyName ExtractKind = "COMPANY_NAME"
)

// VerificationStatus is the lifecycle state of an email address.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusVerified VerificationStatus = "VERIFIED"
	StatusInvalid  VerificationStatus = "INVALID"
)

// Reachability labels how safely an address can be mailed.
type Reachability string

const (
	ReachSafe    Reachability = "SAFE"
	ReachUnknown Reachability = "UNKNOWN"
	ReachRisky   Reachability = "RISKY"
	ReachInvalid Reachability = "INVALID"
)

// Niche is a user-supplied market descriptor and the product names
// generated for it. The label is normalized (trimmed, lowercased) and
// acts as the primary key; product sets only ever grow.
type Niche struct {
	Label    string
	Prompt   string
	Products []string
}

// Product is one LLM-generated product name within a niche, carried with
// the search query derived from it.
type Product struct {
	ID        string
	Niche     string
	Label     string
	Query     string
	NoResults bool
}

// HtmlTag is one captured element from a fetched search page. Ordering
// within a page is significant and preserved on insert.
type HtmlTag struct {
	ID      int64
	PageID  int64
	Kind    TagKind
	Content string
}

// DataExtract is the value derived from a single tag; at most one per tag.
type DataExtract struct {
	TagID int64
	Kind  ExtractKind
	Value string
}

// FetchedPage is a durable record of one search-engine request. Pages are
// written even when empty so "tried, found nothing" is distinguishable
// from "not yet tried".
type FetchedPage struct {
	ID         int64
	Query      string
	Source     string
	PageNumber int
	Intent     ExtractionIntent
	AnyResult  bool
	CreatedAt  time.Time
}

// Domain is a candidate company host discovered for a product.
type Domain struct {
	ID           string
	ProductID    string
	CandidateURL string
	Host         *string // nil when the candidate URL was not reducible
	FounderQuery *string
}

// Founder is one candidate person found for a domain. ParsedName is nil
// when no splitter matched the raw element text.
type Founder struct {
	ID         string
	Domain     string
	Element    string
	ParsedName *string
	NoResults  bool
}

// Email is a permuted candidate address. Address is globally unique; the
// verifier moves it from Pending to a terminal status exactly once.
type Email struct {
	Address      string
	FounderName  string
	Domain       string
	Status       VerificationStatus
	Reachability Reachability
	CreatedAt    time.Time
}

// CatalogCompany is one row of the bulk company-catalog scraper's queue.
type CatalogCompany struct {
	ID           int64
	Name         string
	BusinessName string
	Category     string
	ScrapedAt    *time.Time
}

// VerifiedLead is the joined projection returned to interactive callers
// and written by the exporter.
type VerifiedLead struct {
	Email       string
	FounderName string
	Domain      string
	Product     string
	Niche       string
}
