package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/pkg/google"
)

// domainWorker drains product queries serially, spawning one sub-task
// per accepted query. The seen-set suppresses duplicate scrapes within
// this process; the persistence layer dedups across restarts.
func (p *Pipeline) domainWorker(ctx context.Context) {
	zap.L().Info("domain worker started")
	seen := newSeenSet()

	for {
		query, ok := p.productQueue.Pop()
		if !ok {
			return
		}
		if !seen.Admit(query) {
			continue
		}

		p.track.add()
		go func() {
			defer p.track.done()
			p.scrapeDomainQuery(ctx, query)
		}()
	}
}

// scrapeDomainQuery paginates up to the configured depth, extracts and
// routes domains, and hands the page chain to persistence.
func (p *Pipeline) scrapeDomainQuery(ctx context.Context, query string) {
	depth := p.pageDepth(ctx)

	var pages []DomainPage
	nextPageURL := ""
	notFound := false

scrape:
	for pageIdx := 0; pageIdx < depth; pageIdx++ {
		result, err := p.search.Search(ctx, google.Request{
			Query:       query,
			NextPageURL: nextPageURL,
			Intent:      google.IntentDomain,
		})
		if err != nil {
			zap.L().Error("domain search failed", zap.String("query", query), zap.Error(err))
			break
		}

		switch result.Outcome {
		case google.OutcomeNotFound:
			notFound = true
			break scrape

		case google.OutcomeCaptchaBlocked:
			zap.L().Warn("domain search captcha blocked", zap.String("query", query))
			break scrape

		case google.OutcomeResults:
			domains := make([]string, 0, len(result.Links))
			for _, link := range result.Links {
				domain := lead.DomainFromHref(link)
				domains = append(domains, domain)

				if domain == "" || lead.Blacklisted(domain) {
					continue
				}
				p.routeDomain(domain)
			}

			pages = append(pages, DomainPage{
				Source:     result.PageSource,
				PageNumber: pageIdx + 1,
				Links:      result.Links,
				Domains:    domains,
			})

			if result.NextPageURL == "" {
				break scrape
			}
			nextPageURL = result.NextPageURL
		}
	}

	if len(pages) == 0 && notFound {
		p.persistQueue.Push(DomainNoResult{Query: query})
		return
	}
	p.persistQueue.Push(DomainResult{Query: query, Pages: pages})
}

// routeDomain sends a surviving domain onward: through the catch-all
// qualifier when enabled, straight to the founder stage otherwise.
func (p *Pipeline) routeDomain(domain string) {
	if p.opts.QualifierEnabled {
		p.qualifyQueue.Push(domain)
		return
	}
	p.fanOutFounderQueries(domain)
}

// fanOutFounderQueries emits one founder query per title template.
func (p *Pipeline) fanOutFounderQueries(domain string) {
	for _, q := range lead.FounderQueries(domain) {
		p.founderQueue.Push(FounderQuery{Query: q, Domain: domain})
	}
}
