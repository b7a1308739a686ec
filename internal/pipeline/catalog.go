package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/internal/model"
	"github.com/sells-group/leadforge/internal/resilience"
	"github.com/sells-group/leadforge/pkg/google"
)

const (
	// catalogInterval is how often the bulk scraper claims a batch.
	catalogInterval = 30 * time.Minute

	// catalogBatchSize caps companies scraped per tick.
	catalogBatchSize = 10
)

// catalogWorker periodically claims unscraped catalog companies,
// discovers each one's domain by name, and feeds survivors into the
// founder stage.
func (p *Pipeline) catalogWorker(ctx context.Context) {
	zap.L().Info("catalog worker started")

	ticker := time.NewTicker(catalogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		companies, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(),
			func(ctx context.Context) ([]model.CatalogCompany, error) {
				return p.store.ClaimCatalogCompanies(ctx, catalogBatchSize)
			})
		if err != nil {
			zap.L().Error("claim catalog companies", zap.Error(err))
			continue
		}

		g := new(errgroup.Group)
		for _, company := range companies {
			p.track.add()
			g.Go(func() error {
				defer p.track.done()
				p.scrapeCompany(ctx, company)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// scrapeCompany resolves a catalog company's domain via a name search
// and routes it like any scraped domain.
func (p *Pipeline) scrapeCompany(ctx context.Context, company model.CatalogCompany) {
	query := lead.CompanyQuery(company.Name)

	result, err := p.search.Search(ctx, google.Request{
		Query:  query,
		Intent: google.IntentCompanyName,
	})
	if err != nil {
		zap.L().Error("company search failed", zap.String("company", company.Name), zap.Error(err))
		return
	}

	switch result.Outcome {
	case google.OutcomeNotFound:
		p.persistQueue.Push(CompanyNameNoResult{Query: query})

	case google.OutcomeCaptchaBlocked:
		zap.L().Warn("company search captcha blocked", zap.String("company", company.Name))

	case google.OutcomeResults:
		var domains []string
		for _, link := range result.Links {
			if d := lead.DomainFromHref(link); d != "" {
				domains = append(domains, d)
			}
		}

		chosen := lead.ClosestDomain(company.Name, domains)
		if chosen != "" && !lead.Blacklisted(chosen) {
			p.routeDomain(chosen)
		}

		p.persistQueue.Push(CompanyNameResult{
			Query:       query,
			CompanyName: company.Name,
			Source:      result.PageSource,
			Links:       result.Links,
			Domain:      chosen,
		})
	}

	p.persistQueue.Push(CatalogJobDone{ID: company.ID})
}
