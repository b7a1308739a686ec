package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/internal/model"
	"github.com/sells-group/leadforge/internal/resilience"
	"github.com/sells-group/leadforge/internal/store"
)

// persistTimeout bounds each message's store work, covering pool
// acquisition.
const persistTimeout = 10 * time.Second

// persistRetrySleep is the pause before a timed-out message is
// re-enqueued. This is the only retry in the system. Variable so tests
// can shorten it.
var persistRetrySleep = 10 * time.Second

// persistWorker is the single writer to the store. It drains the
// persistence queue serially so relational writes never contend, and
// producers never block on the database.
func (p *Pipeline) persistWorker(ctx context.Context) {
	zap.L().Info("persistence worker started")

	for {
		msg, ok := p.persistQueue.Pop()
		if !ok {
			return
		}

		p.track.add()
		p.persistOne(ctx, msg)
		p.track.done()
	}
}

// persistOne applies a message. Transient store failures re-enqueue the
// message at the tail after a sleep so other messages keep making
// progress on the next loop; permanent failures are logged and dropped.
func (p *Pipeline) persistOne(ctx context.Context, msg PersistMsg) {
	opCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	err := p.applyMsg(opCtx, msg)
	if err == nil {
		return
	}

	if resilience.IsTransient(err) {
		zap.L().Warn("store unavailable, requeueing message", zap.Error(err))
		time.Sleep(persistRetrySleep)
		p.persistQueue.Push(msg)
		return
	}
	zap.L().Error("persist failed", zap.Error(err))
}

func (p *Pipeline) applyMsg(ctx context.Context, msg PersistMsg) error {
	switch m := msg.(type) {
	case DomainResult:
		return p.applyDomainResult(ctx, m)

	case DomainNoResult:
		if err := p.store.InsertPage(ctx, store.Page{
			Query:  m.Query,
			Intent: model.IntentDomain,
		}); err != nil {
			return err
		}
		return p.store.MarkProductNoResults(ctx, m.Query)

	case FounderResult:
		return p.applyFounderResult(ctx, m)

	case FounderNoResult:
		if err := p.store.InsertPage(ctx, store.Page{
			Query:  m.Query,
			Intent: model.IntentFounderName,
		}); err != nil {
			return err
		}
		// Sentinel empty row so the domain reads as tried.
		return p.store.InsertFounders(ctx, []model.Founder{
			{Domain: m.Domain, NoResults: true},
		})

	case CompanyNameResult:
		return p.applyCompanyNameResult(ctx, m)

	case CompanyNameNoResult:
		return p.store.InsertPage(ctx, store.Page{
			Query:  m.Query,
			Intent: model.IntentCompanyName,
		})

	case InsertEmail:
		return p.store.InsertEmail(ctx, model.Email{
			Address:     m.Candidate.Email,
			FounderName: m.Candidate.FounderName,
			Domain:      m.Candidate.Domain,
		})

	case EmailVerified:
		return p.store.UpdateEmailVerified(ctx, m.Address)

	case EmailUnverified:
		return p.store.UpdateEmailUnverified(ctx, m.Address)

	case CatalogJobDone:
		return p.store.CompleteCatalogJob(ctx, m.ID)

	default:
		zap.L().Error("unknown persist message", zap.Any("msg", msg))
		return nil
	}
}

func (p *Pipeline) applyDomainResult(ctx context.Context, m DomainResult) error {
	for _, page := range m.Pages {
		tags := make([]store.PageTag, 0, len(page.Links))
		domainRows := make([]model.Domain, 0, len(page.Links))

		for i, link := range page.Links {
			tag := store.PageTag{Kind: model.TagA, Content: link}
			domain := page.Domains[i]
			if domain != "" {
				tag.ExtractKind = model.ExtractDomain
				tag.ExtractValue = domain
			}
			tags = append(tags, tag)

			row := model.Domain{CandidateURL: link}
			if domain != "" {
				host := domain
				row.Host = &host
				if !lead.Blacklisted(domain) {
					fq := lead.FounderQueries(domain)[0]
					row.FounderQuery = &fq
				}
			}
			domainRows = append(domainRows, row)
		}

		if err := p.store.InsertPage(ctx, store.Page{
			Query:      m.Query,
			Source:     page.Source,
			PageNumber: page.PageNumber,
			Intent:     model.IntentDomain,
			AnyResult:  true,
			Tags:       tags,
		}); err != nil {
			return err
		}
		if err := p.store.InsertDomains(ctx, m.Query, domainRows); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) applyFounderResult(ctx context.Context, m FounderResult) error {
	tags := make([]store.PageTag, 0, len(m.Page.Headings))
	founderRows := make([]model.Founder, 0, len(m.Page.Headings))

	for i, heading := range m.Page.Headings {
		tag := store.PageTag{Kind: model.TagH3, Content: heading}
		name := m.Page.Names[i]
		if name != "" {
			tag.ExtractKind = model.ExtractFounderName
			tag.ExtractValue = name
		}
		tags = append(tags, tag)

		row := model.Founder{Domain: m.Domain, Element: heading}
		if name != "" {
			parsed := name
			row.ParsedName = &parsed
		}
		founderRows = append(founderRows, row)
	}

	if err := p.store.InsertPage(ctx, store.Page{
		Query:      m.Query,
		Source:     m.Page.Source,
		PageNumber: 1,
		Intent:     model.IntentFounderName,
		AnyResult:  true,
		Tags:       tags,
	}); err != nil {
		return err
	}
	return p.store.InsertFounders(ctx, founderRows)
}

func (p *Pipeline) applyCompanyNameResult(ctx context.Context, m CompanyNameResult) error {
	tags := make([]store.PageTag, 0, len(m.Links))
	for i, link := range m.Links {
		tag := store.PageTag{Kind: model.TagA, Content: link}
		// At most one extract per company page, on the first tag.
		if i == 0 && m.Domain != "" {
			tag.ExtractKind = model.ExtractCompanyName
			tag.ExtractValue = m.Domain
		}
		tags = append(tags, tag)
	}

	return p.store.InsertPage(ctx, store.Page{
		Query:      m.Query,
		Source:     m.Source,
		PageNumber: 1,
		Intent:     model.IntentCompanyName,
		AnyResult:  true,
		Tags:       tags,
	})
}
