package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/pkg/google"
)

// founderWorker drains founder queries with the same accept discipline
// as the domain worker.
func (p *Pipeline) founderWorker(ctx context.Context) {
	zap.L().Info("founder worker started")
	seen := newSeenSet()

	for {
		fq, ok := p.founderQueue.Pop()
		if !ok {
			return
		}
		if !seen.Admit(fq.Query) {
			continue
		}

		p.track.add()
		go func() {
			defer p.track.done()
			p.scrapeFounderQuery(ctx, fq)
		}()
	}
}

// scrapeFounderQuery fetches one result page, parses names out of the
// headings, permutes candidate addresses, and emits everything.
func (p *Pipeline) scrapeFounderQuery(ctx context.Context, fq FounderQuery) {
	result, err := p.search.Search(ctx, google.Request{
		Query:  fq.Query,
		Intent: google.IntentFounder,
	})
	if err != nil {
		zap.L().Error("founder search failed", zap.String("query", fq.Query), zap.Error(err))
		return
	}

	switch result.Outcome {
	case google.OutcomeNotFound:
		p.persistQueue.Push(FounderNoResult{Query: fq.Query, Domain: fq.Domain})

	case google.OutcomeCaptchaBlocked:
		zap.L().Warn("founder search captcha blocked", zap.String("query", fq.Query))

	case google.OutcomeResults:
		names := make([]string, 0, len(result.Headings))
		for _, heading := range result.Headings {
			names = append(names, lead.ParseFounderName(heading))
		}

		for _, name := range names {
			if name == "" {
				continue
			}
			// Pending insert goes first: it shares the persistence
			// queue with the verifier's status update, and FIFO order
			// within this producer keeps the insert ahead.
			for _, candidate := range lead.Permutations(name, fq.Domain) {
				p.persistQueue.Push(InsertEmail{Candidate: candidate})
				p.emailQueue.Push(candidate)
			}
		}

		p.persistQueue.Push(FounderResult{
			Query:  fq.Query,
			Domain: fq.Domain,
			Page: FounderPage{
				Source:   result.PageSource,
				Headings: result.Headings,
				Names:    names,
			},
		})
	}
}

// qualifierWorker probes domains for catch-all MX behavior and only
// fans out founder queries for domains where per-address verification
// is meaningful.
func (p *Pipeline) qualifierWorker(ctx context.Context) {
	zap.L().Info("qualifier worker started")
	seen := newSeenSet()

	for {
		domain, ok := p.qualifyQueue.Pop()
		if !ok {
			return
		}
		if !seen.Admit(domain) {
			continue
		}

		p.track.add()
		go func() {
			defer p.track.done()
			p.qualifyDomain(ctx, domain)
		}()
	}
}

func (p *Pipeline) qualifyDomain(ctx context.Context, domain string) {
	catchAll, err := p.prober.ProbeCatchAll(ctx, domain)
	if err != nil {
		// An unreachable MX is not evidence of catch-all; let the
		// verifier make the per-address call.
		zap.L().Debug("catch-all probe failed", zap.String("domain", domain), zap.Error(err))
		catchAll = false
	}
	if catchAll {
		zap.L().Info("domain is catch-all, skipping founder fan-out", zap.String("domain", domain))
		return
	}
	p.fanOutFounderQueries(domain)
}
