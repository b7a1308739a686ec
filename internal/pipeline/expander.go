package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/internal/model"
	"github.com/sells-group/leadforge/internal/store"
	"github.com/sells-group/leadforge/pkg/anthropic"
)

const expandMaxTokens = 1024

// Expand ensures product names exist for a niche and seeds the domain
// stage with every product query not yet scraped. It returns the seeded
// queries. An LLM failure aborts the request with no side effects; the
// pipeline never retries it.
func (p *Pipeline) Expand(ctx context.Context, nicheInput string) ([]string, error) {
	label := lead.NormalizeLabel(nicheInput)
	if label == "" {
		return nil, eris.New("expand: empty niche")
	}

	fresh, err := p.store.ConfigValue(ctx, store.KeyFreshResults)
	if err != nil {
		return nil, eris.Wrap(err, "expand: read fresh-results")
	}

	niche, err := p.store.GetNiche(ctx, label)
	if err != nil {
		return nil, eris.Wrap(err, "expand: niche lookup")
	}

	var products []string
	if niche != nil {
		products = niche.Products
	}

	if niche == nil || fresh == "true" {
		generated, prompt, err := p.generateProducts(ctx, label)
		if err != nil {
			return nil, err
		}

		if err := p.store.UpsertNicheProducts(ctx, label, prompt, generated); err != nil {
			return nil, eris.Wrap(err, "expand: persist niche")
		}

		rows := make([]model.Product, 0, len(generated))
		for _, g := range generated {
			rows = append(rows, model.Product{Label: g, Query: lead.ProductQuery(g)})
		}
		if err := p.store.InsertProducts(ctx, label, rows); err != nil {
			return nil, eris.Wrap(err, "expand: persist products")
		}

		products = unionProducts(products, generated)
	}

	queries := make([]string, 0, len(products))
	for _, product := range products {
		queries = append(queries, lead.ProductQuery(product))
	}

	unscraped, err := p.store.FilterUnscrapedQueries(ctx, queries, model.IntentDomain)
	if err != nil {
		return nil, eris.Wrap(err, "expand: filter scraped queries")
	}

	p.SeedQueries(unscraped)
	zap.L().Info("niche expanded",
		zap.String("niche", label),
		zap.Int("products", len(products)),
		zap.Int("seeded", len(unscraped)),
	)
	return unscraped, nil
}

// generateProducts asks the LLM for product names, one per line.
func (p *Pipeline) generateProducts(ctx context.Context, label string) ([]string, string, error) {
	start, err := p.store.ConfigValue(ctx, store.KeyPromptStart)
	if err != nil {
		return nil, "", eris.Wrap(err, "expand: read prompt prefix")
	}
	end, err := p.store.ConfigValue(ctx, store.KeyPromptEnd)
	if err != nil {
		return nil, "", eris.Wrap(err, "expand: read prompt suffix")
	}

	prompt := start + label + end
	resp, err := p.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.opts.Model,
		MaxTokens: expandMaxTokens,
		Prompt:    prompt,
	})
	if err != nil {
		return nil, "", eris.Wrap(err, "expand: llm")
	}
	resp.Usage.LogCost(resp.Model, "expand")

	var products []string
	for _, line := range strings.Split(resp.Text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			products = append(products, trimmed)
		}
	}
	return products, prompt, nil
}

// unionProducts merges new names into existing, preserving order and
// dropping duplicates.
func unionProducts(existing, generated []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(generated))
	merged := make([]string, 0, len(existing)+len(generated))
	for _, p := range existing {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			merged = append(merged, p)
		}
	}
	for _, p := range generated {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged
}
