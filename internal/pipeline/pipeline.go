package pipeline

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/lead"
	"github.com/sells-group/leadforge/internal/smtpprobe"
	"github.com/sells-group/leadforge/internal/store"
	"github.com/sells-group/leadforge/pkg/anthropic"
	"github.com/sells-group/leadforge/pkg/google"
)

// Options tunes the pipeline's optional paths.
type Options struct {
	// Model is the LLM used for product expansion.
	Model string

	// QualifierEnabled routes domains through the catch-all prober
	// before founder queries are fanned out.
	QualifierEnabled bool

	// CatalogEnabled starts the periodic company-catalog scraper.
	CatalogEnabled bool
}

// Pipeline wires the five workers and their queues. Data flows strictly
// left to right; no worker writes into a predecessor's inbox.
type Pipeline struct {
	store  store.Store
	search google.Client
	prober smtpprobe.Prober
	llm    anthropic.Client
	opts   Options

	productQueue *queue[string]
	founderQueue *queue[FounderQuery]
	qualifyQueue *queue[string]
	emailQueue   *queue[lead.Candidate]
	persistQueue *queue[PersistMsg]

	broadcast *Broadcaster
	track     tracker
}

// New assembles a pipeline; Start must be called before seeding.
func New(st store.Store, search google.Client, prober smtpprobe.Prober, llm anthropic.Client, opts Options) *Pipeline {
	return &Pipeline{
		store:        st,
		search:       search,
		prober:       prober,
		llm:          llm,
		opts:         opts,
		productQueue: newQueue[string](),
		founderQueue: newQueue[FounderQuery](),
		qualifyQueue: newQueue[string](),
		emailQueue:   newQueue[lead.Candidate](),
		persistQueue: newQueue[PersistMsg](),
		broadcast:    NewBroadcaster(),
	}
}

// Start launches the long-lived workers. ctx bounds the whole process;
// there is no per-worker cancellation.
func (p *Pipeline) Start(ctx context.Context) {
	go p.domainWorker(ctx)
	go p.founderWorker(ctx)
	go p.verifierWorker(ctx)
	go p.persistWorker(ctx)
	if p.opts.QualifierEnabled {
		go p.qualifierWorker(ctx)
	}
	if p.opts.CatalogEnabled {
		go p.catalogWorker(ctx)
	}
	zap.L().Info("pipeline started",
		zap.Bool("qualifier", p.opts.QualifierEnabled),
		zap.Bool("catalog", p.opts.CatalogEnabled),
	)
}

// Broadcast exposes the verified-address stream for interactive callers.
func (p *Pipeline) Broadcast() *Broadcaster {
	return p.broadcast
}

// SeedQueries pushes product queries onto the domain stage.
func (p *Pipeline) SeedQueries(queries []string) {
	for _, q := range queries {
		p.productQueue.Push(q)
	}
}

// SeedCandidates pushes already-persisted pending addresses back onto
// the verifier inbox (re-verification runs).
func (p *Pipeline) SeedCandidates(candidates []lead.Candidate) {
	for _, c := range candidates {
		p.emailQueue.Push(c)
	}
}

// queuesEmpty reports whether every inter-worker queue has drained.
func (p *Pipeline) queuesEmpty() bool {
	return p.productQueue.Len() == 0 &&
		p.founderQueue.Len() == 0 &&
		p.qualifyQueue.Len() == 0 &&
		p.emailQueue.Len() == 0 &&
		p.persistQueue.Len() == 0
}

// Quiesce blocks until all seeded work, including transitive fan-out
// and persistence, has drained, or ctx expires. With concurrent
// seeders it waits for the union of their work.
func (p *Pipeline) Quiesce(ctx context.Context) error {
	return p.track.waitIdle(ctx, p.queuesEmpty)
}

// pageDepth reads the configured domain pagination bound, defaulting
// to one page.
func (p *Pipeline) pageDepth(ctx context.Context) int {
	raw, err := p.store.ConfigValue(ctx, store.KeyPageDepth)
	if err != nil {
		zap.L().Warn("read page depth", zap.Error(err))
		return 1
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth < 1 {
		return 1
	}
	return depth
}
